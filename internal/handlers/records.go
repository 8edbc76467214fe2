package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/otcheredev/practice-subscriptions/internal/services"
)

type RecordsHandler struct {
	records *services.RecordsService
}

func NewRecordsHandler(records *services.RecordsService) *RecordsHandler {
	return &RecordsHandler{records: records}
}

type createPatientRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
}

func (h *RecordsHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req createPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	patient := &models.Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Phone:       req.Phone,
		Email:       req.Email,
	}
	if err := h.records.CreatePatient(r.Context(), orgID, patient); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (h *RecordsHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	patients, err := h.records.ListPatients(r.Context(), orgID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

type createUserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func (h *RecordsHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	user := &models.User{Name: req.Name, Email: req.Email, Role: req.Role}
	if err := h.records.CreateUser(r.Context(), orgID, user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type createAppointmentRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Reason      string    `json:"reason,omitempty"`
}

func (h *RecordsHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	appointment := &models.Appointment{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		ScheduledAt: req.ScheduledAt,
		Reason:      req.Reason,
	}
	if err := h.records.CreateAppointment(r.Context(), orgID, appointment); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointment)
}

func (h *RecordsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	appointments, err := h.records.ListAppointments(r.Context(), orgID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appointments)
}
