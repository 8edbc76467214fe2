package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

type BackupFormat string

const (
	BackupFormatJSON BackupFormat = "json"
	BackupFormatCSV  BackupFormat = "csv"
)

// ContentType is the MIME type of an export in this format.
func (f BackupFormat) ContentType() string {
	if f == BackupFormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// BackupAppointment is an appointment flattened for export.
type BackupAppointment struct {
	ID          uuid.UUID                `json:"id"`
	PatientID   uuid.UUID                `json:"patient_id"`
	PatientName string                   `json:"patient_name"`
	DoctorID    uuid.UUID                `json:"doctor_id"`
	DoctorName  string                   `json:"doctor_name"`
	ScheduledAt time.Time                `json:"scheduled_at"`
	Status      models.AppointmentStatus `json:"status"`
	Reason      string                   `json:"reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

// Backup is everything an organization owns.
type Backup struct {
	Organization *models.Organization `json:"organization"`
	ExportedAt   time.Time            `json:"exportedAt"`
	Patients     []models.Patient     `json:"patients"`
	Users        []models.User        `json:"users"`
	Appointments []BackupAppointment  `json:"appointments"`
}

// BackupService exports tenant data for plans with the dataBackup feature.
type BackupService struct {
	subscriptions *SubscriptionService
	orgs          OrganizationStore
	records       *RecordsService
	audit         AuditStore
	now           func() time.Time
}

func NewBackupService(subscriptions *SubscriptionService, orgs OrganizationStore, records *RecordsService, audit AuditStore) *BackupService {
	return &BackupService{
		subscriptions: subscriptions,
		orgs:          orgs,
		records:       records,
		audit:         audit,
		now:           time.Now,
	}
}

// Export renders the organization's data in format. Plans without
// dataBackup get a *models.FeatureDeniedError.
func (s *BackupService) Export(ctx context.Context, orgID uuid.UUID, actor uuid.UUID, format BackupFormat) ([]byte, error) {
	if format == "" {
		format = BackupFormatJSON
	}
	if format != BackupFormatJSON && format != BackupFormatCSV {
		return nil, fmt.Errorf("%w: unsupported backup format %q", models.ErrInvalidInput, format)
	}

	if err := s.subscriptions.RequireFeature(ctx, orgID, models.FeatureDataBackup); err != nil {
		return nil, err
	}

	backup, err := s.collect(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var out []byte
	switch format {
	case BackupFormatCSV:
		out, err = encodeBackupCSV(backup)
	default:
		out, err = json.MarshalIndent(backup, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Info().
		Str("organization_id", orgID.String()).
		Str("format", string(format)).
		Int("patients", len(backup.Patients)).
		Int("users", len(backup.Users)).
		Int("appointments", len(backup.Appointments)).
		Msg("Backup exported")

	if s.audit != nil {
		entry := &models.AuditLog{
			OrganizationID: orgID,
			Action:         models.AuditActionBackupExported,
			ResourceType:   "organization",
			ResourceID:     orgID.String(),
			Status:         models.AuditStatusSuccess,
			Message:        string(format),
		}
		if actor != uuid.Nil {
			entry.UserID = &actor
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to write audit log")
		}
	}
	return out, nil
}

func (s *BackupService) collect(ctx context.Context, orgID uuid.UUID) (*Backup, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	patients, err := s.records.ListPatients(ctx, orgID, 0, 0)
	if err != nil {
		return nil, err
	}
	users, err := s.records.ListUsers(ctx, orgID, 0, 0)
	if err != nil {
		return nil, err
	}
	appointments, err := s.records.ListAppointments(ctx, orgID, 0, 0)
	if err != nil {
		return nil, err
	}

	flat := make([]BackupAppointment, 0, len(appointments))
	for _, a := range appointments {
		row := BackupAppointment{
			ID:          a.ID,
			PatientID:   a.PatientID,
			DoctorID:    a.DoctorID,
			ScheduledAt: a.ScheduledAt,
			Status:      a.Status,
			Reason:      a.Reason,
			CreatedAt:   a.CreatedAt,
		}
		if a.Patient != nil {
			row.PatientName = a.Patient.FullName()
		}
		if a.Doctor != nil {
			row.DoctorName = a.Doctor.Name
		}
		flat = append(flat, row)
	}

	return &Backup{
		Organization: org,
		ExportedAt:   s.now().UTC(),
		Patients:     patients,
		Users:        users,
		Appointments: flat,
	}, nil
}

func encodeBackupCSV(b *Backup) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBackupCSV(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBackupCSV writes one block per table: a "# name" line, the header,
// the rows and a blank separator line.
func writeBackupCSV(out io.Writer, b *Backup) error {
	w := csv.NewWriter(out)

	section := func(name string, header []string, rows [][]string) error {
		if err := w.Write([]string{"# " + name}); err != nil {
			return err
		}
		if err := w.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return w.Write(nil)
	}

	patients := make([][]string, 0, len(b.Patients))
	for _, p := range b.Patients {
		dob := ""
		if p.DateOfBirth != nil {
			dob = p.DateOfBirth.Format("2006-01-02")
		}
		patients = append(patients, []string{
			p.ID.String(), p.FirstName, p.LastName, dob, p.Phone, p.Email, formatTime(p.CreatedAt),
		})
	}
	if err := section("patients", []string{"id", "first_name", "last_name", "date_of_birth", "phone", "email", "created_at"}, patients); err != nil {
		return err
	}

	users := make([][]string, 0, len(b.Users))
	for _, u := range b.Users {
		users = append(users, []string{u.ID.String(), u.Name, u.Email, string(u.Role), formatTime(u.CreatedAt)})
	}
	if err := section("users", []string{"id", "name", "email", "role", "created_at"}, users); err != nil {
		return err
	}

	appointments := make([][]string, 0, len(b.Appointments))
	for _, a := range b.Appointments {
		appointments = append(appointments, []string{
			a.ID.String(), a.PatientID.String(), a.PatientName, a.DoctorID.String(), a.DoctorName,
			formatTime(a.ScheduledAt), string(a.Status), a.Reason, formatTime(a.CreatedAt),
		})
	}
	if err := section("appointments", []string{"id", "patient_id", "patient_name", "doctor_id", "doctor_name", "scheduled_at", "status", "reason", "created_at"}, appointments); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
