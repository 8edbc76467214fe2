package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/otcheredev/practice-subscriptions/internal/middleware"
	"github.com/otcheredev/practice-subscriptions/internal/services"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
	backup    *services.BackupService
}

func NewDashboardHandler(dashboard *services.DashboardService, backup *services.BackupService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, backup: backup}
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())
	user.OrganizationID = orgID

	dashboard, err := h.dashboard.GetDashboard(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Backup streams an export of the organization as an attachment
func (h *DashboardHandler) Backup(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	format := services.BackupFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = services.BackupFormatJSON
	}

	data, err := h.backup.Export(r.Context(), orgID, user.UserID, format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("backup-%s-%s.%s", orgID, time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
