package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditActionLimitDenied      = "subscription.limit_denied"
	AuditActionPlanChanged      = "subscription.plan_changed"
	AuditActionTrialStarted     = "subscription.trial_started"
	AuditActionTypeChanged      = "organization.subscription_type_changed"
	AuditActionOrganizationGone = "organization.deleted"
	AuditActionBackupExported   = "backup.exported"

	AuditStatusSuccess = "success"
	AuditStatusDenied  = "denied"
)

// AuditLog records subscription decisions and administrative changes.
type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action         string     `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType   string     `gorm:"type:varchar(50);index" json:"resource_type,omitempty"`
	ResourceID     string     `gorm:"type:varchar(255)" json:"resource_id,omitempty"`
	Status         string     `gorm:"type:varchar(20);index" json:"status"`
	Message        string     `gorm:"type:text" json:"message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"timestamp"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
