package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubscriptionType classifies an organization independently of its plan.
type SubscriptionType string

const (
	SubscriptionTypeStandard  SubscriptionType = "standard"
	SubscriptionTypeUnlimited SubscriptionType = "unlimited"
)

// Organization is the tenant root.
type Organization struct {
	ID                    uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name                  string           `gorm:"type:varchar(255);not null" json:"name"`
	SubscriptionType      SubscriptionType `gorm:"type:varchar(20);not null;default:'standard'" json:"subscription_type"`
	CurrentSubscriptionID *uuid.UUID       `gorm:"type:uuid" json:"current_subscription_id,omitempty"`
	IsActive              bool             `gorm:"default:true" json:"is_active"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.SubscriptionType == "" {
		o.SubscriptionType = SubscriptionTypeStandard
	}
	return nil
}

// IsUnlimited reports whether the organization bypasses every plan limit.
func (o *Organization) IsUnlimited() bool {
	return o != nil && o.SubscriptionType == SubscriptionTypeUnlimited
}

// PlanFeatures is stored as JSON on the plan row.
type PlanFeatures struct {
	PlanLimits
	CustomBranding     bool `json:"customBranding"`
	APIAccess          bool `json:"apiAccess"`
	PrioritySupport    bool `json:"prioritySupport"`
	AdvancedReports    bool `json:"advancedReports"`
	SMSNotifications   bool `json:"smsNotifications"`
	EmailNotifications bool `json:"emailNotifications"`
	DataBackup         bool `json:"dataBackup"`
}

// AllFeatures enables everything with no numeric caps.
func AllFeatures() PlanFeatures {
	return PlanFeatures{
		PlanLimits:         UnlimitedLimits(),
		CustomBranding:     true,
		APIAccess:          true,
		PrioritySupport:    true,
		AdvancedReports:    true,
		SMSNotifications:   true,
		EmailNotifications: true,
		DataBackup:         true,
	}
}

// Enabled reports whether a feature is on. Unrecognised keys are simply off.
func (f PlanFeatures) Enabled(feature Feature) bool {
	switch feature {
	case FeatureCustomBranding:
		return f.CustomBranding
	case FeatureAPIAccess:
		return f.APIAccess
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeatureAdvancedReports:
		return f.AdvancedReports
	case FeatureSMSNotifications:
		return f.SMSNotifications
	case FeatureEmailNotifications:
		return f.EmailNotifications
	case FeatureDataBackup:
		return f.DataBackup
	default:
		return false
	}
}

// SubscriptionPlan is a catalog entry managed by super-admins.
type SubscriptionPlan struct {
	ID           uuid.UUID                        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name         string                           `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description  string                           `gorm:"type:text" json:"description,omitempty"`
	MonthlyPrice decimal.Decimal                  `gorm:"type:numeric(12,2);not null;default:0" json:"monthly_price"`
	YearlyPrice  decimal.Decimal                  `gorm:"type:numeric(12,2);not null;default:0" json:"yearly_price"`
	Currency     string                           `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Features     datatypes.JSONType[PlanFeatures] `gorm:"type:jsonb;not null" json:"features"`
	IsActive     bool                             `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time                        `json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

func (p *SubscriptionPlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	return nil
}

func (p *SubscriptionPlan) Limits() PlanLimits {
	return p.Features.Data().PlanLimits
}

func (p *SubscriptionPlan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: plan name is required", ErrInvalidInput)
	}
	if p.MonthlyPrice.IsNegative() || p.YearlyPrice.IsNegative() {
		return fmt.Errorf("%w: plan prices cannot be negative", ErrInvalidInput)
	}
	return nil
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusUnlimited SubscriptionStatus = "unlimited"
)

// LiveStatuses are the statuses a subscription may have while it governs a tenant.
var LiveStatuses = []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing}

func (s SubscriptionStatus) IsTrial() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusTrialing
}

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Period returns the end of a billing period starting at start.
func (c BillingCycle) Period(start time.Time) time.Time {
	if c == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// UsageSnapshot is the denormalised usage stored with a subscription.
type UsageSnapshot struct {
	Patients     int64     `gorm:"default:0" json:"patients"`
	Users        int64     `gorm:"default:0" json:"users"`
	Appointments int64     `gorm:"default:0" json:"appointments"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Subscription ties an organization to a plan for a period.
type Subscription struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrganizationID uuid.UUID          `gorm:"type:uuid;not null;index" json:"organization_id"`
	PlanID         *uuid.UUID         `gorm:"type:uuid;index" json:"plan_id,omitempty"`
	Plan           *SubscriptionPlan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status         SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	BillingCycle   BillingCycle       `gorm:"type:varchar(10);not null;default:'monthly'" json:"billing_cycle"`
	StartDate      time.Time          `gorm:"not null" json:"start_date"`
	EndDate        *time.Time         `json:"end_date,omitempty"`
	TrialEndDate   *time.Time         `json:"trial_end_date,omitempty"`
	Usage          UsageSnapshot      `gorm:"embedded;embeddedPrefix:usage_" json:"usage"`
	CreatedAt      time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsTrial treats a missing subscription as a trial.
func (s *Subscription) IsTrial() bool {
	return s == nil || s.Status.IsTrial()
}

// IsLive reports whether the subscription currently governs its organization.
func (s *Subscription) IsLive(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusTrialing {
		return false
	}
	return s.EndDate == nil || now.Before(*s.EndDate)
}
