package models

import (
	"encoding/json"
	"time"
)

// MonthPeriod is the half-open window [Start, End) of a calendar month.
type MonthPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MonthContaining returns the calendar month around t in loc.
func MonthContaining(t time.Time, loc *time.Location) MonthPeriod {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return MonthPeriod{Start: start, End: start.AddDate(0, 1, 0)}
}

func (p MonthPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Usage is a tenant's current consumption. Patients and appointments are
// counted within MonthPeriod; users are a lifetime total.
type Usage struct {
	Patients     int64       `json:"patients"`
	Users        int64       `json:"users"`
	Appointments int64       `json:"appointments"`
	MonthPeriod  MonthPeriod `json:"month_period"`
	LastUpdated  time.Time   `json:"last_updated"`
}

// Of returns the usage figure compared against a resource's limit.
func (u *Usage) Of(resource Resource) int64 {
	switch resource {
	case ResourcePatient:
		return u.Patients
	case ResourceUser:
		return u.Users
	case ResourceAppointment:
		return u.Appointments
	}
	return 0
}

func (u *Usage) Snapshot() UsageSnapshot {
	return UsageSnapshot{
		Patients:     u.Patients,
		Users:        u.Users,
		Appointments: u.Appointments,
		LastUpdated:  u.LastUpdated,
	}
}

// LimitCheckResult is returned when a limit check passes.
type LimitCheckResult struct {
	Allowed      bool       `json:"allowed"`
	CurrentUsage *Usage     `json:"current_usage"`
	Limits       PlanLimits `json:"limits"`
	PlanName     string     `json:"plan_name"`
}

// PlanSource says where an EffectivePlan came from.
type PlanSource int

const (
	PlanSourceCatalog PlanSource = iota
	PlanSourceSyntheticUnlimited
	PlanSourceSyntheticTrial
)

func (s PlanSource) String() string {
	switch s {
	case PlanSourceSyntheticUnlimited:
		return "unlimited"
	case PlanSourceSyntheticTrial:
		return "trial"
	default:
		return "catalog"
	}
}

const (
	UnlimitedPlanName = "Unlimited Account"
	TrialPlanName     = "Trial Account"
)

// EffectivePlan is the plan that governs a tenant. Only catalog plans carry
// a persisted SubscriptionPlan; synthetic ones never touch the catalog.
type EffectivePlan struct {
	Source   PlanSource
	Name     string
	Features PlanFeatures
	catalog  *SubscriptionPlan
}

func CatalogPlan(p *SubscriptionPlan) EffectivePlan {
	return EffectivePlan{
		Source:   PlanSourceCatalog,
		Name:     p.Name,
		Features: p.Features.Data(),
		catalog:  p,
	}
}

func SyntheticUnlimitedPlan() EffectivePlan {
	return EffectivePlan{Source: PlanSourceSyntheticUnlimited, Name: UnlimitedPlanName, Features: AllFeatures()}
}

func SyntheticTrialPlan() EffectivePlan {
	return EffectivePlan{Source: PlanSourceSyntheticTrial, Name: TrialPlanName, Features: AllFeatures()}
}

func (p EffectivePlan) IsSynthetic() bool {
	return p.Source != PlanSourceCatalog
}

// Catalog returns the persisted plan, if any.
func (p EffectivePlan) Catalog() (*SubscriptionPlan, bool) {
	return p.catalog, p.catalog != nil
}

func (p EffectivePlan) Limits() PlanLimits {
	return p.Features.PlanLimits
}

func (p EffectivePlan) MarshalJSON() ([]byte, error) {
	out := struct {
		Source   string            `json:"source"`
		Name     string            `json:"name"`
		Features PlanFeatures      `json:"features"`
		Plan     *SubscriptionPlan `json:"plan,omitempty"`
	}{
		Source:   p.Source.String(),
		Name:     p.Name,
		Features: p.Features,
		Plan:     p.catalog,
	}
	return json.Marshal(out)
}

// SubscriptionDetails is the full subscription picture for display.
type SubscriptionDetails struct {
	Subscription *Subscription `json:"subscription"`
	Plan         EffectivePlan `json:"plan"`
	Usage        *Usage        `json:"usage"`
	Limits       PlanLimits    `json:"limits"`
	IsActive     bool          `json:"is_active"`
}
