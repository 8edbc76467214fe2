package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoActiveSubscription = errors.New("No active subscription found")
	ErrNoSubscriptionPlan   = errors.New("No subscription plan found")
	ErrUnknownResource      = errors.New("Unknown resource type")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrNotFound             = errors.New("record not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("already exists")
)

// LimitExceededError is returned when creating another instance of a resource
// would exceed the organization's plan. Its message is shown to end users.
type LimitExceededError struct {
	Resource Resource
	PlanName string
	Limit    int64
	Current  int64
	// Month is only meaningful for monthly-resetting resources.
	Month time.Month
}

func (e *LimitExceededError) Monthly() bool {
	return e.Resource.IsMonthly()
}

func (e *LimitExceededError) Error() string {
	switch e.Resource {
	case ResourcePatient:
		return fmt.Sprintf(
			"Monthly patient limit reached. Your %s plan allows %d new patients per month and %d have been added in %s. Please upgrade your plan to add more patients.",
			e.PlanName, e.Limit, e.Current, e.Month,
		)
	case ResourceAppointment:
		return fmt.Sprintf(
			"Monthly appointment limit reached. Your %s plan allows %d appointments per month and %d have been booked in %s. Please upgrade your plan to book more appointments.",
			e.PlanName, e.Limit, e.Current, e.Month,
		)
	case ResourceUser:
		return fmt.Sprintf(
			"User limit reached. Your %s plan allows %d users and your organization has %d. Please upgrade your plan to add more users.",
			e.PlanName, e.Limit, e.Current,
		)
	default:
		return fmt.Sprintf("%s limit reached for the %s plan (%d of %d)", e.Resource, e.PlanName, e.Current, e.Limit)
	}
}

// IsLimitExceeded reports whether err carries a LimitExceededError.
func IsLimitExceeded(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}

// FeatureDeniedError is returned by feature gates when the plan lacks a feature.
type FeatureDeniedError struct {
	Feature  Feature
	PlanName string
}

func (e *FeatureDeniedError) Error() string {
	if e.PlanName == "" {
		return fmt.Sprintf("Your plan does not include %s", e.Feature)
	}
	return fmt.Sprintf("Your %s plan does not include %s", e.PlanName, e.Feature)
}

func IsFeatureDenied(err error) bool {
	var fe *FeatureDeniedError
	return errors.As(err, &fe)
}
