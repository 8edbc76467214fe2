package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// UnlimitedSentinel is how an unlimited Limit is stored and serialised.
const UnlimitedSentinel int64 = -1

// Limit is either Unlimited or Limited(n). The zero value is unlimited, which
// matches how a plan with a missing limit key has always behaved.
type Limit struct {
	max     int64
	bounded bool
}

// Unlimited returns a limit that never rejects.
func Unlimited() Limit {
	return Limit{}
}

// Limited returns a limit capped at n.
func Limited(n int64) Limit {
	return Limit{max: n, bounded: true}
}

// ParseLimit converts a stored integer into a Limit. Only -1 means unlimited.
func ParseLimit(v int64) (Limit, error) {
	switch {
	case v == UnlimitedSentinel:
		return Unlimited(), nil
	case v < 0:
		return Limit{}, fmt.Errorf("invalid limit %d: only %d means unlimited", v, UnlimitedSentinel)
	default:
		return Limited(v), nil
	}
}

func (l Limit) IsUnlimited() bool {
	return !l.bounded
}

// Max returns the cap, or -1 when unlimited.
func (l Limit) Max() int64 {
	if !l.bounded {
		return UnlimitedSentinel
	}
	return l.max
}

// Allows reports whether one more instance may be created given current usage.
func (l Limit) Allows(current int64) bool {
	return !l.bounded || current < l.max
}

func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return strconv.FormatInt(l.max, 10)
}

func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Max())
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("limit must be an integer: %w", err)
	}
	parsed, err := ParseLimit(v)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// PlanLimits is the numeric part of a plan's features.
type PlanLimits struct {
	MaxPatients     Limit `json:"maxPatients"`
	MaxUsers        Limit `json:"maxUsers"`
	MaxAppointments Limit `json:"maxAppointments"`
}

// UnlimitedLimits is returned for unlimited and trial tenants.
func UnlimitedLimits() PlanLimits {
	return PlanLimits{
		MaxPatients:     Unlimited(),
		MaxUsers:        Unlimited(),
		MaxAppointments: Unlimited(),
	}
}

// For returns the limit that governs a resource.
func (p PlanLimits) For(resource Resource) (Limit, error) {
	switch resource {
	case ResourcePatient:
		return p.MaxPatients, nil
	case ResourceUser:
		return p.MaxUsers, nil
	case ResourceAppointment:
		return p.MaxAppointments, nil
	default:
		return Limit{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
}
