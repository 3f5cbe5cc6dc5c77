// Package retention computes how long a trash entry is kept and how close it
// is to automatic purge. Everything here is pure; callers pass the clock.
package retention

import (
	"time"

	"go-office-trash/internal/model"
)

const (
	fallbackRetentionDays = 30
	DefaultNearExpiryDays = 7
)

type State string

const (
	StateActive     State = "active"
	StateNearExpiry State = "near_expiry"
	StateOverdue    State = "overdue"
)

// DaysFor returns the retention for entityType. Non-positive overrides are
// ignored, and the result is never below one day.
func DaysFor(entityType model.EntityType, settings model.TrashSettings) int {
	if days, ok := settings.RetentionByType[entityType]; ok && days > 0 {
		return days
	}
	if settings.DefaultRetentionDays > 0 {
		return settings.DefaultRetentionDays
	}
	return fallbackRetentionDays
}

// AutoDeleteAt adds calendar days so DST shifts keep the wall-clock time.
func AutoDeleteAt(deletedAt time.Time, retentionDays int) time.Time {
	if retentionDays < 1 {
		retentionDays = 1
	}
	return deletedAt.AddDate(0, 0, retentionDays)
}

func IsNearExpiry(autoDeleteAt time.Time, now time.Time, thresholdDays int) bool {
	if thresholdDays < 0 {
		thresholdDays = DefaultNearExpiryDays
	}
	if !autoDeleteAt.After(now) {
		return false
	}
	return !autoDeleteAt.After(now.AddDate(0, 0, thresholdDays))
}

func IsOverdue(autoDeleteAt time.Time, now time.Time) bool {
	return !autoDeleteAt.After(now)
}

func Classify(autoDeleteAt time.Time, now time.Time, thresholdDays int) State {
	switch {
	case IsOverdue(autoDeleteAt, now):
		return StateOverdue
	case IsNearExpiry(autoDeleteAt, now, thresholdDays):
		return StateNearExpiry
	default:
		return StateActive
	}
}

// NearExpiryDays reads the threshold from settings, defaulting to a week.
func NearExpiryDays(settings model.TrashSettings) int {
	if settings.NearExpiryDays > 0 {
		return settings.NearExpiryDays
	}
	return DefaultNearExpiryDays
}
