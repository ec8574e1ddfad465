// Package schedule holds the date and capacity rules a gathering must satisfy
// when it is created or reopened.
package schedule

import (
	"time"

	"github.com/arnold/gatherings-api/internal/apperr"
)

// MinLeadTime is how far ahead of now a gathering must be scheduled.
const MinLeadTime = 24 * time.Hour

const (
	MinCapacity = 2
	MaxCapacity = 100
)

// DeriveDueTime returns the attendance cutoff leadHours before the gathering.
func DeriveDueTime(gatheringTime time.Time, leadHours int) time.Time {
	return gatheringTime.Add(-time.Duration(leadHours) * time.Hour)
}

// ValidateCreation checks a proposed gathering/due time pair against now.
func ValidateCreation(now, gatheringTime, dueTime time.Time) error {
	if !gatheringTime.After(now.Add(MinLeadTime)) {
		return apperr.ErrIllegalGatheringDate
	}
	if !dueTime.After(now) {
		return apperr.ErrIllegalDueDate
	}
	if !dueTime.Before(gatheringTime) {
		return apperr.ErrIllegalDateDifference
	}
	return nil
}

// ValidateCapacity enforces MinCapacity <= min <= max <= MaxCapacity.
func ValidateCapacity(minAttendees, maxAttendees int) error {
	if minAttendees < MinCapacity || maxAttendees > MaxCapacity || minAttendees > maxAttendees {
		return apperr.ErrIllegalMinUsers
	}
	return nil
}

// Resolve picks the explicit due time when given, otherwise derives it, and
// validates the result.
func Resolve(now, gatheringTime time.Time, dueTime *time.Time, leadHours int) (time.Time, time.Time, error) {
	gatheringTime = gatheringTime.UTC()
	due := DeriveDueTime(gatheringTime, leadHours)
	if dueTime != nil {
		due = dueTime.UTC()
	}
	if err := ValidateCreation(now, gatheringTime, due); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return gatheringTime, due, nil
}
