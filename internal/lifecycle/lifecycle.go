// Package lifecycle derives and mutates a gathering's opened, closed and
// canceled flags.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type State int

const (
	Proposed State = iota
	Confirmed
	Closed
	Canceled
)

func (s State) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case Confirmed:
		return "confirmed"
	case Closed:
		return "closed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsClosed reports whether the gathering's cutoff has passed, whether or not a
// sweep has persisted the flag yet.
func IsClosed(g *models.Gathering, now time.Time) bool {
	return g.Closed || now.After(g.DueTime)
}

// StateOf maps the stored flags, corrected for now, onto a single state.
func StateOf(g *models.Gathering, now time.Time) State {
	switch {
	case g.Canceled:
		return Canceled
	case IsClosed(g, now):
		return Closed
	case g.Opened:
		return Confirmed
	default:
		return Proposed
	}
}

// EnsureJoinable rejects membership changes on canceled or closed gatherings.
func EnsureJoinable(g *models.Gathering, now time.Time) error {
	if g.Canceled {
		return apperr.ErrGatheringCanceled
	}
	if IsClosed(g, now) {
		return apperr.ErrGatheringClosed
	}
	return nil
}

// Transition is the quorum change a recompute produced.
type Transition int

const (
	Unchanged Transition = iota
	Opened
	Unopened
)

// Recompute sets opened from the live headcount and persists it when it
// changed. It must run in the same transaction as the ledger write, and it
// returns the headcount it saw.
func Recompute(tx *gorm.DB, g *models.Gathering) (Transition, int64, error) {
	count, err := ledger.CountActive(tx, g.ID)
	if err != nil {
		return Unchanged, 0, err
	}

	opened := count >= int64(g.MinAttendees)
	if opened == g.Opened {
		return Unchanged, count, nil
	}
	if err := tx.Model(g).Update("opened", opened).Error; err != nil {
		return Unchanged, 0, fmt.Errorf("update opened: %w", err)
	}
	g.Opened = opened
	if opened {
		return Opened, count, nil
	}
	return Unopened, count, nil
}

// Cancel marks the gathering canceled. Only the owner may do so and repeating it
// is a no-op.
func Cancel(tx *gorm.DB, g *models.Gathering, requester uuid.UUID) (bool, error) {
	if g.OwnerID != requester {
		return false, apperr.ErrUnauthorized
	}
	if g.Canceled {
		return false, nil
	}
	if err := tx.Model(g).Update("canceled", true).Error; err != nil {
		return false, fmt.Errorf("cancel gathering: %w", err)
	}
	g.Canceled = true
	return true, nil
}

// Plan is the new schedule, capacity and content a reopened gathering runs with.
type Plan struct {
	Category      string
	Location      string
	Description   string
	ImageURL      string
	GatheringTime time.Time
	DueTime       time.Time
	MinAttendees  int
	MaxAttendees  int
}

// Reopen restarts the lifecycle of a closed gathering under the same id and
// name. Every attendee but the owner is withdrawn and all hearts are removed.
// It returns the headcount after the reset.
func Reopen(tx *gorm.DB, g *models.Gathering, requester uuid.UUID, now time.Time, plan Plan) (int64, error) {
	if g.OwnerID != requester {
		return 0, apperr.ErrUnauthorized
	}
	if g.Canceled {
		return 0, apperr.ErrGatheringCanceled
	}
	if !IsClosed(g, now) {
		return 0, apperr.ErrGatheringNotClosed
	}
	if err := schedule.ValidateCreation(now, plan.GatheringTime, plan.DueTime); err != nil {
		return 0, err
	}
	if err := schedule.ValidateCapacity(plan.MinAttendees, plan.MaxAttendees); err != nil {
		return 0, err
	}

	if _, err := ledger.WithdrawAllExcept(tx, g.ID, g.OwnerID); err != nil {
		return 0, err
	}
	if _, err := ledger.UpsertJoin(tx, g.ID, g.OwnerID); err != nil && !errors.Is(err, apperr.ErrAlreadyJoined) {
		return 0, err
	}
	if err := tx.Where("gathering_id = ?", g.ID).Delete(&models.Heart{}).Error; err != nil {
		return 0, fmt.Errorf("delete hearts: %w", err)
	}

	imageURL := g.ImageURL
	if plan.ImageURL != "" {
		imageURL = plan.ImageURL
	}
	updates := map[string]interface{}{
		"category":       plan.Category,
		"location":       plan.Location,
		"description":    plan.Description,
		"image_url":      imageURL,
		"gathering_time": plan.GatheringTime,
		"due_time":       plan.DueTime,
		"min_attendees":  plan.MinAttendees,
		"max_attendees":  plan.MaxAttendees,
		"opened":         false,
		"closed":         false,
	}
	if err := tx.Model(g).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("reopen gathering: %w", err)
	}

	g.Category = plan.Category
	g.Location = plan.Location
	g.Description = plan.Description
	g.ImageURL = imageURL
	g.GatheringTime = plan.GatheringTime
	g.DueTime = plan.DueTime
	g.MinAttendees = plan.MinAttendees
	g.MaxAttendees = plan.MaxAttendees
	g.Opened = false
	g.Closed = false

	_, count, err := Recompute(tx, g)
	return count, err
}
