package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/lifecycle"
	"github.com/arnold/gatherings-api/internal/metrics"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipState is a gathering's headcount right after a membership change.
type MembershipState struct {
	GatheringID      uuid.UUID `json:"gatheringId"`
	CurrentAttendees int64     `json:"currentAttendees"`
	Opened           bool      `json:"opened"`
}

// Join adds the member to the gathering, or restores their earlier attendance.
// The gathering row stays locked from the capacity check until commit.
func (s *Service) Join(ctx context.Context, gatheringID, memberID uuid.UUID) (*MembershipState, error) {
	var state MembershipState
	var events []Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, gatheringID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := lifecycle.EnsureJoinable(g, now); err != nil {
			return err
		}

		count, err := ledger.CountActive(tx, g.ID)
		if err != nil {
			return err
		}
		if count >= int64(g.MaxAttendees) {
			return apperr.ErrGatheringFull
		}

		if _, err := ledger.UpsertJoin(tx, g.ID, memberID); err != nil {
			return err
		}
		transition, count, err := lifecycle.Recompute(tx, g)
		if err != nil {
			return err
		}

		state, events = s.membershipEvents(g, memberID, count, EventAttendanceJoined, transition)
		return nil
	})

	metrics.ObserveOp("join", result(err))
	if err != nil {
		slog.Warn("Join failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return nil, err
	}

	slog.Info("Member joined", "gathering_id", gatheringID, "member_id", memberID,
		"current_attendees", state.CurrentAttendees, "opened", state.Opened)
	s.publish(events)
	return &state, nil
}

// CancelAttendance withdraws the member. The owner can never leave.
func (s *Service) CancelAttendance(ctx context.Context, gatheringID, memberID uuid.UUID) (*MembershipState, error) {
	var state MembershipState
	var events []Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, gatheringID)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureJoinable(g, s.now()); err != nil {
			return err
		}
		if g.OwnerID == memberID {
			return apperr.ErrMustAttend
		}

		if err := ledger.SoftCancel(tx, g.ID, memberID); err != nil {
			return err
		}
		transition, count, err := lifecycle.Recompute(tx, g)
		if err != nil {
			return err
		}

		state, events = s.membershipEvents(g, memberID, count, EventAttendanceCanceled, transition)
		return nil
	})

	metrics.ObserveOp("cancel_attendance", result(err))
	if err != nil {
		slog.Warn("Cancel attendance failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return nil, err
	}

	slog.Info("Member left", "gathering_id", gatheringID, "member_id", memberID,
		"current_attendees", state.CurrentAttendees, "opened", state.Opened)
	s.publish(events)
	return &state, nil
}

func (s *Service) membershipEvents(g *models.Gathering, memberID uuid.UUID, count int64, kind string, transition lifecycle.Transition) (MembershipState, []Event) {
	state := MembershipState{GatheringID: g.ID, CurrentAttendees: count, Opened: g.Opened}

	at := s.now()
	mid := memberID
	events := []Event{{Type: kind, GatheringID: g.ID, MemberID: &mid, CurrentAttendees: count, Opened: g.Opened, At: at}}
	switch transition {
	case lifecycle.Opened:
		events = append(events, Event{Type: EventGatheringOpened, GatheringID: g.ID, CurrentAttendees: count, Opened: true, At: at})
	case lifecycle.Unopened:
		events = append(events, Event{Type: EventGatheringUnopened, GatheringID: g.ID, CurrentAttendees: count, At: at})
	}
	return state, events
}

// Heart marks the gathering as a favorite of the member.
func (s *Service) Heart(ctx context.Context, gatheringID, memberID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, gatheringID)
		if err != nil {
			return err
		}
		if err := lifecycle.EnsureJoinable(g, s.now()); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Heart{}).
			Where("gathering_id = ? AND member_id = ?", g.ID, memberID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check heart: %w", err)
		}
		if count > 0 {
			return apperr.ErrAlreadyHearted
		}

		if err := tx.Create(&models.Heart{GatheringID: g.ID, MemberID: memberID}).Error; err != nil {
			return fmt.Errorf("create heart: %w", err)
		}
		return nil
	})

	metrics.ObserveOp("heart", result(err))
	if err != nil {
		slog.Warn("Heart failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return err
	}
	slog.Info("Gathering hearted", "gathering_id", gatheringID, "member_id", memberID)
	return nil
}

// Unheart removes the member's favorite-mark.
func (s *Service) Unheart(ctx context.Context, gatheringID, memberID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGathering(tx, gatheringID); err != nil {
			return err
		}

		res := tx.Where("gathering_id = ? AND member_id = ?", gatheringID, memberID).Delete(&models.Heart{})
		if res.Error != nil {
			return fmt.Errorf("delete heart: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrHeartNotFound
		}
		return nil
	})

	metrics.ObserveOp("unheart", result(err))
	if err != nil {
		slog.Warn("Unheart failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return err
	}
	slog.Info("Gathering unhearted", "gathering_id", gatheringID, "member_id", memberID)
	return nil
}
