package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/lifecycle"
	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/metrics"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateGathering schedules a new gathering and enrolls its owner as the first
// attendee.
func (s *Service) CreateGathering(ctx context.Context, ownerID uuid.UUID, req models.CreateGatheringRequest) (*models.GatheringDetail, error) {
	now := s.now()
	gatheringTime, dueTime, err := schedule.Resolve(now, req.GatheringTime, req.DueTime, s.leadHours)
	if err != nil {
		return nil, err
	}
	if err := schedule.ValidateCapacity(req.MinAttendees, req.MaxAttendees); err != nil {
		return nil, err
	}
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	g := &models.Gathering{
		OwnerID:       ownerID,
		Name:          strings.TrimSpace(req.Name),
		Category:      req.Category,
		Location:      req.Location,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		GatheringTime: gatheringTime,
		DueTime:       dueTime,
		MinAttendees:  req.MinAttendees,
		MaxAttendees:  req.MaxAttendees,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.Member
		if err := tx.First(&owner, "id = ?", ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrMemberNotFound
			}
			return fmt.Errorf("load owner: %w", err)
		}
		if err := ensureNameFree(tx, ownerID, g.Name, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Create(g).Error; err != nil {
			return fmt.Errorf("create gathering: %w", err)
		}
		if _, err := ledger.UpsertJoin(tx, g.ID, ownerID); err != nil {
			return err
		}
		if _, _, err := lifecycle.Recompute(tx, g); err != nil {
			return err
		}
		g.Owner = owner
		return nil
	})
	if err != nil {
		slog.Warn("Create gathering failed", "owner_id", ownerID, "name", g.Name, "error", err)
		return nil, err
	}

	slog.Info("Gathering created", "gathering_id", g.ID, "owner_id", ownerID, "due_time", g.DueTime)
	return s.detail(s.db.WithContext(ctx), g, &ownerID)
}

// ensureNameFree fails when the owner already has another gathering by that name
// that is neither closed nor canceled.
func ensureNameFree(tx *gorm.DB, ownerID uuid.UUID, name string, except uuid.UUID) error {
	var count int64
	err := tx.Model(&models.Gathering{}).
		Where("owner_id = ? AND name = ? AND closed = ? AND canceled = ? AND id <> ?", ownerID, name, false, false, except).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("check gathering name: %w", err)
	}
	if count > 0 {
		return apperr.ErrAlreadyUsedName
	}
	return nil
}

// GetGathering returns the detail view. viewer may be nil for anonymous callers.
func (s *Service) GetGathering(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.GatheringDetail, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	g, err := findGathering(db, id)
	if err != nil {
		return nil, err
	}
	return s.detail(db, g, viewer)
}

func (s *Service) detail(db *gorm.DB, g *models.Gathering, viewer *uuid.UUID) (*models.GatheringDetail, error) {
	count, err := ledger.CountActive(db, g.ID)
	if err != nil {
		return nil, err
	}
	hearted, err := listing.HeartedSet(db, []uuid.UUID{g.ID}, viewer)
	if err != nil {
		return nil, err
	}
	members, err := ledger.ActiveMembers(db, g.ID)
	if err != nil {
		return nil, err
	}
	scores, err := scoreSummary(db, &g.ID)
	if err != nil {
		return nil, err
	}

	attendees := make([]models.MemberInfo, len(members))
	for i, m := range members {
		attendees[i] = models.MemberInfo{ID: m.ID, Name: m.Name, ProfileImageURL: m.ProfileImageURL}
	}
	return &models.GatheringDetail{
		GatheringSummary: listing.Summarize(g, count, hearted[g.ID], s.now()),
		Description:      g.Description,
		Attendees:        attendees,
		Scores:           *scores,
	}, nil
}

// ListGatherings returns one offset page of public gatherings.
func (s *Service) ListGatherings(ctx context.Context, f listing.Filter, p listing.Page, viewer *uuid.UUID) (*listing.Result, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	return listing.List(s.db.WithContext(ctx), f, p, viewer, s.now())
}

// ListGatheringsCursor returns gatherings created before cursor, newest first.
func (s *Service) ListGatheringsCursor(ctx context.Context, f listing.Filter, cursor *uuid.UUID, size int, viewer *uuid.UUID) (*listing.CursorResult, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	return listing.ListCursor(s.db.WithContext(ctx), f, cursor, size, viewer, s.now())
}

// CancelGathering withdraws a gathering for good. Only the owner may cancel and
// repeating it is a no-op.
func (s *Service) CancelGathering(ctx context.Context, id, requester uuid.UUID) error {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, id)
		if err != nil {
			return err
		}
		changed, err = lifecycle.Cancel(tx, g, requester)
		return err
	})
	metrics.ObserveOp("cancel_gathering", result(err))
	if err != nil {
		slog.Warn("Cancel gathering failed", "gathering_id", id, "member_id", requester, "error", err)
		return err
	}

	if changed {
		slog.Info("Gathering canceled", "gathering_id", id, "owner_id", requester)
		s.publish([]Event{{Type: EventGatheringCanceled, GatheringID: id, MemberID: &requester, At: s.now()}})
	}
	return nil
}

// ReopenGathering restarts a closed gathering under a new schedule. Attendees
// other than the owner are withdrawn and hearts are cleared.
func (s *Service) ReopenGathering(ctx context.Context, id, requester uuid.UUID, req models.ReopenGatheringRequest) (*models.GatheringDetail, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	var g *models.Gathering
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		g, err = lockGathering(tx, id)
		if err != nil {
			return err
		}

		gatheringTime := req.GatheringTime.UTC()
		dueTime := schedule.DeriveDueTime(gatheringTime, s.leadHours)
		if req.DueTime != nil {
			dueTime = req.DueTime.UTC()
		}

		plan := lifecycle.Plan{
			Category:      req.Category,
			Location:      req.Location,
			Description:   req.Description,
			ImageURL:      req.ImageURL,
			GatheringTime: gatheringTime,
			DueTime:       dueTime,
			MinAttendees:  req.MinAttendees,
			MaxAttendees:  req.MaxAttendees,
		}
		count, err = lifecycle.Reopen(tx, g, requester, now, plan)
		if err != nil {
			return err
		}
		return ensureNameFree(tx, g.OwnerID, g.Name, g.ID)
	})
	metrics.ObserveOp("reopen", result(err))
	if err != nil {
		slog.Warn("Reopen gathering failed", "gathering_id", id, "member_id", requester, "error", err)
		return nil, err
	}

	slog.Info("Gathering reopened", "gathering_id", id, "owner_id", requester, "due_time", g.DueTime)
	s.publish([]Event{{Type: EventGatheringReopened, GatheringID: id, MemberID: &requester, CurrentAttendees: count, Opened: g.Opened, At: now}})

	db := s.db.WithContext(ctx)
	fresh, err := findGathering(db, id)
	if err != nil {
		return nil, err
	}
	return s.detail(db, fresh, &requester)
}
