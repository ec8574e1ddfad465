package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
)

type ActivityList struct {
	Items []models.ActivityInfo `json:"items"`
	Meta  listing.Meta          `json:"meta"`
}

// recordActivity stores committed events in the gathering history. Failures are
// logged and never undo the mutation that produced the events.
func (s *Service) recordActivity(events []Event) {
	if len(events) == 0 {
		return
	}
	rows := make([]models.Activity, len(events))
	for i, e := range events {
		rows[i] = models.Activity{
			GatheringID:      e.GatheringID,
			MemberID:         e.MemberID,
			ActionType:       e.Type,
			CurrentAttendees: e.CurrentAttendees,
			Opened:           e.Opened,
			CreatedAt:        e.At,
		}
	}
	if err := s.db.Create(&rows).Error; err != nil {
		slog.Error("Failed to record activity", "error", err, "events", len(events))
	}
}

// ListActivity returns a gathering's history, newest first.
func (s *Service) ListActivity(ctx context.Context, gatheringID uuid.UUID, p listing.Page) (*ActivityList, error) {
	db := s.db.WithContext(ctx)
	if _, err := findGathering(db, gatheringID); err != nil {
		return nil, err
	}
	p = p.Normalize()

	var total int64
	if err := db.Model(&models.Activity{}).Where("gathering_id = ?", gatheringID).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}

	var rows []models.Activity
	if err := db.Where("gathering_id = ?", gatheringID).
		Preload("Member").
		Order("created_at DESC, id DESC").
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	items := make([]models.ActivityInfo, len(rows))
	for i, a := range rows {
		items[i] = models.ActivityInfo{
			ID:               a.ID,
			ActionType:       a.ActionType,
			CurrentAttendees: a.CurrentAttendees,
			Opened:           a.Opened,
			CreatedAt:        a.CreatedAt,
		}
		if a.Member != nil {
			items[i].Member = &models.MemberInfo{ID: a.Member.ID, Name: a.Member.Name, ProfileImageURL: a.Member.ProfileImageURL}
		}
	}
	return &ActivityList{Items: items, Meta: listing.BuildMeta(total, p)}, nil
}
