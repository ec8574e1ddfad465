package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/clock"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/sweep"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event types published after a mutation commits.
const (
	EventAttendanceJoined   = "attendance_joined"
	EventAttendanceCanceled = "attendance_canceled"
	EventGatheringOpened    = "gathering_opened"
	EventGatheringUnopened  = "gathering_unopened"
	EventGatheringCanceled  = "gathering_canceled"
	EventGatheringReopened  = "gathering_reopened"
	EventGatheringClosed    = "gathering_closed"
)

// Event describes a committed change to one gathering.
type Event struct {
	Type             string     `json:"type"`
	GatheringID      uuid.UUID  `json:"gatheringId"`
	MemberID         *uuid.UUID `json:"memberId,omitempty"`
	CurrentAttendees int64      `json:"currentAttendees"`
	Opened           bool       `json:"opened"`
	At               time.Time  `json:"at"`
}

// Publisher receives events once their transaction has committed.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Service runs every gathering, membership and review operation. Each mutation
// is one transaction.
type Service struct {
	db        *gorm.DB
	clock     clock.Clock
	sweeper   *sweep.Sweeper
	events    Publisher
	leadHours int
}

type Options struct {
	Clock        clock.Clock
	Sweeper      *sweep.Sweeper
	Events       Publisher
	DueLeadHours int
}

func New(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:        db,
		clock:     opts.Clock,
		sweeper:   opts.Sweeper,
		events:    opts.Events,
		leadHours: opts.DueLeadHours,
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.sweeper == nil {
		s.sweeper = sweep.New(db, s.clock)
	}
	if s.sweeper.OnClosed == nil {
		s.sweeper.OnClosed = s.publishClosed
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.leadHours <= 0 {
		s.leadHours = 29
	}
	return s
}

func (s *Service) now() time.Time { return s.clock.Now() }

func (s *Service) sweep(ctx context.Context) error {
	if _, err := s.sweeper.Run(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}

func (s *Service) publish(events []Event) {
	s.recordActivity(events)
	for _, e := range events {
		s.events.Publish(e)
	}
}

func (s *Service) publishClosed(ids []uuid.UUID) {
	at := s.now()
	events := make([]Event, len(ids))
	for i, id := range ids {
		events[i] = Event{Type: EventGatheringClosed, GatheringID: id, At: at}
	}
	s.publish(events)
}

// lockGathering loads the gathering and holds its row lock until tx ends.
func lockGathering(tx *gorm.DB, id uuid.UUID) (*models.Gathering, error) {
	var g models.Gathering
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrGatheringNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load gathering: %w", err)
	}
	return &g, nil
}

func findGathering(db *gorm.DB, id uuid.UUID) (*models.Gathering, error) {
	var g models.Gathering
	err := db.Preload("Owner").First(&g, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrGatheringNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load gathering: %w", err)
	}
	return &g, nil
}

// result labels an outcome for metrics and logs.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.Code(err)
}
