// Package listing builds filtered, sorted and paginated gathering views.
package listing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/lifecycle"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
	StatusAll    Status = "all"
)

type Sort string

const (
	SortLatest    Sort = "latest"
	SortCloseDate Sort = "closeDate"
)

const DateLayout = "2006-01-02"

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Filter narrows a listing. Zero values mean "no constraint", except Status
// which defaults to active.
type Filter struct {
	Query     string
	Location  string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Available bool
	Status    Status
	Sort      Sort

	OwnerID         *uuid.UUID
	AttendeeID      *uuid.UUID
	UnreviewedBy    *uuid.UUID
	IncludeCanceled bool
}

// ParseDate reads a YYYY-MM-DD day as midnight UTC. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// ParseStatus falls back to active for unknown values.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusClosed, StatusAll:
		return Status(s)
	default:
		return StatusActive
	}
}

func ParseSort(s string) Sort {
	if Sort(s) == SortCloseDate {
		return SortCloseDate
	}
	return SortLatest
}

// Scope applies every filter condition to a gatherings query.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	sub := db.Session(&gorm.Session{NewDB: true})

	if !f.IncludeCanceled {
		db = db.Where("gatherings.canceled = ?", false)
	}
	switch f.Status {
	case StatusClosed:
		db = db.Where("gatherings.closed = ?", true)
	case StatusAll:
	default:
		db = db.Where("gatherings.closed = ?", false)
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		db = db.Where("LOWER(gatherings.name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		db = db.Where("LOWER(gatherings.location) LIKE ?", "%"+strings.ToLower(loc)+"%")
	}
	if f.Category != "" {
		db = db.Where("gatherings.category = ?", f.Category)
	}
	if f.StartDate != nil {
		db = db.Where("gatherings.gathering_time >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		db = db.Where("gatherings.gathering_time < ?", f.EndDate.UTC().AddDate(0, 0, 1))
	}
	if f.Available {
		db = db.Where("gatherings.max_attendees > (SELECT COUNT(*) FROM attendances " +
			"WHERE attendances.gathering_id = gatherings.id AND attendances.deleted_at IS NULL)")
	}

	if f.OwnerID != nil {
		db = db.Where("gatherings.owner_id = ?", *f.OwnerID)
	}
	if f.AttendeeID != nil {
		db = db.Where("gatherings.id IN (?)", ledger.ActiveSubquery(sub, *f.AttendeeID))
	}
	if f.UnreviewedBy != nil {
		reviewed := sub.Model(&models.Review{}).Select("gathering_id").Where("member_id = ?", *f.UnreviewedBy)
		db = db.Where("gatherings.id NOT IN (?)", reviewed)
	}
	return db
}

func (f Filter) order() string {
	if f.Sort == SortCloseDate {
		return "gatherings.due_time ASC, gatherings.id DESC"
	}
	return "gatherings.created_at DESC, gatherings.id DESC"
}

type Page struct {
	Page int
	Size int
}

// Normalize clamps page and size into their allowed ranges.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Size < 1 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Size }

type Meta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
}

func BuildMeta(total int64, p Page) Meta {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.Size)))
	}
	return Meta{
		Page:       p.Page,
		Size:       p.Size,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
	}
}

type Result struct {
	Items []models.GatheringSummary `json:"items"`
	Meta  Meta                      `json:"meta"`
}

type CursorResult struct {
	Items      []models.GatheringSummary `json:"items"`
	NextCursor *uuid.UUID                `json:"nextCursor"`
	HasNext    bool                      `json:"hasNext"`
}

// List returns one offset page with the filtered total.
func List(db *gorm.DB, f Filter, p Page, viewer *uuid.UUID, now time.Time) (*Result, error) {
	p = p.Normalize()

	var total int64
	if err := f.Scope(db.Model(&models.Gathering{})).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count gatherings: %w", err)
	}

	var gatherings []models.Gathering
	if err := f.Scope(db.Model(&models.Gathering{})).
		Preload("Owner").
		Order(f.order()).
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&gatherings).Error; err != nil {
		return nil, fmt.Errorf("list gatherings: %w", err)
	}

	items, err := Project(db, gatherings, viewer, now)
	if err != nil {
		return nil, err
	}
	return &Result{Items: items, Meta: BuildMeta(total, p)}, nil
}

// ListCursor returns gatherings with ids strictly below cursor, newest first.
// Gathering ids are time-ordered so this follows creation order.
func ListCursor(db *gorm.DB, f Filter, cursor *uuid.UUID, size int, viewer *uuid.UUID, now time.Time) (*CursorResult, error) {
	size = Page{Page: 1, Size: size}.Normalize().Size

	q := f.Scope(db.Model(&models.Gathering{}))
	if cursor != nil {
		q = q.Where("gatherings.id < ?", *cursor)
	}

	var gatherings []models.Gathering
	if err := q.Preload("Owner").
		Order("gatherings.id DESC").
		Limit(size + 1).
		Find(&gatherings).Error; err != nil {
		return nil, fmt.Errorf("list gatherings: %w", err)
	}

	res := &CursorResult{}
	if len(gatherings) > size {
		gatherings = gatherings[:size]
		res.HasNext = true
		next := gatherings[size-1].ID
		res.NextCursor = &next
	}

	items, err := Project(db, gatherings, viewer, now)
	if err != nil {
		return nil, err
	}
	res.Items = items
	return res, nil
}

// Project turns gatherings into summaries with live headcounts and the viewer's
// hearted flag. Owners must already be loaded.
func Project(db *gorm.DB, gatherings []models.Gathering, viewer *uuid.UUID, now time.Time) ([]models.GatheringSummary, error) {
	ids := make([]uuid.UUID, len(gatherings))
	for i, g := range gatherings {
		ids[i] = g.ID
	}

	counts, err := ledger.CountActiveByGathering(db, ids)
	if err != nil {
		return nil, err
	}
	hearted, err := HeartedSet(db, ids, viewer)
	if err != nil {
		return nil, err
	}

	items := make([]models.GatheringSummary, len(gatherings))
	for i := range gatherings {
		items[i] = Summarize(&gatherings[i], counts[gatherings[i].ID], hearted[gatherings[i].ID], now)
	}
	return items, nil
}

// Summarize projects one gathering. Opened, closed and state are derived from
// the live headcount and now, so a stale stored flag never reaches a reader.
func Summarize(g *models.Gathering, count int64, hearted bool, now time.Time) models.GatheringSummary {
	derived := *g
	derived.Opened = count >= int64(g.MinAttendees)
	derived.Closed = lifecycle.IsClosed(g, now)

	return models.GatheringSummary{
		ID: g.ID,
		Owner: models.MemberInfo{
			ID:              g.Owner.ID,
			Name:            g.Owner.Name,
			ProfileImageURL: g.Owner.ProfileImageURL,
		},
		Name:             g.Name,
		Category:         g.Category,
		Location:         g.Location,
		ImageURL:         g.ImageURL,
		GatheringTime:    g.GatheringTime,
		DueTime:          g.DueTime,
		MinAttendees:     g.MinAttendees,
		MaxAttendees:     g.MaxAttendees,
		CurrentAttendees: int(count),
		Available:        count < int64(g.MaxAttendees),
		Opened:           derived.Opened,
		Closed:           derived.Closed,
		Canceled:         g.Canceled,
		State:            lifecycle.StateOf(&derived, now).String(),
		Hearted:          hearted,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

// HeartedSet returns which of ids the viewer has hearted. A nil viewer has
// hearted nothing.
func HeartedSet(db *gorm.DB, ids []uuid.UUID, viewer *uuid.UUID) (map[uuid.UUID]bool, error) {
	set := make(map[uuid.UUID]bool, len(ids))
	if viewer == nil || len(ids) == 0 {
		return set, nil
	}

	var hearted []uuid.UUID
	if err := db.Model(&models.Heart{}).
		Where("member_id = ? AND gathering_id IN ?", *viewer, ids).
		Pluck("gathering_id", &hearted).Error; err != nil {
		return nil, fmt.Errorf("load hearts: %w", err)
	}
	for _, id := range hearted {
		set[id] = true
	}
	return set, nil
}
