package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gathering is a time-boxed meetup. IDs are UUIDv7 so that ordering by id follows
// creation order, which the cursor listing relies on.
type Gathering struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID      `json:"ownerId" gorm:"type:uuid;index;not null"`
	Name          string         `json:"name" gorm:"not null;index"`
	Category      string         `json:"category" gorm:"not null;index"`
	Location      string         `json:"location" gorm:"not null"`
	Description   string         `json:"description" gorm:"type:text"`
	ImageURL      string         `json:"imageUrl"`
	GatheringTime time.Time      `json:"gatheringTime" gorm:"not null;index"`
	DueTime       time.Time      `json:"dueTime" gorm:"not null;index"`
	MinAttendees  int            `json:"minAttendees" gorm:"not null"`
	MaxAttendees  int            `json:"maxAttendees" gorm:"not null"`
	Opened        bool           `json:"opened" gorm:"not null;default:false"`
	Canceled      bool           `json:"canceled" gorm:"not null;default:false"`
	Closed        bool           `json:"closed" gorm:"not null;default:false;index"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	Owner Member `json:"-" gorm:"foreignKey:OwnerID"`
}

func (g *Gathering) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		g.ID = id
	}
	return nil
}

// Gathering DTOs
type CreateGatheringRequest struct {
	Name          string     `json:"name" validate:"required,min=3,max=30"`
	Category      string     `json:"category" validate:"required,max=30"`
	Location      string     `json:"location" validate:"required,max=100"`
	Description   string     `json:"description" validate:"max=2000"`
	ImageURL      string     `json:"imageUrl"`
	GatheringTime time.Time  `json:"gatheringTime" validate:"required"`
	DueTime       *time.Time `json:"dueTime"`
	MinAttendees  int        `json:"minAttendees" validate:"required,min=2,max=100"`
	MaxAttendees  int        `json:"maxAttendees" validate:"required,min=2,max=100"`
}

// ReopenGatheringRequest carries the new schedule, capacity and content for a
// gathering whose deadline lapsed. The name is kept.
type ReopenGatheringRequest struct {
	Category      string     `json:"category" validate:"required,max=30"`
	Location      string     `json:"location" validate:"required,max=100"`
	Description   string     `json:"description" validate:"max=2000"`
	ImageURL      string     `json:"imageUrl"`
	GatheringTime time.Time  `json:"gatheringTime" validate:"required"`
	DueTime       *time.Time `json:"dueTime"`
	MinAttendees  int        `json:"minAttendees" validate:"required,min=2,max=100"`
	MaxAttendees  int        `json:"maxAttendees" validate:"required,min=2,max=100"`
}

// GatheringSummary is one row of a gathering listing.
type GatheringSummary struct {
	ID               uuid.UUID  `json:"id"`
	Owner            MemberInfo `json:"owner"`
	Name             string     `json:"name"`
	Category         string     `json:"category"`
	Location         string     `json:"location"`
	ImageURL         string     `json:"imageUrl"`
	GatheringTime    time.Time  `json:"gatheringTime"`
	DueTime          time.Time  `json:"dueTime"`
	MinAttendees     int        `json:"minAttendees"`
	MaxAttendees     int        `json:"maxAttendees"`
	CurrentAttendees int        `json:"currentAttendees"`
	Available        bool       `json:"available"`
	Opened           bool       `json:"opened"`
	Closed           bool       `json:"closed"`
	Canceled         bool       `json:"canceled"`
	State            string     `json:"state"` // proposed, confirmed, closed, canceled
	Hearted          bool       `json:"hearted"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// GatheringDetail is the single-gathering view with its attendee list and scores.
type GatheringDetail struct {
	GatheringSummary
	Description string       `json:"description"`
	Attendees   []MemberInfo `json:"attendees"`
	Scores      ScoreSummary `json:"scores"`
}
