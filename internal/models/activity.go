package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity is one committed change in a gathering's history: a join, a leave,
// or a lifecycle transition.
type Activity struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	GatheringID      uuid.UUID  `json:"gatheringId" gorm:"type:uuid;index;not null"`
	MemberID         *uuid.UUID `json:"memberId" gorm:"type:uuid"`
	ActionType       string     `json:"actionType" gorm:"not null"` // attendance_joined, gathering_opened, gathering_closed, ...
	CurrentAttendees int64      `json:"currentAttendees"`
	Opened           bool       `json:"opened"`
	CreatedAt        time.Time  `json:"createdAt" gorm:"index"`

	Member *Member `json:"-" gorm:"foreignKey:MemberID"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id
	}
	return nil
}

// ActivityInfo is an activity entry with its member resolved for display.
type ActivityInfo struct {
	ID               uuid.UUID   `json:"id"`
	ActionType       string      `json:"actionType"`
	Member           *MemberInfo `json:"member,omitempty"`
	CurrentAttendees int64       `json:"currentAttendees"`
	Opened           bool        `json:"opened"`
	CreatedAt        time.Time   `json:"createdAt"`
}
