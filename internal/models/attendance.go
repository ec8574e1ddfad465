package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attendance is one member's current or past membership in a gathering. A row is
// never duplicated per (gathering, member): leaving soft-deletes it and re-joining
// restores it.
type Attendance struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	GatheringID uuid.UUID      `json:"gatheringId" gorm:"type:uuid;not null;uniqueIndex:idx_attendance_gathering_member"`
	MemberID    uuid.UUID      `json:"memberId" gorm:"type:uuid;not null;uniqueIndex:idx_attendance_gathering_member;index"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	Member Member `json:"member,omitempty" gorm:"foreignKey:MemberID"`
}

func (a *Attendance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Standing is the state of an attendance row: Active or Withdrawn.
type Standing interface {
	standing()
}

// Active means the member currently counts toward the headcount.
type Active struct{}

// Withdrawn means the member left at the given time and may rejoin.
type Withdrawn struct {
	At time.Time
}

func (Active) standing()    {}
func (Withdrawn) standing() {}

// Standing reads the soft-delete marker as a Standing.
func (a *Attendance) Standing() Standing {
	if a.DeletedAt.Valid {
		return Withdrawn{At: a.DeletedAt.Time}
	}
	return Active{}
}
