package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Heart is a member's favorite-mark on a gathering. Un-hearting deletes the row.
type Heart struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GatheringID uuid.UUID `json:"gatheringId" gorm:"type:uuid;not null;uniqueIndex:idx_heart_gathering_member"`
	MemberID    uuid.UUID `json:"memberId" gorm:"type:uuid;not null;uniqueIndex:idx_heart_gathering_member;index"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Heart) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
