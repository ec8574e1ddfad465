package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Review struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	GatheringID uuid.UUID      `json:"gatheringId" gorm:"type:uuid;not null;uniqueIndex:idx_review_gathering_member"`
	MemberID    uuid.UUID      `json:"memberId" gorm:"type:uuid;not null;uniqueIndex:idx_review_gathering_member;index"`
	Score       int            `json:"score" gorm:"not null"`
	Comment     string         `json:"comment" gorm:"type:text;not null"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	Member    Member    `json:"-" gorm:"foreignKey:MemberID"`
	Gathering Gathering `json:"-" gorm:"foreignKey:GatheringID"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type ReviewRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=500"`
}

// ReviewInfo is a review as shown on a gathering page or a member's review list.
type ReviewInfo struct {
	ID            uuid.UUID  `json:"id"`
	GatheringID   uuid.UUID  `json:"gatheringId"`
	GatheringName string     `json:"gatheringName"`
	Author        MemberInfo `json:"author"`
	Score         int        `json:"score"`
	Comment       string     `json:"comment"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ScoreSummary aggregates live reviews: average and how many reviews gave each score.
type ScoreSummary struct {
	Average float64 `json:"average"`
	Total   int64   `json:"total"`
	Five    int64   `json:"five"`
	Four    int64   `json:"four"`
	Three   int64   `json:"three"`
	Two     int64   `json:"two"`
	One     int64   `json:"one"`
}
