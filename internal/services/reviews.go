package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/lifecycle"
	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewSort string

const (
	ReviewSortLatest    ReviewSort = "latest"
	ReviewSortScoreDesc ReviewSort = "score_desc"
	ReviewSortScoreAsc  ReviewSort = "score_asc"
)

func (s ReviewSort) order() string {
	switch s {
	case ReviewSortScoreDesc:
		return "reviews.score DESC, reviews.created_at DESC"
	case ReviewSortScoreAsc:
		return "reviews.score ASC, reviews.created_at DESC"
	default:
		return "reviews.created_at DESC"
	}
}

type ReviewList struct {
	Items []models.ReviewInfo `json:"items"`
	Meta  listing.Meta        `json:"meta"`
}

// CreateReview records the member's review of a closed gathering they attended.
// A previously retracted review is restored with the new content.
func (s *Service) CreateReview(ctx context.Context, gatheringID, memberID uuid.UUID, req models.ReviewRequest) (*models.ReviewInfo, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, apperr.ErrInvalidScore
	}

	var review models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, gatheringID)
		if err != nil {
			return err
		}
		if g.Canceled || !lifecycle.IsClosed(g, s.now()) {
			return apperr.ErrReviewIneligible
		}
		attending, err := ledger.IsAttending(tx, g.ID, memberID)
		if err != nil {
			return err
		}
		if !attending {
			return apperr.ErrReviewIneligible
		}

		err = tx.Unscoped().Where("gathering_id = ? AND member_id = ?", g.ID, memberID).First(&review).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			review = models.Review{GatheringID: g.ID, MemberID: memberID, Score: req.Score, Comment: req.Comment}
			if err := tx.Create(&review).Error; err != nil {
				return fmt.Errorf("create review: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("find review: %w", err)
		case !review.DeletedAt.Valid:
			return apperr.ErrDuplicateReview
		}

		if err := tx.Unscoped().Model(&review).Updates(map[string]interface{}{
			"score":      req.Score,
			"comment":    req.Comment,
			"deleted_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("restore review: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Create review failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return nil, err
	}

	slog.Info("Review created", "gathering_id", gatheringID, "member_id", memberID, "score", req.Score)
	return s.reviewInfo(ctx, review.ID)
}

// UpdateReview edits the member's live review. Reviews of canceled gatherings
// are frozen.
func (s *Service) UpdateReview(ctx context.Context, gatheringID, memberID uuid.UUID, req models.ReviewRequest) (*models.ReviewInfo, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, apperr.ErrInvalidScore
	}

	var review models.Review
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGathering(tx, gatheringID)
		if err != nil {
			return err
		}
		if g.Canceled {
			return apperr.ErrGatheringCanceled
		}
		if err := findLiveReview(tx, g.ID, memberID, &review); err != nil {
			return err
		}
		if err := tx.Model(&review).Updates(map[string]interface{}{
			"score":   req.Score,
			"comment": req.Comment,
		}).Error; err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Update review failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return nil, err
	}

	slog.Info("Review updated", "gathering_id", gatheringID, "member_id", memberID, "score", req.Score)
	return s.reviewInfo(ctx, review.ID)
}

// DeleteReview retracts the member's review.
func (s *Service) DeleteReview(ctx context.Context, gatheringID, memberID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGathering(tx, gatheringID); err != nil {
			return err
		}
		var review models.Review
		if err := findLiveReview(tx, gatheringID, memberID, &review); err != nil {
			return err
		}
		if err := tx.Delete(&review).Error; err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Delete review failed", "gathering_id", gatheringID, "member_id", memberID, "outcome", result(err))
		return err
	}
	slog.Info("Review deleted", "gathering_id", gatheringID, "member_id", memberID)
	return nil
}

func findLiveReview(tx *gorm.DB, gatheringID, memberID uuid.UUID, review *models.Review) error {
	err := tx.Where("gathering_id = ? AND member_id = ?", gatheringID, memberID).First(review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrReviewNotFound
	}
	if err != nil {
		return fmt.Errorf("find review: %w", err)
	}
	return nil
}

// ListReviews pages through a gathering's live reviews.
func (s *Service) ListReviews(ctx context.Context, gatheringID uuid.UUID, sort ReviewSort, p listing.Page) (*ReviewList, error) {
	db := s.db.WithContext(ctx)
	if _, err := findGathering(db, gatheringID); err != nil {
		return nil, err
	}
	return listReviews(db, func(q *gorm.DB) *gorm.DB {
		return q.Where("reviews.gathering_id = ?", gatheringID)
	}, sort, p)
}

func listReviews(db *gorm.DB, scope func(*gorm.DB) *gorm.DB, sort ReviewSort, p listing.Page) (*ReviewList, error) {
	p = p.Normalize()

	var total int64
	if err := db.Model(&models.Review{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}

	var reviews []models.Review
	if err := db.Model(&models.Review{}).Scopes(scope).
		Preload("Member").
		Preload("Gathering").
		Order(sort.order()).
		Offset(p.Offset()).
		Limit(p.Size).
		Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	items := make([]models.ReviewInfo, len(reviews))
	for i := range reviews {
		items[i] = toReviewInfo(&reviews[i])
	}
	return &ReviewList{Items: items, Meta: listing.BuildMeta(total, p)}, nil
}

func (s *Service) reviewInfo(ctx context.Context, id uuid.UUID) (*models.ReviewInfo, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).Preload("Member").Preload("Gathering").First(&review, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("load review: %w", err)
	}
	info := toReviewInfo(&review)
	return &info, nil
}

func toReviewInfo(r *models.Review) models.ReviewInfo {
	return models.ReviewInfo{
		ID:            r.ID,
		GatheringID:   r.GatheringID,
		GatheringName: r.Gathering.Name,
		Author: models.MemberInfo{
			ID:              r.Member.ID,
			Name:            r.Member.Name,
			ProfileImageURL: r.Member.ProfileImageURL,
		},
		Score:     r.Score,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ScoreSummary aggregates live reviews of non-canceled gatherings, either for one
// gathering or across all of them when gatheringID is nil.
func (s *Service) ScoreSummary(ctx context.Context, gatheringID *uuid.UUID) (*models.ScoreSummary, error) {
	return scoreSummary(s.db.WithContext(ctx), gatheringID)
}

func scoreSummary(db *gorm.DB, gatheringID *uuid.UUID) (*models.ScoreSummary, error) {
	q := db.Model(&models.Review{}).
		Select("reviews.score AS score, COUNT(*) AS count").
		Joins("JOIN gatherings ON gatherings.id = reviews.gathering_id AND gatherings.canceled = ?", false).
		Group("reviews.score")
	if gatheringID != nil {
		q = q.Where("reviews.gathering_id = ?", *gatheringID)
	}

	var rows []struct {
		Score int
		Count int64
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("summarize scores: %w", err)
	}

	var summary models.ScoreSummary
	var sum int64
	for _, r := range rows {
		summary.Total += r.Count
		sum += int64(r.Score) * r.Count
		switch r.Score {
		case 5:
			summary.Five = r.Count
		case 4:
			summary.Four = r.Count
		case 3:
			summary.Three = r.Count
		case 2:
			summary.Two = r.Count
		case 1:
			summary.One = r.Count
		}
	}
	if summary.Total > 0 {
		summary.Average = math.Round(float64(sum)/float64(summary.Total)*10) / 10
	}
	return &summary, nil
}
