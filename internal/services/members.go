package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Register creates a member with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Member, error) {
	db := s.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing int64
	if err := db.Model(&models.Member{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, apperr.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := &models.Member{
		Email:    email,
		Password: string(hashed),
		Name:     strings.TrimSpace(req.Name),
	}
	if err := db.Create(member).Error; err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}

	slog.Info("Member registered", "member_id", member.ID)
	return member, nil
}

// Login checks the credentials and returns the member.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.Member, error) {
	var member models.Member
	email := strings.ToLower(strings.TrimSpace(req.Email))
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.Password), []byte(req.Password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return &member, nil
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := s.db.WithContext(ctx).First(&member, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &member, nil
}

// ListOwnedGatherings lists every gathering the member created, canceled ones
// included.
func (s *Service) ListOwnedGatherings(ctx context.Context, memberID uuid.UUID, p listing.Page) (*listing.Result, error) {
	f := listing.Filter{OwnerID: &memberID, Status: listing.StatusAll, IncludeCanceled: true}
	return s.ListGatherings(ctx, f, p, &memberID)
}

// ListJoinedGatherings lists gatherings the member currently attends.
func (s *Service) ListJoinedGatherings(ctx context.Context, memberID uuid.UUID, p listing.Page) (*listing.Result, error) {
	f := listing.Filter{AttendeeID: &memberID, Status: listing.StatusAll, IncludeCanceled: true}
	return s.ListGatherings(ctx, f, p, &memberID)
}

// ListReviewableGatherings lists closed gatherings the member attended and has
// not reviewed yet.
func (s *Service) ListReviewableGatherings(ctx context.Context, memberID uuid.UUID, p listing.Page) (*listing.Result, error) {
	f := listing.Filter{AttendeeID: &memberID, UnreviewedBy: &memberID, Status: listing.StatusClosed}
	return s.ListGatherings(ctx, f, p, &memberID)
}

// ListMemberReviews lists the reviews the member has written, newest first.
func (s *Service) ListMemberReviews(ctx context.Context, memberID uuid.UUID, p listing.Page) (*ReviewList, error) {
	return listReviews(s.db.WithContext(ctx), func(q *gorm.DB) *gorm.DB {
		return q.Where("reviews.member_id = ?", memberID)
	}, ReviewSortLatest, p)
}
