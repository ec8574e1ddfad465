// Package ledger records who is, or was, attending a gathering. Every function
// takes the caller's transaction so ledger writes commit together with the
// gathering flag updates they drive.
package ledger

import (
	"errors"
	"fmt"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CountActive returns the current headcount of a gathering.
func CountActive(tx *gorm.DB, gatheringID uuid.UUID) (int64, error) {
	var count int64
	if err := tx.Model(&models.Attendance{}).
		Where("gathering_id = ?", gatheringID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// Find returns the member's attendance record, active or withdrawn, or nil when
// the member never joined.
func Find(tx *gorm.DB, gatheringID, memberID uuid.UUID) (*models.Attendance, error) {
	var rec models.Attendance
	err := tx.Unscoped().
		Where("gathering_id = ? AND member_id = ?", gatheringID, memberID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &rec, nil
}

// IsAttending reports whether the member has an active record.
func IsAttending(tx *gorm.DB, gatheringID, memberID uuid.UUID) (bool, error) {
	rec, err := Find(tx, gatheringID, memberID)
	if err != nil || rec == nil {
		return false, err
	}
	_, active := rec.Standing().(models.Active)
	return active, nil
}

// UpsertJoin inserts a new record, restores a withdrawn one, or fails with
// ErrAlreadyJoined when the member is already attending.
func UpsertJoin(tx *gorm.DB, gatheringID, memberID uuid.UUID) (*models.Attendance, error) {
	rec, err := Find(tx, gatheringID, memberID)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		rec = &models.Attendance{GatheringID: gatheringID, MemberID: memberID}
		if err := tx.Create(rec).Error; err != nil {
			return nil, fmt.Errorf("create attendance: %w", err)
		}
		return rec, nil
	}

	switch rec.Standing().(type) {
	case models.Active:
		return nil, apperr.ErrAlreadyJoined
	case models.Withdrawn:
		if err := tx.Unscoped().Model(rec).Update("deleted_at", nil).Error; err != nil {
			return nil, fmt.Errorf("restore attendance: %w", err)
		}
		rec.DeletedAt = gorm.DeletedAt{}
	}
	return rec, nil
}

// SoftCancel withdraws the member's active record.
func SoftCancel(tx *gorm.DB, gatheringID, memberID uuid.UUID) error {
	rec, err := Find(tx, gatheringID, memberID)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperr.ErrNotAttending
	}
	if _, withdrawn := rec.Standing().(models.Withdrawn); withdrawn {
		return apperr.ErrNotAttending
	}
	if err := tx.Delete(rec).Error; err != nil {
		return fmt.Errorf("cancel attendance: %w", err)
	}
	return nil
}

// WithdrawAllExcept soft-deletes every active record of the gathering other than
// keep's and returns how many were withdrawn.
func WithdrawAllExcept(tx *gorm.DB, gatheringID, keep uuid.UUID) (int64, error) {
	res := tx.Where("gathering_id = ? AND member_id <> ?", gatheringID, keep).
		Delete(&models.Attendance{})
	if res.Error != nil {
		return 0, fmt.Errorf("withdraw attendance: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ActiveMembers lists the members currently attending, in join order.
func ActiveMembers(tx *gorm.DB, gatheringID uuid.UUID) ([]models.Member, error) {
	var members []models.Member
	err := tx.Model(&models.Member{}).
		Joins("JOIN attendances ON attendances.member_id = members.id AND attendances.deleted_at IS NULL").
		Where("attendances.gathering_id = ?", gatheringID).
		Order("attendances.created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return members, nil
}

// CountActiveByGathering returns headcounts for many gatherings in one query.
// Gatherings with no attendees are absent from the map.
func CountActiveByGathering(tx *gorm.DB, gatheringIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(gatheringIDs))
	if len(gatheringIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		GatheringID uuid.UUID
		Count       int64
	}
	err := tx.Model(&models.Attendance{}).
		Select("gathering_id, COUNT(*) AS count").
		Where("gathering_id IN ?", gatheringIDs).
		Group("gathering_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	for _, r := range rows {
		counts[r.GatheringID] = r.Count
	}
	return counts, nil
}

// ActiveSubquery selects the ids of gatherings the member is attending.
func ActiveSubquery(tx *gorm.DB, memberID uuid.UUID) *gorm.DB {
	return tx.Model(&models.Attendance{}).Select("gathering_id").Where("member_id = ?", memberID)
}
