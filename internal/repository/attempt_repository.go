package repository

import (
	"context"
	"errors"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) ListByActivityAndLearner(ctx context.Context, activityID, learnerID uint) ([]model.AttemptRecord, error) {
	var attempts []model.AttemptRecord
	err := r.DB.WithContext(ctx).
		Where("activity_id = ? AND learner_id = ?", activityID, learnerID).
		Order("attempt_index asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) CountByActivityAndLearner(ctx context.Context, activityID, learnerID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.AttemptRecord{}).
		Where("activity_id = ? AND learner_id = ?", activityID, learnerID).
		Count(&count).Error
	return count, err
}

// Append writes record as attempt number expectedPriorCount+1. It fails with
// util.ErrConcurrentAttempt when the stored count differs from
// expectedPriorCount or another writer took the same index first.
func (r *AttemptRepository) Append(ctx context.Context, record *model.AttemptRecord, expectedPriorCount int) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.AttemptRecord{}).
			Where("activity_id = ? AND learner_id = ?", record.ActivityID, record.LearnerID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) != expectedPriorCount {
			return util.ErrConcurrentAttempt
		}
		record.AttemptIndex = expectedPriorCount + 1
		return tx.Create(record).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrConcurrentAttempt
	}
	return err
}

// ListPassedByLearner returns the learner's passing attempts among activityIDs.
func (r *AttemptRepository) ListPassedByLearner(ctx context.Context, learnerID uint, activityIDs []uint) ([]model.AttemptRecord, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	var attempts []model.AttemptRecord
	err := r.DB.WithContext(ctx).
		Where("learner_id = ? AND passed = ? AND activity_id IN ?", learnerID, true, activityIDs).
		Order("activity_id asc, attempt_index asc").
		Find(&attempts).Error
	return attempts, err
}
