package repository

import (
	"context"
	"errors"
	"time"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

// FindByActivityAndLearner returns nil when the learner has not submitted.
func (r *SubmissionRepository) FindByActivityAndLearner(ctx context.Context, activityID, learnerID uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("activity_id = ? AND learner_id = ?", activityID, learnerID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Put stores s as the active submission of its (activity, learner) pair,
// fully replacing any previous row. Last writer wins.
func (r *SubmissionRepository) Put(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "activity_id"}, {Name: "learner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "locator", "file_name", "content_type", "size",
			"status", "grade", "feedback", "reviewer_id", "reviewed_at",
			"submitted_at", "updated_at", "deleted_at",
		}),
	}).Create(s).Error
}

// MarkReviewed moves a pending submission to reviewed. It fails with
// util.ErrInvalidTransition when the row is no longer pending.
func (r *SubmissionRepository) MarkReviewed(ctx context.Context, id uint, grade float64, feedback *string, reviewerID uint) error {
	now := time.Now()
	res := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("id = ? AND status = ?", id, model.SubmissionPending).
		Updates(map[string]interface{}{
			"status":      model.SubmissionReviewed,
			"grade":       grade,
			"feedback":    feedback,
			"reviewer_id": reviewerID,
			"reviewed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrInvalidTransition
	}
	return nil
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id uint) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepository) ListPendingByActivity(ctx context.Context, activityID uint) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.DB.WithContext(ctx).
		Where("activity_id = ? AND status = ?", activityID, model.SubmissionPending).
		Order("submitted_at asc, id asc").
		Find(&subs).Error
	return subs, err
}

func (r *SubmissionRepository) ListByLearner(ctx context.Context, learnerID uint, activityIDs []uint) ([]model.Submission, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	var subs []model.Submission
	err := r.DB.WithContext(ctx).
		Where("learner_id = ? AND activity_id IN ?", learnerID, activityIDs).
		Find(&subs).Error
	return subs, err
}
