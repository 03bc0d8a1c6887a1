package repository

import (
	"context"
	"errors"
	"time"

	"course_engine_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Create(lesson).Error
}

func (r *LessonRepository) FindByID(ctx context.Context, id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByCourse returns the course's lessons in id order; callers apply the
// course ordering rules.
func (r *LessonRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id asc").
		Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) ListProgress(ctx context.Context, learnerID uint, lessonIDs []uint) ([]model.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var rows []model.LessonProgress
	err := r.DB.WithContext(ctx).
		Where("learner_id = ? AND lesson_id IN ?", learnerID, lessonIDs).
		Find(&rows).Error
	return rows, err
}

// UnlockForLearner marks the lesson unlocked; unlocking twice is a no-op.
func (r *LessonRepository) UnlockForLearner(ctx context.Context, courseID, lessonID, learnerID uint) error {
	now := time.Now()
	row := &model.LessonProgress{
		CourseID:   courseID,
		LessonID:   lessonID,
		LearnerID:  learnerID,
		Unlocked:   true,
		UnlockedAt: &now,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lesson_id"}, {Name: "learner_id"}},
		DoNothing: true,
	}).Create(row).Error
}

// ClaimUnlock inserts a claimed unlock event. When the (activity, learner)
// pair already has one, it returns claimed=false and the stored event.
func (r *LessonRepository) ClaimUnlock(ctx context.Context, event *model.LessonUnlockEvent) (bool, *model.LessonUnlockEvent, error) {
	event.Status = model.UnlockEventClaimed
	err := r.DB.WithContext(ctx).Create(event).Error
	if err == nil {
		return true, event, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil, err
	}
	var existing model.LessonUnlockEvent
	if err := r.DB.WithContext(ctx).
		Where("activity_id = ? AND learner_id = ?", event.ActivityID, event.LearnerID).
		First(&existing).Error; err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

func (r *LessonRepository) CompleteUnlock(ctx context.Context, eventID uint, nextLessonID *uint) error {
	return r.DB.WithContext(ctx).Model(&model.LessonUnlockEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status":         model.UnlockEventCompleted,
			"next_lesson_id": nextLessonID,
		}).Error
}

// ReleaseUnlock drops a claim so a later terminal event may retry the unlock.
func (r *LessonRepository) ReleaseUnlock(ctx context.Context, eventID uint) error {
	return r.DB.WithContext(ctx).Delete(&model.LessonUnlockEvent{}, eventID).Error
}
