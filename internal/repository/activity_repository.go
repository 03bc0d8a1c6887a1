package repository

import (
	"context"

	"course_engine_backend/internal/model"

	"gorm.io/gorm"
)

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *model.Activity) error {
	return r.DB.WithContext(ctx).Create(activity).Error
}

// FindByID loads an activity with its questions in display order.
func (r *ActivityRepository) FindByID(ctx context.Context, id uint) (*model.Activity, error) {
	var a model.Activity
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ActivityRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("lesson_id asc, position asc, id asc").
		Find(&activities).Error
	return activities, err
}

// ListByLesson returns the lesson's activities in their stable order:
// position first, id as tie-breaker.
func (r *ActivityRepository) ListByLesson(ctx context.Context, lessonID uint) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.DB.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("position asc, id asc").
		Find(&activities).Error
	return activities, err
}
