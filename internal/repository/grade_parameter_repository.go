package repository

import (
	"context"

	"course_engine_backend/internal/model"

	"gorm.io/gorm"
)

type GradeParameterRepository struct {
	DB *gorm.DB
}

func NewGradeParameterRepository(db *gorm.DB) *GradeParameterRepository {
	return &GradeParameterRepository{DB: db}
}

func (r *GradeParameterRepository) Create(ctx context.Context, p *model.GradeParameter) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GradeParameterRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.GradeParameter, error) {
	var params []model.GradeParameter
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id asc").
		Find(&params).Error
	return params, err
}
