package model

// GradeParameter is a weighted grading bucket. Weights of a course's
// parameters are expected to sum to 100; that is validated upstream.
//
// swagger:model GradeParameter
type GradeParameter struct {
	BaseModel

	CourseID      uint    `gorm:"index;not null" json:"courseId"`
	Name          string  `gorm:"size:255;not null" json:"name"`
	WeightPercent float64 `gorm:"not null" json:"weightPercent"`
}

func (GradeParameter) TableName() string {
	return "grade_parameters"
}
