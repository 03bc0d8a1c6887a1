package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerSet maps a question id to the submitted option id or text.
type AnswerSet map[uint]string

// AttemptRecord is append-only: a new attempt never rewrites an earlier one.
// It has no soft delete; a removed row must not keep holding its index.
//
// swagger:model AttemptRecord
type AttemptRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ActivityID   uint                          `gorm:"not null;uniqueIndex:uk_attempt_activity_learner_index,priority:1" json:"activityId"`
	LearnerID    uint                          `gorm:"not null;uniqueIndex:uk_attempt_activity_learner_index,priority:2;index" json:"learnerId"`
	AttemptIndex int                           `gorm:"not null;uniqueIndex:uk_attempt_activity_learner_index,priority:3" json:"attemptIndex"`
	Answers      datatypes.JSONType[AnswerSet] `json:"answers"`
	Score        float64                       `json:"score"`
	Passed       bool                          `gorm:"default:false" json:"passed"`
}

func (AttemptRecord) TableName() string {
	return "attempt_records"
}
