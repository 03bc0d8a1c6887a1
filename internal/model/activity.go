package model

import (
	"fmt"

	"gorm.io/datatypes"
)

type ActivityKind string

const (
	ActivityKindQuiz           ActivityKind = "quiz"
	ActivityKindDocumentUpload ActivityKind = "document_upload"
)

func ParseActivityKind(s string) (ActivityKind, error) {
	switch k := ActivityKind(s); k {
	case ActivityKindQuiz, ActivityKindDocumentUpload:
		return k, nil
	default:
		return "", fmt.Errorf("unknown activity kind %q", s)
	}
}

type QuestionType string

const (
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionFileUpload     QuestionType = "file_upload"
)

func ParseQuestionType(s string) (QuestionType, error) {
	switch t := QuestionType(s); t {
	case QuestionTrueFalse, QuestionMultipleChoice, QuestionFillBlank, QuestionFileUpload:
		return t, nil
	default:
		return "", fmt.Errorf("unknown question type %q", s)
	}
}

// swagger:model Activity
type Activity struct {
	BaseModel

	CourseID    uint         `gorm:"index;not null" json:"courseId"`
	LessonID    uint         `gorm:"index;not null" json:"lessonId"`
	ParameterID uint         `gorm:"index;not null" json:"parameterId"`
	Title       string       `gorm:"size:255" json:"title"`
	Kind        ActivityKind `gorm:"size:32;not null" json:"kind"`
	// Reviewed ("revisada") caps attempts; otherwise retries are unlimited until passed.
	Reviewed bool `gorm:"default:false" json:"reviewed"`
	Position int  `gorm:"default:0" json:"position"`

	Questions []ActivityQuestion `gorm:"foreignKey:ActivityID" json:"questions,omitempty"`
}

func (Activity) TableName() string {
	return "activities"
}

type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// swagger:model ActivityQuestion
type ActivityQuestion struct {
	BaseModel

	ActivityID      uint                                `gorm:"index;not null" json:"activityId"`
	Position        int                                 `gorm:"default:0" json:"position"`
	Type            QuestionType                        `gorm:"size:32;not null" json:"type"`
	Text            string                              `gorm:"type:text" json:"text"`
	Options         datatypes.JSONSlice[QuestionOption] `json:"options,omitempty"`
	CorrectOptionID string                              `gorm:"size:64" json:"-"`
	CorrectAnswer   string                              `gorm:"size:512" json:"-"`
}

func (ActivityQuestion) TableName() string {
	return "activity_questions"
}
