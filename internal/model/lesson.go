package model

import "time"

// swagger:model Lesson
type Lesson struct {
	BaseModel

	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	// Order is the explicit position within the course. Legacy rows leave it
	// nil and are ordered by their title.
	Order *int `gorm:"column:sort_order" json:"order,omitempty"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// LessonProgress records that a lesson was unlocked for a learner. Rows are
// written only by the progression cascade.
type LessonProgress struct {
	BaseModel

	CourseID   uint       `gorm:"index;not null" json:"courseId"`
	LessonID   uint       `gorm:"not null;uniqueIndex:uk_progress_lesson_learner,priority:1" json:"lessonId"`
	LearnerID  uint       `gorm:"not null;uniqueIndex:uk_progress_lesson_learner,priority:2" json:"learnerId"`
	Unlocked   bool       `gorm:"default:false" json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

const (
	UnlockEventClaimed   = "claimed"
	UnlockEventCompleted = "completed"
)

// LessonUnlockEvent makes the cascade idempotent per (activity, learner).
type LessonUnlockEvent struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ActivityID   uint            `gorm:"not null;uniqueIndex:uk_unlock_activity_learner,priority:1" json:"activityId"`
	LearnerID    uint            `gorm:"not null;uniqueIndex:uk_unlock_activity_learner,priority:2" json:"learnerId"`
	LessonID     uint            `gorm:"index;not null" json:"lessonId"`
	NextLessonID *uint           `json:"nextLessonId,omitempty"`
	Outcome      TerminalOutcome `gorm:"size:32" json:"outcome"`
	Status       string          `gorm:"size:16;not null" json:"status"`
}

func (LessonUnlockEvent) TableName() string {
	return "lesson_unlock_events"
}
