package testutil

import (
	"context"
	"fmt"
	"testing"

	"course_engine_backend/internal/model"

	"gorm.io/gorm"
)

func SeedLesson(tb testing.TB, ctx context.Context, db *gorm.DB, courseID uint, title string, order *int) *model.Lesson {
	tb.Helper()
	l := &model.Lesson{CourseID: courseID, Title: title, Order: order}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedParameter(tb testing.TB, ctx context.Context, db *gorm.DB, courseID uint, name string, weight float64) *model.GradeParameter {
	tb.Helper()
	p := &model.GradeParameter{CourseID: courseID, Name: name, WeightPercent: weight}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed grade parameter: %v", err)
	}
	return p
}

// SeedQuiz creates a quiz whose questions are all multiple choice with
// correct option "a".
func SeedQuiz(tb testing.TB, ctx context.Context, db *gorm.DB, lesson *model.Lesson, parameterID uint, position, questions int, reviewed bool) *model.Activity {
	tb.Helper()
	a := &model.Activity{
		CourseID:    lesson.CourseID,
		LessonID:    lesson.ID,
		ParameterID: parameterID,
		Title:       fmt.Sprintf("quiz %d", position),
		Kind:        model.ActivityKindQuiz,
		Reviewed:    reviewed,
		Position:    position,
	}
	for i := 0; i < questions; i++ {
		a.Questions = append(a.Questions, model.ActivityQuestion{
			Position:        i,
			Type:            model.QuestionMultipleChoice,
			Text:            fmt.Sprintf("question %d", i+1),
			Options:         []model.QuestionOption{{ID: "a", Text: "right"}, {ID: "b", Text: "wrong"}},
			CorrectOptionID: "a",
		})
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
	return a
}

func SeedDocumentActivity(tb testing.TB, ctx context.Context, db *gorm.DB, lesson *model.Lesson, parameterID uint, position int) *model.Activity {
	tb.Helper()
	a := &model.Activity{
		CourseID:    lesson.CourseID,
		LessonID:    lesson.ID,
		ParameterID: parameterID,
		Title:       fmt.Sprintf("document %d", position),
		Kind:        model.ActivityKindDocumentUpload,
		Position:    position,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed document activity: %v", err)
	}
	return a
}

// Answers builds an answer set for a SeedQuiz activity with the first
// `correct` questions answered right and the rest wrong.
func Answers(a *model.Activity, correct int) model.AnswerSet {
	out := make(model.AnswerSet, len(a.Questions))
	for i, q := range a.Questions {
		if i < correct {
			out[q.ID] = "a"
		} else {
			out[q.ID] = "b"
		}
	}
	return out
}

func IntPtr(v int) *int { return &v }
