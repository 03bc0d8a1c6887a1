package service_test

import (
	"testing"
	"time"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/testutil"
	"course_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mean(t *testing.T) service.CombineFunc {
	fn, err := service.ParseCombineStrategy(service.CombineMean)
	require.NoError(t, err)
	return fn
}

func activity(id, paramID uint, kind model.ActivityKind) model.Activity {
	return model.Activity{BaseModel: model.BaseModel{ID: id}, ParameterID: paramID, Kind: kind}
}

func param(id uint, weight float64) model.GradeParameter {
	return model.GradeParameter{BaseModel: model.BaseModel{ID: id}, WeightPercent: weight}
}

func passedAttempt(activityID uint, score float64, at time.Time) model.AttemptRecord {
	return model.AttemptRecord{
		CreatedAt:  at,
		ActivityID: activityID,
		Score:      score,
		Passed:     true,
	}
}

func reviewedSubmission(activityID uint, g float64, at time.Time) model.Submission {
	return model.Submission{
		ActivityID: activityID,
		Status:     model.SubmissionReviewed,
		Grade:      &g,
		ReviewedAt: &at,
	}
}

func TestAggregateWeightedSixtyForty(t *testing.T) {
	now := time.Now()
	activities := []model.Activity{
		activity(1, 10, model.ActivityKindQuiz),
		activity(2, 20, model.ActivityKindDocumentUpload),
	}
	params := []model.GradeParameter{param(10, 60), param(20, 40)}

	s := service.AggregateGrades(activities, params,
		[]model.AttemptRecord{passedAttempt(1, 4.0, now)},
		[]model.Submission{reviewedSubmission(2, 2.0, now)},
		mean(t), service.DefaultGradingPolicy())

	assert.Equal(t, 3.2, s.FinalGrade)
	assert.Equal(t, "3.2", s.FormattedFinalGrade)
	assert.True(t, s.Completed)
	require.Len(t, s.Parameters, 2)
	assert.Equal(t, 2.4, s.Parameters[0].Contribution)
	assert.Equal(t, 0.8, s.Parameters[1].Contribution)
}

func TestFormattedFinalGradeRoundsHalfUp(t *testing.T) {
	now := time.Now()
	activities := []model.Activity{
		activity(1, 10, model.ActivityKindQuiz),
		activity(2, 20, model.ActivityKindDocumentUpload),
	}
	params := []model.GradeParameter{param(10, 50), param(20, 50)}

	s := service.AggregateGrades(activities, params,
		[]model.AttemptRecord{passedAttempt(1, 3.5, now)},
		[]model.Submission{reviewedSubmission(2, 3.0, now)},
		mean(t), service.DefaultGradingPolicy())

	assert.Equal(t, 3.25, s.FinalGrade)
	assert.Equal(t, "3.3", s.FormattedFinalGrade)
}

func TestAggregateCombineStrategies(t *testing.T) {
	t0 := time.Now()
	activities := []model.Activity{
		activity(1, 10, model.ActivityKindQuiz),
		activity(2, 10, model.ActivityKindQuiz),
		activity(3, 10, model.ActivityKindDocumentUpload),
	}
	params := []model.GradeParameter{param(10, 100)}
	attempts := []model.AttemptRecord{
		passedAttempt(2, 5.0, t0.Add(time.Minute)),
		passedAttempt(1, 3.0, t0),
	}
	subs := []model.Submission{reviewedSubmission(3, 4.0, t0.Add(2*time.Minute))}

	want := map[string]float64{
		service.CombineMean:   4.0,
		service.CombineMax:    5.0,
		service.CombineLatest: 4.0,
	}
	for name, expected := range want {
		fn, err := service.ParseCombineStrategy(name)
		require.NoError(t, err)
		s := service.AggregateGrades(activities, params, attempts, subs, fn, service.DefaultGradingPolicy())
		assert.Equalf(t, expected, s.FinalGrade, "combine=%s", name)
		assert.Equal(t, 3, s.Parameters[0].GradedActivities)
	}

	_, err := service.ParseCombineStrategy("median")
	assert.ErrorIs(t, err, util.ErrInvalidCombine)
}

func TestAggregateIncompleteParameter(t *testing.T) {
	activities := []model.Activity{
		activity(1, 10, model.ActivityKindQuiz),
		activity(2, 20, model.ActivityKindDocumentUpload),
	}
	params := []model.GradeParameter{param(10, 60), param(20, 40)}

	pending := model.Submission{ActivityID: 2, Status: model.SubmissionPending}
	s := service.AggregateGrades(activities, params,
		[]model.AttemptRecord{passedAttempt(1, 5.0, time.Now())},
		[]model.Submission{pending},
		mean(t), service.DefaultGradingPolicy())

	assert.Equal(t, 3.0, s.FinalGrade)
	assert.False(t, s.Completed)
	assert.Zero(t, s.Parameters[1].Contribution)
	assert.Zero(t, s.Parameters[1].GradedActivities)
}

func TestAggregateZeroGradeCountsAsGraded(t *testing.T) {
	activities := []model.Activity{activity(1, 10, model.ActivityKindDocumentUpload)}
	params := []model.GradeParameter{param(10, 100)}

	s := service.AggregateGrades(activities, params, nil,
		[]model.Submission{reviewedSubmission(1, 0, time.Now())},
		mean(t), service.DefaultGradingPolicy())
	assert.Equal(t, 0.0, s.FinalGrade)
	assert.Equal(t, 1, s.Parameters[0].GradedActivities)
	assert.False(t, s.Completed)
}

func TestAggregateClampsFinalGrade(t *testing.T) {
	activities := []model.Activity{activity(1, 10, model.ActivityKindQuiz)}
	params := []model.GradeParameter{param(10, 150)}

	s := service.AggregateGrades(activities, params,
		[]model.AttemptRecord{passedAttempt(1, 5.0, time.Now())}, nil,
		mean(t), service.DefaultGradingPolicy())
	assert.Equal(t, 5.0, s.FinalGrade)
}

func TestAggregateWithoutParameters(t *testing.T) {
	s := service.AggregateGrades(nil, nil, nil, nil, mean(t), service.DefaultGradingPolicy())
	assert.Zero(t, s.FinalGrade)
	assert.False(t, s.Completed)
	assert.Empty(t, s.Parameters)
}

func TestGradeSummaryFromStorage(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 5, "Unidad 1", testutil.IntPtr(1))
	quizzes := testutil.SeedParameter(t, h.ctx, h.db, 5, "Cuestionarios", 60)
	docs := testutil.SeedParameter(t, h.ctx, h.db, 5, "Tareas", 40)
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, quizzes.ID, 1, 5, false)
	doc := testutil.SeedDocumentActivity(t, h.ctx, h.db, lesson, docs.ID, 2)

	_, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{Answers: testutil.Answers(quiz, 2)})
	require.NoError(t, err)
	_, err = h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{Answers: testutil.Answers(quiz, 4)})
	require.NoError(t, err)

	s, err := h.grades.GetGradeSummary(h.ctx, 5, learner, "")
	require.NoError(t, err)
	assert.Equal(t, service.CombineMean, s.Combine)
	assert.Equal(t, 2.4, s.FinalGrade)
	assert.False(t, s.Completed)

	_, err = h.submissions.SubmitDocument(h.ctx, learner, doc.ID, fileSubmission("submissions/a.pdf"))
	require.NoError(t, err)
	_, err = h.submissions.ReviewSubmission(h.ctx, reviewer, doc.ID, learner, service.ReviewRequest{Grade: grade(2)})
	require.NoError(t, err)

	// the review invalidated the cached summary
	s, err = h.grades.GetGradeSummary(h.ctx, 5, learner, "")
	require.NoError(t, err)
	assert.Equal(t, 3.2, s.FinalGrade)
	assert.True(t, s.Completed)

	other, err := h.grades.GetGradeSummary(h.ctx, 5, learner+1, service.CombineMax)
	require.NoError(t, err)
	assert.Zero(t, other.FinalGrade)

	_, err = h.grades.GetGradeSummary(h.ctx, 5, learner, "median")
	assert.ErrorIs(t, err, util.ErrInvalidCombine)
}

func TestGradeSummaryIsCachedUntilInvalidated(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 5, "Unidad 1", testutil.IntPtr(1))
	p := testutil.SeedParameter(t, h.ctx, h.db, 5, "Cuestionarios", 100)
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, p.ID, 1, 5, false)

	first, err := h.grades.GetGradeSummary(h.ctx, 5, learner, service.CombineMean)
	require.NoError(t, err)
	assert.Zero(t, first.FinalGrade)

	// written behind the service's back, so nothing invalidates the cache
	require.NoError(t, h.db.Create(&model.AttemptRecord{
		ActivityID: quiz.ID, LearnerID: learner, AttemptIndex: 1, Score: 5, Passed: true,
	}).Error)

	cached, err := h.grades.GetGradeSummary(h.ctx, 5, learner, service.CombineMean)
	require.NoError(t, err)
	assert.Zero(t, cached.FinalGrade)

	h.grades.Invalidate(h.ctx, 5, learner)
	fresh, err := h.grades.GetGradeSummary(h.ctx, 5, learner, service.CombineMean)
	require.NoError(t, err)
	assert.Equal(t, 5.0, fresh.FinalGrade)

	h.grades.SetCacheTTL(0)
	require.NoError(t, h.db.Model(&model.AttemptRecord{}).Where("activity_id = ?", quiz.ID).Update("score", 4.5).Error)
	uncached, err := h.grades.GetGradeSummary(h.ctx, 5, learner, service.CombineMean)
	require.NoError(t, err)
	assert.Equal(t, 4.5, uncached.FinalGrade)
}
