package service_test

import (
	"sync"
	"testing"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/testutil"
	"course_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const learner = uint(42)

func TestReviewedQuizExhaustsAfterThreeFailures(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 5, true)

	wantLeft := []int{2, 1, 0}
	wantState := []model.AttemptState{
		model.AttemptStateRetryAvailable,
		model.AttemptStateRetryAvailable,
		model.AttemptStateExhausted,
	}
	for i := 0; i < 3; i++ {
		res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
			Answers: testutil.Answers(quiz, 2),
		})
		require.NoError(t, err)
		assert.True(t, res.Recorded)
		assert.Equal(t, 2.0, res.Score)
		assert.False(t, res.Passed)
		assert.Equal(t, i+1, res.Attempt.AttemptIndex)
		assert.Equal(t, wantState[i], res.State)
		require.NotNil(t, res.AttemptsLeft)
		assert.Equal(t, wantLeft[i], *res.AttemptsLeft)
	}

	res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers: testutil.Answers(quiz, 5),
	})
	require.NoError(t, err)
	assert.False(t, res.Recorded)
	assert.Nil(t, res.Attempt)
	assert.Equal(t, model.AttemptStateExhausted, res.State)
	assert.Equal(t, 0, *res.AttemptsLeft)

	count, err := h.attemptRepo.CountByActivityAndLearner(h.ctx, quiz.ID, learner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	decision, err := h.attempts.RequestRetry(h.ctx, learner, quiz.ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, model.AttemptStateExhausted, decision.State)
}

func TestUnreviewedQuizHasUnlimitedAttempts(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, false)

	for i := 0; i < 6; i++ {
		res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
			Answers: testutil.Answers(quiz, 1),
		})
		require.NoError(t, err)
		assert.True(t, res.Recorded)
		assert.Nil(t, res.AttemptsLeft)
		assert.Equal(t, model.AttemptStateRetryAvailable, res.State)
	}

	status, err := h.attempts.GetAttemptStatus(h.ctx, learner, quiz.ID)
	require.NoError(t, err)
	assert.Nil(t, status.AttemptsLeft)
	assert.Equal(t, 6, status.AttemptsUsed)

	decision, err := h.attempts.RequestRetry(h.ctx, learner, quiz.ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestSubmitAfterPassIsRejected(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, true)

	res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers: testutil.Answers(quiz, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, 3.8, res.Score)
	assert.Equal(t, "3.8", res.FormattedScore)
	assert.True(t, res.Passed)
	assert.Equal(t, model.AttemptStatePassed, res.State)

	_, err = h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers: testutil.Answers(quiz, 4),
	})
	assert.ErrorIs(t, err, util.ErrAlreadyPassed)
	assert.Equal(t, util.KindConflict, util.KindOf(err))

	_, err = h.attempts.RequestRetry(h.ctx, learner, quiz.ID)
	assert.ErrorIs(t, err, util.ErrAlreadyPassed)

	history, err := h.attempts.ListAttempts(h.ctx, learner, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, history.Attempts, 1)
}

func TestPassingScoreBoundary(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 5, false)

	res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers: testutil.Answers(quiz, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Score)
	assert.True(t, res.Passed)
}

func TestStaleExpectedAttemptsIsConflict(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, true)

	_, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers:          testutil.Answers(quiz, 1),
		ExpectedAttempts: testutil.IntPtr(0),
	})
	require.NoError(t, err)

	// a second tab still believes no attempt was made
	_, err = h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers:          testutil.Answers(quiz, 1),
		ExpectedAttempts: testutil.IntPtr(0),
	})
	assert.ErrorIs(t, err, util.ErrConcurrentAttempt)

	count, err := h.attemptRepo.CountByActivityAndLearner(h.ctx, quiz.ID, learner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestConcurrentSubmissionsRecordOnce(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, true)

	const tabs = 4
	var wg sync.WaitGroup
	errs := make([]error, tabs)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
				Answers:          testutil.Answers(quiz, 1),
				ExpectedAttempts: testutil.IntPtr(0),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, util.ErrConcurrentAttempt)
	}
	assert.Equal(t, 1, ok)

	count, err := h.attemptRepo.CountByActivityAndLearner(h.ctx, quiz.ID, learner)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSubmitAnswersValidation(t *testing.T) {
	h := newHarness(t)
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, true)
	doc := testutil.SeedDocumentActivity(t, h.ctx, h.db, lesson, 1, 2)

	partial := testutil.Answers(quiz, 4)
	delete(partial, quiz.Questions[0].ID)
	_, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{Answers: partial})
	assert.ErrorIs(t, err, util.ErrIncompleteAnswers)

	_, err = h.attempts.SubmitAnswers(h.ctx, learner, doc.ID, service.SubmitAnswersRequest{Answers: model.AnswerSet{}})
	assert.ErrorIs(t, err, util.ErrWrongActivityKind)

	_, err = h.attempts.SubmitAnswers(h.ctx, learner, 9999, service.SubmitAnswersRequest{Answers: model.AnswerSet{}})
	assert.ErrorIs(t, err, util.ErrActivityNotFound)

	count, err := h.attemptRepo.CountByActivityAndLearner(h.ctx, quiz.ID, learner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAttemptLimitFollowsPolicy(t *testing.T) {
	h := newHarness(t)
	h.setPolicy(func(p *service.GradingPolicy) { p.ReviewedAttemptLimit = 1 })
	lesson := testutil.SeedLesson(t, h.ctx, h.db, 1, "Lesson 1", testutil.IntPtr(1))
	quiz := testutil.SeedQuiz(t, h.ctx, h.db, lesson, 1, 1, 4, true)

	res, err := h.attempts.SubmitAnswers(h.ctx, learner, quiz.ID, service.SubmitAnswersRequest{
		Answers: testutil.Answers(quiz, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStateExhausted, res.State)
	assert.Equal(t, 0, *res.AttemptsLeft)
}

func TestDeriveState(t *testing.T) {
	policy := service.DefaultGradingPolicy()
	reviewed := &model.Activity{Reviewed: true}
	open := &model.Activity{Reviewed: false}
	fail := model.AttemptRecord{Score: 1}
	pass := model.AttemptRecord{Score: 4, Passed: true}

	assert.Equal(t, model.AttemptStateNone, service.DeriveState(reviewed, nil, policy))
	assert.Equal(t, model.AttemptStateRetryAvailable, service.DeriveState(reviewed, []model.AttemptRecord{fail, fail}, policy))
	assert.Equal(t, model.AttemptStateExhausted, service.DeriveState(reviewed, []model.AttemptRecord{fail, fail, fail}, policy))
	assert.Equal(t, model.AttemptStatePassed, service.DeriveState(reviewed, []model.AttemptRecord{fail, fail, pass}, policy))
	assert.Equal(t, model.AttemptStateRetryAvailable, service.DeriveState(open, []model.AttemptRecord{fail, fail, fail, fail}, policy))

	assert.Nil(t, service.AttemptsLeft(open, 10, policy))
	assert.Equal(t, 0, *service.AttemptsLeft(reviewed, 5, policy))
}
