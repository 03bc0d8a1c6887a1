package service_test

import (
	"testing"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(id uint, typ model.QuestionType, correct string) model.ActivityQuestion {
	q := model.ActivityQuestion{BaseModel: model.BaseModel{ID: id}, Type: typ}
	if typ == model.QuestionFillBlank {
		q.CorrectAnswer = correct
	} else {
		q.CorrectOptionID = correct
	}
	return q
}

func mcQuestions(n int) []model.ActivityQuestion {
	qs := make([]model.ActivityQuestion, n)
	for i := range qs {
		qs[i] = question(uint(i+1), model.QuestionMultipleChoice, "a")
	}
	return qs
}

func answersWithCorrect(qs []model.ActivityQuestion, k int) model.AnswerSet {
	out := model.AnswerSet{}
	for i, q := range qs {
		if i < k {
			out[q.ID] = "a"
		} else {
			out[q.ID] = "b"
		}
	}
	return out
}

func TestScoreThreeOfFour(t *testing.T) {
	qs := mcQuestions(4)
	score, err := service.Score(answersWithCorrect(qs, 3), qs)
	require.NoError(t, err)
	assert.Equal(t, 3.8, score)
	assert.Equal(t, "3.8", util.FormatScore(score))
	assert.True(t, service.IsPassing(score, service.DefaultGradingPolicy()))
}

func TestScoreRoundsHalfUpToOneDecimal(t *testing.T) {
	for n := 1; n <= 24; n++ {
		qs := mcQuestions(n)
		for k := 0; k <= n; k++ {
			// round_half_up(k/n*5, 1) in tenths, computed by long division
			q, r := (50*k)/n, (50*k)%n
			if 2*r >= n {
				q++
			}
			want := float64(q) / 10

			got, err := service.Score(answersWithCorrect(qs, k), qs)
			require.NoError(t, err)
			assert.Equalf(t, want, got, "n=%d k=%d", n, k)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 5.0)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	qs := mcQuestions(7)
	answers := answersWithCorrect(qs, 4)
	first, err := service.Score(answers, qs)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := service.Score(answers, qs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScoreQuestionTypes(t *testing.T) {
	qs := []model.ActivityQuestion{
		question(1, model.QuestionTrueFalse, "true"),
		question(2, model.QuestionMultipleChoice, "c"),
		question(3, model.QuestionFillBlank, "  Quito "),
		question(4, model.QuestionFileUpload, ""),
	}

	b, err := service.EvaluateAnswers(model.AnswerSet{1: "true", 2: "c", 3: "quito"}, qs)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Scorable)
	assert.Equal(t, 3, b.Correct)
	assert.Equal(t, 5.0, b.Score)

	b, err = service.EvaluateAnswers(model.AnswerSet{1: "false", 2: "C", 3: "QUITO  "}, qs)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Correct)
	assert.False(t, b.Results[1])
	assert.False(t, b.Results[2])
	assert.True(t, b.Results[3])
	assert.Equal(t, 1.7, b.Score)
}

func TestScoreValidation(t *testing.T) {
	qs := mcQuestions(3)

	_, err := service.Score(model.AnswerSet{1: "a", 2: "a"}, qs)
	assert.ErrorIs(t, err, util.ErrIncompleteAnswers)
	assert.Equal(t, util.KindValidation, util.KindOf(err))

	_, err = service.Score(model.AnswerSet{1: "a", 2: "a", 3: "a", 99: "a"}, qs)
	assert.ErrorIs(t, err, util.ErrUnknownQuestion)

	_, err = service.Score(model.AnswerSet{}, nil)
	assert.ErrorIs(t, err, util.ErrNoQuestions)
}

func TestScoreFileUploadOnly(t *testing.T) {
	qs := []model.ActivityQuestion{question(1, model.QuestionFileUpload, "")}
	score, err := service.Score(model.AnswerSet{}, qs)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}
