package service

import (
	"sort"
	"strings"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
)

// ScoreBreakdown is the outcome of grading one answer set.
type ScoreBreakdown struct {
	Score   float64 `json:"score"`
	Correct int     `json:"correct"`
	// Scorable excludes file upload questions.
	Scorable int           `json:"scorable"`
	Results  map[uint]bool `json:"-"`
}

// Score grades answers against the activity questions on the 0.0 to 5.0
// scale, rounded half up to one decimal. It is pure.
func Score(answers model.AnswerSet, questions []model.ActivityQuestion) (float64, error) {
	b, err := EvaluateAnswers(answers, questions)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

func EvaluateAnswers(answers model.AnswerSet, questions []model.ActivityQuestion) (*ScoreBreakdown, error) {
	if len(questions) == 0 {
		return nil, util.ErrNoQuestions
	}

	known := make(map[uint]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			return nil, util.ErrUnknownQuestion.With("question %d does not belong to this activity", id)
		}
	}

	b := &ScoreBreakdown{Results: make(map[uint]bool, len(questions))}
	var missing []uint
	for _, q := range questions {
		if q.Type == model.QuestionFileUpload {
			// 文件题由教师批改，不参与自动评分
			continue
		}
		ans, ok := answers[q.ID]
		if !ok {
			missing = append(missing, q.ID)
			continue
		}
		b.Scorable++
		correct := isCorrect(q, ans)
		b.Results[q.ID] = correct
		if correct {
			b.Correct++
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, util.ErrIncompleteAnswers.With("unanswered questions: %v", missing)
	}

	b.Score = scaledScore(b.Correct, b.Scorable)
	return b, nil
}

func isCorrect(q model.ActivityQuestion, answer string) bool {
	switch q.Type {
	case model.QuestionTrueFalse, model.QuestionMultipleChoice:
		return strings.TrimSpace(answer) == q.CorrectOptionID
	case model.QuestionFillBlank:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
	default:
		return false
	}
}

// scaledScore computes round_half_up(correct/total*5, 1) in integer tenths so
// that e.g. 3/4 lands on exactly 3.8.
func scaledScore(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	tenths := (100*correct + total) / (2 * total)
	return float64(tenths) / 10
}

func IsPassing(score float64, policy GradingPolicy) bool {
	return score >= policy.PassingScore
}
