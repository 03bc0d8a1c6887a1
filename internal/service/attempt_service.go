package service

import (
	"context"
	"errors"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SummaryInvalidator drops cached grade summaries after a grade-relevant write.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, courseID, learnerID uint)
}

type AttemptService struct {
	ActivityRepo *repository.ActivityRepository
	AttemptRepo  *repository.AttemptRepository
	Progression  *ProgressionService
	Grades       SummaryInvalidator
	Policy       *PolicyStore
}

func NewAttemptService(
	activityRepo *repository.ActivityRepository,
	attemptRepo *repository.AttemptRepository,
	progression *ProgressionService,
	grades SummaryInvalidator,
	policy *PolicyStore,
) *AttemptService {
	return &AttemptService{
		ActivityRepo: activityRepo,
		AttemptRepo:  attemptRepo,
		Progression:  progression,
		Grades:       grades,
		Policy:       policy,
	}
}

type SubmitAnswersRequest struct {
	Answers model.AnswerSet `json:"answers" binding:"required"`
	// ExpectedAttempts is the attempt count the client last saw. When set, a
	// mismatch is reported as ConcurrentAttempt instead of recording.
	ExpectedAttempts *int `json:"expectedAttempts,omitempty"`
}

// AttemptStatus summarizes the attempt state of one (activity, learner) pair.
type AttemptStatus struct {
	ActivityID   uint               `json:"activityId"`
	State        model.AttemptState `json:"state"`
	AttemptsUsed int                `json:"attemptsUsed"`
	// AttemptsLeft is null when retries are unlimited.
	AttemptsLeft *int    `json:"attemptsLeft"`
	BestScore    float64 `json:"bestScore"`
	Reviewed     bool    `json:"reviewed"`
}

type AttemptResult struct {
	AttemptStatus
	// Recorded is false when the attempt was rejected because attempts are exhausted.
	Recorded       bool                 `json:"recorded"`
	Attempt        *model.AttemptRecord `json:"attempt,omitempty"`
	Score          float64              `json:"score"`
	FormattedScore string               `json:"formattedScore"`
	Passed         bool                 `json:"passed"`
	Unlock         *UnlockResult        `json:"unlock,omitempty"`
}

type AttemptHistory struct {
	AttemptStatus
	Attempts []model.AttemptRecord `json:"attempts"`
}

type RetryDecision struct {
	AttemptStatus
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func (s *AttemptService) loadQuiz(ctx context.Context, activityID uint) (*model.Activity, error) {
	activity, err := s.ActivityRepo.FindByID(ctx, activityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrActivityNotFound
	}
	if err != nil {
		return nil, util.Collaborator("load activity", err)
	}
	if activity.Kind != model.ActivityKindQuiz {
		return nil, util.ErrWrongActivityKind.With("activity %d is a %s activity", activity.ID, activity.Kind)
	}
	return activity, nil
}

func (s *AttemptService) status(activity *model.Activity, attempts []model.AttemptRecord, policy GradingPolicy) AttemptStatus {
	return AttemptStatus{
		ActivityID:   activity.ID,
		State:        DeriveState(activity, attempts, policy),
		AttemptsUsed: len(attempts),
		AttemptsLeft: AttemptsLeft(activity, len(attempts), policy),
		BestScore:    bestScore(attempts),
		Reviewed:     activity.Reviewed,
	}
}

// SubmitAnswers grades a quiz answer set and appends it to the learner's
// attempt history. Reaching a terminal state runs the progression cascade.
func (s *AttemptService) SubmitAnswers(ctx context.Context, learnerID, activityID uint, req SubmitAnswersRequest) (*AttemptResult, error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.SubmitAnswers", learnerID, activityID)
	defer span.End()

	policy := s.Policy.Load()

	activity, err := s.loadQuiz(ctx, activityID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	score, err := Score(req.Answers, activity.Questions)
	if err != nil {
		monitoring.AttemptsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	prior, err := s.AttemptRepo.ListByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil {
		err = util.Collaborator("load attempts", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	st := s.status(activity, prior, policy)
	switch st.State {
	case model.AttemptStatePassed:
		monitoring.AttemptsRejected.WithLabelValues("already_passed").Inc()
		// 之前解锁失败时在此补偿；已完成的解锁由台账去重
		s.resumeCascade(ctx, learnerID, activity, st.State)
		return nil, util.ErrAlreadyPassed
	case model.AttemptStateExhausted:
		// 次数已用完：返回当前状态，不记录
		monitoring.AttemptsRejected.WithLabelValues("exhausted").Inc()
		return &AttemptResult{
			AttemptStatus:  st,
			Recorded:       false,
			Score:          score,
			FormattedScore: util.FormatScore(score),
			Passed:         false,
			Unlock:         s.resumeCascade(ctx, learnerID, activity, st.State),
		}, nil
	}

	if req.ExpectedAttempts != nil && *req.ExpectedAttempts != len(prior) {
		monitoring.AttemptsRejected.WithLabelValues("concurrent").Inc()
		return nil, util.ErrConcurrentAttempt.With("expected %d prior attempts, found %d", *req.ExpectedAttempts, len(prior))
	}

	record := &model.AttemptRecord{
		ActivityID: activityID,
		LearnerID:  learnerID,
		Answers:    datatypes.NewJSONType(req.Answers),
		Score:      score,
		Passed:     IsPassing(score, policy),
	}
	if err := s.AttemptRepo.Append(ctx, record, len(prior)); err != nil {
		if errors.Is(err, util.ErrConcurrentAttempt) {
			monitoring.AttemptsRejected.WithLabelValues("concurrent").Inc()
			return nil, err
		}
		err = util.Collaborator("append attempt", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	history := append(prior, *record)
	result := &AttemptResult{
		AttemptStatus:  s.status(activity, history, policy),
		Recorded:       true,
		Attempt:        record,
		Score:          score,
		FormattedScore: util.FormatScore(score),
		Passed:         record.Passed,
	}
	monitoring.AttemptsRecorded.WithLabelValues(string(result.State)).Inc()

	logger.For(ctx, learnerID, activityID).Info("Attempt recorded",
		zap.Int("attemptIndex", record.AttemptIndex),
		zap.Float64("score", score),
		zap.String("state", string(result.State)),
	)

	if s.Grades != nil {
		s.Grades.Invalidate(ctx, activity.CourseID, learnerID)
	}

	result.Unlock = s.resumeCascade(ctx, learnerID, activity, result.State)
	return result, nil
}

// resumeCascade runs the progression cascade for a terminal state. Repeated
// calls are answered from the unlock ledger, so an earlier failed unlock is
// retried and a completed one is not.
func (s *AttemptService) resumeCascade(ctx context.Context, learnerID uint, activity *model.Activity, state model.AttemptState) *UnlockResult {
	if !state.Terminal() || s.Progression == nil {
		return nil
	}
	return s.Progression.OnActivityTerminal(ctx, learnerID, activity, outcomeForState(state))
}

func outcomeForState(state model.AttemptState) model.TerminalOutcome {
	if state == model.AttemptStateExhausted {
		return model.OutcomeExhausted
	}
	return model.OutcomePassed
}

func (s *AttemptService) ListAttempts(ctx context.Context, learnerID, activityID uint) (*AttemptHistory, error) {
	activity, err := s.loadQuiz(ctx, activityID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.AttemptRepo.ListByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil {
		return nil, util.Collaborator("load attempts", err)
	}
	if attempts == nil {
		attempts = []model.AttemptRecord{}
	}
	return &AttemptHistory{
		AttemptStatus: s.status(activity, attempts, s.Policy.Load()),
		Attempts:      attempts,
	}, nil
}

func (s *AttemptService) GetAttemptStatus(ctx context.Context, learnerID, activityID uint) (*AttemptStatus, error) {
	h, err := s.ListAttempts(ctx, learnerID, activityID)
	if err != nil {
		return nil, err
	}
	return &h.AttemptStatus, nil
}

// RequestRetry reports whether the learner may start another attempt.
func (s *AttemptService) RequestRetry(ctx context.Context, learnerID, activityID uint) (*RetryDecision, error) {
	h, err := s.ListAttempts(ctx, learnerID, activityID)
	if err != nil {
		return nil, err
	}
	d := &RetryDecision{AttemptStatus: h.AttemptStatus}
	switch h.State {
	case model.AttemptStatePassed:
		return nil, util.ErrAlreadyPassed
	case model.AttemptStateExhausted:
		d.Reason = "no attempts left"
	default:
		d.Allowed = true
	}
	return d, nil
}
