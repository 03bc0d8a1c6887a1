package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UnlockResponse struct {
	Success      bool  `json:"success"`
	NextLessonID *uint `json:"nextLessonId,omitempty"`
}

// LessonUnlocker is the external progression collaborator.
type LessonUnlocker interface {
	UnlockNextLesson(ctx context.Context, learnerID, lessonID uint) (*UnlockResponse, error)
}

type UnlockStatus string

const (
	UnlockNotApplicable    UnlockStatus = "not_applicable"
	UnlockUnlocked         UnlockStatus = "unlocked"
	UnlockAlreadyTriggered UnlockStatus = "already_triggered"
	UnlockFailed           UnlockStatus = "failed"
)

// UnlockResult reports what the cascade did. A failed unlock carries a
// recoverable error and never invalidates the grading that triggered it.
type UnlockResult struct {
	Status       UnlockStatus      `json:"status"`
	Triggered    bool              `json:"triggered"`
	NextLessonID *uint             `json:"nextLessonId,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Error        *util.EngineError `json:"error,omitempty"`
}

const cascadeTimeout = 10 * time.Second

type ProgressionService struct {
	LessonRepo     *repository.LessonRepository
	ActivityRepo   *repository.ActivityRepository
	AttemptRepo    *repository.AttemptRepository
	SubmissionRepo *repository.SubmissionRepository
	Unlocker       LessonUnlocker
	Policy         *PolicyStore
}

func NewProgressionService(
	lessonRepo *repository.LessonRepository,
	activityRepo *repository.ActivityRepository,
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	unlocker LessonUnlocker,
	policy *PolicyStore,
) *ProgressionService {
	return &ProgressionService{
		LessonRepo:     lessonRepo,
		ActivityRepo:   activityRepo,
		AttemptRepo:    attemptRepo,
		SubmissionRepo: submissionRepo,
		Unlocker:       unlocker,
		Policy:         policy,
	}
}

func notApplicable(reason string) *UnlockResult {
	monitoring.LessonUnlocks.WithLabelValues(string(UnlockNotApplicable)).Inc()
	return &UnlockResult{Status: UnlockNotApplicable, Reason: reason}
}

func unlockFailure(lessonID uint, err error) *UnlockResult {
	monitoring.LessonUnlocks.WithLabelValues(string(UnlockFailed)).Inc()
	return &UnlockResult{Status: UnlockFailed, Error: util.UnlockFailed(lessonID, err)}
}

// OnActivityTerminal unlocks the next lesson when activity is the last of its
// lesson and the lesson is not the course's last. It runs at most once per
// (activity, learner).
func (s *ProgressionService) OnActivityTerminal(ctx context.Context, learnerID uint, activity *model.Activity, outcome model.TerminalOutcome) *UnlockResult {
	ctx, span := tracing.StartSpan(ctx, "ProgressionService.OnActivityTerminal", learnerID, activity.ID)
	defer span.End()

	policy := s.Policy.Load()
	switch outcome {
	case model.OutcomePassed, model.OutcomeSubmissionReviewedPositive:
	case model.OutcomeExhausted:
		if !policy.UnlockOnExhausted {
			return notApplicable("unlock on exhausted attempts is disabled")
		}
	default:
		return notApplicable(fmt.Sprintf("outcome %q does not unlock", outcome))
	}

	siblings, err := s.ActivityRepo.ListByLesson(ctx, activity.LessonID)
	if err != nil {
		tracing.RecordError(span, err)
		return unlockFailure(activity.LessonID, err)
	}
	if !isLastActivity(siblings, activity.ID) {
		return notApplicable("activity is not the last of its lesson")
	}

	lessons, err := s.LessonRepo.ListByCourse(ctx, activity.CourseID)
	if err != nil {
		tracing.RecordError(span, err)
		return unlockFailure(activity.LessonID, err)
	}
	next, found := nextLesson(OrderLessons(lessons, policy.LegacyTitleOrdering), activity.LessonID)
	if !found {
		return unlockFailure(activity.LessonID, util.ErrLessonNotFound.With("lesson %d is not part of course %d", activity.LessonID, activity.CourseID))
	}
	if next == nil {
		return notApplicable("lesson is the last of the course")
	}

	event := &model.LessonUnlockEvent{
		ActivityID: activity.ID,
		LearnerID:  learnerID,
		LessonID:   activity.LessonID,
		Outcome:    outcome,
	}
	claimed, existing, err := s.LessonRepo.ClaimUnlock(ctx, event)
	if err != nil {
		tracing.RecordError(span, err)
		return unlockFailure(activity.LessonID, err)
	}
	if !claimed {
		monitoring.LessonUnlocks.WithLabelValues(string(UnlockAlreadyTriggered)).Inc()
		return &UnlockResult{
			Status:       UnlockAlreadyTriggered,
			NextLessonID: existing.NextLessonID,
			Reason:       "unlock already triggered for this activity",
		}
	}

	// 解锁调用不跟随请求取消，避免成绩已记录而解锁被中断
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cascadeTimeout)
	defer cancel()

	resp, err := s.Unlocker.UnlockNextLesson(callCtx, learnerID, activity.LessonID)
	if err == nil && (resp == nil || !resp.Success) {
		err = errors.New("unlocker reported failure")
	}
	if err != nil {
		log := logger.For(ctx, learnerID, activity.ID)
		if relErr := s.LessonRepo.ReleaseUnlock(callCtx, event.ID); relErr != nil {
			log.Error("Failed to release unlock claim", zap.Uint("eventId", event.ID), zap.Error(relErr))
		}
		log.Warn("Lesson unlock failed",
			zap.Uint("lessonId", activity.LessonID),
			zap.Error(err),
		)
		tracing.RecordError(span, err)
		return unlockFailure(activity.LessonID, err)
	}

	nextID := resp.NextLessonID
	if nextID == nil {
		nextID = &next.ID
	}
	if err := s.LessonRepo.CompleteUnlock(callCtx, event.ID, nextID); err != nil {
		logger.For(ctx, learnerID, activity.ID).Error("Failed to complete unlock claim", zap.Uint("eventId", event.ID), zap.Error(err))
	}

	monitoring.LessonUnlocks.WithLabelValues(string(UnlockUnlocked)).Inc()
	logger.For(ctx, learnerID, activity.ID).Info("Lesson unlocked",
		zap.Uint("nextLessonId", *nextID),
		zap.String("outcome", string(outcome)),
	)
	return &UnlockResult{Status: UnlockUnlocked, Triggered: true, NextLessonID: nextID}
}

// ResumeUnlock re-runs the cascade for an activity the learner already
// finished, deriving the outcome from stored attempts or the submission.
// It repairs unlocks that failed after grading; completed unlocks stay
// deduplicated by the claim ledger.
func (s *ProgressionService) ResumeUnlock(ctx context.Context, learnerID, activityID uint) (*UnlockResult, error) {
	ctx, span := tracing.StartSpan(ctx, "ProgressionService.ResumeUnlock", learnerID, activityID)
	defer span.End()

	activity, err := s.ActivityRepo.FindByID(ctx, activityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrActivityNotFound
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, util.Collaborator("load activity", err)
	}

	var outcome model.TerminalOutcome
	switch activity.Kind {
	case model.ActivityKindQuiz:
		attempts, err := s.AttemptRepo.ListByActivityAndLearner(ctx, activity.ID, learnerID)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, util.Collaborator("list attempts", err)
		}
		state := DeriveState(activity, attempts, s.Policy.Load())
		if !state.Terminal() {
			return notApplicable("activity has not reached a terminal state"), nil
		}
		outcome = outcomeForState(state)
	case model.ActivityKindDocumentUpload:
		sub, err := s.SubmissionRepo.FindByActivityAndLearner(ctx, activity.ID, learnerID)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, util.Collaborator("load submission", err)
		}
		if sub == nil || !sub.IsComplete() {
			return notApplicable("submission has not been reviewed positively"), nil
		}
		outcome = model.OutcomeSubmissionReviewedPositive
	default:
		return nil, util.ErrWrongActivityKind.With("activity %d has unknown kind %s", activity.ID, activity.Kind)
	}

	return s.OnActivityTerminal(ctx, learnerID, activity, outcome), nil
}

type LessonProgressView struct {
	LessonID            uint    `json:"lessonId"`
	Title               string  `json:"title"`
	Position            int     `json:"position"`
	Unlocked            bool    `json:"unlocked"`
	CompletedActivities int     `json:"completedActivities"`
	TotalActivities     int     `json:"totalActivities"`
	PercentComplete     float64 `json:"percentComplete"`
}

// GetLessonProgress lists the course lessons in order with the learner's
// unlock and completion status. The first lesson is always unlocked.
func (s *ProgressionService) GetLessonProgress(ctx context.Context, courseID, learnerID uint) ([]LessonProgressView, error) {
	policy := s.Policy.Load()

	lessons, err := s.LessonRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, util.Collaborator("load lessons", err)
	}
	if len(lessons) == 0 {
		return []LessonProgressView{}, nil
	}
	ordered := OrderLessons(lessons, policy.LegacyTitleOrdering)

	lessonIDs := make([]uint, len(ordered))
	for i, l := range ordered {
		lessonIDs[i] = l.ID
	}
	progress, err := s.LessonRepo.ListProgress(ctx, learnerID, lessonIDs)
	if err != nil {
		return nil, util.Collaborator("load lesson progress", err)
	}
	unlocked := make(map[uint]bool, len(progress))
	for _, p := range progress {
		if p.Unlocked {
			unlocked[p.LessonID] = true
		}
	}

	activities, err := s.ActivityRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, util.Collaborator("load activities", err)
	}
	activityIDs := make([]uint, len(activities))
	for i, a := range activities {
		activityIDs[i] = a.ID
	}
	passed, err := s.AttemptRepo.ListPassedByLearner(ctx, learnerID, activityIDs)
	if err != nil {
		return nil, util.Collaborator("load attempts", err)
	}
	subs, err := s.SubmissionRepo.ListByLearner(ctx, learnerID, activityIDs)
	if err != nil {
		return nil, util.Collaborator("load submissions", err)
	}

	done := make(map[uint]bool)
	for _, a := range passed {
		done[a.ActivityID] = true
	}
	for i := range subs {
		if subs[i].IsComplete() {
			done[subs[i].ActivityID] = true
		}
	}

	total := make(map[uint]int)
	completed := make(map[uint]int)
	for _, a := range activities {
		total[a.LessonID]++
		if done[a.ID] {
			completed[a.LessonID]++
		}
	}

	views := make([]LessonProgressView, len(ordered))
	for i, l := range ordered {
		v := LessonProgressView{
			LessonID:            l.ID,
			Title:               l.Title,
			Position:            i + 1,
			Unlocked:            i == 0 || unlocked[l.ID],
			CompletedActivities: completed[l.ID],
			TotalActivities:     total[l.ID],
		}
		if v.TotalActivities > 0 {
			v.PercentComplete = util.RoundHalfUp(float64(v.CompletedActivities)*100/float64(v.TotalActivities), 1)
		}
		views[i] = v
	}
	return views, nil
}

// CatalogUnlocker is the in-process LessonUnlocker: it records the next
// lesson as unlocked in lesson_progress.
type CatalogUnlocker struct {
	LessonRepo *repository.LessonRepository
	Policy     *PolicyStore
}

func NewCatalogUnlocker(lessonRepo *repository.LessonRepository, policy *PolicyStore) *CatalogUnlocker {
	return &CatalogUnlocker{LessonRepo: lessonRepo, Policy: policy}
}

func (u *CatalogUnlocker) UnlockNextLesson(ctx context.Context, learnerID, lessonID uint) (*UnlockResponse, error) {
	lesson, err := u.LessonRepo.FindByID(ctx, lessonID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	lessons, err := u.LessonRepo.ListByCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	next, _ := nextLesson(OrderLessons(lessons, u.Policy.Load().LegacyTitleOrdering), lessonID)
	if next == nil {
		return &UnlockResponse{Success: false}, nil
	}
	if err := u.LessonRepo.UnlockForLearner(ctx, lesson.CourseID, next.ID, learnerID); err != nil {
		return nil, err
	}
	return &UnlockResponse{Success: true, NextLessonID: &next.ID}, nil
}
