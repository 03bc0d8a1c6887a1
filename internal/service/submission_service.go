package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmissionService struct {
	ActivityRepo   *repository.ActivityRepository
	SubmissionRepo *repository.SubmissionRepository
	Storage        *StorageService
	Progression    *ProgressionService
	Grades         SummaryInvalidator
	Validator      *validator.Validate
	MaxUploadBytes int64
}

func NewSubmissionService(
	activityRepo *repository.ActivityRepository,
	submissionRepo *repository.SubmissionRepository,
	storage *StorageService,
	progression *ProgressionService,
	grades SummaryInvalidator,
) *SubmissionService {
	s := &SubmissionService{
		ActivityRepo:   activityRepo,
		SubmissionRepo: submissionRepo,
		Storage:        storage,
		Progression:    progression,
		Grades:         grades,
		Validator:      validator.New(),
	}
	if storage != nil {
		s.MaxUploadBytes = storage.MaxUploadBytes
	}
	return s
}

type SubmitDocumentRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=file url"`
	Locator     string `json:"locator" validate:"required,max=1024"`
	FileName    string `json:"fileName" validate:"omitempty,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,max=128"`
	Size        int64  `json:"size" validate:"gte=0"`
	// Confirm must be set to overwrite a reviewed submission.
	Confirm bool `json:"confirm"`
}

type ReviewRequest struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

type PresignRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=128"`
	Size        int64  `json:"size" validate:"gte=0"`
}

type SubmissionResult struct {
	Submission *model.Submission `json:"submission"`
	// DiscardedGrade is the reviewed grade dropped by this resubmission.
	DiscardedGrade *float64 `json:"discardedGrade,omitempty"`
	Resubmitted    bool     `json:"resubmitted"`
}

type ReviewResult struct {
	Submission *model.Submission `json:"submission"`
	Completed  bool              `json:"completed"`
	Unlock     *UnlockResult     `json:"unlock,omitempty"`
}

func (s *SubmissionService) validate(req interface{}) error {
	if err := s.Validator.Struct(req); err != nil {
		return util.ErrInvalidFileMetadata.With("%s", err.Error())
	}
	return nil
}

func (s *SubmissionService) loadDocumentActivity(ctx context.Context, activityID uint) (*model.Activity, error) {
	activity, err := s.ActivityRepo.FindByID(ctx, activityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrActivityNotFound
	}
	if err != nil {
		return nil, util.Collaborator("load activity", err)
	}
	if activity.Kind != model.ActivityKindDocumentUpload {
		return nil, util.ErrWrongActivityKind.With("activity %d is a %s activity", activity.ID, activity.Kind)
	}
	return activity, nil
}

func (s *SubmissionService) validateDocument(req SubmitDocumentRequest) (model.SubmissionKind, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}
	kind, err := model.ParseSubmissionKind(req.Kind)
	if err != nil {
		return "", util.ErrInvalidFileMetadata.With("%s", err.Error())
	}
	switch kind {
	case model.SubmissionKindFile:
		if err := util.ValidateFileMetadata(req.FileName, req.ContentType, req.Size, s.MaxUploadBytes); err != nil {
			return "", err
		}
		if strings.Contains(req.Locator, "://") || strings.Contains(req.Locator, "..") {
			return "", util.ErrInvalidFileMetadata.With("file locator must be an object key")
		}
	case model.SubmissionKindURL:
		if err := util.ValidateSubmissionURL(req.Locator); err != nil {
			return "", err
		}
	}
	return kind, nil
}

// SubmitDocument records the learner's active submission, replacing any
// previous one. Replacing a reviewed submission requires req.Confirm.
func (s *SubmissionService) SubmitDocument(ctx context.Context, learnerID, activityID uint, req SubmitDocumentRequest) (*SubmissionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SubmissionService.SubmitDocument", learnerID, activityID)
	defer span.End()

	kind, err := s.validateDocument(req)
	if err != nil {
		return nil, err
	}

	activity, err := s.loadDocumentActivity(ctx, activityID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	existing, err := s.SubmissionRepo.FindByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil {
		err = util.Collaborator("load submission", err)
		tracing.RecordError(span, err)
		return nil, err
	}
	result := &SubmissionResult{Resubmitted: existing != nil}
	if existing != nil && existing.Status == model.SubmissionReviewed {
		if !req.Confirm {
			return nil, util.ErrConfirmationRequired
		}
		result.DiscardedGrade = existing.Grade
	}

	sub := &model.Submission{
		ActivityID:  activityID,
		LearnerID:   learnerID,
		Kind:        kind,
		Locator:     strings.TrimSpace(req.Locator),
		Status:      model.SubmissionPending,
		SubmittedAt: time.Now(),
	}
	if kind == model.SubmissionKindFile {
		sub.FileName = strings.TrimSpace(req.FileName)
		sub.ContentType = req.ContentType
		sub.Size = req.Size
	}
	if err := s.SubmissionRepo.Put(ctx, sub); err != nil {
		err = util.Collaborator("store submission", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	log := logger.For(ctx, learnerID, activityID)
	if existing != nil && existing.Kind == model.SubmissionKindFile && existing.Locator != sub.Locator && s.Storage != nil {
		// 旧文件删除失败不影响新提交
		if err := s.Storage.Delete(ctx, existing.Locator); err != nil {
			log.Warn("Failed to delete superseded submission file", zap.String("locator", existing.Locator), zap.Error(err))
		}
	}

	stored, err := s.SubmissionRepo.FindByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil || stored == nil {
		stored = sub
	}
	result.Submission = stored

	event := "submit"
	if result.Resubmitted {
		event = "resubmit"
	}
	monitoring.SubmissionEvents.WithLabelValues(event).Inc()
	log.Info("Submission stored",
		zap.String("kind", string(kind)),
		zap.Bool("resubmitted", result.Resubmitted),
	)

	if s.Grades != nil {
		s.Grades.Invalidate(ctx, activity.CourseID, learnerID)
	}
	return result, nil
}

// ReviewSubmission grades a pending submission. A positive grade completes the
// activity and runs the progression cascade.
func (s *SubmissionService) ReviewSubmission(ctx context.Context, reviewerID, activityID, learnerID uint, req ReviewRequest) (*ReviewResult, error) {
	ctx, span := tracing.StartSpan(ctx, "SubmissionService.ReviewSubmission", learnerID, activityID)
	defer span.End()

	if err := s.Validator.Struct(req); err != nil {
		return nil, util.ErrInvalidGrade.With("%s", err.Error())
	}
	grade := *req.Grade
	if grade < util.MinScore || grade > util.MaxScore {
		return nil, util.ErrInvalidGrade.With("grade %v outside [0,5]", grade)
	}

	activity, err := s.loadDocumentActivity(ctx, activityID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	sub, err := s.SubmissionRepo.FindByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil {
		err = util.Collaborator("load submission", err)
		tracing.RecordError(span, err)
		return nil, err
	}
	if sub == nil {
		return nil, util.ErrSubmissionNotFound
	}
	if sub.Status != model.SubmissionPending {
		return nil, util.ErrInvalidTransition.With("submission is %s, only pending submissions can be reviewed", sub.Status)
	}

	if err := s.SubmissionRepo.MarkReviewed(ctx, sub.ID, grade, req.Feedback, reviewerID); err != nil {
		if errors.Is(err, util.ErrInvalidTransition) {
			return nil, err
		}
		err = util.Collaborator("review submission", err)
		tracing.RecordError(span, err)
		return nil, err
	}

	log := logger.For(ctx, learnerID, activityID)
	reviewed, err := s.SubmissionRepo.FindByID(ctx, sub.ID)
	if err != nil {
		// 评审已提交，重读失败时返回内存中的结果
		log.Warn("Failed to reload reviewed submission", zap.Uint("submissionId", sub.ID), zap.Error(err))
		reviewed = markedReviewed(sub, grade, req.Feedback, reviewerID)
	}
	monitoring.SubmissionEvents.WithLabelValues("review").Inc()
	log.Info("Submission reviewed",
		zap.Uint("reviewerId", reviewerID),
		zap.Float64("grade", grade),
	)

	if s.Grades != nil {
		s.Grades.Invalidate(ctx, activity.CourseID, learnerID)
	}

	result := &ReviewResult{Submission: reviewed, Completed: reviewed.IsComplete()}
	if result.Completed && s.Progression != nil {
		result.Unlock = s.Progression.OnActivityTerminal(ctx, learnerID, activity, model.OutcomeSubmissionReviewedPositive)
	}
	return result, nil
}

func markedReviewed(sub *model.Submission, grade float64, feedback *string, reviewerID uint) *model.Submission {
	out := *sub
	now := time.Now()
	out.Status = model.SubmissionReviewed
	out.Grade = &grade
	out.Feedback = feedback
	out.ReviewerID = &reviewerID
	out.ReviewedAt = &now
	return &out
}

func (s *SubmissionService) GetSubmission(ctx context.Context, learnerID, activityID uint) (*model.Submission, error) {
	if _, err := s.loadDocumentActivity(ctx, activityID); err != nil {
		return nil, err
	}
	sub, err := s.SubmissionRepo.FindByActivityAndLearner(ctx, activityID, learnerID)
	if err != nil {
		return nil, util.Collaborator("load submission", err)
	}
	if sub == nil {
		return nil, util.ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *SubmissionService) ListPending(ctx context.Context, activityID uint) ([]model.Submission, error) {
	if _, err := s.loadDocumentActivity(ctx, activityID); err != nil {
		return nil, err
	}
	subs, err := s.SubmissionRepo.ListPendingByActivity(ctx, activityID)
	if err != nil {
		return nil, util.Collaborator("list pending submissions", err)
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}

// PresignUpload issues a direct-to-storage upload target for a submission file.
func (s *SubmissionService) PresignUpload(ctx context.Context, learnerID, activityID uint, req PresignRequest) (*PresignedUpload, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := util.ValidateFileMetadata(req.FileName, req.ContentType, req.Size, s.MaxUploadBytes); err != nil {
		return nil, err
	}
	if _, err := s.loadDocumentActivity(ctx, activityID); err != nil {
		return nil, err
	}
	key := SubmissionObjectKey(activityID, learnerID, req.FileName)
	upload, err := s.Storage.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, util.Collaborator("presign upload", err)
	}
	return upload, nil
}
