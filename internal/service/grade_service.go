package service

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"course_engine_backend/internal/model"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/tracing"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	CombineMean   = "mean"
	CombineMax    = "max"
	CombineLatest = "latest"
)

// CombineFunc folds one parameter's activity grades, oldest first, into a
// single parameter grade. It is never called with an empty slice.
type CombineFunc func(grades []float64) float64

var combineNames = []string{CombineMean, CombineMax, CombineLatest}

var combineFuncs = map[string]CombineFunc{
	CombineMean: func(grades []float64) float64 {
		var sum float64
		for _, g := range grades {
			sum += g
		}
		return sum / float64(len(grades))
	},
	CombineMax: func(grades []float64) float64 {
		m := grades[0]
		for _, g := range grades[1:] {
			if g > m {
				m = g
			}
		}
		return m
	},
	CombineLatest: func(grades []float64) float64 {
		return grades[len(grades)-1]
	},
}

func ParseCombineStrategy(name string) (CombineFunc, error) {
	fn, ok := combineFuncs[name]
	if !ok {
		return nil, util.ErrInvalidCombine.With("unknown combine strategy %q, want one of %v", name, combineNames)
	}
	return fn, nil
}

type ParameterGrade struct {
	ParameterID      uint    `json:"parameterId"`
	Name             string  `json:"name"`
	WeightPercent    float64 `json:"weightPercent"`
	Grade            float64 `json:"grade"`
	Contribution     float64 `json:"contribution"`
	GradedActivities int     `json:"gradedActivities"`
	TotalActivities  int     `json:"totalActivities"`
}

type CourseGradeSummary struct {
	CourseID            uint             `json:"courseId"`
	LearnerID           uint             `json:"learnerId"`
	Combine             string           `json:"combine"`
	FinalGrade          float64          `json:"finalGrade"`
	FormattedFinalGrade string           `json:"formattedFinalGrade"`
	Completed           bool             `json:"completed"`
	Parameters          []ParameterGrade `json:"parameters"`
	ComputedAt          time.Time        `json:"computedAt"`
}

type GradeService struct {
	ActivityRepo   *repository.ActivityRepository
	ParameterRepo  *repository.GradeParameterRepository
	AttemptRepo    *repository.AttemptRepository
	SubmissionRepo *repository.SubmissionRepository
	Cache          GradeCache
	Policy         *PolicyStore

	cacheTTL atomic.Int64
}

func NewGradeService(
	activityRepo *repository.ActivityRepository,
	parameterRepo *repository.GradeParameterRepository,
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	cache GradeCache,
	policy *PolicyStore,
	cacheTTL time.Duration,
) *GradeService {
	s := &GradeService{
		ActivityRepo:   activityRepo,
		ParameterRepo:  parameterRepo,
		AttemptRepo:    attemptRepo,
		SubmissionRepo: submissionRepo,
		Cache:          cache,
		Policy:         policy,
	}
	s.SetCacheTTL(cacheTTL)
	return s
}

func (s *GradeService) SetCacheTTL(ttl time.Duration) {
	s.cacheTTL.Store(int64(ttl))
}

// GetGradeSummary returns the learner's course summary, served from cache for
// up to the cache TTL. An empty combine selects the configured default.
func (s *GradeService) GetGradeSummary(ctx context.Context, courseID, learnerID uint, combine string) (*CourseGradeSummary, error) {
	if combine == "" {
		combine = s.Policy.Load().DefaultCombine
	}
	if _, err := ParseCombineStrategy(combine); err != nil {
		return nil, err
	}

	key := gradeSummaryKey(courseID, learnerID, combine)
	ttl := time.Duration(s.cacheTTL.Load())
	if s.Cache != nil && ttl > 0 {
		cached, ok, err := s.Cache.Get(ctx, key)
		switch {
		case err != nil:
			monitoring.GradeSummaryCache.WithLabelValues("error").Inc()
			logger.Ctx(ctx).Warn("Grade summary cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			monitoring.GradeSummaryCache.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			monitoring.GradeSummaryCache.WithLabelValues("miss").Inc()
		}
	}

	summary, err := s.Summarize(ctx, courseID, learnerID, combine)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil && ttl > 0 {
		if err := s.Cache.Set(ctx, key, summary, ttl); err != nil {
			logger.Ctx(ctx).Warn("Grade summary cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops every cached summary of the (course, learner) pair.
func (s *GradeService) Invalidate(ctx context.Context, courseID, learnerID uint) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, gradeSummaryKeys(courseID, learnerID)...); err != nil {
		logger.For(ctx, learnerID, 0).Warn("Grade summary cache invalidation failed",
			zap.Uint("courseId", courseID),
			zap.Error(err),
		)
	}
}

// Summarize computes the summary from storage, bypassing the cache.
func (s *GradeService) Summarize(ctx context.Context, courseID, learnerID uint, combine string) (*CourseGradeSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "GradeService.Summarize", learnerID, 0)
	defer span.End()

	fn, err := ParseCombineStrategy(combine)
	if err != nil {
		return nil, err
	}

	var (
		activities []model.Activity
		params     []model.GradeParameter
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activities, err = s.ActivityRepo.ListByCourse(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		params, err = s.ParameterRepo.ListByCourse(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		return nil, util.Collaborator("load course grading data", err)
	}

	activityIDs := make([]uint, len(activities))
	for i, a := range activities {
		activityIDs[i] = a.ID
	}

	var (
		passed []model.AttemptRecord
		subs   []model.Submission
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		passed, err = s.AttemptRepo.ListPassedByLearner(gctx, learnerID, activityIDs)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.SubmissionRepo.ListByLearner(gctx, learnerID, activityIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		return nil, util.Collaborator("load learner grades", err)
	}

	summary := AggregateGrades(activities, params, passed, subs, fn, s.Policy.Load())
	summary.CourseID = courseID
	summary.LearnerID = learnerID
	summary.Combine = combine
	return summary, nil
}

type terminalGrade struct {
	grade float64
	at    time.Time
}

// terminalGrades maps activity id to its terminal grade: the passing attempt
// score for quizzes, the reviewed grade (0 included) for documents.
func terminalGrades(activities []model.Activity, passed []model.AttemptRecord, subs []model.Submission) map[uint]terminalGrade {
	kinds := make(map[uint]model.ActivityKind, len(activities))
	for _, a := range activities {
		kinds[a.ID] = a.Kind
	}
	out := make(map[uint]terminalGrade)
	for _, a := range passed {
		if kinds[a.ActivityID] != model.ActivityKindQuiz || !a.Passed {
			continue
		}
		if cur, ok := out[a.ActivityID]; ok && cur.at.After(a.CreatedAt) {
			continue
		}
		out[a.ActivityID] = terminalGrade{grade: a.Score, at: a.CreatedAt}
	}
	for i := range subs {
		sub := &subs[i]
		if kinds[sub.ActivityID] != model.ActivityKindDocumentUpload || !sub.IsGraded() {
			continue
		}
		at := sub.SubmittedAt
		if sub.ReviewedAt != nil {
			at = *sub.ReviewedAt
		}
		out[sub.ActivityID] = terminalGrade{grade: *sub.Grade, at: at}
	}
	return out
}

// AggregateGrades is the pure part of Summarize.
func AggregateGrades(
	activities []model.Activity,
	params []model.GradeParameter,
	passed []model.AttemptRecord,
	subs []model.Submission,
	combine CombineFunc,
	policy GradingPolicy,
) *CourseGradeSummary {
	terminal := terminalGrades(activities, passed, subs)

	byParam := make(map[uint][]terminalGrade)
	totals := make(map[uint]int)
	for _, a := range activities {
		totals[a.ParameterID]++
		if tg, ok := terminal[a.ID]; ok {
			byParam[a.ParameterID] = append(byParam[a.ParameterID], tg)
		}
	}

	summary := &CourseGradeSummary{
		Parameters: make([]ParameterGrade, 0, len(params)),
		ComputedAt: time.Now(),
	}
	allGraded := len(params) > 0
	var final float64
	for _, p := range params {
		pg := ParameterGrade{
			ParameterID:     p.ID,
			Name:            p.Name,
			WeightPercent:   p.WeightPercent,
			TotalActivities: totals[p.ID],
		}
		grades := byParam[p.ID]
		pg.GradedActivities = len(grades)
		if len(grades) == 0 {
			allGraded = false
		} else {
			sort.SliceStable(grades, func(i, j int) bool { return grades[i].at.Before(grades[j].at) })
			values := make([]float64, len(grades))
			for i, g := range grades {
				values[i] = g.grade
			}
			pg.Grade = util.RoundHalfUp(combine(values), 2)
			pg.Contribution = util.RoundHalfUp(pg.Grade*p.WeightPercent/100, 2)
			final += pg.Grade * p.WeightPercent / 100
		}
		summary.Parameters = append(summary.Parameters, pg)
	}

	summary.FinalGrade = util.RoundHalfUp(util.Clamp(final, util.MinScore, util.MaxScore), 2)
	summary.FormattedFinalGrade = util.FormatScore(summary.FinalGrade)
	summary.Completed = allGraded && summary.FinalGrade >= policy.PassingScore
	return summary
}
