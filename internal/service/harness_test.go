package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"course_engine_backend/internal/config"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/testutil"

	"gorm.io/gorm"
)

// recordingUnlocker counts calls and can be told to fail.
type recordingUnlocker struct {
	mu    sync.Mutex
	inner service.LessonUnlocker
	calls []uint
	fail  bool
}

func (u *recordingUnlocker) UnlockNextLesson(ctx context.Context, learnerID, lessonID uint) (*service.UnlockResponse, error) {
	u.mu.Lock()
	u.calls = append(u.calls, lessonID)
	fail := u.fail
	u.mu.Unlock()
	if fail {
		return nil, errors.New("catalog unavailable")
	}
	return u.inner.UnlockNextLesson(ctx, learnerID, lessonID)
}

func (u *recordingUnlocker) setFail(v bool) {
	u.mu.Lock()
	u.fail = v
	u.mu.Unlock()
}

func (u *recordingUnlocker) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type harness struct {
	ctx         context.Context
	db          *gorm.DB
	policy      *service.PolicyStore
	unlocker    *recordingUnlocker
	cache       *service.MemoryGradeCache
	lessons     *repository.LessonRepository
	attemptRepo *repository.AttemptRepository
	subRepo     *repository.SubmissionRepository
	grades      *service.GradeService
	progression *service.ProgressionService
	attempts    *service.AttemptService
	submissions *service.SubmissionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)

	h := &harness{
		ctx:         context.Background(),
		db:          db,
		policy:      service.NewPolicyStore(service.DefaultGradingPolicy()),
		cache:       service.NewMemoryGradeCache(),
		lessons:     repository.NewLessonRepository(db),
		attemptRepo: repository.NewAttemptRepository(db),
		subRepo:     repository.NewSubmissionRepository(db),
	}
	activities := repository.NewActivityRepository(db)
	params := repository.NewGradeParameterRepository(db)

	h.unlocker = &recordingUnlocker{inner: service.NewCatalogUnlocker(h.lessons, h.policy)}
	h.grades = service.NewGradeService(activities, params, h.attemptRepo, h.subRepo, h.cache, h.policy, 5*time.Second)
	h.progression = service.NewProgressionService(h.lessons, activities, h.attemptRepo, h.subRepo, h.unlocker, h.policy)
	h.attempts = service.NewAttemptService(activities, h.attemptRepo, h.progression, h.grades, h.policy)

	storage := service.NewStorageService(&config.Config{Storage: config.StorageConfig{Type: "local", MaxUploadMB: 10}})
	h.submissions = service.NewSubmissionService(activities, h.subRepo, storage, h.progression, h.grades)
	return h
}

func (h *harness) setPolicy(mutate func(p *service.GradingPolicy)) {
	p := h.policy.Load()
	mutate(&p)
	h.policy.Store(p)
}
