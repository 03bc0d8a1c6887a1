package service

import (
	"sync/atomic"

	"course_engine_backend/internal/config"
)

// GradingPolicy is the snapshot of grading knobs a single operation runs with.
type GradingPolicy struct {
	PassingScore         float64
	ReviewedAttemptLimit int
	UnlockOnExhausted    bool
	LegacyTitleOrdering  bool
	DefaultCombine       string
}

func DefaultGradingPolicy() GradingPolicy {
	return GradingPolicy{
		PassingScore:         3.0,
		ReviewedAttemptLimit: 3,
		UnlockOnExhausted:    true,
		LegacyTitleOrdering:  true,
		DefaultCombine:       CombineMean,
	}
}

func PolicyFromConfig(cfg config.GradingConfig) GradingPolicy {
	p := GradingPolicy{
		PassingScore:         cfg.PassingScore,
		ReviewedAttemptLimit: cfg.ReviewedAttemptLimit,
		UnlockOnExhausted:    cfg.UnlockOnExhausted,
		LegacyTitleOrdering:  cfg.LegacyTitleOrdering,
		DefaultCombine:       cfg.DefaultCombineStrategy,
	}
	if p.ReviewedAttemptLimit < 1 {
		p.ReviewedAttemptLimit = 1
	}
	if _, ok := combineFuncs[p.DefaultCombine]; !ok {
		p.DefaultCombine = CombineMean
	}
	return p
}

// PolicyStore holds the current policy; config reloads swap it atomically.
type PolicyStore struct {
	v atomic.Pointer[GradingPolicy]
}

func NewPolicyStore(p GradingPolicy) *PolicyStore {
	s := &PolicyStore{}
	s.Store(p)
	return s
}

func (s *PolicyStore) Load() GradingPolicy {
	if s == nil {
		return DefaultGradingPolicy()
	}
	if p := s.v.Load(); p != nil {
		return *p
	}
	return DefaultGradingPolicy()
}

func (s *PolicyStore) Store(p GradingPolicy) {
	s.v.Store(&p)
}
