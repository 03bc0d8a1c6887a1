package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"course_engine_backend/internal/util"

	"github.com/go-redis/redis/v8"
)

// GradeCache stores computed summaries for a short window. Misses are
// reported with ok=false and a nil error.
type GradeCache interface {
	Get(ctx context.Context, key string) (*CourseGradeSummary, bool, error)
	Set(ctx context.Context, key string, summary *CourseGradeSummary, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func gradeSummaryKey(courseID, learnerID uint, combine string) string {
	return fmt.Sprintf("%s:%d:%d:%s", util.GradeSummaryCacheKeyPrefix, courseID, learnerID, combine)
}

// gradeSummaryKeys lists every key a (course, learner) pair can occupy.
func gradeSummaryKeys(courseID, learnerID uint) []string {
	keys := make([]string, 0, len(combineNames))
	for _, name := range combineNames {
		keys = append(keys, gradeSummaryKey(courseID, learnerID, name))
	}
	return keys
}

type RedisGradeCache struct {
	Client *redis.Client
}

func NewRedisGradeCache(client *redis.Client) *RedisGradeCache {
	return &RedisGradeCache{Client: client}
}

func (c *RedisGradeCache) Get(ctx context.Context, key string) (*CourseGradeSummary, bool, error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var summary CourseGradeSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisGradeCache) Set(ctx context.Context, key string, summary *CourseGradeSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisGradeCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	summary   CourseGradeSummary
	expiresAt time.Time
}

// MemoryGradeCache is the single-process cache used when redis is not configured.
type MemoryGradeCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryGradeCache() *MemoryGradeCache {
	return &MemoryGradeCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryGradeCache) Get(_ context.Context, key string) (*CourseGradeSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return cloneSummary(&e.summary), true, nil
}

func (c *MemoryGradeCache) Set(_ context.Context, key string, summary *CourseGradeSummary, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{summary: *cloneSummary(summary), expiresAt: c.now().Add(ttl)}
	return nil
}

// cloneSummary 复制参数切片，缓存条目不与调用方共享底层数组
func cloneSummary(s *CourseGradeSummary) *CourseGradeSummary {
	out := *s
	if s.Parameters != nil {
		out.Parameters = append([]ParameterGrade(nil), s.Parameters...)
	}
	return &out
}

func (c *MemoryGradeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}
