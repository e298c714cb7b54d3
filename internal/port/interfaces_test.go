package port

import (
	"context"
	"testing"
	"time"

	"git-gauge/internal/domain"

	"github.com/stretchr/testify/assert"
)

// 编译期检查：最小实现能满足接口定义
var (
	_ RepositoryHost  = (*stubHost)(nil)
	_ ReportGenerator = (*stubGenerator)(nil)
	_ StatusCache     = (*stubCache)(nil)
	_ JobQueue        = (*stubQueue)(nil)
	_ Scorer          = (*stubScorer)(nil)
	_ Notifier        = (*stubNotifier)(nil)
)

type stubNotifier struct{ calls int }

func (s *stubNotifier) NotifyJob(ctx context.Context, job *domain.Job, report *domain.AnalysisReport) error {
	s.calls++
	return nil
}

type stubHost struct{}

func (s *stubHost) ListRepositories(ctx context.Context, username string) ([]*domain.RepositoryCandidate, error) {
	return nil, nil
}

func (s *stubHost) GetLanguages(ctx context.Context, owner, repo string) (domain.Languages, error) {
	return domain.Languages{}, nil
}

func (s *stubHost) GetReadme(ctx context.Context, owner, repo string) (domain.Readme, error) {
	return domain.Readme{}, nil
}

func (s *stubHost) ListCodeFiles(ctx context.Context, owner, repo string, limit int) ([]domain.CodeFile, error) {
	return nil, nil
}

type stubGenerator struct{}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	return "{}", nil
}
func (s *stubGenerator) Provider() string { return "stub" }
func (s *stubGenerator) Model() string    { return "stub-model" }

type stubCache struct{ m map[string]string }

func (s *stubCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.m[key] = value
	return nil
}

func (s *stubCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}

type stubQueue struct{ ids []string }

func (s *stubQueue) Enqueue(ctx context.Context, jobID string) error {
	s.ids = append(s.ids, jobID)
	return nil
}

func (s *stubQueue) Dequeue(ctx context.Context, wait time.Duration) (string, bool, error) {
	if len(s.ids) == 0 {
		return "", false, nil
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, true, nil
}

func (s *stubQueue) Len(ctx context.Context) (int, error) { return len(s.ids), nil }

type stubScorer struct{}

func (s *stubScorer) Score(ctx context.Context, username string, skills []string, opts domain.ScoreOptions) ([]*domain.ScoredRepository, error) {
	return nil, nil
}

func TestInterfaces_StubBehaviour(t *testing.T) {
	ctx := context.Background()

	c := &stubCache{m: map[string]string{}}
	_, ok, err := c.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	q := &stubQueue{}
	_ = q.Enqueue(ctx, "a")
	_ = q.Enqueue(ctx, "b")
	id, ok, _ := q.Dequeue(ctx, time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	n, _ := q.Len(ctx)
	assert.Equal(t, 1, n)
}
