package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/port"

	"github.com/stretchr/testify/mock"
)

// fakeStore 内存版 RecordStore，状态转移规则与数据库实现一致
type fakeStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	artifacts map[string]*domain.JobArtifact

	getCalls     int
	artifactErr  error
	transitions  []domain.JobStatus
	failComplete bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:      map[string]*domain.Job{},
		artifacts: map[string]*domain.JobArtifact{},
	}
}

func (s *fakeStore) put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.jobs[cp.ID] = &cp
}

func (s *fakeStore) job(id string) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.jobs[id]
	return &cp
}

func (s *fakeStore) CreateJob(ctx context.Context, job *domain.Job) error {
	s.put(job)
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	job, ok := s.jobs[id]
	if !ok {
		return nil, common.NewError(common.ErrCodeNotFound, "job "+id+" not found")
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus, code, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransitionTo(status) {
		return common.NewError(common.ErrCodeNotFound, "job not found or cannot move")
	}
	if status == domain.JobCompleted && s.failComplete {
		return common.NewError(common.ErrCodeDatabase, "write failed")
	}
	job.Status = status
	job.ErrorCode = code
	job.ErrorMessage = msg
	job.UpdatedAt = time.Now()
	s.transitions = append(s.transitions, status)
	return nil
}

func (s *fakeStore) ListRecentJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) ListStaleJobs(ctx context.Context, status domain.JobStatus, before time.Time, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == status && j.UpdatedAt.Before(before) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *fakeStore) TouchJob(ctx context.Context, id string, status domain.JobStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != status {
		return common.NewError(common.ErrCodeNotFound, "job not found or status changed")
	}
	job.UpdatedAt = at
	return nil
}

func (s *fakeStore) CreateArtifact(ctx context.Context, artifact *domain.JobArtifact) error {
	if s.artifactErr != nil {
		return s.artifactErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if artifact.ID == "" {
		artifact.ID = "art-" + artifact.JobID
	}
	artifact.GeneratedAt = time.Now()
	s.artifacts[artifact.JobID] = artifact
	return nil
}

func (s *fakeStore) GetArtifactByJobID(ctx context.Context, jobID string) (*domain.JobArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[jobID]
	if !ok {
		return nil, common.NewError(common.ErrCodeNotFound, "artifact not found")
	}
	return a, nil
}

// fakeHost 固定返回给定仓库的 RepositoryHost
type fakeHost struct {
	repos   []*domain.RepositoryCandidate
	langs   map[string]map[string]int
	readmes map[string]string
	listErr error
}

func (h *fakeHost) ListRepositories(ctx context.Context, username string) ([]*domain.RepositoryCandidate, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	out := make([]*domain.RepositoryCandidate, 0, len(h.repos))
	for _, r := range h.repos {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (h *fakeHost) GetLanguages(ctx context.Context, owner, repo string) (domain.Languages, error) {
	if l, ok := h.langs[repo]; ok {
		return domain.Languages{Found: true, Bytes: l}, nil
	}
	return domain.Languages{}, nil
}

func (h *fakeHost) GetReadme(ctx context.Context, owner, repo string) (domain.Readme, error) {
	if r, ok := h.readmes[repo]; ok {
		return domain.Readme{Found: true, Content: r}, nil
	}
	return domain.Readme{}, nil
}

func (h *fakeHost) ListCodeFiles(ctx context.Context, owner, repo string, limit int) ([]domain.CodeFile, error) {
	return nil, nil
}

// MockGenerator 模拟 ReportGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts port.GenerationOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Provider() string { return "mock" }
func (m *MockGenerator) Model() string    { return "mock-model" }

// MockScorer 模拟 Scorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, username string, skills []string, opts domain.ScoreOptions) ([]*domain.ScoredRepository, error) {
	args := m.Called(ctx, username, skills, opts)
	repos, _ := args.Get(0).([]*domain.ScoredRepository)
	return repos, args.Error(1)
}

// MockSynthesizer 模拟 Synthesizer
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, in domain.SynthesisInput) (*domain.AnalysisReport, error) {
	args := m.Called(ctx, in)
	report, _ := args.Get(0).(*domain.AnalysisReport)
	return report, args.Error(1)
}

// MockNotifier 模拟 Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyJob(ctx context.Context, job *domain.Job, report *domain.AnalysisReport) error {
	args := m.Called(ctx, job, report)
	return args.Error(0)
}

func scoredRepo(name string, score int, langs map[string]int, stars int) *domain.ScoredRepository {
	return &domain.ScoredRepository{
		RepositoryCandidate: domain.RepositoryCandidate{
			Owner:     "octocat",
			Name:      name,
			FullName:  "octocat/" + name,
			Languages: langs,
			Stars:     stars,
			UpdatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		Score: score,
	}
}
