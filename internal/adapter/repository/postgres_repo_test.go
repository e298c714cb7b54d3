package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	// 创建 GORM 数据库实例，禁用日志以减少输出
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

var jobColumns = []string{
	"id", "github_username", "skills", "status", "created_at", "updated_at",
	"error_code", "error_message", "repo_limit", "max_files_per_repo", "languages", "notes_for_ai",
}

func TestPostgresRepo_CreateJob(t *testing.T) {
	tests := []struct {
		name      string
		job       *domain.Job
		setupMock func(sqlmock.Sqlmock)
		wantCode  string
	}{
		{
			name: "成功创建任务",
			job: &domain.Job{
				ID:             "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a10",
				GitHubUsername: "bob",
				Skills:         []string{"Rust"},
				Status:         domain.JobQueued,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "jobs"`)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "自动生成 ID",
			job: &domain.Job{
				GitHubUsername: "bob",
				Skills:         []string{"Rust"},
				Status:         domain.JobQueued,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "jobs"`)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "数据库错误",
			job: &domain.Job{
				ID:             "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a11",
				GitHubUsername: "bob",
				Skills:         []string{"Rust"},
				Status:         domain.JobQueued,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "jobs"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			wantCode: common.ErrCodeDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()
			tt.setupMock(mock)

			repo := &PostgresRepo{db: gormDB}
			err := repo.CreateJob(context.Background(), tt.job)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, common.CodeOf(err))
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, tt.job.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_GetJob(t *testing.T) {
	now := time.Now()
	id := "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a10"

	t.Run("成功查询", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows(jobColumns).
			AddRow(id, "bob", `["Rust","Go"]`, "failed", now, now,
				"PROCESSING_ERROR", "Failed to fetch GitHub data: boom", 5, 5, `["Rust"]`, "backend")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
			WillReturnRows(rows)

		repo := &PostgresRepo{db: gormDB}
		job, err := repo.GetJob(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, id, job.ID)
		assert.Equal(t, "bob", job.GitHubUsername)
		assert.Equal(t, []string{"Rust", "Go"}, job.Skills)
		assert.Equal(t, domain.JobFailed, job.Status)
		assert.Equal(t, "PROCESSING_ERROR", job.ErrorCode)
		assert.Equal(t, []string{"Rust"}, job.Languages)
		assert.Equal(t, "backend", job.NotesForAI)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("任务不存在", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
			WillReturnRows(sqlmock.NewRows(jobColumns))

		repo := &PostgresRepo{db: gormDB}
		job, err := repo.GetJob(context.Background(), id)
		require.Error(t, err)
		assert.Nil(t, job)
		assert.Equal(t, common.ErrCodeNotFound, common.CodeOf(err))
	})

	t.Run("数据库错误", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
			WillReturnError(errors.New("connection refused"))

		repo := &PostgresRepo{db: gormDB}
		_, err := repo.GetJob(context.Background(), id)
		assert.Equal(t, common.ErrCodeDatabase, common.CodeOf(err))
	})
}

func TestPostgresRepo_UpdateJobStatus(t *testing.T) {
	id := "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a10"

	tests := []struct {
		name      string
		status    domain.JobStatus
		setupMock func(sqlmock.Sqlmock)
		wantCode  string
	}{
		{
			name:   "queued -> running",
			status: domain.JobRunning,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs"`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:   "状态不允许或任务不存在",
			status: domain.JobCompleted,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			wantCode: common.ErrCodeNotFound,
		},
		{
			name:      "没有前置状态的目标状态",
			status:    domain.JobQueued,
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantCode:  common.ErrCodeInvalidInput,
		},
		{
			name:   "数据库错误",
			status: domain.JobFailed,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs"`)).
					WillReturnError(errors.New("deadlock detected"))
				mock.ExpectRollback()
			},
			wantCode: common.ErrCodeDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()
			tt.setupMock(mock)

			repo := &PostgresRepo{db: gormDB}
			err := repo.UpdateJobStatus(context.Background(), id, tt.status, "", "")

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, common.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_ListRecentJobs(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(jobColumns).
		AddRow("id-2", "bob", `["Rust"]`, "completed", now, now, "", "", 5, 5, `null`, "").
		AddRow("id-1", "alice", `["Python","Go"]`, "queued", now.Add(-time.Minute), now, "", "", 5, 5, `null`, "")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs" ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	repo := &PostgresRepo{db: gormDB}
	jobs, err := repo.ListRecentJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "id-2", jobs[0].ID)
	assert.Equal(t, domain.JobQueued, jobs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListStaleJobs(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	before := time.Now().Add(-30 * time.Minute)
	rows := sqlmock.NewRows(jobColumns).
		AddRow("id-1", "alice", `["Go"]`, "running", before.Add(-time.Hour), before.Add(-time.Minute), "", "", 5, 5, `null`, "")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs" WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`)).
		WillReturnRows(rows)

	repo := &PostgresRepo{db: gormDB}
	jobs, err := repo.ListStaleJobs(context.Background(), domain.JobRunning, before, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobRunning, jobs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListStaleJobs_DBError(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs"`)).
		WillReturnError(errors.New("connection reset"))

	repo := &PostgresRepo{db: gormDB}
	_, err := repo.ListStaleJobs(context.Background(), domain.JobQueued, time.Now(), 10)
	assert.Equal(t, common.ErrCodeDatabase, common.CodeOf(err))
}

func TestPostgresRepo_TouchJob(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		result   driver.Result
		execErr  error
		wantCode string
	}{
		{name: "仍在排队", result: sqlmock.NewResult(0, 1)},
		{name: "已被消费", result: sqlmock.NewResult(0, 0), wantCode: common.ErrCodeNotFound},
		{name: "数据库错误", execErr: errors.New("connection reset"), wantCode: common.ErrCodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			mock.ExpectBegin()
			exec := mock.ExpectExec(regexp.QuoteMeta(`UPDATE "jobs" SET "updated_at"=$1 WHERE id = $2 AND status = $3`)).
				WithArgs(at, "id-1", "queued")
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
				mock.ExpectRollback()
			} else {
				exec.WillReturnResult(tt.result)
				mock.ExpectCommit()
			}

			repo := &PostgresRepo{db: gormDB}
			err := repo.TouchJob(context.Background(), "id-1", domain.JobQueued, at)
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantCode, common.CodeOf(err))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_CreateArtifact(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "job_artifacts"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	artifact := &domain.JobArtifact{
		JobID:  "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a10",
		Report: domain.NoMatchReport("bob", []string{"Rust"}),
	}

	repo := &PostgresRepo{db: gormDB}
	require.NoError(t, repo.CreateArtifact(context.Background(), artifact))
	assert.NotEmpty(t, artifact.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetArtifactByJobID(t *testing.T) {
	jobID := "5b8a3f2e-8c1d-4b7a-9e55-0f6f4d1c2a10"
	now := time.Now()

	t.Run("成功查询", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"id", "job_id", "raw_sources", "report", "generated_at"}).
			AddRow("art-1", jobID,
				`{"github_repos":[{"full_name":"bob/rusty","score":5,"matched_skills":["Rust"]}]}`,
				`{"candidate":{"github_username":"bob","summary_of_work":"x","notable_repos":["bob/rusty"]},"overall_assessment":{"decision_hint":"yes","justification":"ok"}}`,
				now)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "job_artifacts"`)).
			WillReturnRows(rows)

		repo := &PostgresRepo{db: gormDB}
		artifact, err := repo.GetArtifactByJobID(context.Background(), jobID)
		require.NoError(t, err)

		require.Len(t, artifact.RawSources.GitHubRepos, 1)
		assert.Equal(t, "bob/rusty", artifact.RawSources.GitHubRepos[0].FullName)
		assert.Equal(t, 5, artifact.RawSources.GitHubRepos[0].Score)
		require.NotNil(t, artifact.Report)
		assert.Equal(t, []string{"bob/rusty"}, artifact.Report.Candidate.NotableRepos)
		assert.Equal(t, "yes", artifact.Report.OverallAssessment.DecisionHint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("产物不存在", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "job_artifacts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "raw_sources", "report", "generated_at"}))

		repo := &PostgresRepo{db: gormDB}
		_, err := repo.GetArtifactByJobID(context.Background(), jobID)
		assert.Equal(t, common.ErrCodeNotFound, common.CodeOf(err))
	})
}
