package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"

	"github.com/google/go-github/v53/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// 默认参数
const (
	DefaultPerPage  = 100
	DefaultMaxPages = 20
	DefaultTimeout  = 30 * time.Second

	// 认证用户 5000 次/小时，平摊下来不到 1.4 次/秒，这里只限制突发
	DefaultRequestsPerSecond = 10
)

// 根目录下算作代码文件的扩展名
var codeExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".cpp": {}, ".c": {},
	".go": {}, ".rs": {}, ".php": {}, ".rb": {}, ".swift": {}, ".kt": {},
}

// Config GitHub 客户端配置
type Config struct {
	Token      string
	Timeout    time.Duration // 单次请求超时
	PerPage    int
	MaxPages   int // 翻页上限，防止无限翻页
	MaxRetries int // 只对 5xx 重试
	RetryDelay time.Duration

	// 客户端限速，<0 表示不限速
	RequestsPerSecond float64
}

// Host 实现了 port.RepositoryHost 接口
type Host struct {
	client  *github.Client
	limiter *rate.Limiter
	cfg     Config
	log     *zap.Logger
}

// NewHost 初始化 GitHub 客户端
// token 为空时匿名访问，限制 60次/小时
func NewHost(cfg Config, log *zap.Logger) *Host {
	cfg = withDefaults(cfg)

	var httpClient *http.Client
	if cfg.Token == "" {
		httpClient = &http.Client{}
	} else {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: cfg.Token},
		)
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	httpClient.Timeout = cfg.Timeout

	return &Host{
		client:  github.NewClient(httpClient),
		limiter: newLimiter(cfg.RequestsPerSecond),
		cfg:     cfg,
		log:     logger.OrNop(log),
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func withDefaults(cfg Config) Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PerPage <= 0 || cfg.PerPage > DefaultPerPage {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return cfg
}

// ListRepositories 列出用户拥有的仓库，按更新时间排序
// 某一页不足 PerPage 条或达到 MaxPages 时停止
func (h *Host) ListRepositories(ctx context.Context, username string) ([]*domain.RepositoryCandidate, error) {
	if strings.TrimSpace(username) == "" {
		return nil, common.NewError(common.ErrCodeUserNotFound, "empty GitHub username")
	}

	opts := &github.RepositoryListOptions{
		Type: "owner",
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: h.cfg.PerPage,
		},
	}

	var repos []*domain.RepositoryCandidate
	for page := 1; page <= h.cfg.MaxPages; page++ {
		opts.Page = page

		var items []*github.Repository
		err := h.call(ctx, func() error {
			var apiErr error
			items, _, apiErr = h.client.Repositories.List(ctx, username, opts)
			return apiErr
		})
		if err != nil {
			if isNotFound(err) {
				return nil, common.WrapError(common.ErrCodeUserNotFound,
					fmt.Sprintf("GitHub user %q not found", username), err)
			}
			return nil, classify("list repositories", err)
		}

		for _, item := range items {
			repos = append(repos, toCandidate(item, username))
		}

		if len(items) < h.cfg.PerPage {
			break
		}
		if page == h.cfg.MaxPages {
			h.log.Warn("仓库翻页达到上限，截断结果",
				zap.String(logger.FieldUsername, username),
				zap.Int("max_pages", h.cfg.MaxPages),
				zap.Int("repos", len(repos)))
		}
	}

	h.log.Debug("仓库列表获取完成",
		zap.String(logger.FieldUsername, username),
		zap.Int("repos", len(repos)))
	return repos, nil
}

// GetLanguages 语言字节数统计，404 视为没有数据
func (h *Host) GetLanguages(ctx context.Context, owner, repo string) (domain.Languages, error) {
	var langs map[string]int
	err := h.call(ctx, func() error {
		var apiErr error
		langs, _, apiErr = h.client.Repositories.ListLanguages(ctx, owner, repo)
		return apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Languages{}, nil
		}
		return domain.Languages{}, classify("list languages", err)
	}
	if len(langs) == 0 {
		return domain.Languages{}, nil
	}
	return domain.Languages{Found: true, Bytes: langs}, nil
}

// GetReadme README 原文 (已做 base64 解码)，404 视为没有 README
func (h *Host) GetReadme(ctx context.Context, owner, repo string) (domain.Readme, error) {
	var content *github.RepositoryContent
	err := h.call(ctx, func() error {
		var apiErr error
		content, _, apiErr = h.client.Repositories.GetReadme(ctx, owner, repo, nil)
		return apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Readme{}, nil
		}
		return domain.Readme{}, classify("get readme", err)
	}

	text, err := content.GetContent()
	if err != nil {
		// 编码异常的 README 按缺失处理
		h.log.Warn("README 解码失败", zap.String("repo", owner+"/"+repo), zap.Error(err))
		return domain.Readme{}, nil
	}
	if strings.TrimSpace(text) == "" {
		return domain.Readme{}, nil
	}
	return domain.Readme{Found: true, Content: text}, nil
}

// ListCodeFiles 列出根目录下的代码文件 (只看扩展名)，空仓库返回空
func (h *Host) ListCodeFiles(ctx context.Context, owner, repo string, limit int) ([]domain.CodeFile, error) {
	if limit <= 0 {
		return nil, nil
	}

	var entries []*github.RepositoryContent
	err := h.call(ctx, func() error {
		var apiErr error
		_, entries, _, apiErr = h.client.Repositories.GetContents(ctx, owner, repo, "", nil)
		return apiErr
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify("list contents", err)
	}

	files := make([]domain.CodeFile, 0, limit)
	for _, e := range entries {
		if e.GetType() != "file" {
			continue
		}
		if _, ok := codeExtensions[strings.ToLower(path.Ext(e.GetName()))]; !ok {
			continue
		}
		files = append(files, domain.CodeFile{
			Name:    e.GetName(),
			Path:    e.GetPath(),
			Size:    e.GetSize(),
			HTMLURL: e.GetHTMLURL(),
		})
		if len(files) >= limit {
			break
		}
	}
	return files, nil
}

// call 每次请求前先过限速器，只对 5xx 做有限重试，404/限流/超时直接返回
func (h *Host) call(ctx context.Context, fn func() error) error {
	return common.Do(ctx, func() error {
		if err := h.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return context.DeadlineExceeded
		}
		return fn()
	},
		common.WithMaxRetries(h.cfg.MaxRetries),
		common.WithInitialDelay(h.cfg.RetryDelay),
		common.WithRetryIf(isServerError),
	)
}

func toCandidate(item *github.Repository, username string) *domain.RepositoryCandidate {
	owner := item.GetOwner().GetLogin()
	if owner == "" {
		owner = username
	}
	return &domain.RepositoryCandidate{
		ID:          item.GetID(),
		Owner:       owner,
		Name:        item.GetName(),
		FullName:    item.GetFullName(),
		Description: item.GetDescription(),
		HTMLURL:     item.GetHTMLURL(),
		Stars:       item.GetStargazersCount(),
		Forks:       item.GetForksCount(),
		Size:        item.GetSize(),
		CreatedAt:   item.GetCreatedAt().Time,
		UpdatedAt:   item.GetUpdatedAt().Time,
	}
}

func statusCode(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return statusCode(err) == http.StatusNotFound
}

func isServerError(err error) bool {
	return statusCode(err) >= http.StatusInternalServerError
}

// classify 把 go-github 的错误映射成应用错误码
func classify(op string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		return common.NewRateLimitError(
			fmt.Sprintf("GitHub rate limit exhausted (%s), resets in %s", op, wait.Round(time.Second)),
			wait, err)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		var wait time.Duration
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		return common.NewRateLimitError(
			fmt.Sprintf("GitHub secondary rate limit hit (%s)", op), wait, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return common.WrapError(common.ErrCodeUpstreamTimeout, fmt.Sprintf("GitHub request timed out (%s)", op), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.WrapError(common.ErrCodeUpstreamTimeout, fmt.Sprintf("GitHub request timed out (%s)", op), err)
	}

	return common.WrapError(common.ErrCodeGitHubAPI, fmt.Sprintf("GitHub API call failed (%s)", op), err)
}
