package analyzer

import (
	"context"
	"errors"
	"sort"
	"strings"

	"git-gauge/internal/adapter/filter"
	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"
	"git-gauge/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 打分权重
const (
	WeightLanguage    = 3
	WeightName        = 2
	WeightDescription = 1
	WeightReadme      = 1
)

// RepoScorer 实现了 port.Scorer 接口
type RepoScorer struct {
	host          port.RepositoryHost
	maxGoroutines int // 单个任务内拉取元数据的并发数
	log           *zap.Logger
}

// NewRepoScorer 创建打分器，默认逐个仓库顺序拉取
func NewRepoScorer(host port.RepositoryHost, log *zap.Logger) *RepoScorer {
	return &RepoScorer{
		host:          host,
		maxGoroutines: 1,
		log:           logger.OrNop(log),
	}
}

// SetMaxGoroutines 设置最大并发数
func (s *RepoScorer) SetMaxGoroutines(max int) {
	if max > 0 {
		s.maxGoroutines = max
	}
}

// Score 拉取用户仓库，按技能打分并返回前 limit 个
// 列表失败、限流、超时会让整个调用失败，不返回部分结果
func (s *RepoScorer) Score(ctx context.Context, username string, skills []string, opts domain.ScoreOptions) ([]*domain.ScoredRepository, error) {
	log := s.log.With(zap.String(logger.FieldUsername, username))

	repos, err := s.host.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		log.Info("用户没有公开仓库")
		return []*domain.ScoredRepository{}, nil
	}

	if err := s.enrich(ctx, repos); err != nil {
		return nil, err
	}

	candidates := filter.ByLanguages(repos, opts.Languages)
	ranked := Rank(candidates, skills, opts.Limit)

	if opts.MaxFilesPerRepo > 0 {
		s.attachCodeFiles(ctx, ranked, opts.MaxFilesPerRepo)
	}

	log.Info("仓库打分完成",
		zap.Int("fetched", len(repos)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)))
	return ranked, nil
}

// enrich 补全每个仓库的语言统计和 README，第一个硬错误会取消其余请求
func (s *RepoScorer) enrich(ctx context.Context, repos []*domain.RepositoryCandidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxGoroutines)

	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			return s.enrichOne(gctx, repo)
		})
	}
	return g.Wait()
}

func (s *RepoScorer) enrichOne(ctx context.Context, repo *domain.RepositoryCandidate) error {
	langs, err := s.host.GetLanguages(ctx, repo.Owner, repo.Name)
	if err != nil {
		if isFatal(err) {
			return err
		}
		s.log.Warn("语言统计获取失败，按空处理", zap.String("repo", repo.FullName), zap.Error(err))
	}
	if langs.Found {
		repo.Languages = langs.Bytes
	}

	readme, err := s.host.GetReadme(ctx, repo.Owner, repo.Name)
	if err != nil {
		if isFatal(err) {
			return err
		}
		s.log.Warn("README 获取失败，按空处理", zap.String("repo", repo.FullName), zap.Error(err))
	}
	if readme.Found {
		repo.ReadmeText = readme.Content
		repo.ReadmeExcerpt = excerpt(readme.Content, domain.ReadmeExcerptLimit)
	}
	return nil
}

// attachCodeFiles 为排名后的仓库列出代码文件，失败只记日志
func (s *RepoScorer) attachCodeFiles(ctx context.Context, ranked []*domain.ScoredRepository, limit int) {
	for _, repo := range ranked {
		files, err := s.host.ListCodeFiles(ctx, repo.Owner, repo.Name, limit)
		if err != nil {
			s.log.Warn("代码文件列表获取失败", zap.String("repo", repo.FullName), zap.Error(err))
			continue
		}
		repo.CodeFiles = files
	}
}

// 限流、超时和 ctx 取消需要让整个打分失败，其余单仓库错误按缺失处理
func isFatal(err error) bool {
	return common.IsCode(err, common.ErrCodeRateLimited) ||
		common.IsCode(err, common.ErrCodeUpstreamTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Rank 对仓库打分，稳定降序排序，去掉 0 分，截取前 limit 个 (limit<=0 时取默认值)
func Rank(repos []*domain.RepositoryCandidate, skills []string, limit int) []*domain.ScoredRepository {
	if limit <= 0 {
		limit = domain.DefaultRepoLimit
	}
	skills = domain.NormalizeSkills(skills)

	scored := make([]*domain.ScoredRepository, 0, len(repos))
	for _, repo := range repos {
		score, matched := ScoreRepository(repo, skills)
		if score == 0 {
			continue
		}
		scored = append(scored, &domain.ScoredRepository{
			RepositoryCandidate: *repo,
			Score:               score,
			MatchedSkills:       matched,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// ScoreRepository 计算单个仓库的分数和命中的技能
// 每个技能在每个类别 (语言/名字/描述/README) 最多加一次分
func ScoreRepository(repo *domain.RepositoryCandidate, skills []string) (int, []string) {
	name := strings.ToLower(repo.Name)
	desc := strings.ToLower(repo.Description)
	readme := strings.ToLower(repo.ReadmeText)
	if readme == "" {
		readme = strings.ToLower(repo.ReadmeExcerpt)
	}

	score := 0
	matched := make([]string, 0, len(skills))
	for _, skill := range skills {
		needle := strings.ToLower(strings.TrimSpace(skill))
		if needle == "" {
			continue
		}

		hit := false
		if repo.HasLanguage(needle) {
			score += WeightLanguage
			hit = true
		}
		if strings.Contains(name, needle) {
			score += WeightName
			hit = true
		}
		if desc != "" && strings.Contains(desc, needle) {
			score += WeightDescription
			hit = true
		}
		if readme != "" && strings.Contains(readme, needle) {
			score += WeightReadme
			hit = true
		}

		if hit {
			matched = append(matched, skill)
		}
	}
	return score, matched
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
