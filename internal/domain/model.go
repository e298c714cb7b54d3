package domain

import (
	"sort"
	"strings"
	"time"
)

// ReadmeExcerptLimit README 摘要保留的最大字符数
const ReadmeExcerptLimit = 500

// RepositoryCandidate 代表候选人名下的一个 GitHub 仓库 (抓取后只读)
type RepositoryCandidate struct {
	ID          int64          `json:"id"`
	Owner       string         `json:"owner"`
	Name        string         `json:"name"`
	FullName    string         `json:"full_name"` // 例如 "octocat/hello-world"
	Description string         `json:"description"`
	HTMLURL     string         `json:"html_url"`
	Languages   map[string]int `json:"languages"` // 语言 -> 字节数
	Stars       int            `json:"stars"`
	Forks       int            `json:"forks"`
	Size        int            `json:"size"` // KB
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// README 前 500 个字符，没有 README 时为空
	ReadmeExcerpt string `json:"readme_excerpt,omitempty"`

	// 完整 README 只参与打分，不落库
	ReadmeText string `json:"-"`
}

// HasReadme 仓库是否有 README
func (r *RepositoryCandidate) HasReadme() bool {
	return r.ReadmeExcerpt != ""
}

// LanguageNames 按字节数降序返回语言名 (字节数相同时按名字排序，保证输出稳定)
func (r *RepositoryCandidate) LanguageNames() []string {
	names := make([]string, 0, len(r.Languages))
	for name := range r.Languages {
		names = append(names, name)
	}
	sortLanguages(names, r.Languages)
	return names
}

// HasLanguage 大小写不敏感地判断仓库是否包含某种语言
func (r *RepositoryCandidate) HasLanguage(lang string) bool {
	for name := range r.Languages {
		if strings.EqualFold(name, lang) {
			return true
		}
	}
	return false
}

// ScoredRepository 打分后的仓库
type ScoredRepository struct {
	RepositoryCandidate

	Score         int        `json:"score"`
	MatchedSkills []string   `json:"matched_skills"` // 保持首次命中的顺序
	CodeFiles     []CodeFile `json:"code_files,omitempty"`
}

// CodeFile 仓库根目录下的代码文件 (只记录元数据，不下载内容)
type CodeFile struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	HTMLURL string `json:"html_url"`
}

// Readme README 抓取结果：Found=false 表示仓库没有 README，不是错误
type Readme struct {
	Found   bool
	Content string
}

// Languages 语言统计抓取结果：Found=false 表示拿不到统计，按空处理
type Languages struct {
	Found bool
	Bytes map[string]int
}

// ScoreOptions 打分参数
type ScoreOptions struct {
	Limit           int      // 返回前 N 个，<=0 时取默认值 5
	MaxFilesPerRepo int      // 每个仓库最多列出的代码文件数，<=0 不列
	Languages       []string // 偏好语言，为空不过滤
}

// 任务参数默认值
const (
	DefaultRepoLimit       = 5
	DefaultMaxFilesPerRepo = 5
)

// NormalizeSkills 去掉空白和重复 (大小写不敏感，保留首次出现的写法和顺序)
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortLanguages(names []string, bytes map[string]int) {
	sort.Slice(names, func(i, j int) bool {
		if bytes[names[i]] != bytes[names[j]] {
			return bytes[names[i]] > bytes[names[j]]
		}
		return names[i] < names[j]
	})
}
