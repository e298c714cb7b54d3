package filter

import (
	"strings"

	"git-gauge/internal/domain"
)

// ByLanguages 只保留包含任一偏好语言的仓库 (大小写不敏感)
// languages 为空，或过滤后一个不剩时，原样返回全部仓库
func ByLanguages(repos []*domain.RepositoryCandidate, languages []string) []*domain.RepositoryCandidate {
	wanted := normalize(languages)
	if len(wanted) == 0 {
		return repos
	}

	var filtered []*domain.RepositoryCandidate
	for _, repo := range repos {
		if hasAny(repo, wanted) {
			filtered = append(filtered, repo)
		}
	}

	if len(filtered) == 0 {
		return repos
	}
	return filtered
}

func normalize(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func hasAny(repo *domain.RepositoryCandidate, languages []string) bool {
	for _, l := range languages {
		if repo.HasLanguage(l) {
			return true
		}
	}
	return false
}
