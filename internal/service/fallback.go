package service

import (
	"fmt"
	"strings"

	"git-gauge/internal/domain"
)

// 兜底打分：语言 +2，仓库名 +1，描述 +1
const (
	fallbackLanguagePoints    = 2
	fallbackNamePoints        = 1
	fallbackDescriptionPoints = 1
)

var (
	testingDescKeywords = []string{"test", "testing", "spec", "unit"}
	testingNameKeywords = []string{"test", "spec"}
	docDescKeywords     = []string{"doc", "documentation", "guide", "tutorial"}
)

// FallbackReport 不依赖模型，按固定阈值从仓库数据推出完整报告
func FallbackReport(in domain.SynthesisInput) *domain.AnalysisReport {
	skills := domain.NormalizeSkills(in.Skills)
	repos := in.Repos

	skillsMatch := make([]domain.SkillAssessment, 0, len(skills))
	for _, skill := range skills {
		skillsMatch = append(skillsMatch, assessSkill(skill, repos))
	}

	return &domain.AnalysisReport{
		Candidate: domain.CandidateInfo{
			GitHubUsername: in.Username,
			SummaryOfWork:  summarize(repos, skillsMatch),
			NotableRepos:   notableRepos(repos),
		},
		SkillsMatch:        skillsMatch,
		CodeQuality:        gradeCodeQuality(repos),
		CommitHabits:       gradeCommitHabits(repos),
		InterviewQuestions: fallbackQuestions(skills, len(repos)),
		RiskFlags:          riskFlags(repos),
		OverallAssessment:  decide(skillsMatch, skills, len(repos)),
	}
}

func assessSkill(skill string, repos []*domain.ScoredRepository) domain.SkillAssessment {
	needle := strings.ToLower(skill)
	strength := 0
	var evidence, refs []string

	addRef := func(fullName string) {
		for _, r := range refs {
			if r == fullName {
				return
			}
		}
		refs = append(refs, fullName)
	}

	for _, repo := range repos {
		if repo.HasLanguage(skill) {
			strength += fallbackLanguagePoints
			evidence = append(evidence, fmt.Sprintf("Found %s code in %s", skill, repo.Name))
			addRef(repo.FullName)
		}
		if strings.Contains(strings.ToLower(repo.Name), needle) {
			strength += fallbackNamePoints
			evidence = append(evidence, fmt.Sprintf("Repository name suggests %s expertise: %s", skill, repo.Name))
			addRef(repo.FullName)
		}
		if repo.Description != "" && strings.Contains(strings.ToLower(repo.Description), needle) {
			strength += fallbackDescriptionPoints
			evidence = append(evidence, fmt.Sprintf("Repository description mentions %s: %s", skill, repo.Description))
			addRef(repo.FullName)
		}
	}

	if len(evidence) == 0 {
		return domain.PlaceholderSkill(skill)
	}
	if refs == nil {
		refs = []string{}
	}
	return domain.SkillAssessment{
		Skill:            skill,
		Strength:         domain.ClampStrength(strength),
		EvidenceSnippets: capStrings(evidence, maxEvidence),
		ReposReferenced:  capStrings(refs, maxReferences),
	}
}

func gradeCodeQuality(repos []*domain.ScoredRepository) domain.CodeQuality {
	n := len(repos)
	testing, docs := 0, 0
	longDesc, security := false, false

	for _, repo := range repos {
		desc := strings.ToLower(repo.Description)
		name := strings.ToLower(repo.Name)

		if containsAny(desc, testingDescKeywords) {
			testing++
		}
		if containsAny(name, testingNameKeywords) {
			testing++
		}
		if repo.HasReadme() {
			docs++
		}
		if containsAny(desc, docDescKeywords) {
			docs++
		}
		if len(repo.Description) > 50 {
			longDesc = true
		}
		if strings.Contains(desc, "security") {
			security = true
		}
	}

	cq := domain.CodeQuality{
		Style:         "Adequate",
		Readability:   "Medium",
		Testing:       "Adequate",
		Documentation: "Adequate",
		Security:      "Adequate",
	}
	if averageStars(repos) > 10 {
		cq.Style = "Good"
	}
	if longDesc {
		cq.Readability = "High"
	}
	// 指标数超过仓库数的一半
	if 2*testing > n {
		cq.Testing = "Good"
	}
	if 2*docs > n {
		cq.Documentation = "Good"
	}
	if security {
		cq.Security = "Good"
	}
	return cq
}

func gradeCommitHabits(repos []*domain.ScoredRepository) domain.CommitHabits {
	updated := 0
	descriptive := false
	for _, repo := range repos {
		if !repo.UpdatedAt.IsZero() {
			updated++
		}
		if len(repo.Description) > 20 {
			descriptive = true
		}
	}

	ch := domain.CommitHabits{
		Frequency:            "Occasional",
		MessageQuality:       "Adequate",
		CollaborationSignals: "Limited",
	}
	if updated > 2 {
		ch.Frequency = "Regular"
	}
	if descriptive {
		ch.MessageQuality = "Good"
	}
	if totalStars(repos) > 5 {
		ch.CollaborationSignals = "Active"
	}
	return ch
}

func fallbackQuestions(skills []string, repoCount int) []domain.InterviewQuestion {
	var questions []domain.InterviewQuestion
	for _, skill := range topSkills(skills) {
		questions = append(questions, domain.InterviewQuestion{
			Question:   fmt.Sprintf("Can you walk me through your experience with %s based on your GitHub projects?", skill),
			Rationale:  fmt.Sprintf("Assess practical %s experience through real projects", skill),
			Difficulty: "intermediate",
		})
	}
	if repoCount > 3 {
		questions = append(questions, domain.InterviewQuestion{
			Question:   "I see you have multiple repositories. How do you organize and maintain your projects?",
			Rationale:  "Assess project management and organization skills",
			Difficulty: "intermediate",
		})
	}
	if len(questions) == 0 {
		questions = append(questions, domain.GenericQuestion(skills))
	}
	return questions
}

func riskFlags(repos []*domain.ScoredRepository) []domain.RiskFlag {
	flags := []domain.RiskFlag{}
	if averageStars(repos) < 1 && len(repos) > 5 {
		flags = append(flags, domain.RiskFlag{
			Flag:        "Low Engagement",
			Description: "Many repositories but low community engagement",
			Severity:    "medium",
		})
	}

	documented := false
	for _, repo := range repos {
		if repo.HasReadme() {
			documented = true
			break
		}
	}
	if !documented {
		flags = append(flags, domain.RiskFlag{
			Flag:        "Poor Documentation",
			Description: "Lack of README files in repositories",
			Severity:    "low",
		})
	}
	return flags
}

// decide 四档阈值：平均强度>=4 且仓库>=2 / >=3 且>=1 / >=2 / 其他
func decide(skillsMatch []domain.SkillAssessment, skills []string, repoCount int) domain.OverallAssessment {
	avg := 0.0
	if len(skillsMatch) > 0 {
		sum := 0
		for _, s := range skillsMatch {
			sum += s.Strength
		}
		avg = float64(sum) / float64(len(skillsMatch))
	}

	named := strings.Join(topSkills(skills), ", ")
	if named == "" {
		named = "the requested"
	}

	switch {
	case avg >= 4 && repoCount >= 2:
		return domain.OverallAssessment{
			DecisionHint:  domain.DecisionStrongYes,
			Justification: fmt.Sprintf("Strong evidence of %s expertise with multiple relevant projects", named),
		}
	case avg >= 3 && repoCount >= 1:
		return domain.OverallAssessment{
			DecisionHint:  domain.DecisionYes,
			Justification: fmt.Sprintf("Good evidence of %s skills with relevant projects", named),
		}
	case avg >= 2:
		return domain.OverallAssessment{
			DecisionHint:  domain.DecisionMaybe,
			Justification: fmt.Sprintf("Some evidence of %s skills but limited project depth", named),
		}
	default:
		return domain.OverallAssessment{
			DecisionHint:  domain.DecisionNo,
			Justification: fmt.Sprintf("Insufficient evidence of %s expertise", named),
		}
	}
}

func topSkills(skills []string) []string {
	if len(skills) > 2 {
		return skills[:2]
	}
	return skills
}

func averageStars(repos []*domain.ScoredRepository) float64 {
	if len(repos) == 0 {
		return 0
	}
	return float64(totalStars(repos)) / float64(len(repos))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
