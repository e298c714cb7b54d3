package domain

import "strings"

// AnalysisReport 对外唯一的分析报告结构，COMPLETED 的任务里所有字段都必须有值
type AnalysisReport struct {
	Candidate          CandidateInfo       `json:"candidate" mapstructure:"candidate"`
	SkillsMatch        []SkillAssessment   `json:"skills_match" mapstructure:"skills_match"`
	CodeQuality        CodeQuality         `json:"code_quality" mapstructure:"code_quality"`
	CommitHabits       CommitHabits        `json:"commit_habits" mapstructure:"commit_habits"`
	InterviewQuestions []InterviewQuestion `json:"interview_questions" mapstructure:"interview_questions"`
	RiskFlags          []RiskFlag          `json:"risk_flags" mapstructure:"risk_flags"`
	OverallAssessment  OverallAssessment   `json:"overall_assessment" mapstructure:"overall_assessment"`
}

type CandidateInfo struct {
	GitHubUsername string   `json:"github_username" mapstructure:"github_username"`
	SummaryOfWork  string   `json:"summary_of_work" mapstructure:"summary_of_work"`
	NotableRepos   []string `json:"notable_repos" mapstructure:"notable_repos"`
}

// SkillAssessment 单项技能评估
type SkillAssessment struct {
	Skill            string   `json:"skill" mapstructure:"skill"`
	Strength         int      `json:"strength" mapstructure:"strength"` // 1..5
	EvidenceSnippets []string `json:"evidence_snippets" mapstructure:"evidence_snippets"`
	ReposReferenced  []string `json:"repos_referenced" mapstructure:"repos_referenced"`
}

type CodeQuality struct {
	Style         string `json:"style" mapstructure:"style"`
	Readability   string `json:"readability" mapstructure:"readability"`
	Testing       string `json:"testing" mapstructure:"testing"`
	Documentation string `json:"documentation" mapstructure:"documentation"`
	Security      string `json:"security" mapstructure:"security"`
}

type CommitHabits struct {
	Frequency            string `json:"frequency" mapstructure:"frequency"`
	MessageQuality       string `json:"message_quality" mapstructure:"message_quality"`
	CollaborationSignals string `json:"collaboration_signals" mapstructure:"collaboration_signals"`
}

type InterviewQuestion struct {
	Question   string `json:"question" mapstructure:"question"`
	Rationale  string `json:"rationale" mapstructure:"rationale"`
	Difficulty string `json:"difficulty" mapstructure:"difficulty"`
}

type RiskFlag struct {
	Flag        string `json:"flag" mapstructure:"flag"`
	Description string `json:"description" mapstructure:"description"`
	Severity    string `json:"severity" mapstructure:"severity"`
}

type OverallAssessment struct {
	DecisionHint  string `json:"decision_hint" mapstructure:"decision_hint"`
	Justification string `json:"justification" mapstructure:"justification"`
}

// 技能强度范围
const (
	MinStrength = 1
	MaxStrength = 5
)

// 报告里各等级字段的取值表，顺序即由低到高
var (
	QualityGrades       = []string{"Poor", "Adequate", "Good", "Excellent"}
	ReadabilityGrades   = []string{"Low", "Medium", "High", "Excellent"}
	FrequencyGrades     = []string{"Rare", "Occasional", "Regular", "Frequent"}
	CollaborationGrades = []string{"Limited", "Moderate", "Active", "Very Active"}
	Difficulties        = []string{"beginner", "intermediate", "advanced"}
	Severities          = []string{"low", "medium", "high"}
	DecisionHints       = []string{"strong_yes", "yes", "maybe", "no"}
)

const (
	DecisionStrongYes = "strong_yes"
	DecisionYes       = "yes"
	DecisionMaybe     = "maybe"
	DecisionNo        = "no"
)

// NoEvidenceSnippet 没有任何证据时的占位
const NoEvidenceSnippet = "No evidence found"

// DefaultCodeQuality 模型没给出代码质量时的默认值
func DefaultCodeQuality() CodeQuality {
	return CodeQuality{
		Style:         "Adequate",
		Readability:   "Medium",
		Testing:       "Adequate",
		Documentation: "Adequate",
		Security:      "Adequate",
	}
}

// DefaultCommitHabits 模型没给出提交习惯时的默认值
func DefaultCommitHabits() CommitHabits {
	return CommitHabits{
		Frequency:            "Regular",
		MessageQuality:       "Adequate",
		CollaborationSignals: "Moderate",
	}
}

// PlaceholderSkill 没有证据的技能条目
func PlaceholderSkill(skill string) SkillAssessment {
	return SkillAssessment{
		Skill:            skill,
		Strength:         MinStrength,
		EvidenceSnippets: []string{NoEvidenceSnippet},
		ReposReferenced:  []string{},
	}
}

// GenericQuestion 兜底面试题，围绕第一个技能 (没有技能时用 "programming")
func GenericQuestion(skills []string) InterviewQuestion {
	topic := "programming"
	if len(skills) > 0 {
		topic = skills[0]
	}
	return InterviewQuestion{
		Question:   "Can you walk me through your experience with " + topic + "?",
		Rationale:  "Assess technical experience",
		Difficulty: "intermediate",
	}
}

// ClampStrength 把强度限制在 [1,5]
func ClampStrength(n int) int {
	if n < MinStrength {
		return MinStrength
	}
	if n > MaxStrength {
		return MaxStrength
	}
	return n
}

// CanonicalGrade 大小写不敏感地把 value 映射到取值表里的标准写法，取不到时返回 fallback
func CanonicalGrade(value string, vocabulary []string, fallback string) string {
	value = strings.TrimSpace(value)
	for _, v := range vocabulary {
		if strings.EqualFold(v, value) {
			return v
		}
	}
	// 兼容 "strong yes" / "Very-Active" 这类写法
	loose := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(value))
	for _, v := range vocabulary {
		if strings.NewReplacer(" ", "", "_", "").Replace(strings.ToLower(v)) == loose && loose != "" {
			return v
		}
	}
	return fallback
}

// NoMatchReport 没有任何相关仓库时的固定报告，不调用模型
func NoMatchReport(username string, skills []string) *AnalysisReport {
	skillsMatch := make([]SkillAssessment, 0, len(skills))
	for _, s := range skills {
		skillsMatch = append(skillsMatch, PlaceholderSkill(s))
	}

	return &AnalysisReport{
		Candidate: CandidateInfo{
			GitHubUsername: username,
			SummaryOfWork:  "No relevant repositories found for " + username,
			NotableRepos:   []string{},
		},
		SkillsMatch: skillsMatch,
		CodeQuality: CodeQuality{
			Style:         "Poor",
			Readability:   "Low",
			Testing:       "Poor",
			Documentation: "Poor",
			Security:      "Poor",
		},
		CommitHabits: CommitHabits{
			Frequency:            "Rare",
			MessageQuality:       "Poor",
			CollaborationSignals: "Limited",
		},
		InterviewQuestions: []InterviewQuestion{GenericQuestion(skills)},
		RiskFlags: []RiskFlag{{
			Flag:        "No Relevant Repositories",
			Description: "No public repositories match the requested skills",
			Severity:    "high",
		}},
		OverallAssessment: OverallAssessment{
			DecisionHint:  DecisionNo,
			Justification: "No relevant repositories found",
		},
	}
}
