package service

import (
	"reflect"
	"testing"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/schemas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"纯 JSON", `{"a":1}`, `{"a":1}`, false},
		{"带 markdown 代码块", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, false},
		{"前后有文字", `Here you go: {"a":1} hope it helps`, `{"a":1}`, false},
		{"没有对象", "sorry, I cannot help", "", true},
		{"括号顺序反了", "} oops {", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, common.ErrCodeModelUnparseable, common.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func synthesisInput() domain.SynthesisInput {
	return domain.SynthesisInput{
		Username: "octocat",
		Skills:   []string{"Go", "Docker"},
		Repos: []*domain.ScoredRepository{
			scoredRepo("a", 9, map[string]int{"Go": 10}, 3),
			scoredRepo("b", 7, nil, 2),
			scoredRepo("c", 5, nil, 0),
			scoredRepo("d", 3, nil, 0),
		},
	}
}

func TestParseModelReport_Complete(t *testing.T) {
	raw := `Sure! {
	  "candidate": {"github_username": "someone-else", "summary_of_work": " Builds Go services ", "notable_repos": ["x/y"]},
	  "skills_match": [
	    {"skill": "docker", "strength": "4", "evidence_snippets": ["Dockerfile in a"], "repos_referenced": ["octocat/a", "octocat/a"]},
	    {"skill": "Go", "strength": 9, "evidence_snippets": ["1", "2", "3", "4"], "repos_referenced": ["octocat/a"]},
	    {"skill": "Haskell", "strength": 5}
	  ],
	  "code_quality": {"style": "good", "readability": "HIGH", "testing": "awful", "documentation": "Excellent", "security": "Poor"},
	  "commit_habits": {"frequency": "frequent", "message_quality": "Good", "collaboration_signals": "very active"},
	  "interview_questions": [
	    {"question": "How do you structure Go modules?", "rationale": "depth", "difficulty": "Advanced"},
	    {"question": "   ", "rationale": "blank", "difficulty": "beginner"}
	  ],
	  "risk_flags": [{"flag": "Few tests", "description": "no test dirs", "severity": "critical"}],
	  "overall_assessment": {"decision_hint": "Strong Yes", "justification": "solid"}
	}`

	report, err := ParseModelReport(raw, synthesisInput())
	require.NoError(t, err)

	assert.Equal(t, "octocat", report.Candidate.GitHubUsername)
	assert.Equal(t, "Builds Go services", report.Candidate.SummaryOfWork)
	assert.Equal(t, []string{"octocat/a", "octocat/b", "octocat/c"}, report.Candidate.NotableRepos)

	require.Len(t, report.SkillsMatch, 2)
	assert.Equal(t, "Go", report.SkillsMatch[0].Skill)
	assert.Equal(t, 5, report.SkillsMatch[0].Strength)
	assert.Equal(t, []string{"1", "2", "3"}, report.SkillsMatch[0].EvidenceSnippets)
	assert.Equal(t, "Docker", report.SkillsMatch[1].Skill)
	assert.Equal(t, 4, report.SkillsMatch[1].Strength)
	assert.Equal(t, []string{"octocat/a"}, report.SkillsMatch[1].ReposReferenced)

	assert.Equal(t, domain.CodeQuality{
		Style:         "Good",
		Readability:   "High",
		Testing:       "Adequate",
		Documentation: "Excellent",
		Security:      "Poor",
	}, report.CodeQuality)
	assert.Equal(t, "Frequent", report.CommitHabits.Frequency)
	assert.Equal(t, "Very Active", report.CommitHabits.CollaborationSignals)

	require.Len(t, report.InterviewQuestions, 1)
	assert.Equal(t, "advanced", report.InterviewQuestions[0].Difficulty)
	require.Len(t, report.RiskFlags, 1)
	assert.Equal(t, "medium", report.RiskFlags[0].Severity)
	assert.Equal(t, domain.DecisionStrongYes, report.OverallAssessment.DecisionHint)

	assert.NoError(t, schemas.ValidateReport(report))
}

func TestParseModelReport_MissingSections(t *testing.T) {
	report, err := ParseModelReport(`{"skills_match": []}`, synthesisInput())
	require.NoError(t, err)

	require.Len(t, report.SkillsMatch, 2)
	for _, s := range report.SkillsMatch {
		assert.Equal(t, domain.PlaceholderSkill(s.Skill), s)
	}
	assert.Equal(t, domain.DefaultCodeQuality(), report.CodeQuality)
	assert.Equal(t, domain.DefaultCommitHabits(), report.CommitHabits)
	assert.Equal(t, []domain.InterviewQuestion{domain.GenericQuestion([]string{"Go", "Docker"})}, report.InterviewQuestions)
	assert.NotNil(t, report.RiskFlags)
	assert.Empty(t, report.RiskFlags)
	assert.Equal(t, domain.DecisionMaybe, report.OverallAssessment.DecisionHint)
	assert.Equal(t, "Insufficient data for assessment", report.OverallAssessment.Justification)
	assert.Equal(t, "Active developer with 4 relevant repositories with 5 total stars", report.Candidate.SummaryOfWork)

	assert.NoError(t, schemas.ValidateReport(report))
}

func TestParseModelReport_EmptyEvidenceGetsPlaceholder(t *testing.T) {
	raw := `{"skills_match": [{"skill": "Go", "strength": 4, "evidence_snippets": ["", " "]}]}`
	report, err := ParseModelReport(raw, synthesisInput())
	require.NoError(t, err)

	assert.Equal(t, 4, report.SkillsMatch[0].Strength)
	assert.Equal(t, []string{domain.NoEvidenceSnippet}, report.SkillsMatch[0].EvidenceSnippets)
	assert.Equal(t, []string{}, report.SkillsMatch[0].ReposReferenced)
	assert.Contains(t, report.Candidate.SummaryOfWork, "showing expertise in Go")
}

func TestParseModelReport_UnreadableStrength(t *testing.T) {
	raw := `{
	  "candidate": {"summary_of_work": "Ships Go tooling"},
	  "skills_match": [
	    {"skill": "Go", "strength": "high", "evidence_snippets": ["go.mod in a"]},
	    {"skill": "Docker", "strength": "3.0"}
	  ],
	  "overall_assessment": {"decision_hint": "yes", "justification": "solid Go work"}
	}`

	report, err := ParseModelReport(raw, synthesisInput())
	require.NoError(t, err)

	assert.Equal(t, "Ships Go tooling", report.Candidate.SummaryOfWork)
	require.Len(t, report.SkillsMatch, 2)
	assert.Equal(t, domain.MinStrength, report.SkillsMatch[0].Strength)
	assert.Equal(t, []string{"go.mod in a"}, report.SkillsMatch[0].EvidenceSnippets)
	assert.Equal(t, 3, report.SkillsMatch[1].Strength)
	assert.Equal(t, domain.DecisionYes, report.OverallAssessment.DecisionHint)
	assert.Equal(t, "solid Go work", report.OverallAssessment.Justification)
}

func TestLenientIntHook(t *testing.T) {
	intType := reflect.TypeOf(0)
	strType := reflect.TypeOf("")

	tests := []struct {
		in   interface{}
		to   reflect.Type
		want interface{}
	}{
		{" 4 ", intType, 4},
		{"4.7", intType, 4},
		{"high", intType, 0},
		{"", intType, 0},
		{"high", strType, "high"},
	}
	for _, tt := range tests {
		got, err := lenientIntHook(reflect.TypeOf(tt.in), tt.to, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	got, err := lenientIntHook(reflect.TypeOf(2.5), intType, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)
}

func TestParseModelReport_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"不是 JSON", "no json here"},
		{"JSON 语法错误", `{"skills_match": [}`},
		{"结构不对", `{"skills_match": "strong"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseModelReport(tt.raw, synthesisInput())
			require.Error(t, err)
			assert.Nil(t, report)
			assert.Equal(t, common.ErrCodeModelUnparseable, common.CodeOf(err))
		})
	}
}

func TestSummarize(t *testing.T) {
	repos := []*domain.ScoredRepository{scoredRepo("a", 1, nil, 0)}
	assert.Equal(t, "Active developer with 1 relevant repositories", summarize(repos, nil))

	skills := []domain.SkillAssessment{{Skill: "Go", Strength: 3}, {Skill: "Rust", Strength: 2}}
	repos[0].Stars = 12
	assert.Equal(t, "Active developer with 1 relevant repositories showing expertise in Go with 12 total stars", summarize(repos, skills))
}
