package service

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"

	"github.com/mitchellh/mapstructure"
)

// 列表字段上限
const (
	maxEvidence     = 3
	maxReferences   = 3
	maxNotableRepos = 3
)

// modelReport 模型原始输出，指针字段用来区分 "没给" 和 "给了空值"
type modelReport struct {
	Candidate          *domain.CandidateInfo      `mapstructure:"candidate"`
	SkillsMatch        []domain.SkillAssessment   `mapstructure:"skills_match"`
	CodeQuality        *domain.CodeQuality        `mapstructure:"code_quality"`
	CommitHabits       *domain.CommitHabits       `mapstructure:"commit_habits"`
	InterviewQuestions []domain.InterviewQuestion `mapstructure:"interview_questions"`
	RiskFlags          []domain.RiskFlag          `mapstructure:"risk_flags"`
	OverallAssessment  *domain.OverallAssessment  `mapstructure:"overall_assessment"`
}

// ExtractJSON 截取第一个 '{' 到最后一个 '}'，容忍模型在 JSON 前后输出多余文字
func ExtractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", common.NewError(common.ErrCodeModelUnparseable, "no JSON object found in model response")
	}
	return raw[start : end+1], nil
}

// decodeModelReport 宽松解码：字符串数字、单个值代替数组等写法都能接受
func decodeModelReport(payload string) (*modelReport, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return nil, common.WrapError(common.ErrCodeModelUnparseable, "invalid JSON in model response", err)
	}

	var out modelReport
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       lenientIntHook,
		Result:           &out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, common.WrapError(common.ErrCodeModelUnparseable, "model response does not match report shape", err)
	}
	return &out, nil
}

// lenientIntHook 字符串写的整数字段 ("4"、"4.0") 照常转换，"high" 之类读不出数字的按 0 处理
// 规范化时 0 会被拉回到最小值，不至于因为一个字段丢掉整份报告
func lenientIntHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}

	s := strings.TrimSpace(data.(string))
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), nil
	}
	return 0, nil
}

// ParseModelReport 提取、解码并规范化模型输出
func ParseModelReport(raw string, in domain.SynthesisInput) (*domain.AnalysisReport, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	decoded, err := decodeModelReport(payload)
	if err != nil {
		return nil, err
	}
	return normalizeReport(decoded, in), nil
}

// normalizeReport 补默认值，保证每个字段都有值
func normalizeReport(m *modelReport, in domain.SynthesisInput) *domain.AnalysisReport {
	skills := domain.NormalizeSkills(in.Skills)
	report := &domain.AnalysisReport{
		SkillsMatch:        normalizeSkillsMatch(m.SkillsMatch, skills),
		CodeQuality:        normalizeCodeQuality(m.CodeQuality),
		CommitHabits:       normalizeCommitHabits(m.CommitHabits),
		InterviewQuestions: normalizeQuestions(m.InterviewQuestions, skills),
		RiskFlags:          normalizeRiskFlags(m.RiskFlags),
		OverallAssessment:  normalizeOverall(m.OverallAssessment),
	}

	// 用户名和代表仓库以抓取结果为准
	report.Candidate = domain.CandidateInfo{
		GitHubUsername: in.Username,
		NotableRepos:   notableRepos(in.Repos),
	}
	if m.Candidate != nil {
		report.Candidate.SummaryOfWork = strings.TrimSpace(m.Candidate.SummaryOfWork)
	}
	if report.Candidate.SummaryOfWork == "" {
		report.Candidate.SummaryOfWork = summarize(in.Repos, report.SkillsMatch)
	}
	return report
}

// normalizeSkillsMatch 按请求顺序每个技能一条，模型没给的补占位，多给的丢掉
func normalizeSkillsMatch(items []domain.SkillAssessment, skills []string) []domain.SkillAssessment {
	out := make([]domain.SkillAssessment, 0, len(skills))
	for _, skill := range skills {
		found := false
		for _, item := range items {
			if !strings.EqualFold(strings.TrimSpace(item.Skill), skill) {
				continue
			}
			evidence := capStrings(nonBlank(item.EvidenceSnippets), maxEvidence)
			if len(evidence) == 0 {
				evidence = []string{domain.NoEvidenceSnippet}
			}
			out = append(out, domain.SkillAssessment{
				Skill:            skill,
				Strength:         domain.ClampStrength(item.Strength),
				EvidenceSnippets: evidence,
				ReposReferenced:  capStrings(unique(nonBlank(item.ReposReferenced)), maxReferences),
			})
			found = true
			break
		}
		if !found {
			out = append(out, domain.PlaceholderSkill(skill))
		}
	}
	return out
}

func normalizeCodeQuality(cq *domain.CodeQuality) domain.CodeQuality {
	def := domain.DefaultCodeQuality()
	if cq == nil {
		return def
	}
	return domain.CodeQuality{
		Style:         domain.CanonicalGrade(cq.Style, domain.QualityGrades, def.Style),
		Readability:   domain.CanonicalGrade(cq.Readability, domain.ReadabilityGrades, def.Readability),
		Testing:       domain.CanonicalGrade(cq.Testing, domain.QualityGrades, def.Testing),
		Documentation: domain.CanonicalGrade(cq.Documentation, domain.QualityGrades, def.Documentation),
		Security:      domain.CanonicalGrade(cq.Security, domain.QualityGrades, def.Security),
	}
}

func normalizeCommitHabits(ch *domain.CommitHabits) domain.CommitHabits {
	def := domain.DefaultCommitHabits()
	if ch == nil {
		return def
	}
	return domain.CommitHabits{
		Frequency:            domain.CanonicalGrade(ch.Frequency, domain.FrequencyGrades, def.Frequency),
		MessageQuality:       domain.CanonicalGrade(ch.MessageQuality, domain.QualityGrades, def.MessageQuality),
		CollaborationSignals: domain.CanonicalGrade(ch.CollaborationSignals, domain.CollaborationGrades, def.CollaborationSignals),
	}
}

func normalizeQuestions(items []domain.InterviewQuestion, skills []string) []domain.InterviewQuestion {
	out := make([]domain.InterviewQuestion, 0, len(items))
	for _, q := range items {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		out = append(out, domain.InterviewQuestion{
			Question:   strings.TrimSpace(q.Question),
			Rationale:  strings.TrimSpace(q.Rationale),
			Difficulty: domain.CanonicalGrade(q.Difficulty, domain.Difficulties, "intermediate"),
		})
	}
	if len(out) == 0 {
		out = append(out, domain.GenericQuestion(skills))
	}
	return out
}

func normalizeRiskFlags(items []domain.RiskFlag) []domain.RiskFlag {
	out := make([]domain.RiskFlag, 0, len(items))
	for _, f := range items {
		if strings.TrimSpace(f.Flag) == "" {
			continue
		}
		out = append(out, domain.RiskFlag{
			Flag:        strings.TrimSpace(f.Flag),
			Description: strings.TrimSpace(f.Description),
			Severity:    domain.CanonicalGrade(f.Severity, domain.Severities, "medium"),
		})
	}
	return out
}

func normalizeOverall(oa *domain.OverallAssessment) domain.OverallAssessment {
	if oa == nil {
		return domain.OverallAssessment{
			DecisionHint:  domain.DecisionMaybe,
			Justification: "Insufficient data for assessment",
		}
	}
	justification := strings.TrimSpace(oa.Justification)
	if justification == "" {
		justification = "Insufficient data for assessment"
	}
	return domain.OverallAssessment{
		DecisionHint:  domain.CanonicalGrade(oa.DecisionHint, domain.DecisionHints, domain.DecisionMaybe),
		Justification: justification,
	}
}

// notableRepos 排名前 3 的仓库全名
func notableRepos(repos []*domain.ScoredRepository) []string {
	out := make([]string, 0, maxNotableRepos)
	for _, r := range repos {
		if len(out) == maxNotableRepos {
			break
		}
		out = append(out, r.FullName)
	}
	return out
}

// summarize "Active developer with N relevant repositories [showing expertise in ...] [with S total stars]"
func summarize(repos []*domain.ScoredRepository, skillsMatch []domain.SkillAssessment) string {
	var strong []string
	for _, s := range skillsMatch {
		if s.Strength >= 3 {
			strong = append(strong, s.Skill)
		}
	}

	summary := fmt.Sprintf("Active developer with %d relevant repositories", len(repos))
	if len(strong) > 0 {
		summary += " showing expertise in " + strings.Join(strong, ", ")
	}
	if stars := totalStars(repos); stars > 0 {
		summary += fmt.Sprintf(" with %d total stars", stars)
	}
	return summary
}

func totalStars(repos []*domain.ScoredRepository) int {
	total := 0
	for _, r := range repos {
		total += r.Stars
	}
	return total
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
