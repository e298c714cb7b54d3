package service

import (
	"fmt"
	"strings"
	"time"

	"git-gauge/internal/domain"
)

// MaxPromptRepos 写进提示词的仓库上限
const MaxPromptRepos = 5

const reportShape = `{
  "candidate": {
    "github_username": "%s",
    "summary_of_work": "Brief 2-3 sentence summary of their work and expertise",
    "notable_repos": ["up to 3 repository full names"]
  },
  "skills_match": [
    {
      "skill": "skill_name",
      "strength": 1,
      "evidence_snippets": ["specific evidence"],
      "repos_referenced": ["owner/repo"]
    }
  ],
  "code_quality": {
    "style": "Poor|Adequate|Good|Excellent",
    "readability": "Low|Medium|High|Excellent",
    "testing": "Poor|Adequate|Good|Excellent",
    "documentation": "Poor|Adequate|Good|Excellent",
    "security": "Poor|Adequate|Good|Excellent"
  },
  "commit_habits": {
    "frequency": "Rare|Occasional|Regular|Frequent",
    "message_quality": "Poor|Adequate|Good|Excellent",
    "collaboration_signals": "Limited|Moderate|Active|Very Active"
  },
  "interview_questions": [
    {
      "question": "Specific technical question",
      "rationale": "Why this question is relevant",
      "difficulty": "beginner|intermediate|advanced"
    }
  ],
  "risk_flags": [
    {
      "flag": "Flag name",
      "description": "Description of the concern",
      "severity": "low|medium|high"
    }
  ],
  "overall_assessment": {
    "decision_hint": "strong_yes|yes|maybe|no",
    "justification": "Detailed reasoning for the decision"
  }
}`

// BuildPrompt 组装分析提示词，只取排名前 MaxPromptRepos 个仓库
func BuildPrompt(in domain.SynthesisInput) string {
	var sb strings.Builder

	sb.WriteString("You are analyzing a GitHub candidate profile for a technical hiring decision.\n\n")
	fmt.Fprintf(&sb, "CANDIDATE: %s\n", in.Username)
	fmt.Fprintf(&sb, "SKILLS TO EVALUATE: %s\n\n", strings.Join(in.Skills, ", "))

	sb.WriteString("REPOSITORY DATA:\n")
	repos := in.Repos
	if len(repos) > MaxPromptRepos {
		repos = repos[:MaxPromptRepos]
	}
	for _, repo := range repos {
		writeRepoSummary(&sb, repo)
	}

	if notes := strings.TrimSpace(in.NotesForAI); notes != "" {
		sb.WriteString("\nRECRUITER NOTES:\n")
		sb.WriteString(notes)
		sb.WriteString("\n")
	}

	sb.WriteString("\nProvide the analysis in exactly this JSON format:\n\n")
	fmt.Fprintf(&sb, reportShape, in.Username)
	sb.WriteString(`

GUIDELINES:
1. Be objective and evidence-based.
2. Rate each requested skill 1-5 based on concrete evidence, one entry per skill.
3. Generate 2-3 relevant interview questions.
4. Identify red flags or concerns.
5. Use only the listed vocabulary for graded fields.

Respond ONLY with valid JSON, no additional text.
`)
	return sb.String()
}

func writeRepoSummary(sb *strings.Builder, repo *domain.ScoredRepository) {
	desc := repo.Description
	if desc == "" {
		desc = "No description"
	}
	updated := "Unknown"
	if !repo.UpdatedAt.IsZero() {
		updated = repo.UpdatedAt.UTC().Format(time.RFC3339)
	}

	fmt.Fprintf(sb, "\nRepository: %s\n", repo.FullName)
	fmt.Fprintf(sb, "Description: %s\n", desc)
	fmt.Fprintf(sb, "Languages: %s\n", strings.Join(repo.LanguageNames(), ", "))
	fmt.Fprintf(sb, "Stars: %d\n", repo.Stars)
	fmt.Fprintf(sb, "Size: %d KB\n", repo.Size)
	fmt.Fprintf(sb, "Updated: %s\n", updated)
	fmt.Fprintf(sb, "Matched Skills: %s\n", strings.Join(repo.MatchedSkills, ", "))
	if len(repo.CodeFiles) > 0 {
		names := make([]string, 0, len(repo.CodeFiles))
		for _, f := range repo.CodeFiles {
			names = append(names, f.Path)
		}
		fmt.Fprintf(sb, "Code Files: %s\n", strings.Join(names, ", "))
	}
}
