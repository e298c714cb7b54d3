package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"

	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	skills    []string
	limit     int
	maxFiles  int
	languages []string
	notes     string
}

func (o *analyzeOptions) addFlags(cmd *cobra.Command, withReportFlags bool) {
	cmd.Flags().StringSliceVarP(&o.skills, "skills", "s", nil, "comma separated skills to evaluate (required)")
	cmd.Flags().IntVar(&o.limit, "limit", domain.DefaultRepoLimit, "number of ranked repositories to keep")
	cmd.Flags().IntVar(&o.maxFiles, "max-files", domain.DefaultMaxFilesPerRepo, "root-level code files listed per ranked repository (0 disables)")
	cmd.Flags().StringSliceVar(&o.languages, "languages", nil, "preferred languages")
	if withReportFlags {
		cmd.Flags().StringVar(&o.notes, "notes", "", "recruiter notes passed to the model")
	}
	_ = cmd.MarkFlagRequired("skills")
}

// request 复用提交接口的校验规则
func (o *analyzeOptions) request(username string) (domain.CreateJobRequest, error) {
	req := domain.CreateJobRequest{
		GitHubUsername:  strings.TrimSpace(username),
		Skills:          o.skills,
		RepoLimit:       o.limit,
		MaxFilesPerRepo: o.maxFiles,
		Languages:       o.languages,
		NotesForAI:      o.notes,
	}
	if err := req.Validate(); err != nil {
		return req, common.WrapError(common.ErrCodeInvalidInput, "invalid arguments", err)
	}
	return req, nil
}

func (o *analyzeOptions) scoreOptions() domain.ScoreOptions {
	return domain.ScoreOptions{
		Limit:           o.limit,
		MaxFilesPerRepo: o.maxFiles,
		Languages:       domain.NormalizeSkills(o.languages),
	}
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <github-username>",
		Short: "Score and report on a candidate once, without persisting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := o.request(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			skills := domain.NormalizeSkills(req.Skills)
			ranked, err := buildScorer(cfg, log).Score(ctx, req.GitHubUsername, skills, o.scoreOptions())
			if err != nil {
				return fmt.Errorf("failed to fetch GitHub data: %s", common.SummaryOf(err))
			}

			gen, closeGen, err := buildGenerator(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeGen()

			report, err := buildSynthesizer(gen, cfg, log).Synthesize(ctx, domain.SynthesisInput{
				Username:   req.GitHubUsername,
				Skills:     skills,
				Repos:      ranked,
				NotesForAI: strings.TrimSpace(req.NotesForAI),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	o.addFlags(cmd, true)
	return cmd
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "score <github-username>",
		Short: "Print a user's repositories ranked against the skills",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := o.request(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, "stderr")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ranked, err := buildScorer(cfg, log).Score(cmd.Context(), req.GitHubUsername, domain.NormalizeSkills(req.Skills), o.scoreOptions())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ranked)
		},
	}
	o.addFlags(cmd, false)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
