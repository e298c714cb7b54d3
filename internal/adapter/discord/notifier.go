package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"git-gauge/internal/common"
	"git-gauge/internal/domain"
	"git-gauge/internal/logger"

	"go.uber.org/zap"
)

// embed 颜色
const (
	colorCompleted = 0x2ecc71
	colorFailed    = 0xe74c3c
)

type Notifier struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger

	maxRetries   int
	initialDelay time.Duration
}

// NewNotifier webhook 为空时返回的 Notifier 什么都不做
func NewNotifier(webhook string, log *zap.Logger) *Notifier {
	log = logger.OrNop(log)
	if webhook == "" {
		log.Warn("Discord Webhook 为空，任务通知将被跳过")
	}
	return &Notifier{
		webhookURL:   webhook,
		client:       &http.Client{Timeout: 10 * time.Second},
		log:          log,
		maxRetries:   3,
		initialDelay: 500 * time.Millisecond,
	}
}

// Enabled 是否配置了 webhook
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

type payload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// NotifyJob 任务进入终态时推送一条 embed 消息
func (n *Notifier) NotifyJob(ctx context.Context, job *domain.Job, report *domain.AnalysisReport) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(buildPayload(job, report))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "序列化 Discord 消息失败", err)
	}

	// 4xx 不重试
	err = common.Do(ctx, func() error {
		return n.post(ctx, body)
	},
		common.WithMaxRetries(n.maxRetries),
		common.WithInitialDelay(n.initialDelay),
		common.WithRetryIf(func(err error) bool { return !common.IsCode(err, common.ErrCodeInvalidInput) }),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送 Discord 通知失败", err)
	}

	n.log.Debug("Discord 通知已发送", zap.String(logger.FieldJobID, job.ID))
	return nil
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return common.WrapError(common.ErrCodeInvalidInput, "构造请求失败", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("Discord API 报错: 状态码 %d", resp.StatusCode)
	default:
		return common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("Discord API 拒绝请求: 状态码 %d", resp.StatusCode))
	}
}

func buildPayload(job *domain.Job, report *domain.AnalysisReport) payload {
	e := embed{
		Fields: []embedField{
			{Name: "Job", Value: job.ID, Inline: true},
			{Name: "Skills", Value: orDash(strings.Join(job.Skills, ", ")), Inline: true},
		},
		Timestamp: job.UpdatedAt.UTC().Format(time.RFC3339),
	}

	switch job.Status {
	case domain.JobCompleted:
		e.Title = fmt.Sprintf("Analysis completed: %s", job.GitHubUsername)
		e.Color = colorCompleted
		if report != nil {
			e.Description = report.Candidate.SummaryOfWork
			e.Fields = append(e.Fields,
				embedField{Name: "Decision", Value: report.OverallAssessment.DecisionHint, Inline: true},
				embedField{Name: "Notable repos", Value: orDash(strings.Join(report.Candidate.NotableRepos, "\n"))},
				embedField{Name: "Justification", Value: orDash(report.OverallAssessment.Justification)},
			)
		}
	default:
		e.Title = fmt.Sprintf("Analysis failed: %s", job.GitHubUsername)
		e.Color = colorFailed
		e.Description = job.ErrorMessage
		e.Fields = append(e.Fields, embedField{Name: "Error code", Value: orDash(job.ErrorCode), Inline: true})
	}

	return payload{Username: "git-gauge", Embeds: []embed{e}}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
