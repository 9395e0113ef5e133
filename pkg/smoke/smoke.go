// Package smoke 对一个运行中的部署做端到端检查：健康检查、教练对话、读取历史、清除历史。
package smoke

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"morning-coach/internal/model"
)

// Result 是单个检查步骤的结果。
type Result struct {
	Name   string
	Passed bool
	Err    error
}

// Options 配置一次检查。
type Options struct {
	BaseURL string
	UserID  string
	Message string
	Context map[string]any
	// WebhookSecret 非空时额外检查 POST /coach。
	WebhookSecret string
	Timeout       time.Duration
}

// Runner 依次执行检查步骤。
type Runner struct {
	client *resty.Client
	opts   Options
}

// NewRunner 创建一个新的 Runner。
func NewRunner(opts Options) *Runner {
	if opts.UserID == "" {
		opts.UserID = "test_user_123"
	}
	if opts.Message == "" {
		opts.Message = "I'm feeling really tired this morning and don't want to get out of bed."
	}
	if opts.Context == nil {
		opts.Context = map[string]any{"time": "7:00 AM", "mood": "low"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Runner{client: client, opts: opts}
}

type step struct {
	name string
	fn   func(context.Context) error
}

// Run 执行全部步骤，单个步骤失败不会中断后续步骤。
func (r *Runner) Run(ctx context.Context) []Result {
	steps := []step{
		{"Health Check", r.health},
		{"Coaching", r.coach},
		{"History Retrieval", r.history},
		{"Clear History", r.clear},
	}
	if r.opts.WebhookSecret != "" {
		steps = append(steps, step{"Webhook", r.webhook})
	}

	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		err := step.fn(ctx)
		results = append(results, Result{Name: step.name, Passed: err == nil, Err: err})
	}
	return results
}

func expectOK(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (r *Runner) health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	resp, err := r.client.R().SetContext(ctx).SetResult(&out).Get("/")
	if err := expectOK(resp, err); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("health check reported not ok: %s", resp.String())
	}
	return nil
}

func (r *Runner) coach(ctx context.Context) error {
	var out model.CoachResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(model.CoachRequest{UserID: r.opts.UserID, Message: r.opts.Message, Context: r.opts.Context}).
		SetResult(&out).
		Post("/api/coach")
	if err := expectOK(resp, err); err != nil {
		return err
	}
	if out.Response == "" {
		return fmt.Errorf("empty coach response")
	}
	return nil
}

func (r *Runner) history(ctx context.Context) error {
	var out model.HistoryResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("userID", r.opts.UserID).
		SetResult(&out).
		Get("/api/history/{userID}")
	if err := expectOK(resp, err); err != nil {
		return err
	}
	if out.Count != len(out.History) {
		return fmt.Errorf("count %d does not match history length %d", out.Count, len(out.History))
	}
	return nil
}

func (r *Runner) clear(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetPathParam("userID", r.opts.UserID).
		SetResult(&out).
		Delete("/api/history/{userID}")
	if err := expectOK(resp, err); err != nil {
		return err
	}
	if out.Status != "cleared" {
		return fmt.Errorf("unexpected clear status %q", out.Status)
	}
	return nil
}

func (r *Runner) webhook(ctx context.Context) error {
	var out model.WebhookResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("X-Auth", r.opts.WebhookSecret).
		SetBody(map[string]string{"event": "morning"}).
		SetResult(&out).
		Post("/coach")
	if err := expectOK(resp, err); err != nil {
		return err
	}
	if out.CoachMessage == "" {
		return fmt.Errorf("empty coach_message")
	}
	return nil
}
