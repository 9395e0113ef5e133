// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"morning-coach/internal/model"
	"morning-coach/pkg/llm"
)

// DefaultPersona 定义教练的人设与行为准则。
const DefaultPersona = `You are an empathetic and motivating morning coach.
Your role is to help people start their day positively, set intentions,
and overcome morning challenges. Be warm, encouraging, and practical.

Guidelines:
- Keep responses concise but meaningful (2-4 sentences)
- Be genuinely encouraging without being cheesy
- Ask follow-up questions to deepen engagement
- Provide actionable advice when appropriate
- Remember context from the conversation
`

// 生成参数缺省值
const (
	DefaultTemperature  = 0.8
	DefaultMaxTokens    = 200
	DefaultPromptWindow = 5
)

const fallbackTemplate = "I'm having trouble connecting right now. Let's try again! Error: %s"

// Reply 是一次生成的结果。Fallback 为 true 时 Text 是兜底文案，Cause 为底层错误。
// 对外只输出 Text。
type Reply struct {
	Text     string
	Fallback bool
	Cause    error
}

// ComposerConfig 配置 Composer，零值字段使用缺省值。
// Temperature 为 nil 时取 DefaultTemperature，显式的 0 会原样保留。
type ComposerConfig struct {
	Persona      string
	Temperature  *float64
	MaxTokens    int
	PromptWindow int
	Timeout      time.Duration
}

// Composer 根据消息、上下文与历史拼装 prompt，并调用文本生成服务。
type Composer struct {
	llmClient llm.Client
	cfg       ComposerConfig
}

// NewComposer 创建一个新的 Composer。
func NewComposer(llmClient llm.Client, cfg ComposerConfig) *Composer {
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.PromptWindow <= 0 {
		cfg.PromptWindow = DefaultPromptWindow
	}
	return &Composer{llmClient: llmClient, cfg: cfg}
}

// ComposePrompt 按固定顺序拼装消息：人设 system、可选的上下文 system、
// 最近 PromptWindow 条历史（由旧到新，每条一对 user/assistant）、当前 user 消息。
func (c *Composer) ComposePrompt(message string, userContext any, history []model.Interaction) []llm.Message {
	if len(history) > c.cfg.PromptWindow {
		history = history[len(history)-c.cfg.PromptWindow:]
	}

	msgs := make([]llm.Message, 0, 3+2*len(history))
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: c.cfg.Persona})
	if rendered, ok := renderContext(userContext); ok {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: "User context: " + rendered})
	}
	for _, h := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: h.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: h.CoachResponse},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
	return msgs
}

// Generate 调用文本生成服务。任何失败都转换为兜底文案，不向上返回错误。
func (c *Composer) Generate(ctx context.Context, message string, userContext any, history []model.Interaction) Reply {
	messages := c.ComposePrompt(message, userContext, history)

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	temperature := *c.cfg.Temperature
	maxTokens := c.cfg.MaxTokens
	text, err := c.llmClient.ChatMessages(ctx, messages, &llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return fallbackReply(err)
	}
	return Reply{Text: strings.TrimSpace(text)}
}

func fallbackReply(err error) Reply {
	return Reply{
		Text:     fmt.Sprintf(fallbackTemplate, err.Error()),
		Fallback: true,
		Cause:    err,
	}
}

// renderContext 把上下文渲染为稳定可读的文本。字符串原样输出；
// 其他值按 JSON 编码（map 的键有序）。空值返回 false。
func renderContext(userContext any) (string, bool) {
	if userContext == nil {
		return "", false
	}
	if s, ok := userContext.(string); ok {
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}

	rv := reflect.ValueOf(userContext)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "", false
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}
	}

	b, err := json.Marshal(userContext)
	if err != nil {
		return fmt.Sprintf("%v", userContext), true
	}
	return string(b), true
}
