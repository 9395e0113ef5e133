package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// 请求字段缺省值
const (
	DefaultEvent  = "morning"
	DefaultLength = "short"
	AnonymousUser = "anonymous"
)

// WebhookRequest 是 POST /coach 的请求体，所有字段可选。
type WebhookRequest struct {
	Event   *string `json:"event"`
	Context *string `json:"context"`
	Len     *string `json:"len"`
}

// WithDefaults 返回填充缺省值后的 event、context、length。
func (r WebhookRequest) WithDefaults() (event, context, length string) {
	event, context, length = DefaultEvent, "", DefaultLength
	if r.Event != nil {
		event = *r.Event
	}
	if r.Context != nil {
		context = *r.Context
	}
	if r.Len != nil {
		length = *r.Len
	}
	return event, context, length
}

// ParseWebhookRequest 逐字段解析 webhook 请求体。
// 请求体为空或不是合法的 JSON 对象时返回零值，所有字段取缺省值。
// 字符串字段原样使用，其他 JSON 值以紧凑 JSON 文本保留，null 视为缺失。
func ParseWebhookRequest(body []byte) (WebhookRequest, error) {
	var req WebhookRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return WebhookRequest{}, err
	}
	req.Event = fieldText(fields["event"])
	req.Context = fieldText(fields["context"])
	req.Len = fieldText(fields["len"])
	return req, nil
}

func fieldText(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		text := string(raw)
		return &text
	}
	text := buf.String()
	return &text
}

// WebhookResponse 是 POST /coach 的响应体。
type WebhookResponse struct {
	Event        string `json:"event"`
	Context      string `json:"context"`
	Length       string `json:"length"`
	CoachMessage string `json:"coach_message"`
}

// CoachRequest 是 POST /api/coach 的请求体。
type CoachRequest struct {
	UserID  string         `json:"user_id"`
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

// CoachResponse 是 POST /api/coach 的响应体。
type CoachResponse struct {
	UserID    string    `json:"user_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse 是 GET /api/history/:user_id 的响应体。
type HistoryResponse struct {
	UserID  string        `json:"user_id"`
	History []Interaction `json:"history"`
	Count   int           `json:"count"`
}
