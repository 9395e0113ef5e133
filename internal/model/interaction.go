// Package model 包含了应用的数据模型定义。
package model

import "time"

// Interaction 代表一次教练对话交互，创建后不可变。
type Interaction struct {
	Timestamp     time.Time `json:"timestamp"`
	UserMessage   string    `json:"user_message"`
	CoachResponse string    `json:"coach_response"`
}
