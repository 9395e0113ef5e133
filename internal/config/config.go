// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	LLM     LLMConfig     `mapstructure:"llm"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebhookConfig 存储 webhook 共享密钥。密钥为空时所有 /coach 调用都返回 401。
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// LLMConfig 存储文本生成服务相关的配置。APIKey 为空时进入占位模式。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置教练人设；为空时使用内置人设。
type LLMPromptConfig struct {
	Persona string `mapstructure:"persona"`
}

// HistoryConfig 控制有状态部署：是否开启 /api/* 路由、每个用户保留多少条交互、
// 以及拼装 prompt 时回放最近几条。
type HistoryConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxInteractions int  `mapstructure:"max_interactions"`
	PromptWindow    int  `mapstructure:"prompt_window"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// PlaceholderMode 报告是否未配置生成服务凭证。
func (c Config) PlaceholderMode() bool {
	return c.LLM.APIKey == ""
}

var envBindings = map[string]string{
	"server.port":     "PORT",
	"server.mode":     "GIN_MODE",
	"webhook.secret":  "COACH_WEBHOOK_SECRET",
	"llm.api_key":     "OPENAI_API_KEY",
	"llm.base_url":    "OPENAI_BASE_URL",
	"llm.model":       "OPENAI_MODEL",
	"history.enabled": "COACH_HISTORY_ENABLED",
	"log.level":       "LOG_LEVEL",
	"log.format":      "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.generation.temperature", 0.8)
	v.SetDefault("llm.generation.max_tokens", 200)
	v.SetDefault("llm.prompt.persona", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.max_interactions", 50)
	v.SetDefault("history.prompt_window", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")
}

// Load 读取可选的 YAML 配置文件并叠加环境变量。configPath 为空或文件不存在时只使用
// 默认值和环境变量。
func Load(configPath string) (Config, error) {
	var conf Config

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return conf, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return conf, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return conf, fmt.Errorf("检查配置文件失败: %w", err)
		}
	}

	if err := v.Unmarshal(&conf); err != nil {
		return conf, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return conf, nil
}
