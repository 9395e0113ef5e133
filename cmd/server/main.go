// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"morning-coach/internal/config"
	"morning-coach/internal/handler"
	"morning-coach/internal/repository"
	"morning-coach/internal/service"
	"morning-coach/pkg/llm"
	"morning-coach/pkg/log"
	"morning-coach/pkg/smoke"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	root := &cobra.Command{
		Use:          "server",
		Short:        "Morning coach webhook service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 可选，不存在时继续使用进程环境变量
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", envFile, err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", ".env 文件路径")

	root.AddCommand(newSmokeCmd())
	return root
}

func newSmokeCmd() *cobra.Command {
	var (
		baseURL string
		userID  string
		secret  string
	)
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "对运行中的服务执行端到端检查",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("COACH_WEBHOOK_SECRET")
			}
			runner := smoke.NewRunner(smoke.Options{BaseURL: baseURL, UserID: userID, WebhookSecret: secret})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Morning Coach Service - Smoke Check (%s)\n", baseURL)
			failed := 0
			for _, r := range runner.Run(cmd.Context()) {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(out, "  %s: %s\n", r.Name, status)
				if r.Err != nil {
					fmt.Fprintf(out, "    %v\n", r.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d smoke step(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "服务地址")
	cmd.Flags().StringVar(&userID, "user-id", "test_user_123", "用于检查的用户 ID")
	cmd.Flags().StringVar(&secret, "secret", "", "webhook 密钥，缺省读取 COACH_WEBHOOK_SECRET")
	return cmd
}

// buildCoachService 按配置组装 CoachService；未配置 API key 时为占位模式。
func buildCoachService(cfg config.Config) service.CoachService {
	historyRepo := repository.NewMemoryHistoryRepository(cfg.History.MaxInteractions)
	if cfg.PlaceholderMode() {
		log.Warnf("未配置 OPENAI_API_KEY，进入占位模式")
		return service.NewCoachService(nil, historyRepo)
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	temperature := cfg.LLM.Generation.Temperature
	composer := service.NewComposer(llmClient, service.ComposerConfig{
		Persona:      cfg.LLM.Prompt.Persona,
		Temperature:  &temperature,
		MaxTokens:    cfg.LLM.Generation.MaxTokens,
		PromptWindow: cfg.History.PromptWindow,
		Timeout:      cfg.LLM.Timeout,
	})
	return service.NewCoachService(composer, historyRepo)
}

func serve(cfg config.Config) error {
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	if cfg.Webhook.Secret == "" {
		log.Warnf("未配置 COACH_WEBHOOK_SECRET，所有 /coach 请求都将返回 401")
	}

	coachService := buildCoachService(cfg)

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(coachService, handler.RouterOptions{
		WebhookSecret:  cfg.Webhook.Secret,
		HistoryEnabled: cfg.History.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("服务启动",
			"addr", srv.Addr,
			"model", cfg.LLM.Model,
			"placeholder", cfg.PlaceholderMode(),
			"history", cfg.History.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
	}

	// 历史只保存在内存中，随进程退出丢弃
	log.Info("服务已优雅关闭")
	return nil
}
