package service

import (
	"context"
	"fmt"
	"time"

	"morning-coach/internal/model"
	"morning-coach/internal/repository"
	"morning-coach/pkg/log"
)

// PlaceholderMessage 是占位模式下固定返回的教练消息。
const PlaceholderMessage = "Good morning — try a 2-minute breathing exercise and set one small intention for today."

// CoachService 定义了教练业务逻辑的接口。
type CoachService interface {
	// Webhook 处理无状态的 webhook 调用，不读写历史。
	Webhook(ctx context.Context, req model.WebhookRequest) model.WebhookResponse
	// Coach 读取历史、生成回复并追加一条交互。
	Coach(ctx context.Context, userID, message string, userContext map[string]any) (model.CoachResponse, error)
	History(ctx context.Context, userID string) (model.HistoryResponse, error)
	ClearHistory(ctx context.Context, userID string) error
}

type coachService struct {
	composer    *Composer
	historyRepo repository.HistoryRepository
	now         func() time.Time
}

// NewCoachService 创建一个新的 CoachService。composer 为 nil 时进入占位模式：
// 所有回复都是 PlaceholderMessage，且不读写历史。
func NewCoachService(composer *Composer, historyRepo repository.HistoryRepository) CoachService {
	return &coachService{
		composer:    composer,
		historyRepo: historyRepo,
		now:         time.Now,
	}
}

func (s *coachService) placeholder() bool {
	return s.composer == nil
}

// Webhook 填充缺省值后生成一条签到消息。
func (s *coachService) Webhook(ctx context.Context, req model.WebhookRequest) model.WebhookResponse {
	event, userContext, length := req.WithDefaults()
	resp := model.WebhookResponse{
		Event:   event,
		Context: userContext,
		Length:  length,
	}
	if s.placeholder() {
		resp.CoachMessage = PlaceholderMessage
		return resp
	}

	reply := s.composer.Generate(ctx, checkInMessage(event, length), userContext, nil)
	if reply.Fallback {
		log.Warnw("webhook generation fell back", "event", event, "error", reply.Cause)
	}
	resp.CoachMessage = reply.Text
	return resp
}

// checkInMessage 把 webhook 的 event 与 len 转成一条用户消息。
func checkInMessage(event, length string) string {
	return fmt.Sprintf("It's my %s check-in. Please keep your reply %s.", event, length)
}

// Coach 执行有状态的教练流程。生成期间不持有任何历史锁，
// 同一用户的并发请求可能读到相同的历史，但两次追加都会保留。
func (s *coachService) Coach(ctx context.Context, userID, message string, userContext map[string]any) (model.CoachResponse, error) {
	if s.placeholder() {
		return model.CoachResponse{
			UserID:    userID,
			Response:  PlaceholderMessage,
			Timestamp: s.now().UTC(),
		}, nil
	}

	history, err := s.historyRepo.Get(ctx, userID)
	if err != nil {
		return model.CoachResponse{}, fmt.Errorf("failed to load history: %w", err)
	}

	reply := s.composer.Generate(ctx, message, userContext, history)
	if reply.Fallback {
		log.Warnw("coach generation fell back", "userID", userID, "error", reply.Cause)
	}

	// 即使请求已被取消也保存这次交互
	interaction, err := s.historyRepo.Add(context.WithoutCancel(ctx), userID, message, reply.Text)
	if err != nil {
		return model.CoachResponse{}, fmt.Errorf("failed to save interaction: %w", err)
	}

	return model.CoachResponse{
		UserID:    userID,
		Response:  reply.Text,
		Timestamp: interaction.Timestamp,
	}, nil
}

// History 返回用户的完整历史。
func (s *coachService) History(ctx context.Context, userID string) (model.HistoryResponse, error) {
	history, err := s.historyRepo.Get(ctx, userID)
	if err != nil {
		return model.HistoryResponse{}, fmt.Errorf("failed to load history: %w", err)
	}
	return model.HistoryResponse{
		UserID:  userID,
		History: history,
		Count:   len(history),
	}, nil
}

// ClearHistory 清除用户历史，用户不存在时同样成功。
func (s *coachService) ClearHistory(ctx context.Context, userID string) error {
	if err := s.historyRepo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
