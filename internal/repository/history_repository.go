// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"sync"
	"time"

	"morning-coach/internal/model"
)

// DefaultMaxInteractions 是每个用户保留的默认交互条数。
const DefaultMaxInteractions = 50

// HistoryRepository 定义了用户对话历史的操作接口。
type HistoryRepository interface {
	// Get 返回用户历史的副本，按插入顺序排列；未知用户返回空切片。
	Get(ctx context.Context, userID string) ([]model.Interaction, error)
	// Add 追加一条交互，超过上限时从最旧的一端裁剪。
	Add(ctx context.Context, userID, userMessage, coachResponse string) (model.Interaction, error)
	// Clear 删除用户历史，用户不存在时为空操作。
	Clear(ctx context.Context, userID string) error
}

// Option 配置 memoryHistoryRepository。
type Option func(*memoryHistoryRepository)

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(r *memoryHistoryRepository) {
		r.now = now
	}
}

// userHistory 是单个用户的历史，由自己的互斥锁保护。
// dead 表示该条目已被 Clear 从 map 中移除。
type userHistory struct {
	mu           sync.Mutex
	interactions []model.Interaction
	dead         bool
}

// memoryHistoryRepository 是进程内的历史存储，生命周期与进程相同。
// 每个用户一把锁，不同用户之间不存在竞争。
type memoryHistoryRepository struct {
	users           sync.Map // key: userID, value: *userHistory
	maxInteractions int
	now             func() time.Time
}

// NewMemoryHistoryRepository 创建一个新的内存 HistoryRepository。
// maxInteractions 非正数时使用 DefaultMaxInteractions。
func NewMemoryHistoryRepository(maxInteractions int, opts ...Option) HistoryRepository {
	if maxInteractions <= 0 {
		maxInteractions = DefaultMaxInteractions
	}
	r := &memoryHistoryRepository{
		maxInteractions: maxInteractions,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get 从内存获取用户对话历史。
func (r *memoryHistoryRepository) Get(_ context.Context, userID string) ([]model.Interaction, error) {
	v, ok := r.users.Load(userID)
	if !ok {
		return []model.Interaction{}, nil
	}
	h := v.(*userHistory)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead {
		return []model.Interaction{}, nil
	}
	out := make([]model.Interaction, len(h.interactions))
	copy(out, h.interactions)
	return out, nil
}

// Add 追加一条交互，时间戳在写入时捕获。
func (r *memoryHistoryRepository) Add(_ context.Context, userID, userMessage, coachResponse string) (model.Interaction, error) {
	for {
		v, _ := r.users.LoadOrStore(userID, &userHistory{})
		h := v.(*userHistory)

		h.mu.Lock()
		if h.dead {
			// 与 Clear 竞争：该条目已被移除，重新取一个新条目
			h.mu.Unlock()
			continue
		}
		interaction := model.Interaction{
			Timestamp:     r.now().UTC(),
			UserMessage:   userMessage,
			CoachResponse: coachResponse,
		}
		h.interactions = append(h.interactions, interaction)
		if over := len(h.interactions) - r.maxInteractions; over > 0 {
			// 复制到新切片，释放被裁剪部分的底层数组
			trimmed := make([]model.Interaction, r.maxInteractions)
			copy(trimmed, h.interactions[over:])
			h.interactions = trimmed
		}
		h.mu.Unlock()
		return interaction, nil
	}
}

// Clear 删除用户的全部历史。
func (r *memoryHistoryRepository) Clear(_ context.Context, userID string) error {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	h := v.(*userHistory)

	h.mu.Lock()
	h.dead = true
	h.interactions = nil
	r.users.CompareAndDelete(userID, h)
	h.mu.Unlock()
	return nil
}
