package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morning-coach/internal/model"
	"morning-coach/internal/repository"
	"morning-coach/pkg/llm"
)

func strPtr(s string) *string { return &s }

// gatedLLM 在 release 关闭前阻塞每次生成，进入生成时向 entered 发送信号。
type gatedLLM struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedLLM(capacity int) *gatedLLM {
	return &gatedLLM{entered: make(chan struct{}, capacity), release: make(chan struct{})}
}

func (g *gatedLLM) ChatMessages(ctx context.Context, _ []llm.Message, _ *llm.GenerationParams) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return "gated reply", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWebhook_PlaceholderDefaults(t *testing.T) {
	svc := NewCoachService(nil, repository.NewMemoryHistoryRepository(0))

	resp := svc.Webhook(context.Background(), model.WebhookRequest{})
	assert.Equal(t, model.WebhookResponse{
		Event:        "morning",
		Context:      "",
		Length:       "short",
		CoachMessage: PlaceholderMessage,
	}, resp)
}

func TestWebhook_LiveUsesContextWithoutHistory(t *testing.T) {
	fake := &fakeLLM{reply: "Evening wind-down time."}
	repo := repository.NewMemoryHistoryRepository(0)
	_, _ = repo.Add(context.Background(), model.AnonymousUser, "old", "old reply")
	svc := NewCoachService(NewComposer(fake, ComposerConfig{}), repo)

	resp := svc.Webhook(context.Background(), model.WebhookRequest{
		Event:   strPtr("evening"),
		Context: strPtr("long day"),
	})
	assert.Equal(t, "evening", resp.Event)
	assert.Equal(t, "long day", resp.Context)
	assert.Equal(t, "short", resp.Length)
	assert.Equal(t, "Evening wind-down time.", resp.CoachMessage)

	msgs := fake.lastCall()
	require.Len(t, msgs, 3)
	assert.Equal(t, "User context: long day", msgs[1].Content)
	assert.Equal(t, llm.RoleUser, msgs[2].Role)
	assert.True(t, strings.Contains(msgs[2].Content, "evening"))
	assert.True(t, strings.Contains(msgs[2].Content, "short"))
}

func TestCoach_SecondCallSeesFirstInteraction(t *testing.T) {
	fake := &fakeLLM{reply: "Morning!"}
	repo := repository.NewMemoryHistoryRepository(0)
	svc := NewCoachService(NewComposer(fake, ComposerConfig{}), repo)
	ctx := context.Background()

	first, err := svc.Coach(ctx, "u1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", first.UserID)
	assert.Equal(t, "Morning!", first.Response)
	assert.False(t, first.Timestamp.IsZero())
	assert.Len(t, fake.lastCall(), 2)

	_, err = svc.Coach(ctx, "u1", "hi", nil)
	require.NoError(t, err)

	// persona + 1 对历史 + 当前消息
	msgs := fake.lastCall()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hi"}, msgs[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Morning!"}, msgs[2])

	hist, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, hist.Count)
}

func TestCoach_FallbackIsStored(t *testing.T) {
	fake := &fakeLLM{err: errors.New("insufficient_quota")}
	repo := repository.NewMemoryHistoryRepository(0)
	svc := NewCoachService(NewComposer(fake, ComposerConfig{}), repo)

	resp, err := svc.Coach(context.Background(), "u1", "hi", map[string]any{"mood": "low"})
	require.NoError(t, err)
	assert.Equal(t, "I'm having trouble connecting right now. Let's try again! Error: insufficient_quota", resp.Response)

	hist, _ := svc.History(context.Background(), "u1")
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, resp.Response, hist.History[0].CoachResponse)
	assert.Equal(t, resp.Timestamp, hist.History[0].Timestamp)
}

func TestCoach_PlaceholderTouchesNoHistory(t *testing.T) {
	repo := repository.NewMemoryHistoryRepository(0)
	svc := NewCoachService(nil, repo)

	resp, err := svc.Coach(context.Background(), "u1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderMessage, resp.Response)

	hist, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, hist.Count)
	assert.Empty(t, hist.History)
}

func TestClearHistory(t *testing.T) {
	fake := &fakeLLM{reply: "ok"}
	svc := NewCoachService(NewComposer(fake, ComposerConfig{}), repository.NewMemoryHistoryRepository(0))
	ctx := context.Background()

	require.NoError(t, svc.ClearHistory(ctx, "never-seen"))

	_, _ = svc.Coach(ctx, "u1", "hi", nil)
	require.NoError(t, svc.ClearHistory(ctx, "u1"))

	hist, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, hist.Count)
}

func TestCoach_HistoryUsableWhileGenerating(t *testing.T) {
	gate := newGatedLLM(1)
	repo := repository.NewMemoryHistoryRepository(0)
	svc := NewCoachService(NewComposer(gate, ComposerConfig{}), repo)
	ctx := context.Background()

	coachDone := make(chan error, 1)
	go func() {
		_, err := svc.Coach(ctx, "u1", "hi", nil)
		coachDone <- err
	}()
	waitFor(t, gate.entered, "generation to start")

	// 生成阻塞期间，同一用户的历史读写仍可完成
	storeDone := make(chan struct{})
	go func() {
		defer close(storeDone)
		_, err := repo.Add(ctx, "u1", "side", "channel")
		assert.NoError(t, err)
		history, err := repo.Get(ctx, "u1")
		assert.NoError(t, err)
		assert.Len(t, history, 1)
		assert.NoError(t, svc.ClearHistory(ctx, "u1"))
	}()
	waitFor(t, storeDone, "history access during generation")

	close(gate.release)
	require.NoError(t, <-coachDone)

	history, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "gated reply", history[0].CoachResponse)
}

func TestCoach_ConcurrentRequestsKeepBothInteractions(t *testing.T) {
	gate := newGatedLLM(2)
	repo := repository.NewMemoryHistoryRepository(0)
	svc := NewCoachService(NewComposer(gate, ComposerConfig{}), repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, msg := range []string{"first", "second"} {
		msg := msg
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Coach(ctx, "u1", msg, nil)
			assert.NoError(t, err)
		}()
	}
	// 两个请求都已读取历史并进入生成
	waitFor(t, gate.entered, "first generation")
	waitFor(t, gate.entered, "second generation")
	close(gate.release)
	wg.Wait()

	history, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	got := []string{history[0].UserMessage, history[1].UserMessage}
	assert.ElementsMatch(t, []string{"first", "second"}, got)
}
