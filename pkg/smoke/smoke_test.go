package smoke

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morning-coach/internal/handler"
	"morning-coach/internal/repository"
	"morning-coach/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, historyEnabled bool) *httptest.Server {
	t.Helper()
	svc := service.NewCoachService(nil, repository.NewMemoryHistoryRepository(0))
	srv := httptest.NewServer(handler.NewRouter(svc, handler.RouterOptions{
		WebhookSecret:  "s3cr3t",
		HistoryEnabled: historyEnabled,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_AllStepsPass(t *testing.T) {
	srv := newServer(t, true)

	results := NewRunner(Options{BaseURL: srv.URL, WebhookSecret: "s3cr3t"}).Run(context.Background())
	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %v", r.Name, r.Err)
	}
}

func TestRun_ReportsFailures(t *testing.T) {
	srv := newServer(t, false)

	results := NewRunner(Options{BaseURL: srv.URL, WebhookSecret: "wrong"}).Run(context.Background())
	require.Len(t, results, 5)

	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["Health Check"].Passed)
	assert.False(t, byName["Coaching"].Passed)
	assert.False(t, byName["History Retrieval"].Passed)
	assert.False(t, byName["Clear History"].Passed)
	assert.False(t, byName["Webhook"].Passed)
	assert.Error(t, byName["Webhook"].Err)
}
