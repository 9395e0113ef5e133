package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"morning-coach/internal/config"
	"morning-coach/internal/handler"
	"morning-coach/internal/model"
	"morning-coach/internal/service"
)

func TestBuildCoachService_PlaceholderWithoutAPIKey(t *testing.T) {
	cfg := config.Config{History: config.HistoryConfig{Enabled: true, MaxInteractions: 50}}

	svc := buildCoachService(cfg)
	resp := svc.Webhook(context.Background(), model.WebhookRequest{})
	assert.Equal(t, service.PlaceholderMessage, resp.CoachMessage)
}

func TestSmokeCommand(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{History: config.HistoryConfig{Enabled: true}}
	srv := httptest.NewServer(handler.NewRouter(buildCoachService(cfg), handler.RouterOptions{
		WebhookSecret:  "s3cr3t",
		HistoryEnabled: true,
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"smoke", "--env-file", t.TempDir() + "/.env", "--base-url", srv.URL, "--secret", "s3cr3t"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Health Check: PASS")
	assert.Contains(t, out.String(), "Webhook: PASS")
	assert.NotContains(t, out.String(), "FAIL")
}
