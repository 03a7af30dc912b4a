package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/lewisedginton/chat_console/internal/config"
	"github.com/lewisedginton/chat_console/pkg/config"
	"github.com/lewisedginton/chat_console/pkg/logger"
)

func testConfig() *appconfig.AppConfig {
	return &appconfig.AppConfig{
		ServiceName: "chat-console",
		Version:     "test",
		Environment: "production",
		Logging:     config.CommonConfig{LogLevel: "info", LogFormat: "json"},
		Console: appconfig.ConsoleConfig{
			Prefix:           "!",
			Engine:           "lua",
			IdleTimeout:      time.Minute,
			Ceiling:          2000,
			Shell:            "sh",
			DiscordOperators: []string{"1"},
		},
		Discord: appconfig.DiscordConfig{BotToken: "test-token", MessageCacheSize: 10},
		Paste: appconfig.PasteConfig{
			Backend:     appconfig.PasteHastebin,
			HastebinURL: "http://127.0.0.1:1",
			Timeout:     time.Second,
		},
		Ops: config.OpsServerConfig{Enabled: true, Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Health: appconfig.HealthConfig{
			LivenessPath:     "/health/live",
			ReadinessPath:    "/health/ready",
			CombinedPath:     "/health",
			Timeout:          time.Second,
			FailureThreshold: 1,
		},
	}
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), testConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.console.Close() })

	require.Len(t, s.connectors, 1)
	assert.Equal(t, "discord", s.connectors[0].Platform())
	assert.Nil(t, s.pool)
}

func TestNewWithoutConnectors(t *testing.T) {
	cfg := testConfig()
	cfg.Discord = appconfig.DiscordConfig{}

	_, err := New(context.Background(), cfg, logger.NewNopLogger())
	assert.ErrorContains(t, err, "no connectors configured")
}

func TestNewUnknownEngine(t *testing.T) {
	cfg := testConfig()
	cfg.Console.Engine = "python"

	_, err := New(context.Background(), cfg, logger.NewNopLogger())
	assert.ErrorContains(t, err, "failed to create engine")
}

func TestOpsServerRoutes(t *testing.T) {
	s, err := New(context.Background(), testConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.console.Close() })

	handler := s.opsServer().Handler

	tests := []struct {
		path string
		want int
	}{
		{path: "/health/live", want: http.StatusOK},
		{path: "/health/ready", want: http.StatusServiceUnavailable},
		{path: "/metrics", want: http.StatusOK},
		{path: "/ping", want: http.StatusOK},
		{path: "/debug/pprof/", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}

func TestCreatePublisher(t *testing.T) {
	tests := []struct {
		name    string
		paste   appconfig.PasteConfig
		want    string
		wantErr bool
	}{
		{
			name:  "hastebin",
			paste: appconfig.PasteConfig{Backend: appconfig.PasteHastebin, HastebinURL: "https://hastebin.example", Timeout: time.Second},
			want:  "hastebin",
		},
		{
			name:  "gist",
			paste: appconfig.PasteConfig{Backend: appconfig.PasteGist, GistToken: "t", Timeout: time.Second},
			want:  "gist",
		},
		{
			name:    "unsupported",
			paste:   appconfig.PasteConfig{Backend: "pastebin", Timeout: time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Paste = tt.paste
			s := &Server{cfg: cfg, log: logger.NewNopLogger()}

			pub, err := s.createPublisher(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pub.Name())
		})
	}
}
