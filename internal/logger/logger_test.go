package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		debugSeen bool
	}{
		{"debug level text", &Config{Level: "debug", Format: "text"}, true},
		{"info level json", &Config{Level: "info", Format: "json"}, false},
		{"warn level text", &Config{Level: "warn", Format: "text"}, false},
		{"default level", &Config{Level: "invalid", Format: "text"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitWithWriter(tt.config, &buf)
			slog.Debug("debug message")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug message")))
		})
	}
}

func TestWithContextAddsActor(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&Config{Level: "info", Format: "json"}, &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, ActorIDKey, "buyer-7")
	ctx = context.WithValue(ctx, RoleKey, "buyer")

	Info(ctx, "request created", "request_id_field", "x")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"actor_id":"buyer-7"`)
	assert.Contains(t, out, `"role":"buyer"`)
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&Config{Level: "debug", Format: "text"}, &buf)
	ctx := context.Background()

	Debug(ctx, "debug message")
	Warn(ctx, "warn message")
	Error(ctx, "error message")

	assert.Contains(t, buf.String(), "debug message")
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "error message")
}
