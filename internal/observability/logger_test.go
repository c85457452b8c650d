package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Level(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()

	debug := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "text"})
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))
	assert.Same(t, debug, slog.Default())

	warn := NewLogger(&config.Config{LogLevel: "warn", LogFormat: "json"})
	assert.False(t, warn.Enabled(ctx, slog.LevelInfo))
	assert.True(t, warn.Enabled(ctx, slog.LevelWarn))
}
