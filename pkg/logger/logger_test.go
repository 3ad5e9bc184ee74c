package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	Setup("development")
	require.NotNil(t, Log)

	ctx := context.Background()
	assert.True(t, Log.Enabled(ctx, slog.LevelInfo))
	assert.False(t, Log.Enabled(ctx, slog.LevelDebug))

	// Helpers write through the global without panicking.
	Info("logger smoke test", "env", "development")
	Warn("logger smoke test", "env", "development")
	Error("logger smoke test", "env", "development")
}

func TestSetup_Production(t *testing.T) {
	Setup("production")
	require.NotNil(t, Log)
	assert.True(t, Log.Enabled(context.Background(), slog.LevelInfo))
}
