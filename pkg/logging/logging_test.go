package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/spoolsync/pkg/logging"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf)

	logger.Info().Str("profile_id", "pla-red").Msg("resolved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolved", entry["message"])
	assert.Equal(t, "pla-red", entry["profile_id"])
	assert.Contains(t, entry, "time")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := logging.FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, logging.Default(), logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf)

	ctx := logging.WithLogger(context.Background(), &logger)
	logging.Ctx(ctx).Info().Msg("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestWithPassID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf)
	ctx := logging.WithLogger(context.Background(), &logger)

	ctx = logging.WithPassID(ctx, "pass-42")
	logging.Ctx(ctx).Info().Msg("running")

	assert.Equal(t, "pass-42", logging.PassID(ctx))
	assert.Contains(t, buf.String(), "pass-42")
}

func TestNewLoggerFromConfigNilUsesDefaults(t *testing.T) {
	logger := logging.NewLoggerFromConfig(nil)
	// Should not panic and should produce a usable logger.
	logger.Debug().Msg("noop")
}
