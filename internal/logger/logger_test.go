package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel).Component("orchestrator")

	log.Info("asset done",
		String("asset", "GOLD"),
		Int("points", 3),
		Float64("error", 0.5),
		Bool("fallback", true),
		Duration("took", 1500*time.Millisecond),
		Date("date", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
		Error(errors.New("boom")),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "asset done", entry["message"])
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "GOLD", entry["asset"])
	assert.Equal(t, float64(3), entry["points"])
	assert.Equal(t, 0.5, entry["error"])
	assert.Equal(t, true, entry["fallback"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.Equal(t, "2024-01-03", entry["date"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := t.TempDir() + "/forecast.log"
	log, err := New(Config{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)
	log.Info("written")
}
