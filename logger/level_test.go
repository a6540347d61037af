package logger_test

import (
	"testing"

	"github.com/kvenv/kvenv/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]logger.Level{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"notice":  logger.NOTICE,
		"warning": logger.WARN,
		"error":   logger.ERROR,
		"fatal":   logger.FATAL,
	} {
		got, err := logger.LevelFromString(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, "LevelFromString(%q)", input)
	}

	_, err := logger.LevelFromString("llamas")
	assert.Error(t, err)
}
