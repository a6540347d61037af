package clicommand

import (
	"testing"

	"github.com/kvenv/kvenv/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  GlobalConfig
		want logger.Level
	}{
		{name: "default", cfg: GlobalConfig{}, want: logger.NOTICE},
		{name: "log level", cfg: GlobalConfig{LogLevel: "warn"}, want: logger.WARN},
		{name: "debug wins", cfg: GlobalConfig{LogLevel: "error", Debug: true}, want: logger.DEBUG},
		{name: "json", cfg: GlobalConfig{LogFormat: "json", LogLevel: "info"}, want: logger.INFO},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			l, err := CreateLogger(&test.cfg)
			require.NoError(t, err)
			assert.Equal(t, test.want, l.Level())
		})
	}
}

func TestCreateLoggerErrors(t *testing.T) {
	t.Parallel()

	_, err := CreateLogger(&GlobalConfig{LogFormat: "xml"})
	assert.EqualError(t, err, "invalid log format \"xml\", must be ′text′ or ′json′")

	_, err = CreateLogger(&GlobalConfig{LogLevel: "loud"})
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestHandleGlobalFlagsWithoutProfile(t *testing.T) {
	t.Parallel()

	done, err := HandleGlobalFlags(logger.Discard, &GlobalConfig{})
	require.NoError(t, err)
	done()
}

func TestProfileUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := Profile(logger.Discard, "llamas")
	assert.EqualError(t, err, `unknown profile mode "llamas"`)
}

func TestProfileMemory(t *testing.T) {
	t.Parallel()

	l := logger.NewBuffer()
	stop, err := Profile(l, "memory")
	require.NoError(t, err)
	stop()

	require.Len(t, l.Messages, 2)
	assert.Contains(t, l.Messages[0], "[info] Memory profiling enabled, ")
	assert.Contains(t, l.Messages[1], "[info] Finished mem profiling, ")
}
