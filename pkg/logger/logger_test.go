package clientlogger

import (
	"testing"

	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

func TestParsePionLevel(t *testing.T) {
	for level, expected := range map[string]logging.LogLevel{
		"trace":    logging.LogLevelTrace,
		"DEBUG":    logging.LogLevelDebug,
		"info":     logging.LogLevelInfo,
		"warning":  logging.LogLevelWarn,
		"off":      logging.LogLevelDisabled,
		"":         logging.LogLevelError,
		"nonsense": logging.LogLevelError,
	} {
		require.Equal(t, expected, parsePionLevel(level), level)
	}
}

func TestAdapterLevels(t *testing.T) {
	l := &logAdapter{level: logging.LogLevelWarn}
	require.True(t, l.enabled(logging.LogLevelError))
	require.True(t, l.enabled(logging.LogLevelWarn))
	require.False(t, l.enabled(logging.LogLevelInfo))

	l.level = logging.LogLevelDisabled
	require.False(t, l.enabled(logging.LogLevelError))
}

func TestFactoryScopes(t *testing.T) {
	f := NewLoggerFactory(nil, "debug")
	l, ok := f.NewLogger("ice").(*logAdapter)
	require.True(t, ok)
	require.Equal(t, logging.LogLevelDebug, l.level)
	require.NotNil(t, l.logger)

	// must not panic with the global logger
	l.Debugf("candidate %d", 1)
	l.Warn("warning")
}
