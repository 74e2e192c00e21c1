package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)
	require.Equal(zap.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(zap.WarnLevel, ParseLevel("warning"))
	require.Equal(zap.ErrorLevel, ParseLevel(" error "))
	require.Equal(zap.InfoLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	require := require.New(t)
	for _, env := range []string{"production", "development"} {
		log, err := New(env, "warn")
		require.NoError(err)
		require.False(log.Core().Enabled(zap.InfoLevel))
		require.True(log.Core().Enabled(zap.WarnLevel))
	}
}
