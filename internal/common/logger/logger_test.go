package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewNamed(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			log, err := NewNamed(env, "service-trips")
			require.NoError(t, err)
			require.NotNil(t, log)

			debugEnabled := log.Core().Enabled(zapcore.DebugLevel)
			require.Equal(t, env == "development", debugEnabled)
		})
	}
}
