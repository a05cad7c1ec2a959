package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogger(t *testing.T) {
	lg, err := Logger("DEBUG")
	require.NoError(t, err)
	require.True(t, lg.Core().Enabled(zap.DebugLevel))

	lg, err = Logger("warn")
	require.NoError(t, err)
	require.False(t, lg.Core().Enabled(zap.InfoLevel))

	_, err = Logger("loud")
	require.Error(t, err)
}
