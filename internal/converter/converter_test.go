package converter

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"ps2cfg/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunnerNotConfigured(t *testing.T) {
	_, err := NewRunner(pkg.ConverterConfig{}, zap.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRunnerPassesDirectories(t *testing.T) {
	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}
	r := NewRunner(pkg.ConverterConfig{Binary: echo, InputDir: "in", OutputDir: "out", Timeout: 5 * time.Second}, zap.NewNop())
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "--verbose -1 in out\n", res.Output)
}

func TestRunnerMissingBinary(t *testing.T) {
	r := NewRunner(pkg.ConverterConfig{Binary: "/nonexistent/converter"}, zap.NewNop())
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}
