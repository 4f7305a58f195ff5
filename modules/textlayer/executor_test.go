package textlayer

import (
	"context"
	"image"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/utils"
)

// sh 로 실행되는 스크립트는 러너 푸터(파이썬)에 도달하기 전에 끝나거나 멈춘다
func shExecutor(t *testing.T, timeout time.Duration) *Executor {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e := NewExecutor("sh", timeout, t.TempDir())
	e.WaitDelay = 100 * time.Millisecond
	return e
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, err := utils.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	return data
}

func TestExecutorKillsRunawayScript(t *testing.T) {
	e := shExecutor(t, 300*time.Millisecond)

	start := time.Now()
	result := e.Run(context.Background(), "while true; do :; done", pngBytes(t), "prompt")
	elapsed := time.Since(start)

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "timeout")
	assert.Less(t, elapsed, 3*time.Second)

	var failure *apperr.ExecutionFailure
	require.ErrorAs(t, result.Err(), &failure)
}

func TestExecutorSuccessWritesNewFile(t *testing.T) {
	e := shExecutor(t, 5*time.Second)
	input := pngBytes(t)

	result := e.Run(context.Background(), "cp \"$1\" \"$2\"\necho \"SUCCESS: copied\"\nexit 0", input, "prompt")
	require.True(t, result.OK, result.Reason)
	assert.Equal(t, input, result.Output)
	assert.NoError(t, result.Err())

	entries, err := os.ReadDir(e.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecutorFailureModes(t *testing.T) {
	e := shExecutor(t, 5*time.Second)
	input := pngBytes(t)

	cases := map[string]struct {
		script string
		reason string
	}{
		"non-zero exit":  {"echo boom >&2\nexit 3", "process error"},
		"missing marker": {"cp \"$1\" \"$2\"\nexit 0", "missing success marker"},
		"missing output": {"echo SUCCESS: lied\nexit 0", "missing output image"},
		"bad output":     {"echo nope > \"$2\"\necho SUCCESS: ok\nexit 0", "not a decodable image"},
		"sandbox":        {"import subprocess", "sandbox"},
		"empty":          {"```\n```", "empty script"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			result := e.Run(context.Background(), tc.script, input, "prompt")
			assert.False(t, result.OK)
			assert.Contains(t, result.Reason, tc.reason)
		})
	}
}

func TestExecutorNonZeroExitCode(t *testing.T) {
	e := shExecutor(t, 5*time.Second)
	result := e.Run(context.Background(), "echo boom >&2\nexit 3", pngBytes(t), "prompt")
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "boom")
}
