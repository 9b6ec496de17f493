package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/frameflow/pkg/adapters/source"
)

func writeFrames(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= n; i++ {
		name := filepath.Join(dir, "in_"+string(rune('a'+i-1))+".raw")
		require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0o644))
	}
	return filepath.Join(dir, "*.raw")
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, "frameflow dev\n", stdout.String())
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"--no-such-flag"}, &stdout, &stderr))
	assert.Equal(t, 0, run([]string{"-h"}, &stdout, &stderr))
}

func TestRunMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "input.path")
}

func TestRunNoMatchingFiles(t *testing.T) {
	var stdout, stderr bytes.Buffer
	pattern := filepath.Join(t.TempDir(), "*.jpg")
	code := run([]string{"-i", pattern, "-l", "error"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "source open failure")
}

func TestRunWritesOrderedOutput(t *testing.T) {
	input := writeFrames(t, 6)
	out := filepath.Join(t.TempDir(), "out")
	frameLog := filepath.Join(t.TempDir(), "run"+source.FrameLogExt)

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-i", input,
		"-w", "3",
		"-q", "2",
		"--delay", "2ms",
		"-o", "--output-path", out,
		"--frame-log", frameLog,
		"-l", "error",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "6 frames in, 6 out, 0 failed")

	for i := 1; i <= 6; i++ {
		data, err := os.ReadFile(filepath.Join(out, "frame_00000"+string(rune('0'+i))+".raw"))
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}

	// The recorded log replays through the same command.
	replayOut := filepath.Join(t.TempDir(), "replay")
	stdout.Reset()
	code = run([]string{"-i", frameLog, "-o", "--output-path", replayOut, "--delay", "0s", "-n", "4", "-l", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "4 frames in, 4 out")

	entries, err := os.ReadDir(replayOut)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRunServesMetrics(t *testing.T) {
	input := writeFrames(t, 2)
	var stdout, stderr bytes.Buffer
	code := run([]string{"-i", input, "--delay", "0s", "--metrics-addr", "127.0.0.1:0", "-l", "error"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "2 frames in, 2 out")
}
