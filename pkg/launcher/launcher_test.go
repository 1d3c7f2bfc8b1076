package launcher

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStreamsOutput(t *testing.T) {
	stdout := bytes.Buffer{}
	l := &Launcher{
		Command: "echo building && echo running",
		Stdout:  &stdout,
		Stderr:  &bytes.Buffer{},
	}

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, "building\nrunning\n", stdout.String())
}

func TestRunPropagatesExitCodes(t *testing.T) {
	l := &Launcher{
		Command: "exit 7",
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}

	err := l.Run(context.Background())
	require.Error(t, err)

	code, ok := ExitCode(err)
	require.True(t, ok, "error should carry the child's exit status")
	assert.Equal(t, 7, code)
}

func TestRunSucceedsWithZeroExit(t *testing.T) {
	l := &Launcher{
		Command: "exit 0",
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}

	require.NoError(t, l.Run(context.Background()))
}

func TestRunRespectsWorkingDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	stdout := bytes.Buffer{}
	l := &Launcher{
		Command: "pwd",
		Dir:     dir,
		Stdout:  &stdout,
		Stderr:  &bytes.Buffer{},
	}

	require.NoError(t, l.Run(context.Background()))
	assert.Contains(t, stdout.String(), dir)
}

func TestDryRunExecutesNothing(t *testing.T) {
	stdout := bytes.Buffer{}
	l := &Launcher{
		Command: "exit 7",
		Stdout:  &stdout,
		DryRun:  true,
	}

	require.NoError(t, l.Run(context.Background()))
	assert.Empty(t, stdout.String())
}

func TestRunRejectsUnparsableCommands(t *testing.T) {
	l := &Launcher{
		Command: "cargo run ((",
		Stdout:  &bytes.Buffer{},
		Stderr:  &bytes.Buffer{},
	}

	require.Error(t, l.Run(context.Background()))
}

func TestExitCodeOnOtherErrors(t *testing.T) {
	_, ok := ExitCode(context.Canceled)
	assert.False(t, ok)
}
