package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heroshell/internal/collection"
	"heroshell/internal/dump"
)

func setup(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	configPath = ""
	for _, k := range []string{"HEROSHELL_SERVER", "HEROSHELL_PROMPT", "HEROSHELL_PORT", "HEROSHELL_ARCHIVE", "HEROSHELL_DEBUG"} {
		t.Setenv(k, "")
	}
}

func runWithInput(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()

	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runShell(cmd, args)
	return out.String(), errOut.String(), err
}

func writeDump(t *testing.T, items ...*collection.HumanBeing) string {
	t.Helper()
	data, err := dump.Encode(items)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "heroes.xml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRunShell_ShowAndExit(t *testing.T) {
	setup(t)
	path := writeDump(t, &collection.HumanBeing{
		ID:             7,
		Name:           "Ivan",
		Coordinates:    collection.Coordinates{X: 3},
		CreationDate:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		ImpactSpeed:    12,
		SoundtrackName: "march",
		WeaponType:     collection.Hammer,
	})

	out, errOut, err := runWithInput(t, "show\nexit\n", path)
	require.NoError(t, err)

	assert.Contains(t, out, `"name": "Ivan"`)
	assert.Contains(t, out, "Exiting...")
	assert.Empty(t, errOut)
}

func TestRunShell_MissingDumpStartsEmpty(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "absent.xml")

	out, _, err := runWithInput(t, "show\nsave\nexit\n", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Collection is empty!")
	assert.Contains(t, out, "Collection saved!")
	assert.FileExists(t, path)
}

func TestRunShell_MalformedDumpFails(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "bad.xml")
	require.NoError(t, os.WriteFile(path, []byte("<nope>"), 0644))

	_, _, err := runWithInput(t, "exit\n", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start without a collection")
}

func TestRunShell_EndOfInput(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "absent.xml")

	_, errOut, err := runWithInput(t, "info\n", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Error: User input not detected!")
}

func TestRunShell_InterruptWhileWaiting(t *testing.T) {
	setup(t)
	operator, typed := io.Pipe()
	t.Cleanup(func() { _ = typed.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetIn(operator)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- runShell(cmd, []string{filepath.Join(t.TempDir(), "absent.xml")}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shell kept waiting for input after interrupt")
	}
}

func TestRunShell_BadConfig(t *testing.T) {
	setup(t)
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("shell:\n  max_recursion_depth: 900\n"), 0644))

	_, _, err := runWithInput(t, "exit\n", filepath.Join(t.TempDir(), "absent.xml"))
	assert.ErrorContains(t, err, "invalid config")
}

func TestRootCmd_RequiresOneArgument(t *testing.T) {
	assert.Error(t, rootCmd.Args(rootCmd, nil))
	assert.Error(t, rootCmd.Args(rootCmd, []string{"a", "b"}))
	assert.NoError(t, rootCmd.Args(rootCmd, []string{"a"}))
}
