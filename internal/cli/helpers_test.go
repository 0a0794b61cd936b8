package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// devEnv returns an environment that points the development store at a
// fresh file under t.TempDir().
func devEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"TAPLINE_STORE":       "development",
		"TAPLINE_DEV_DB_PATH": filepath.Join(t.TempDir(), "tapline.db"),
		"TAPLINE_LOG_LEVEL":   "error",
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	opts := &RootOptions{
		Environ: env,
		DotEnv:  filepath.Join(t.TempDir(), ".env"),
		Now:     func() time.Time { return testNow },
	}
	cmd := newRootCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
