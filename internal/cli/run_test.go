package cli

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SyntheticRecordsEvents(t *testing.T) {
	env := devEnv(t)

	stdout, _, err := execute(t, env, "run", "--source", "synthetic", "--count", "12", "--interval", "0s")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(synthetic)")
	assert.Contains(t, stdout, "Recorded:     12")
	assert.Contains(t, stdout, "Dropped:      0")
	assert.Contains(t, stdout, env["TAPLINE_DEV_DB_PATH"])
}

func TestRun_JSONResult(t *testing.T) {
	stdout, _, err := execute(t, devEnv(t), "--format", "json", "run", "--source", "synthetic", "--count", "6", "--interval", "0s")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "synthetic", resp.Data.Source)
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.Equal(t, uint64(6), resp.Data.Stats.Recorded)
	assert.Equal(t, uint64(1), resp.Data.Stats.Batches)
}

func TestRun_SessionIsClosed(t *testing.T) {
	env := devEnv(t)
	_, _, err := execute(t, env, "run", "--source", "synthetic", "--count", "1", "--interval", "0s")
	require.NoError(t, err)

	stdout, _, err := execute(t, env, "--format", "json", "stats")
	require.NoError(t, err)

	var resp struct {
		Data StatsReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Sessions, 1)
	assert.Equal(t, "synthetic", resp.Data.Sessions[0].Source)
	assert.False(t, resp.Data.Sessions[0].EndedAt.IsZero())
}

func TestRun_UnknownSource(t *testing.T) {
	_, _, err := execute(t, devEnv(t), "run", "--source", "webcam")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid source")
}

func TestRun_NegativeCount(t *testing.T) {
	_, _, err := execute(t, devEnv(t), "run", "--source", "synthetic", "--count", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_NativeUnavailable(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("native capture may be available")
	}
	_, _, err := execute(t, devEnv(t), "run", "--source", "native")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "capture source unavailable")
}

func TestRun_UnopenableDatabase(t *testing.T) {
	env := devEnv(t)
	env["TAPLINE_DEV_DB_PATH"] = t.TempDir() + "/missing/dir/tapline.db"

	_, _, err := execute(t, env, "run", "--source", "synthetic", "--count", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
