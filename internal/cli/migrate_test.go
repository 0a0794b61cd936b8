package cli

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp(t *testing.T) {
	env := devEnv(t)

	stdout, _, err := execute(t, env, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Applied 1715938200-create_processes")
	assert.Contains(t, stdout, "Applied 1716890400-index_staged_inputs")
	assert.Contains(t, stdout, "Schema version 1716890400")

	stdout, _, err = execute(t, env, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to do (version 1716890400)\n", stdout)
}

func TestMigrateStatus_Golden(t *testing.T) {
	env := devEnv(t)
	_, _, err := execute(t, env, "migrate", "up")
	require.NoError(t, err)

	stdout, _, err := execute(t, env, "migrate", "status")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "migrate_status", []byte(stdout))
}

func TestMigrateStatus_FreshDatabase(t *testing.T) {
	stdout, _, err := execute(t, devEnv(t), "--format", "json", "migrate", "status")
	require.NoError(t, err)

	var resp struct {
		Data MigrateStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "uninitialized", resp.Data.State)
	assert.Zero(t, resp.Data.Version)
	require.Len(t, resp.Data.Migrations, 4)
	for _, m := range resp.Data.Migrations {
		assert.False(t, m.Applied, m.Name)
		assert.True(t, m.Pending, m.Name)
	}
}

func TestMigrateDown(t *testing.T) {
	env := devEnv(t)
	_, _, err := execute(t, env, "migrate", "up")
	require.NoError(t, err)

	stdout, _, err := execute(t, env, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Rolled back 1716890400-index_staged_inputs")
	assert.Contains(t, stdout, "Schema version 1715938320")

	stdout, _, err = execute(t, env, "--format", "json", "migrate", "status")
	require.NoError(t, err)
	var resp struct {
		Data MigrateStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "at_version", resp.Data.State)
	last := resp.Data.Migrations[len(resp.Data.Migrations)-1]
	assert.Equal(t, "index_staged_inputs", last.Name)
	assert.True(t, last.Pending)
}

func TestMigrateDown_NothingToRollback(t *testing.T) {
	env := devEnv(t)

	for i := 0; i < 4; i++ {
		if i == 0 {
			_, _, err := execute(t, env, "migrate", "up")
			require.NoError(t, err)
		}
		_, _, err := execute(t, env, "migrate", "down")
		require.NoError(t, err)
	}

	_, _, err := execute(t, env, "migrate", "down")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, CodeMigration, errorCode(err))
	assert.Contains(t, err.Error(), "nothing to roll back")
}
