package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/supercollider/internal/store"
)

func TestRunMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, "run", scenarioPath("head_on"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunInvalidScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nframes: 0\nframe_ms: 16\n"), 0644))

	_, err := execute(t, "run", "--db", filepath.Join(t.TempDir(), "runs.db"), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scenario")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunNonExistentDatabaseDir(t *testing.T) {
	_, err := execute(t, "run", "--db", "/nonexistent/path/runs.db", scenarioPath("head_on"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunPersistsRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--db", dbPath, scenarioPath("head_on"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ head_on")
	assert.Contains(t, out, "Run:     test-run-head-on")
	assert.Contains(t, out, "Workers: 2")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "test-run-head-on")
	require.NoError(t, err)
	assert.NotEmpty(t, run.Digest)
	assert.Contains(t, out, run.Digest)
}

func TestRunWorkersFlagOverridesScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "--format", "json", "run", "--db", dbPath, "--workers", "5", scenarioPath("head_on"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		RunID  string     `json:"run_id"`
		Digest string     `json:"digest"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-run-head-on", resp.RunID)
	assert.Equal(t, resp.Data.Digest, resp.Digest)
	assert.Len(t, resp.Digest, 64)
	assert.Equal(t, 5, resp.Data.Workers)
	assert.True(t, resp.Data.Pass)
	assert.Empty(t, resp.Data.Trace, "trace is only included with --verbose")
}

func TestRunVerbosePrintsTrace(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "-v", "run", "--db", dbPath, scenarioPath("head_on"))
	require.NoError(t, err)
	assert.Contains(t, out, "=== Trace ===")
	assert.Contains(t, out, "frame=2 pos=0 pair=ship-weapon a=alpha b=bolt")
}

func TestRunDuplicateRunID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "run", "--db", dbPath, scenarioPath("head_on"))
	require.NoError(t, err)

	_, err = execute(t, "run", "--db", dbPath, scenarioPath("head_on"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunFailingAssertion(t *testing.T) {
	data, err := os.ReadFile(scenarioPath("head_on"))
	require.NoError(t, err)
	failing := strings.Replace(string(data), "count: 2", "count: 3", 1)
	path := filepath.Join(t.TempDir(), "head_on.yaml")
	require.NoError(t, os.WriteFile(path, []byte(failing), 0644))

	out, err := execute(t, "run", "--db", filepath.Join(t.TempDir(), "runs.db"), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ head_on")
	assert.Contains(t, out, "Assertion failed: collision_count")
}

func TestRunWithConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("safety_timeout: 2s\nsort_grain: 8\n"), 0644))

	_, err := execute(t, "--config", cfgPath, "run", "--db", filepath.Join(t.TempDir(), "runs.db"), scenarioPath("salvage"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfgPath, []byte("safety_timeout: soon\n"), 0644))
	_, err = execute(t, "--config", cfgPath, "run", "--db", filepath.Join(t.TempDir(), "runs.db"), scenarioPath("salvage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
