package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"waste-report-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestListCommand_FileStore(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	reportsPath := filepath.Join(dir, "reports.json")
	require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  driver: file\n  file: "+reportsPath+"\nlog:\n  level: error\n"), 0o644))

	out := runCommand(t, "--config", configPath, "list")

	var reports []model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "Amit Sharma", reports[0].ReporterName)
	assert.FileExists(t, reportsPath)
}

func TestStatsCommand_MissingConfigUsesDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	out := runCommand(t, "--config", filepath.Join(t.TempDir(), "absent.json"), "stats")

	var stats model.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, model.Stats{Total: 1, Pending: 1}, stats)
}
