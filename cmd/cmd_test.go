package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { cfgPath = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParse(t *testing.T) {
	out, err := execute(t, "parse", "sort < in.txt | uniq > out.txt &")
	require.NoError(t, err)

	var parsed struct {
		Line   string `json:"line"`
		Mode   string `json:"mode"`
		Stages []struct {
			Args []string `json:"args"`
		} `json:"stages"`
		Input  map[string]string `json:"input"`
		Output map[string]string `json:"output"`
	}
	require.NoError(t, yaml.UnmarshalStrict([]byte(out), &parsed))

	assert.Equal(t, "sort < in.txt | uniq > out.txt &", parsed.Line)
	assert.Equal(t, "background", parsed.Mode)
	require.Len(t, parsed.Stages, 2)
	assert.Equal(t, []string{"sort"}, parsed.Stages[0].Args)
	assert.Equal(t, []string{"uniq"}, parsed.Stages[1].Args)
	assert.Equal(t, map[string]string{"path": "in.txt", "mode": "read"}, parsed.Input)
	assert.Equal(t, map[string]string{"path": "out.txt", "mode": "create-truncate-write"}, parsed.Output)
}

func TestParse_invalid(t *testing.T) {
	_, err := execute(t, "parse", "ls |")
	assert.EqualError(t, err, "syntax error in stage 2: empty stage")
}

func TestInitAndEvents(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "--config", dir, "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, config.ConfigurationName))

	fd, err := os.OpenFile(filepath.Join(dir, config.DefaultEventLog), os.O_CREATE|os.O_WRONLY, 0600)
	require.NoError(t, err)
	session := logger.NewJSONLinesLogRecorder(fd).NewSession()
	session.Record(&logger.SessionStart{})
	session.Record(&logger.Pipeline{Line: "ls", Stages: [][]string{{"ls"}}, Mode: "foreground"})
	session.Record(&logger.Exit{Stage: 0, Argv: []string{"ls"}, Code: 2})
	require.NoError(t, fd.Close())

	out, err := execute(t, "--config", dir, "events", "report")
	require.NoError(t, err)
	assert.Contains(t, out, "log_entries: 3")
	assert.Contains(t, out, "exit 2: 1")

	out, err = execute(t, "--config", dir, "events", "failures")
	require.NoError(t, err)
	assert.Contains(t, out, "command: ls")

	out, err = execute(t, "--config", dir, "events", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, session.SessionID())
}

func TestEvents_notInitialized(t *testing.T) {
	_, err := execute(t, "--config", t.TempDir(), "events", "report")
	assert.Error(t, err)
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Run("initialized", func(t *testing.T) {
		dir := t.TempDir()
		_, err := execute(t, "--config", dir, "init")
		require.NoError(t, err)

		cfgPath = dir
		configuration, gotDir, err := loadConfigOrDefault()
		require.NoError(t, err)
		assert.Equal(t, dir, gotDir)
		assert.NotEmpty(t, configuration.HistoryPath())
	})

	t.Run("default", func(t *testing.T) {
		t.Cleanup(func() { cfgPath = "" })
		cfgPath = t.TempDir()

		configuration, gotDir, err := loadConfigOrDefault()
		require.NoError(t, err)
		assert.Empty(t, gotDir)
		assert.Equal(t, config.Default(), configuration)
	})
}
