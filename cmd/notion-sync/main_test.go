package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/pool"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "notion-sync v"+version)
}

func TestStreamsCommand(t *testing.T) {
	var catalog core.Catalog
	require.NoError(t, jsonpool.Unmarshal([]byte(execute(t, "streams")), &catalog))

	names := make([]string, 0, len(catalog.Streams))
	for _, s := range catalog.Streams {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"users", "databases", "pages", "blocks", "comments"}, names)
}

func TestConnectorsCommand(t *testing.T) {
	out := execute(t, "connectors")
	assert.Contains(t, out, "  - notion")
	assert.Contains(t, out, "  - json")
}

func TestLoadSyncConfigOverrides(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("SYNC_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  security:
    credentials:
      token: ${SYNC_TEST_TOKEN}
      start_date: "2021-01-01T00:00:00.000Z"
destination:
  performance:
    batch_size: 50
state_path: from-file.json
`), 0o600))

	cfg, err := loadSyncConfig(&syncOptions{
		configPath: path,
		statePath:  "override.json",
		outputPath: "-",
		mode:       "full_refresh",
		streams:    []string{"pages", "blocks"},
		trace:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Source.Security.Credential("token", ""))
	assert.Equal(t, "override.json", cfg.StatePath)
	assert.Equal(t, "-", cfg.Destination.Security.Credential("path", ""))
	assert.Equal(t, "full_refresh", cfg.Mode)
	assert.Equal(t, []string{"pages", "blocks"}, cfg.Streams)
	assert.Equal(t, 50, cfg.Destination.Performance.BatchSize)
	assert.True(t, cfg.Source.Observability.EnableTracing)
}

func TestLoadSyncConfigRejectsMode(t *testing.T) {
	_, err := loadSyncConfig(&syncOptions{mode: "append"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "append"`)
}

func TestStateSetAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pages":{"last_edited_time":"2023-01-01T00:00:00.000Z"}}`), 0o600))

	out := execute(t, "state", "set", "blocks", "2024-01-01T00:00:00Z", "--state", path)
	assert.Equal(t, "blocks: last_edited_time = 2024-01-01T00:00:00.000Z\n", out)

	var st core.State
	require.NoError(t, jsonpool.Unmarshal([]byte(execute(t, "state", "show", "--state", path)), &st))
	assert.Equal(t, "2023-01-01T00:00:00.000Z", st["pages"]["last_edited_time"])
	assert.Equal(t, "2024-01-01T00:00:00.000Z", st["blocks"]["last_edited_time"])
}

func TestStateSetRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	for _, args := range [][]string{
		{"state", "set", "users", "2024-01-01T00:00:00Z"},
		{"state", "set", "tasks", "2024-01-01T00:00:00Z"},
		{"state", "set", "pages", "yesterday"},
	} {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append(args, "--state", path))
		assert.Error(t, root.Execute(), args)
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncTransformsFromFlags(t *testing.T) {
	cmd := newSyncCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--drop-fields", "properties,url", "--rename-fields", "last_edited_time=updated_at"}))
	opts := &syncOptions{}
	opts.dropFields, _ = cmd.Flags().GetStringSlice("drop-fields")
	opts.renames, _ = cmd.Flags().GetStringToString("rename-fields")

	transforms := syncTransforms(opts)
	require.Len(t, transforms, 2)

	rec := pool.GetRecord()
	defer rec.Release()
	rec.Data["id"] = "p1"
	rec.Data["url"] = "https://notion.so/p1"
	rec.Data["properties"] = map[string]interface{}{}
	rec.Data["last_edited_time"] = "2024-01-01T00:00:00.000Z"
	for _, tr := range transforms {
		out, err := tr(context.Background(), rec)
		require.NoError(t, err)
		require.Same(t, rec, out)
	}
	assert.Equal(t, map[string]interface{}{"id": "p1", "updated_at": "2024-01-01T00:00:00.000Z"}, rec.Data)

	assert.Empty(t, syncTransforms(&syncOptions{}))
}
