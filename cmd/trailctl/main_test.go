package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/constants"
	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/reconcile"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/pkg/config"
)

// writeConfig points a configuration file at a fresh SQLite database and
// returns both paths
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "trails.db")
	cfgPath = filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf("storage:\n  backend: sqlite\n  sqlite:\n    path: %s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath, dbPath
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.Execute()
	return out.String(), err
}

// seedTrail creates two identical sections and a trail over the second one
func seedTrail(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()

	c := database.NewClient(config.StorageData{
		Backend: config.BackendSQLite,
		SQLite:  &config.SQLiteData{Path: dbPath},
	}, zap.NewNop().Sugar())
	require.NoError(t, c.Connect())
	defer c.Close()
	require.NoError(t, c.Migrate())

	st := store.New(c.DB, zap.NewNop().Sugar())
	activity, _, err := st.SaveActivity(ctx, 0, &store.ActivityInput{
		Name: "hiking", FlatPace: 4000, AscentPace: 300, DescentPace: 500,
		Distance: [4]float64{5, 10, 20, 40}, Dev: [4]float64{300, 600, 1200, 2400},
	})
	require.NoError(t, err)

	var sectionID int64
	for i := 0; i < 2; i++ {
		res, err := st.SaveTrailSection(ctx, 0, &store.TrailSectionInput{
			Name:     fmt.Sprintf("ridge %d", i),
			Geometry: [][2]float64{{0, 0}, {3, 4}},
		})
		require.NoError(t, err)
		sectionID = res.ID
	}

	length, up, down := 10000.0, 600.0, -500.0
	_, err = st.SaveTrail(ctx, 0, &store.TrailInput{
		Name:           "Lac des Castors",
		TotalLength:    &length,
		HeightPositive: &up,
		HeightNegative: &down,
		Activities:     reconcile.Present(store.TrailActivityItem{Activity: activity.ID}),
		Events:         reconcile.Present(store.EventItem{TrailSection: sectionID, EndPosition: 1}),
	})
	require.NoError(t, err)
}

func TestMigrateCommands(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, cfgPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 0")
	assert.Contains(t, out, "pending: 001 initial_schema")

	out, err = run(t, cfgPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 1")

	out, err = run(t, cfgPath, "migrate", "down", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "current version: 0")

	_, err = run(t, cfgPath, "migrate", "down", "x")
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedTrail(t, dbPath)

	out, err := run(t, cfgPath, "graph")
	require.NoError(t, err)

	var g struct {
		Edges map[string]json.RawMessage `json:"edges"`
		Nodes map[string]json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Len(t, g.Edges, 2)
	assert.Len(t, g.Nodes, 2)

	out, err = run(t, cfgPath, "graph", "--ids", "1")
	require.NoError(t, err)
	g.Edges = nil
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Len(t, g.Edges, 1)

	out, err = run(t, cfgPath, "graph", "--components")
	require.NoError(t, err)
	var groups [][]int
	require.NoError(t, json.Unmarshal([]byte(out), &groups))
	assert.Len(t, groups, 1)
}

func TestRecomputeCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedTrail(t, dbPath)

	out, err := run(t, cfgPath, "recompute", "--trail", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "summary: 5h45 Advanced")

	out, err = run(t, cfgPath, "recompute", "--activity", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 trail activit(ies) recomputed")

	out, err = run(t, cfgPath, "recompute", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "1 trail(s) recomputed")

	_, err = run(t, cfgPath, "recompute")
	assert.Error(t, err)

	_, err = run(t, cfgPath, "recompute", "--trail", "404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDedupeCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedTrail(t, dbPath)

	out, err := run(t, cfgPath, "dedupe-sections")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 duplicate trail section(s): [2]")

	out, err = run(t, cfgPath, "dedupe-sections")
	require.NoError(t, err)
	assert.Contains(t, out, "no duplicate trail sections")
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "nope.yaml"), "migrate", "status")
	assert.Error(t, err)
}

func TestVersionSkipsSetup(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "nope.yaml"), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, constants.Version)
}
