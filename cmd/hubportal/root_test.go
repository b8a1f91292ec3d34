package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystal-mush/hubportal/pkg/boltstore"
	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func TestParseBlockPos(t *testing.T) {
	pos, err := parseBlockPos("1, -2,3")
	require.NoError(t, err)
	assert.Equal(t, gamedb.BlockPos{X: 1, Y: -2, Z: 3}, pos)

	_, err = parseBlockPos("1,2")
	assert.Error(t, err)
	_, err = parseBlockPos("1,2,x")
	assert.Error(t, err)
}

func TestExecAndList(t *testing.T) {
	dir := t.TempDir()
	bolt := filepath.Join(dir, "hub.db")

	out, err := run(t, "--bolt", bolt, "exec", "--pos", "0,64,0", "create", "spawn", "light", "blue", "2.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Created portal 'spawn'")

	_, err = run(t, "--bolt", bolt, "exec", "--pos", "10,64,0", "create", "shop")
	require.NoError(t, err)
	_, err = run(t, "--bolt", bolt, "exec", "link", "spawn", "shop")
	require.NoError(t, err)

	_, err = run(t, "--bolt", bolt, "exec", "link", "spawn", "spawn")
	assert.Error(t, err)

	out, err = run(t, "--bolt", bolt, "list", "--json")
	require.NoError(t, err)
	var recs []gamedb.PortalRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	byID := map[string]gamedb.PortalRecord{}
	for _, r := range recs {
		byID[r.ID] = r
	}
	assert.Equal(t, "shop", byID["spawn"].Link)
	assert.Equal(t, "spawn", byID["shop"].Link)

	listJSON = false
	out, err = run(t, "--bolt", bolt, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "spawn")
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	bolt := filepath.Join(dir, "hub.db")
	_, err := run(t, "--bolt", bolt, "exec", "--pos", "0,64,0", "create", "spawn")
	require.NoError(t, err)

	dest := filepath.Join(dir, "copy.db")
	_, err = run(t, "--bolt", bolt, "backup", dest)
	require.NoError(t, err)

	out, err := run(t, "--bolt", dest, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "spawn")
}

func TestHistoryNeedsJournal(t *testing.T) {
	_, err := run(t, "--bolt", filepath.Join(t.TempDir(), "hub.db"), "history")
	assert.Error(t, err)
}

func TestCheckCleanRegistry(t *testing.T) {
	bolt := filepath.Join(t.TempDir(), "hub.db")
	_, err := run(t, "--bolt", bolt, "exec", "--pos", "0,64,0", "create", "spawn")
	require.NoError(t, err)

	out, err := run(t, "--bolt", bolt, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "0 finding(s)")
}

func TestCheckFixesDanglingLink(t *testing.T) {
	bolt := filepath.Join(t.TempDir(), "hub.db")
	store, err := boltstore.Open(bolt)
	require.NoError(t, err)
	require.NoError(t, store.Save(gamedb.RegistryRecord{Portals: []gamedb.PortalRecord{
		{ID: "a", World: "world:overworld", Link: "gone"},
	}}))
	require.NoError(t, store.Close())

	_, err = run(t, "--bolt", bolt, "check", "--fix=false")
	assert.Error(t, err, "unfixed error")

	out, err := run(t, "--bolt", bolt, "check", "--fix")
	require.NoError(t, err)
	assert.Contains(t, out, "[fixed]")

	out, err = run(t, "--bolt", bolt, "check", "--fix=false")
	require.NoError(t, err)
	assert.Contains(t, out, "0 finding(s)")
}
