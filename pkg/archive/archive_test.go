package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func testParams(t *testing.T, src, out string) Params {
	t.Helper()
	writeFile(t, filepath.Join(src, "journal.sqlite"), "journal-bytes")
	writeFile(t, filepath.Join(src, "hub.yaml"), "hub_name: spawn\n")
	return Params{
		BoltSnapshotFunc: func(dest string) error {
			return os.WriteFile(dest, []byte("bolt-bytes"), 0o644)
		},
		JournalPath:           filepath.Join(src, "journal.sqlite"),
		JournalCheckpointFunc: func() error { return nil },
		ConfPath:              filepath.Join(src, "hub.yaml"),
		Dir:                   out,
		HubName:               "spawn",
		Portals:               4,
		Links:                 2,
	}
}

func TestCreateAndReadManifest(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	path, err := Create(testParams(t, src, out))
	require.NoError(t, err)

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "hubportal", m.Server)
	assert.Equal(t, "spawn", m.HubName)
	assert.Equal(t, 4, m.Portals)
	assert.Equal(t, 2, m.Links)
	require.Contains(t, m.Files, BoltName)
	assert.Equal(t, "bolt", m.Files[BoltName].Type)
	assert.Equal(t, int64(len("bolt-bytes")), m.Files[BoltName].Size)
	assert.Contains(t, m.Files, JournalName)
	assert.Contains(t, m.Files, "conf/hub.yaml")
}

func TestRestore(t *testing.T) {
	src, out, dest := t.TempDir(), t.TempDir(), t.TempDir()
	path, err := Create(testParams(t, src, out))
	require.NoError(t, err)

	conf := filepath.Join(dest, "hub.yaml")
	writeFile(t, conf, "hub_name: local\n")

	res, err := Restore(RestoreParams{
		ArchivePath: path,
		BoltDest:    filepath.Join(dest, "db", "registry.bolt"),
		JournalDest: filepath.Join(dest, "journal.sqlite"),
		ConfDest:    conf,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesRestored)
	assert.Len(t, res.Warnings, 1)

	got, err := os.ReadFile(filepath.Join(dest, "db", "registry.bolt"))
	require.NoError(t, err)
	assert.Equal(t, "bolt-bytes", string(got))
	got, err = os.ReadFile(conf)
	require.NoError(t, err)
	assert.Equal(t, "hub_name: local\n", string(got), "existing config kept")

	res, err = Restore(RestoreParams{ArchivePath: path, ConfDest: conf, OverwriteConf: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesRestored)
	got, err = os.ReadFile(conf)
	require.NoError(t, err)
	assert.Equal(t, "hub_name: spawn\n", string(got))
}

func TestRestoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	writeFile(t, path, "not gzip")
	_, err := Restore(RestoreParams{ArchivePath: path, BoltDest: filepath.Join(t.TempDir(), "x")})
	assert.Error(t, err)
}

func TestListAndPrune(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	p := testParams(t, src, out)
	var paths []string
	for i := 0; i < 3; i++ {
		path, err := Create(p)
		require.NoError(t, err)
		paths = append(paths, path)
		time.Sleep(5 * time.Millisecond)
	}

	list, err := List(out)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, paths[2], list[0].Path, "newest first")
	assert.Equal(t, 4, list[0].Portals)

	n, err := Prune(out, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	list, err = List(out)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, paths[2], list[0].Path)

	n, err = Prune(out, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
