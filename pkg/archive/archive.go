// Package archive bundles the hub's on-disk state (bbolt registry, teleport
// journal, config file) into timestamped .tar.gz files with a checksummed
// manifest, and restores them.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Archive member names.
const (
	BoltName     = "data/registry.bolt"
	JournalName  = "data/journal.sqlite"
	ManifestName = "manifest.json"
	confPrefix   = "conf/"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	HubName   string               `json:"hub_name"`
	Portals   int                  `json:"portals"`
	Links     int                  `json:"links"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Type   string `json:"type"` // "bolt", "journal", "conf"
}

// Params holds all inputs needed to create an archive.
type Params struct {
	BoltSnapshotFunc      func(destPath string) error // writes a consistent copy of the registry
	JournalPath           string                      // empty = skip
	JournalCheckpointFunc func() error                // flush the WAL before copying (nil = skip)
	ConfPath              string                      // empty = skip
	Dir                   string                      // output directory
	HubName               string
	Portals               int
	Links                 int
}

// Create writes a new archive into p.Dir and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	now := time.Now()
	stamp := now.Format("20060102-150405.000")
	archivePath := filepath.Join(p.Dir, "hub-"+stamp+".tar.gz")
	for i := 1; fileExists(archivePath); i++ {
		archivePath = filepath.Join(p.Dir, fmt.Sprintf("hub-%s-%d.tar.gz", stamp, i))
	}

	tmpDir, err := os.MkdirTemp("", "hubportal-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest := Manifest{
		Version:   1,
		Server:    "hubportal",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		HubName:   p.HubName,
		Portals:   p.Portals,
		Links:     p.Links,
		Files:     make(map[string]FileEntry),
	}

	type member struct{ src, name, kind string }
	var members []member

	if p.BoltSnapshotFunc != nil {
		staged := filepath.Join(tmpDir, "registry.bolt")
		if err := p.BoltSnapshotFunc(staged); err != nil {
			return "", fmt.Errorf("archive: bolt snapshot: %w", err)
		}
		members = append(members, member{staged, BoltName, "bolt"})
	}
	if p.JournalPath != "" {
		if p.JournalCheckpointFunc != nil {
			if err := p.JournalCheckpointFunc(); err != nil {
				return "", fmt.Errorf("archive: journal checkpoint: %w", err)
			}
		}
		staged := filepath.Join(tmpDir, "journal.sqlite")
		if err := copyFile(p.JournalPath, staged); err != nil {
			return "", fmt.Errorf("archive: copy journal: %w", err)
		}
		members = append(members, member{staged, JournalName, "journal"})
	}
	if p.ConfPath != "" {
		if _, err := os.Stat(p.ConfPath); err == nil {
			members = append(members, member{p.ConfPath, confPrefix + filepath.Base(p.ConfPath), "conf"})
		}
	}

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	fail := func(err error) (string, error) {
		tw.Close()
		gw.Close()
		outFile.Close()
		os.Remove(archivePath)
		return "", err
	}

	for _, m := range members {
		entry, err := addFileToTar(tw, m.src, m.name)
		if err != nil {
			return fail(err)
		}
		entry.Type = m.kind
		manifest.Files[m.name] = entry
	}

	// The manifest goes last so it can describe everything before it.
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("archive: marshal manifest: %w", err))
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    ManifestName,
		Size:    int64(len(manifestJSON)),
		Mode:    0644,
		ModTime: now,
	}); err != nil {
		return fail(fmt.Errorf("archive: write manifest header: %w", err))
	}
	if _, err := tw.Write(manifestJSON); err != nil {
		return fail(fmt.Errorf("archive: write manifest: %w", err))
	}

	if err := tw.Close(); err != nil {
		return fail(fmt.Errorf("archive: close tar: %w", err))
	}
	if err := gw.Close(); err != nil {
		return fail(fmt.Errorf("archive: close gzip: %w", err))
	}
	if err := outFile.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("archive: close %s: %w", archivePath, err)
	}
	return archivePath, nil
}

// addFileToTar adds one file under archName and returns its checksum entry.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}
	return FileEntry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: written}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
