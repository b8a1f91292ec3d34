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
	"strings"
)

// RestoreParams holds the destinations for a restore. Empty destinations
// are skipped.
type RestoreParams struct {
	ArchivePath   string
	BoltDest      string
	JournalDest   string
	ConfDest      string
	OverwriteConf bool // replace an existing config file
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Manifest      Manifest
	FilesRestored int
	Warnings      []string
}

// Restore extracts an archive, verifies every checksum, then copies the
// members to their destinations. Nothing is copied if any checksum fails.
// The server must not be running against the destinations.
func Restore(p RestoreParams) (*RestoreResult, error) {
	tmpDir, err := os.MkdirTemp("", "hubportal-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extract(p.ArchivePath, tmpDir); err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("restore: %s not found in archive", ManifestName)
	}
	result := &RestoreResult{}
	if err := json.Unmarshal(data, &result.Manifest); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}

	for name, entry := range result.Manifest.Files {
		ok, err := validateChecksum(filepath.Join(tmpDir, filepath.FromSlash(name)), entry.SHA256)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s, archive may be corrupt", name)
		}
	}

	restoreFile := func(name, dest string) error {
		src := filepath.Join(tmpDir, filepath.FromSlash(name))
		if dest == "" {
			return nil
		}
		if _, err := os.Stat(src); err != nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("restore: create dir for %s: %w", dest, err)
		}
		if err := copyFile(src, dest); err != nil {
			return fmt.Errorf("restore: copy %s: %w", name, err)
		}
		result.FilesRestored++
		return nil
	}

	if err := restoreFile(BoltName, p.BoltDest); err != nil {
		return nil, err
	}
	if err := restoreFile(JournalName, p.JournalDest); err != nil {
		return nil, err
	}
	if p.ConfDest != "" {
		for name := range result.Manifest.Files {
			if !strings.HasPrefix(name, confPrefix) {
				continue
			}
			if _, err := os.Stat(p.ConfDest); err == nil && !p.OverwriteConf {
				result.Warnings = append(result.Warnings, "kept current config: "+p.ConfDest)
				continue
			}
			if err := restoreFile(name, p.ConfDest); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// extract unpacks a .tar.gz into destDir.
func extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}

func validateChecksum(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}
