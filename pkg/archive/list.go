package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Info holds metadata about an existing archive file.
type Info struct {
	Path      string
	Filename  string
	Size      int64
	Timestamp string // from the manifest, or the file mod time
	HubName   string
	Portals   int
	Links     int
}

// List scans dir for archives and returns them newest first.
func List(dir string) ([]Info, error) {
	pattern := filepath.Join(dir, "*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var out []Info
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		ai := Info{
			Path:      path,
			Filename:  filepath.Base(path),
			Size:      st.Size(),
			Timestamp: st.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		}
		if m, err := ReadManifest(path); err == nil {
			ai.Timestamp = m.Timestamp
			ai.HubName = m.HubName
			ai.Portals = m.Portals
			ai.Links = m.Links
		}
		out = append(out, ai)
	}

	// RFC3339 timestamps sort lexically; the filename breaks ties.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Filename > out[j].Filename
	})
	return out, nil
}

// Prune deletes all but the newest keep archives in dir and returns how
// many were removed. keep <= 0 removes nothing.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	archives, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, a := range archives[min(keep, len(archives)):] {
		if err := os.Remove(a.Path); err != nil {
			return removed, fmt.Errorf("archive: remove %s: %w", a.Path, err)
		}
		removed++
	}
	return removed, nil
}

// ReadManifest extracts manifest.json from an archive.
func ReadManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Name == ManifestName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, err
			}
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%s not found in archive", ManifestName)
}
