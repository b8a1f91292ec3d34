package server

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/crystal-mush/hubportal/pkg/archive"
)

// CreateArchive flushes the registry and writes an archive of the bolt
// store, the journal and the config file into archive_dir. Old archives
// beyond archive_retain are pruned and the archive hook runs.
func (h *Hub) CreateArchive() (string, error) {
	if _, err := h.Flush(); err != nil {
		return "", fmt.Errorf("archive: save registry: %w", err)
	}
	conf := h.Config()
	params := archive.Params{
		Dir:      conf.ArchiveDir,
		HubName:  conf.HubName,
		Portals:  h.Registry.Len(),
		Links:    len(h.Registry.Links()),
		ConfPath: h.ConfPath,
	}
	if h.Store != nil {
		params.BoltSnapshotFunc = h.Store.Backup
	}
	if h.Journal != nil {
		params.JournalPath = h.Journal.Path()
		params.JournalCheckpointFunc = h.Journal.Checkpoint
	}

	path, err := archive.Create(params)
	if err != nil {
		return "", err
	}
	log.Printf("Archive created: %s", path)

	if n, err := archive.Prune(conf.ArchiveDir, conf.ArchiveRetain); err != nil {
		log.Printf("WARNING: prune archives: %v", err)
	} else if n > 0 {
		log.Printf("Pruned %d old archive(s)", n)
	}
	if conf.ArchiveHook != "" {
		runArchiveHook(conf.ArchiveHook, path)
	}
	return path, nil
}

// StartAutoArchive archives every interval until ctx is cancelled.
func (h *Hub) StartAutoArchive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log.Printf("Auto-archive enabled: every %s, dir %s", interval, h.Config().ArchiveDir)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := h.CreateArchive(); err != nil {
					log.Printf("ERROR: Auto-archive failed: %v", err)
				}
			}
		}
	}()
}

// runArchiveHook runs a shell command after archive creation.
// %f in the command is replaced with the archive path.
func runArchiveHook(command, archivePath string) {
	command = strings.ReplaceAll(command, "%f", archivePath)

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", command)
	} else {
		cmd = exec.Command("sh", "-c", command)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("WARNING: archive hook failed: %v (output: %s)", err, string(output))
	} else {
		log.Printf("Archive hook completed: %s", strings.TrimSpace(string(output)))
	}
}

func cmdArchive(h *Hub, c *Caller, args []string) {
	if len(args) > 0 && strings.EqualFold(args[0], "list") {
		archiveList(h, c)
		return
	}
	if len(args) > 0 {
		usage(h, c, "archive")
		return
	}
	if h.Store == nil {
		c.Fail("Archives need a bolt database.")
		return
	}
	path, err := h.CreateArchive()
	if err != nil {
		log.Printf("ERROR: Archive failed: %v", err)
		c.Fail("Archive failed.")
		return
	}
	c.Send("Archive created: " + path)
}

func archiveList(h *Hub, c *Caller) {
	dir := h.Config().ArchiveDir
	archives, err := archive.List(dir)
	if err != nil {
		c.Fail(fmt.Sprintf("Error listing archives: %v", err))
		return
	}
	if len(archives) == 0 {
		c.Send(fmt.Sprintf("No archives found in %s.", dir))
		return
	}
	c.Send(fmt.Sprintf("Archives in %s:", dir))
	for _, ai := range archives {
		c.Send(FormatArchive(ai))
	}
	c.Send(fmt.Sprintf("%d archive(s).", len(archives)))
}

// FormatArchive renders one archive listing line.
func FormatArchive(ai archive.Info) string {
	return fmt.Sprintf("  %s  %.1f KB  %d portals  %d links  %s",
		ai.Filename, float64(ai.Size)/1024, ai.Portals, ai.Links, ai.Timestamp)
}
