package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// JournalEntry is one recorded teleport.
type JournalEntry struct {
	ID     int64
	At     time.Time
	Player uuid.UUID
	Name   string
	World  string
	From   string
	To     string
	X      float64
	Y      float64
	Z      float64
}

// Journal is a SQLite log of teleports.
type Journal struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

const journalSchema = `CREATE TABLE IF NOT EXISTS teleports (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at          INTEGER NOT NULL,
	player      TEXT NOT NULL,
	player_name TEXT NOT NULL DEFAULT '',
	world       TEXT NOT NULL,
	from_portal TEXT NOT NULL,
	to_portal   TEXT NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	z           REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_teleports_at ON teleports(at);
CREATE INDEX IF NOT EXISTS idx_teleports_name ON teleports(player_name);`

// OpenJournal opens a SQLite database, sets WAL mode and busy timeout, and
// creates the teleports table.
func OpenJournal(path string, timeoutSec int) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// Set WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal tables: %w", err)
	}
	return &Journal{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db != nil {
		err := j.db.Close()
		j.db = nil
		return err
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (j *Journal) Path() string { return j.path }

// Insert appends one teleport.
func (j *Journal) Insert(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO teleports (at, player, player_name, world, from_portal, to_portal, x, y, z)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UnixNano(), e.Player.String(), e.Name, e.World, e.From, e.To, e.X, e.Y, e.Z)
	return err
}

// Recent returns up to limit teleports, newest first. A non-empty name
// restricts results to that player.
func (j *Journal) Recent(limit int, name string) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal closed")
	}
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	query := `SELECT id, at, player, player_name, world, from_portal, to_portal, x, y, z FROM teleports`
	args := []any{}
	if name != "" {
		query += ` WHERE player_name = ? COLLATE NOCASE`
		args = append(args, name)
	}
	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var at int64
		var player string
		if err := rows.Scan(&e.ID, &at, &player, &e.Name, &e.World, &e.From, &e.To, &e.X, &e.Y, &e.Z); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		e.Player, _ = uuid.Parse(player)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Purge deletes entries older than retention and returns how many went.
func (j *Journal) Purge(retention time.Duration) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return 0, fmt.Errorf("journal closed")
	}
	cutoff := time.Now().Add(-retention).UnixNano()
	res, err := j.db.Exec(`DELETE FROM teleports WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (j *Journal) Checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal closed")
	}
	_, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}
