package boltstore

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

// Store wraps a bbolt database holding the portal registry.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketPortals, bucketColors} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchema) == nil {
			if err := meta.Put(keySchema, intToKey(schemaVersion)); err != nil {
				return err
			}
			return meta.Put(keyState, []byte(stateName))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Save replaces the stored registry with rec in a single transaction.
func (s *Store) Save(rec gamedb.RegistryRecord) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPortals, bucketColors} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		pb := tx.Bucket(bucketPortals)
		for _, p := range rec.Portals {
			data, err := encodePortal(p)
			if err != nil {
				return fmt.Errorf("encode portal %q: %w", p.ID, err)
			}
			if err := pb.Put([]byte(p.ID), data); err != nil {
				return err
			}
		}
		cb := tx.Bucket(bucketColors)
		for _, c := range rec.CustomColors {
			data, err := encodeColor(c)
			if err != nil {
				return fmt.Errorf("encode color %q: %w", c.Name, err)
			}
			if err := cb.Put([]byte(c.Name), data); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(keySavedAt, timeToKey(time.Now()))
	})
	if err != nil {
		return fmt.Errorf("boltstore: save: %w", err)
	}
	return nil
}

// Load reads the stored registry. An empty database yields an empty record.
func (s *Store) Load() (gamedb.RegistryRecord, error) {
	rec := gamedb.RegistryRecord{
		Portals:      []gamedb.PortalRecord{},
		CustomColors: []gamedb.CustomColorRecord{},
	}
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySchema); v != nil && keyToInt(v) > schemaVersion {
			return fmt.Errorf("schema version %d is newer than supported %d", keyToInt(v), schemaVersion)
		}
		err := tx.Bucket(bucketPortals).ForEach(func(k, v []byte) error {
			p, err := decodePortal(v)
			if err != nil {
				return fmt.Errorf("decode portal %q: %w", string(k), err)
			}
			rec.Portals = append(rec.Portals, p)
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketColors).ForEach(func(k, v []byte) error {
			c, err := decodeColor(v)
			if err != nil {
				return fmt.Errorf("decode color %q: %w", string(k), err)
			}
			rec.CustomColors = append(rec.CustomColors, c)
			return nil
		})
	})
	if err != nil {
		return gamedb.RegistryRecord{}, fmt.Errorf("boltstore: load: %w", err)
	}

	log.Printf("boltstore: loaded %d portals, %d custom colors from bolt", len(rec.Portals), len(rec.CustomColors))
	return rec, nil
}

// SavedAt returns when the registry was last saved (zero if never).
func (s *Store) SavedAt() time.Time {
	var t time.Time
	s.bolt.View(func(tx *bbolt.Tx) error {
		t = keyToTime(tx.Bucket(bucketMeta).Get(keySavedAt))
		return nil
	})
	return t
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// HasData returns true if the bbolt database contains any portals or colors.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketPortals).Stats().KeyN > 0 || tx.Bucket(bucketColors).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}
