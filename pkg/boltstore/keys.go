package boltstore

import (
	"encoding/binary"
	"time"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta    = []byte("meta")
	bucketPortals = []byte("portals")
	bucketColors  = []byte("colors")
)

// Meta key constants.
var (
	keySchema  = []byte("schema")
	keySavedAt = []byte("savedat")
	keyState   = []byte("state") // constant identifier of the registry
)

// schemaVersion is bumped when the record layout changes incompatibly.
const schemaVersion = 1

// stateName identifies the persisted registry.
const stateName = "hubportal_state"

// intToKey converts an int to an 8-byte big-endian key.
func intToKey(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func timeToKey(t time.Time) []byte {
	return intToKey(t.UnixNano())
}

func keyToTime(b []byte) time.Time {
	n := keyToInt(b)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
