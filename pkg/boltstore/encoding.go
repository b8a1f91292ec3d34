package boltstore

import (
	"encoding/json"

	"github.com/crystal-mush/hubportal/pkg/gamedb"
)

// encodePortal serializes a PortalRecord using the logical JSON schema.
func encodePortal(rec gamedb.PortalRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// decodePortal deserializes bytes back into a PortalRecord.
func decodePortal(data []byte) (gamedb.PortalRecord, error) {
	var rec gamedb.PortalRecord
	err := json.Unmarshal(data, &rec)
	return rec, err
}

// encodeColor serializes a CustomColorRecord.
func encodeColor(rec gamedb.CustomColorRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// decodeColor deserializes bytes back into a CustomColorRecord.
func decodeColor(data []byte) (gamedb.CustomColorRecord, error) {
	var rec gamedb.CustomColorRecord
	err := json.Unmarshal(data, &rec)
	return rec, err
}
