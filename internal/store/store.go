package store

import (
	"encoding/json"
	"time"

	"repolens/internal/identity"
)

// SchemaVersion tags stored exploration records.
const SchemaVersion = 1

// Stored is one durable exploration record: the committed result plus
// metadata. It is mutated only by whole-record overwrites.
type Stored struct {
	Identity  identity.Identity `json:"identity"`
	Mode      string            `json:"mode"`
	Result    json.RawMessage   `json:"result"`
	Timestamp int64             `json:"timestamp"`
	Version   int               `json:"version"`
}

// Age returns how long ago the record was written.
func (s Stored) Age() time.Duration {
	return time.Since(time.Unix(s.Timestamp, 0))
}

// ExplorationStore keeps one durable record per (identity, mode), plus the
// latest fetched metadata snapshot per identity.
type ExplorationStore interface {
	// Save overwrites the record for (id, mode) with result, stamping now.
	Save(id identity.Identity, mode string, result json.RawMessage) (Stored, error)
	// Load returns the record for (id, mode); ok is false when absent.
	Load(id identity.Identity, mode string) (Stored, bool, error)
	// HasRecent is the only staleness gate: true when a record exists and
	// is younger than maxAgeHours. Consulted before starting new work.
	HasRecent(id identity.Identity, mode string, maxAgeHours float64) bool
	// SaveBasic overwrites the basic metadata snapshot for id.
	SaveBasic(id identity.Identity, data json.RawMessage) error
	// LoadBasic returns the basic metadata snapshot for id, if any.
	LoadBasic(id identity.Identity) (json.RawMessage, bool, error)
}
