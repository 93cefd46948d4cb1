// Package activity holds the per-file checkpoints and the day-bucketed
// activity ledger, and the pure functions that update them.
package activity

import (
	"encoding/json"
	"fmt"

	"github.com/vault-md/vaultheat/internal/metrics"
)

// SchemaVersion is the version tag written into every current document.
const SchemaVersion = "1.0.5"

// mtimeField is the reserved checkpoint key holding the modification time.
const mtimeField = "mtime"

// FileCheckpoint is the last observed metric snapshot of one file.
type FileCheckpoint struct {
	// MTime is the modification time, in unix milliseconds, of the file
	// version the values were computed from.
	MTime  int64
	Values map[metrics.Kind]float64
}

// Value returns the stored value for kind and whether it is present.
func (c FileCheckpoint) Value(kind metrics.Kind) (float64, bool) {
	v, ok := c.Values[kind]
	return v, ok
}

// MarshalJSON flattens the checkpoint into {"mtime": n, "<kind>": v, ...}.
func (c FileCheckpoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Values)+1)
	for kind, value := range c.Values {
		flat[string(kind)] = value
	}
	flat[mtimeField] = c.MTime
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat form written by MarshalJSON.
func (c *FileCheckpoint) UnmarshalJSON(data []byte) error {
	var flat map[string]float64
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	c.Values = make(map[metrics.Kind]float64, len(flat))
	for key, value := range flat {
		if key == mtimeField {
			c.MTime = int64(value)
			continue
		}
		c.Values[metrics.Kind(key)] = value
	}
	return nil
}

// DailyActivity is the accumulated change magnitude per kind for one date.
type DailyActivity map[metrics.Kind]float64

// Store is the persisted aggregate; it is read and written as one document.
type Store struct {
	SchemaVersion string                    `json:"version"`
	Checkpoints   map[string]FileCheckpoint `json:"checkpoints"`
	DailyActivity map[string]DailyActivity  `json:"activityOverTime"`
	// LegacyMerged records that the legacy document has already been folded
	// into this one, so it is not counted a second time.
	LegacyMerged bool `json:"legacyMerged,omitempty"`
}

// NewStore returns an empty store at the current schema version.
func NewStore() *Store {
	return &Store{
		SchemaVersion: SchemaVersion,
		Checkpoints:   make(map[string]FileCheckpoint),
		DailyActivity: make(map[string]DailyActivity),
	}
}

// Checkpoint returns the checkpoint for path, or nil.
func (s *Store) Checkpoint(path string) *FileCheckpoint {
	cp, ok := s.Checkpoints[path]
	if !ok {
		return nil
	}
	return &cp
}

// Absorb merges other into s. Checkpoints are unioned by path and s wins on
// conflict. Daily totals are summed per date and kind.
func (s *Store) Absorb(other *Store) {
	if other == nil {
		return
	}
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[string]FileCheckpoint, len(other.Checkpoints))
	}
	if s.DailyActivity == nil {
		s.DailyActivity = make(map[string]DailyActivity, len(other.DailyActivity))
	}

	for path, cp := range other.Checkpoints {
		if _, ok := s.Checkpoints[path]; !ok {
			s.Checkpoints[path] = cp
		}
	}

	for date, totals := range other.DailyActivity {
		day, ok := s.DailyActivity[date]
		if !ok {
			day = make(DailyActivity, len(totals))
			s.DailyActivity[date] = day
		}
		for kind, value := range totals {
			day[kind] += value
		}
	}
}
