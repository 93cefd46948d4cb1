package activity

import (
	"math"

	"github.com/vault-md/vaultheat/internal/metrics"
)

// ComputeFileDelta derives the replacement checkpoint for a file and the
// per-kind change magnitude to fold into the ledger.
//
// For each kind the delta is |current - previous|, or |current| when the
// previous checkpoint has no value for it. A kind missing from current
// (its evaluation failed) keeps the previous value and contributes 0.
func ComputeFileDelta(prev *FileCheckpoint, current map[metrics.Kind]float64, mtime int64, kinds []metrics.Kind) (FileCheckpoint, map[metrics.Kind]float64) {
	next := FileCheckpoint{
		MTime:  mtime,
		Values: make(map[metrics.Kind]float64, len(kinds)),
	}
	deltas := make(map[metrics.Kind]float64, len(kinds))

	for _, kind := range kinds {
		var (
			previous float64
			hadPrev  bool
		)
		if prev != nil {
			previous, hadPrev = prev.Values[kind]
		}

		value, ok := current[kind]
		if !ok {
			next.Values[kind] = previous
			deltas[kind] = 0
			continue
		}

		next.Values[kind] = value
		if hadPrev {
			deltas[kind] = math.Abs(value - previous)
		} else {
			deltas[kind] = math.Abs(value)
		}
	}

	return next, deltas
}

// Unchanged reports whether next carries exactly the same mtime and values
// as prev, i.e. re-observing the file changed nothing.
func Unchanged(prev *FileCheckpoint, next FileCheckpoint) bool {
	if prev == nil || prev.MTime != next.MTime || len(prev.Values) != len(next.Values) {
		return false
	}
	for kind, value := range next.Values {
		old, ok := prev.Values[kind]
		if !ok || old != value {
			return false
		}
	}
	return true
}

// TotalDelta sums a delta map, mostly for logging.
func TotalDelta(deltas map[metrics.Kind]float64) float64 {
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	return sum
}
