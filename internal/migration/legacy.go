// Package migration upgrades older activity documents to the current schema
// and validates document shapes before they are trusted.
//
// Three generations exist:
//
//	1.0.3  checkpoints[kind][path] = {value, mtime}, activityOverTime[kind][date] = n
//	1.0.4  checkpoints[kind][path] = n,              activityOverTime[kind][date] = n
//	1.0.5  checkpoints[path] = {mtime, <kind>...},   activityOverTime[date][kind] = n
//
// Migrations are pure functions chained one version at a time.
package migration

import (
	"sort"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/metrics"
)

// Known schema versions.
const (
	Version103 = "1.0.3"
	Version104 = "1.0.4"
	Version105 = activity.SchemaVersion
)

// ValueRecord is a 1.0.3 checkpoint leaf.
type ValueRecord struct {
	Value float64 `json:"value"`
	MTime int64   `json:"mtime"`
}

// Legacy103 is the 1.0.3 document, keyed by kind first.
type Legacy103 struct {
	Checkpoints      map[metrics.Kind]map[string]ValueRecord `json:"checkpoints"`
	ActivityOverTime map[metrics.Kind]map[string]float64     `json:"activityOverTime"`
}

// Legacy104 is the 1.0.4 document. It has no version tag and no mtimes.
type Legacy104 struct {
	Checkpoints      map[metrics.Kind]map[string]float64 `json:"checkpoints"`
	ActivityOverTime map[metrics.Kind]map[string]float64 `json:"activityOverTime"`
}

// Migrate103To104 drops the per-checkpoint mtimes. Activity is unchanged.
func Migrate103To104(data *Legacy103) *Legacy104 {
	out := &Legacy104{
		Checkpoints:      make(map[metrics.Kind]map[string]float64, len(data.Checkpoints)),
		ActivityOverTime: make(map[metrics.Kind]map[string]float64, len(data.ActivityOverTime)),
	}

	for kind, files := range data.Checkpoints {
		values := make(map[string]float64, len(files))
		for path, record := range files {
			values[path] = record.Value
		}
		out.Checkpoints[kind] = values
	}

	for kind, days := range data.ActivityOverTime {
		totals := make(map[string]float64, len(days))
		for date, n := range days {
			totals[date] = n
		}
		out.ActivityOverTime[kind] = totals
	}

	return out
}

// Migrate104To105 pivots both tables from kind-first to path-first and
// date-first. Every path and date seen under any kind appears in the result
// with a value for every kind in kinds, missing ones filled with 0. The
// checkpoint mtime is 0 because 1.0.4 never recorded it.
func Migrate104To105(data *Legacy104, kinds []metrics.Kind) *activity.Store {
	store := activity.NewStore()

	for _, path := range unionKeys(data.Checkpoints, kinds) {
		cp := activity.FileCheckpoint{
			MTime:  0,
			Values: make(map[metrics.Kind]float64, len(kinds)),
		}
		for _, kind := range kinds {
			cp.Values[kind] = data.Checkpoints[kind][path]
		}
		store.Checkpoints[path] = cp
	}

	for _, date := range unionKeys(data.ActivityOverTime, kinds) {
		day := make(activity.DailyActivity, len(kinds))
		for _, kind := range kinds {
			day[kind] = data.ActivityOverTime[kind][date]
		}
		store.DailyActivity[date] = day
	}

	return store
}

// unionKeys returns the sorted union of the inner keys across kinds.
func unionKeys(table map[metrics.Kind]map[string]float64, kinds []metrics.Kind) []string {
	seen := make(map[string]struct{})
	for _, kind := range kinds {
		for key := range table[kind] {
			seen[key] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
