package heatmap

import (
	"math/rand/v2"
	"time"

	"github.com/vault-md/vaultheat/internal/activity"
)

// DefaultMockMonths is how far back MockSeries reaches by default.
const DefaultMockMonths = 15

// MockSeries returns a random series with one value in [0, 100) for every
// day from months ago up to now. It is used to preview the chart.
func MockSeries(months int, now time.Time, rng *rand.Rand) map[string]float64 {
	if months <= 0 {
		months = DefaultMockMonths
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	series := make(map[string]float64)
	for d := today.AddDate(0, -months, 0); !d.After(today); d = d.AddDate(0, 0, 1) {
		series[d.Format(activity.DateLayout)] = float64(rng.IntN(100))
	}
	return series
}
