package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-md/vaultheat/internal/config"
	"github.com/vault-md/vaultheat/internal/datastore"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/storage"
	"github.com/vault-md/vaultheat/internal/tracker"
)

const doc = `{
	"version": "1.0.5",
	"checkpoints": {
		"notes/a.md": {"mtime": 1704067200000, "fileSize": 120, "wordCount": 20},
		"b.md": {"mtime": 0, "fileSize": 4, "wordCount": 0}
	},
	"activityOverTime": {
		"2024-01-01": {"fileSize": 120, "wordCount": 20},
		"2024-01-15": {"wordCount": 5},
		"2024-02-03": {"fileSize": 4}
	}
}`

func newServer(t *testing.T) *Server {
	t.Helper()
	return newServerWithDocument(t, doc)
}

func newServerWithDocument(t *testing.T, document string) *Server {
	t.Helper()

	mem := storage.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), storage.CurrentDocumentKey, []byte(document)))

	data := datastore.New(mem, datastore.WithLogger(logging.Discard()))
	tr := tracker.New(nil, metrics.DefaultRegistry(), data, tracker.WithLogger(logging.Discard()))
	t.Cleanup(tr.Close)

	s := NewServer(tr, config.Settings{Metric: "wordCount", Year: "2024", UpdateInterval: 1}, "test", logging.Discard())
	s.now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func ptr[T any](v T) *T { return &v }

func TestHandleSeriesUsesSettingsDefaults(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, out, err := s.handleSeries(context.Background(), nil, RangeInput{})
	require.NoError(t, err)

	assert.Equal(t, "wordCount", out.Metric)
	assert.Equal(t, "2024-01-01", out.Start)
	assert.Equal(t, "2024-12-31", out.End)
	assert.Len(t, out.Days, 366)
	assert.Equal(t, 20.0, out.Max)
	assert.Equal(t, "20 word changes on January 1, 2024", out.Days[0].Tooltip)
	assert.Equal(t, "No changes on January 2, 2024", out.Days[1].Tooltip)
}

func TestHandleSeriesOverridesMetric(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, out, err := s.handleSeries(context.Background(), nil, RangeInput{Metric: ptr("fileSize")})
	require.NoError(t, err)
	assert.Equal(t, "fileSize", out.Metric)
	assert.Equal(t, 120.0, out.Max)

	_, _, err = s.handleSeries(context.Background(), nil, RangeInput{Metric: ptr("lines")})
	assert.ErrorIs(t, err, metrics.ErrUnknownKind)
}

func TestHandleSummary(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, out, err := s.handleSummary(context.Background(), nil, SummaryInput{Top: ptr(1)})
	require.NoError(t, err)

	assert.Equal(t, 25.0, out.Total)
	require.Len(t, out.Months, 12)
	assert.Equal(t, "2024-01", out.Months[0].Month)
	assert.Equal(t, 2, out.Months[0].ActiveDays)
	require.Len(t, out.TopDays, 1)
	assert.Equal(t, "2024-01-01", out.TopDays[0].Date)
}

func TestHandleTrackedFiles(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, out, err := s.handleTrackedFiles(context.Background(), nil, TrackedFilesInput{})
	require.NoError(t, err)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "b.md", out.Files[0].Path)
	assert.Empty(t, out.Files[0].Modified)
	assert.Equal(t, 20.0, out.Files[1].Values["wordCount"])

	_, out, err = s.handleTrackedFiles(context.Background(), nil, TrackedFilesInput{Prefix: ptr("notes/")})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "notes/a.md", out.Files[0].Path)
}

func TestInvalidStore(t *testing.T) {
	t.Parallel()

	// b.md lacks a wordCount value, which fails validation.
	s := newServerWithDocument(t, `{
		"version": "1.0.5",
		"checkpoints": {"b.md": {"mtime": 0, "fileSize": 4}},
		"activityOverTime": {"2024-01-01": {"wordCount": 3}}
	}`)
	ctx := context.Background()

	_, series, err := s.handleSeries(ctx, nil, RangeInput{})
	require.NoError(t, err)
	assert.Len(t, series.Days, 366)
	assert.Zero(t, series.Max)

	_, summary, err := s.handleSummary(ctx, nil, SummaryInput{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.TopDays)

	_, _, err = s.handleTrackedFiles(ctx, nil, TrackedFilesInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrValidation)
}
