package datastore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/storage"
)

const currentDoc = `{
	"version": "1.0.5",
	"checkpoints": {"a.md": {"mtime": 1700000000000, "fileSize": 10, "wordCount": 2}},
	"activityOverTime": {"2024-01-01": {"fileSize": 10, "wordCount": 2}}
}`

const legacyDoc = `{
	"metricType": "fileSize",
	"checkpoints": {
		"fileSize": {"a.md": 999, "b.md": 5},
		"wordCount": {"b.md": 1}
	},
	"activityOverTime": {
		"fileSize": {"2024-01-01": 7, "2023-12-31": 4},
		"wordCount": {"2024-01-01": 3}
	}
}`

func newStore(t *testing.T, docs map[string]string) (*DataStore, *storage.MemoryStore) {
	t.Helper()

	mem := storage.NewMemoryStore()
	for key, content := range docs {
		require.NoError(t, mem.Save(context.Background(), key, []byte(content)))
	}
	return New(mem, WithLogger(logging.Discard())), mem
}

func TestReadNothingStored(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, nil)

	store, err := ds.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, store)

	exists, err := ds.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadCurrentOnly(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, map[string]string{storage.CurrentDocumentKey: currentDoc})

	store, err := ds.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.False(t, store.LegacyMerged)
	assert.Equal(t, 10.0, store.Checkpoints["a.md"].Values[metrics.FileSize])
}

func TestReadMergesLegacyAdditively(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, map[string]string{
		storage.CurrentDocumentKey: currentDoc,
		storage.LegacyDocumentKey:  legacyDoc,
	})

	store, err := ds.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)

	// Current wins on checkpoint conflicts; legacy-only paths get mtime 0.
	assert.Equal(t, 10.0, store.Checkpoints["a.md"].Values[metrics.FileSize])
	assert.Equal(t, int64(1700000000000), store.Checkpoints["a.md"].MTime)
	assert.Equal(t, 5.0, store.Checkpoints["b.md"].Values[metrics.FileSize])
	assert.Equal(t, int64(0), store.Checkpoints["b.md"].MTime)

	// Daily totals are summed.
	assert.Equal(t, 17.0, store.DailyActivity["2024-01-01"][metrics.FileSize])
	assert.Equal(t, 5.0, store.DailyActivity["2024-01-01"][metrics.WordCount])
	assert.Equal(t, 4.0, store.DailyActivity["2023-12-31"][metrics.FileSize])
	assert.True(t, store.LegacyMerged)
}

func TestWriteAfterMergeDoesNotDoubleCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ds, _ := newStore(t, map[string]string{
		storage.CurrentDocumentKey: currentDoc,
		storage.LegacyDocumentKey:  legacyDoc,
	})

	first, err := ds.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, ds.Write(ctx, first))

	second, err := ds.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 17.0, second.DailyActivity["2024-01-01"][metrics.FileSize])
}

func TestReadLegacyOnly(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, map[string]string{storage.LegacyDocumentKey: legacyDoc})

	exists, err := ds.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	store, err := ds.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, 999.0, store.Checkpoints["a.md"].Values[metrics.FileSize])
	assert.Equal(t, 7.0, store.DailyActivity["2024-01-01"][metrics.FileSize])
}

func TestSettingsOnlyLegacyIsNotPriorData(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, map[string]string{storage.LegacyDocumentKey: `{"metricType": "wordCount"}`})

	exists, err := ds.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	store, err := ds.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestCorruptCurrentDocumentIsRejected(t *testing.T) {
	t.Parallel()

	corrupt := `{"version": "1.0.5", "checkpoints": "oops", "activityOverTime": {}}`
	ds, mem := newStore(t, map[string]string{
		storage.CurrentDocumentKey: corrupt,
		storage.LegacyDocumentKey:  legacyDoc,
	})

	store, err := ds.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Nil(t, store)

	_, err = ds.MigrateIfNeeded(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	data, err := mem.Load(context.Background(), storage.CurrentDocumentKey)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data))
}

func TestCorruptLegacyDocumentIsRejected(t *testing.T) {
	t.Parallel()

	ds, _ := newStore(t, map[string]string{
		storage.LegacyDocumentKey: `{"checkpoints": {"fileSize": {"a.md": "big"}}, "activityOverTime": {}}`,
	})

	_, err := ds.Read(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWriteStampsVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ds, mem := newStore(t, nil)

	store := &activity.Store{
		Checkpoints:   map[string]activity.FileCheckpoint{},
		DailyActivity: map[string]activity.DailyActivity{},
	}
	require.NoError(t, ds.Write(ctx, store))

	data, err := mem.Load(ctx, storage.CurrentDocumentKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "1.0.5", "checkpoints": {}, "activityOverTime": {}}`, string(data))
}

func TestMigrateIfNeeded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ds, mem := newStore(t, map[string]string{storage.LegacyDocumentKey: legacyDoc})

	res, err := ds.MigrateIfNeeded(ctx)
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, "1.0.4", res.FromVersion)
	assert.Equal(t, 2, res.Checkpoints)

	exists, err := mem.Exists(ctx, storage.CurrentDocumentKey)
	require.NoError(t, err)
	assert.True(t, exists)

	again, err := ds.MigrateIfNeeded(ctx)
	require.NoError(t, err)
	assert.False(t, again.Migrated)

	store, err := ds.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.0, store.DailyActivity["2024-01-01"][metrics.FileSize])
}

func TestSeparateLegacyStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := storage.NewMemoryStore()
	legacy := storage.NewMemoryStore()
	require.NoError(t, legacy.Save(ctx, storage.LegacyDocumentKey, []byte(legacyDoc)))

	ds := New(primary, WithLegacyStore(legacy), WithLogger(logging.Discard()))
	store, err := ds.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Contains(t, store.Checkpoints, "b.md")

	noLegacy := New(primary, WithLegacyStore(nil))
	store, err = noLegacy.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, store)
}
