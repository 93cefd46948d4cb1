package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-md/vaultheat/internal/datastore"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/storage"
	"github.com/vault-md/vaultheat/internal/vault"
)

type memFile struct {
	content    string
	size       int64
	modTime    time.Time
	unreadable bool
}

type memVault struct {
	mu    sync.Mutex
	files map[string]memFile
}

func newMemVault() *memVault {
	return &memVault{files: make(map[string]memFile)}
}

func (v *memVault) put(path string, size int64, modTime time.Time, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[path] = memFile{content: content, size: size, modTime: modTime}
}

func (v *memVault) breakContent(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f := v.files[path]
	f.unreadable = true
	v.files[path] = f
}

func (v *memVault) remove(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.files, path)
}

func (v *memVault) ListFiles(context.Context) ([]vault.File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]vault.File, 0, len(v.files))
	for path, f := range v.files {
		out = append(out, vault.File{Path: path, Size: f.size, ModTime: f.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (v *memVault) Stat(_ context.Context, path string) (vault.File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, ok := v.files[path]
	if !ok {
		return vault.File{}, fmt.Errorf("stat %s: %w", path, vault.ErrNotTracked)
	}
	return vault.File{Path: path, Size: f.size, ModTime: f.modTime}, nil
}

func (v *memVault) ReadContent(_ context.Context, file vault.File) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, ok := v.files[file.Path]
	if !ok || f.unreadable {
		return "", errors.New("permission denied")
	}
	return f.content, nil
}

type fixture struct {
	vault   *memVault
	mem     *storage.MemoryStore
	data    *datastore.DataStore
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v := newMemVault()
	mem := storage.NewMemoryStore()
	data := datastore.New(mem, datastore.WithLogger(logging.Discard()))
	tr := New(v, metrics.DefaultRegistry(), data,
		WithLocation(time.UTC),
		WithLogger(logging.Discard()))
	t.Cleanup(tr.Close)

	return &fixture{vault: v, mem: mem, data: data, tracker: tr}
}

func day(d int, hour int) time.Time {
	return time.Date(2024, 6, d, hour, 0, 0, 0, time.UTC)
}

func TestConcreteNoteScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	t0 := day(1, 9)
	f.vault.put("note.md", 500, t0, "")

	res, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)
	assert.True(t, res.FirstTime)
	assert.Equal(t, 1, res.Updated)

	store, err := f.data.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, store.Checkpoints, "note.md")
	assert.Equal(t, t0.UnixMilli(), store.Checkpoints["note.md"].MTime)
	assert.Equal(t, 500.0, store.Checkpoints["note.md"].Values[metrics.FileSize])
	assert.Empty(t, store.DailyActivity)

	t1 := day(2, 10)
	f.vault.put("note.md", 650, t1, "")
	require.NoError(t, f.tracker.NotifyFileChanged(ctx, "note.md"))

	store, err = f.data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, t1.UnixMilli(), store.Checkpoints["note.md"].MTime)
	assert.Equal(t, 650.0, store.Checkpoints["note.md"].Values[metrics.FileSize])
	assert.Equal(t, 150.0, store.DailyActivity["2024-06-02"][metrics.FileSize])

	t2 := day(2, 15)
	f.vault.put("note.md", 600, t2, "")
	require.NoError(t, f.tracker.NotifyFileChanged(ctx, "note.md"))

	store, err = f.data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600.0, store.Checkpoints["note.md"].Values[metrics.FileSize])
	assert.Equal(t, 200.0, store.DailyActivity["2024-06-02"][metrics.FileSize])

	assert.Equal(t, map[string]float64{"2024-06-02": 200}, f.tracker.HeatmapSeries(ctx, metrics.FileSize))
}

func TestFirstTimeSuppressionForManyFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.vault.put(fmt.Sprintf("n%02d.md", i), int64(100+i), day(1, i), "some words here")
	}

	res, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Files)
	assert.True(t, res.FirstTime)

	store, err := f.data.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, store.Checkpoints, 10)
	for _, totals := range store.DailyActivity {
		for _, v := range totals {
			assert.Zero(t, v)
		}
	}
	assert.Equal(t, 3.0, store.Checkpoints["n00.md"].Values[metrics.WordCount])
}

func TestSecondScanFoldsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.vault.put("a.md", 10, day(1, 1), "")

	_, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)

	f.vault.put("a.md", 25, day(3, 1), "")
	f.vault.put("b.md", 7, day(3, 2), "")

	res, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)
	assert.False(t, res.FirstTime)
	assert.Equal(t, 2, res.Updated)

	series := f.tracker.HeatmapSeries(ctx, metrics.FileSize)
	assert.Equal(t, map[string]float64{"2024-06-03": 22}, series)
}

func TestDuplicateNotificationsAreIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.vault.put("a.md", 10, day(1, 1), "one two")
	_, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)

	f.vault.put("a.md", 30, day(2, 1), "one two three")
	for i := 0; i < 3; i++ {
		require.NoError(t, f.tracker.NotifyFileChanged(ctx, "a.md"))
	}

	store, err := f.data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, store.DailyActivity["2024-06-02"][metrics.FileSize])
	assert.Equal(t, 1.0, store.DailyActivity["2024-06-02"][metrics.WordCount])
}

func TestRemovalPreservesHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.vault.put("a.md", 10, day(1, 1), "")
	_, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)

	f.vault.put("a.md", 40, day(2, 1), "")
	require.NoError(t, f.tracker.NotifyFileChanged(ctx, "a.md"))

	before, err := f.data.Read(ctx)
	require.NoError(t, err)

	f.vault.remove("a.md")
	require.NoError(t, f.tracker.NotifyFileRemoved(ctx, "a.md"))

	after, err := f.data.Read(ctx)
	require.NoError(t, err)
	assert.NotContains(t, after.Checkpoints, "a.md")
	assert.Equal(t, before.DailyActivity, after.DailyActivity)

	// A reused path starts fresh and counts its first value in full.
	f.vault.put("a.md", 5, day(4, 1), "")
	require.NoError(t, f.tracker.NotifyFileChanged(ctx, "a.md"))
	assert.Equal(t, 5.0, f.tracker.HeatmapSeries(ctx, metrics.FileSize)["2024-06-04"])
}

func TestRemoveWithoutStoreIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.tracker.NotifyFileRemoved(context.Background(), "ghost.md"))
	assert.Empty(t, f.mem.Keys())
}

func TestChangeToUntrackedFileIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.tracker.NotifyFileChanged(context.Background(), "image.png"))
	assert.Empty(t, f.mem.Keys())
}

func TestMetricErrorKeepsPreviousValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.vault.put("a.md", 10, day(1, 1), "alpha beta")
	_, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)

	f.vault.put("a.md", 50, day(2, 1), "")
	f.vault.breakContent("a.md")
	require.NoError(t, f.tracker.NotifyFileChanged(ctx, "a.md"))

	store, err := f.data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, store.Checkpoints["a.md"].Values[metrics.WordCount])
	assert.Equal(t, 50.0, store.Checkpoints["a.md"].Values[metrics.FileSize])
	assert.Equal(t, 40.0, store.DailyActivity["2024-06-02"][metrics.FileSize])
	assert.Zero(t, store.DailyActivity["2024-06-02"][metrics.WordCount])
}

func TestCorruptStoreRefusesWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	corrupt := `{"version":"1.0.5","checkpoints":"oops","activityOverTime":{}}`
	require.NoError(t, f.mem.Save(ctx, storage.CurrentDocumentKey, []byte(corrupt)))

	f.vault.put("a.md", 10, day(1, 1), "")
	err := f.tracker.NotifyFileChanged(ctx, "a.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrValidation)

	data, err := f.mem.Load(ctx, storage.CurrentDocumentKey)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data))

	assert.Empty(t, f.tracker.HeatmapSeries(ctx, metrics.FileSize))

	_, err = f.tracker.RunInitialScan(ctx)
	assert.ErrorIs(t, err, datastore.ErrValidation)
}

func TestConcurrentNotificationsLoseNoUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	const files = 20
	for i := 0; i < files; i++ {
		f.vault.put(fmt.Sprintf("f%02d.md", i), 0, day(1, 0), "")
	}
	_, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)

	for i := 0; i < files; i++ {
		f.vault.put(fmt.Sprintf("f%02d.md", i), 10, day(5, 0), "")
	}

	var wg sync.WaitGroup
	for i := 0; i < files; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.tracker.NotifyFileChanged(ctx, fmt.Sprintf("f%02d.md", i)))
		}()
	}
	wg.Wait()

	store, err := f.data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(files*10), store.DailyActivity["2024-06-05"][metrics.FileSize])
	for i := 0; i < files; i++ {
		assert.Equal(t, 10.0, store.Checkpoints[fmt.Sprintf("f%02d.md", i)].Values[metrics.FileSize])
	}
}

func TestLegacyDataIsNotFirstTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	legacy := `{"checkpoints":{"fileSize":{"a.md":10}},"activityOverTime":{"fileSize":{"2024-05-01":10}}}`
	require.NoError(t, f.mem.Save(ctx, storage.LegacyDocumentKey, []byte(legacy)))

	f.vault.put("a.md", 15, day(1, 1), "")
	res, err := f.tracker.RunInitialScan(ctx)
	require.NoError(t, err)
	assert.False(t, res.FirstTime)

	series := f.tracker.HeatmapSeries(ctx, metrics.FileSize)
	assert.Equal(t, 10.0, series["2024-05-01"])
	assert.Equal(t, 5.0, series["2024-06-01"])
}

var errDiskFull = errors.New("disk full")

// flakyStore fails the next Save once failNext is set.
type flakyStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failNext bool
}

func (s *flakyStore) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	fail := s.failNext
	s.failNext = false
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.MemoryStore.Save(ctx, key, data)
}

func TestWriteFailureKeepsLastWrittenState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v := newMemVault()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	data := datastore.New(store, datastore.WithLogger(logging.Discard()))
	tr := New(v, metrics.DefaultRegistry(), data,
		WithLocation(time.UTC),
		WithLogger(logging.Discard()))
	t.Cleanup(tr.Close)

	v.put("note.md", 500, day(1, 9), "")
	_, err := tr.RunInitialScan(ctx)
	require.NoError(t, err)

	store.mu.Lock()
	store.failNext = true
	store.mu.Unlock()

	v.put("note.md", 550, day(2, 9), "")
	err = tr.NotifyFileChanged(ctx, "note.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)

	written, err := data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500.0, written.Checkpoints["note.md"].Values[metrics.FileSize])
	assert.Empty(t, written.DailyActivity)

	v.put("note.md", 600, day(2, 10), "")
	require.NoError(t, tr.NotifyFileChanged(ctx, "note.md"))

	written, err = data.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600.0, written.Checkpoints["note.md"].Values[metrics.FileSize])
	assert.Equal(t, 100.0, written.DailyActivity["2024-06-02"][metrics.FileSize])
}
