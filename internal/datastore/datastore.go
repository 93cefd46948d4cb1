// Package datastore reads, merges, validates and writes the activity
// document.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/migration"
	"github.com/vault-md/vaultheat/internal/storage"
)

// ErrValidation is returned when a stored document fails structural
// validation. Nothing is written when it occurs.
var ErrValidation = errors.New("datastore: structural validation failed")

// DataStore owns the current document and reads the legacy one.
type DataStore struct {
	store  storage.DocumentStore
	legacy storage.DocumentStore
	kinds  []metrics.Kind
	logger *slog.Logger
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithLegacyStore reads the legacy document from s instead of the primary
// store. Pass nil to disable legacy reads.
func WithLegacyStore(s storage.DocumentStore) Option {
	return func(d *DataStore) {
		d.legacy = s
	}
}

// WithKinds sets the registered metric kinds used for validation.
func WithKinds(kinds []metrics.Kind) Option {
	return func(d *DataStore) {
		d.kinds = append([]metrics.Kind(nil), kinds...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DataStore) {
		d.logger = logger
	}
}

// New creates a DataStore over store. By default the legacy document is
// read from the same store and the built-in kinds are validated.
func New(store storage.DocumentStore, opts ...Option) *DataStore {
	d := &DataStore{
		store:  store,
		legacy: store,
		kinds:  metrics.DefaultRegistry().Kinds(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrDefault(d.logger)
	return d
}

// Kinds returns the kinds the store validates against.
func (d *DataStore) Kinds() []metrics.Kind {
	return append([]metrics.Kind(nil), d.kinds...)
}

// readResult records what a read found.
type readResult struct {
	store         *activity.Store
	hasCurrent    bool
	legacyVersion string
	legacyApplied bool
}

// Read loads the current document and folds in the legacy document. It
// returns nil, nil when neither exists.
func (d *DataStore) Read(ctx context.Context) (*activity.Store, error) {
	res, err := d.read(ctx)
	if err != nil {
		return nil, err
	}
	return res.store, nil
}

func (d *DataStore) read(ctx context.Context) (readResult, error) {
	var res readResult

	current, err := d.loadCurrent(ctx)
	if err != nil {
		return res, err
	}
	res.hasCurrent = current != nil

	if current != nil && current.LegacyMerged {
		res.store = current
		return res, nil
	}

	legacy, version, err := d.loadLegacy(ctx)
	if err != nil {
		return res, err
	}

	switch {
	case current == nil && legacy == nil:
		return res, nil
	case legacy == nil:
		res.store = current
		return res, nil
	case current == nil:
		current = activity.NewStore()
	}

	current.Absorb(legacy)
	current.LegacyMerged = true

	d.logger.Debug("merged legacy document",
		"legacy_version", version,
		"legacy_checkpoints", len(legacy.Checkpoints),
		"legacy_days", len(legacy.DailyActivity))

	res.store = current
	res.legacyVersion = version
	res.legacyApplied = true
	return res, nil
}

func (d *DataStore) loadCurrent(ctx context.Context) (*activity.Store, error) {
	data, err := d.store.Load(ctx, storage.CurrentDocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load current document: %w", err)
	}

	store, err := migration.DecodeCurrent(data, d.kinds)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrValidation, storage.CurrentDocumentKey, err)
	}
	return store, nil
}

func (d *DataStore) loadLegacy(ctx context.Context) (*activity.Store, string, error) {
	if d.legacy == nil {
		return nil, "", nil
	}

	data, err := d.legacy.Load(ctx, storage.LegacyDocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load legacy document: %w", err)
	}

	doc, err := migration.ParseDocument(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrValidation, storage.LegacyDocumentKey, err)
	}
	if !migration.HasActivityData(doc) {
		return nil, "", nil
	}

	store, version, err := migration.DecodeLegacy(data, d.kinds)
	if err != nil {
		return nil, version, fmt.Errorf("%w: %s: %w", ErrValidation, storage.LegacyDocumentKey, err)
	}
	return store, version, nil
}

// Write replaces the current document with s.
func (d *DataStore) Write(ctx context.Context, s *activity.Store) error {
	if s == nil {
		return errors.New("datastore: nil store")
	}
	s.SchemaVersion = activity.SchemaVersion

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if err := d.store.EnsureFolder(ctx, storage.CurrentDocumentKey); err != nil {
		return fmt.Errorf("prepare store folder: %w", err)
	}
	if err := d.store.Save(ctx, storage.CurrentDocumentKey, data); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// Exists reports whether any prior data is present: the current document,
// or a legacy document carrying activity tables.
func (d *DataStore) Exists(ctx context.Context) (bool, error) {
	ok, err := d.store.Exists(ctx, storage.CurrentDocumentKey)
	if err != nil {
		return false, fmt.Errorf("check current document: %w", err)
	}
	if ok || d.legacy == nil {
		return ok, nil
	}

	data, err := d.legacy.Load(ctx, storage.LegacyDocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check legacy document: %w", err)
	}

	doc, err := migration.ParseDocument(data)
	if err != nil {
		// Unreadable data still counts as prior data; Read reports it.
		return true, nil
	}
	return migration.HasActivityData(doc), nil
}

// MigrationResult describes what MigrateIfNeeded did.
type MigrationResult struct {
	// FromVersion is the detected legacy version, empty when nothing was
	// migrated.
	FromVersion string
	Migrated    bool
	Checkpoints int
	Days        int
}

// MigrateIfNeeded folds the legacy document into the current one and writes
// it, once. It does nothing when there is no legacy data or it has already
// been merged.
func (d *DataStore) MigrateIfNeeded(ctx context.Context) (MigrationResult, error) {
	res, err := d.read(ctx)
	if err != nil {
		return MigrationResult{}, err
	}
	if !res.legacyApplied {
		return MigrationResult{}, nil
	}

	if err := d.Write(ctx, res.store); err != nil {
		return MigrationResult{}, err
	}

	d.logger.Info("migrated legacy document",
		"from_version", res.legacyVersion,
		"to_version", activity.SchemaVersion,
		"had_current", res.hasCurrent)

	return MigrationResult{
		FromVersion: res.legacyVersion,
		Migrated:    true,
		Checkpoints: len(res.store.Checkpoints),
		Days:        len(res.store.DailyActivity),
	}, nil
}
