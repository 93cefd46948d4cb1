package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vault-md/vaultheat/internal/config"
	"github.com/vault-md/vaultheat/internal/database"
	"github.com/vault-md/vaultheat/internal/datastore"
	"github.com/vault-md/vaultheat/internal/filesystem"
	"github.com/vault-md/vaultheat/internal/logging"
	"github.com/vault-md/vaultheat/internal/metrics"
	"github.com/vault-md/vaultheat/internal/storage"
	"github.com/vault-md/vaultheat/internal/tracker"
	"github.com/vault-md/vaultheat/internal/vault"
)

// app holds everything a command needs for one vault.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	vault    *vault.Dir
	registry *metrics.Registry
	dataDir  string
	store    storage.DocumentStore
	legacy   *filesystem.Store
	data     *datastore.DataStore
	tracker  *tracker.Tracker
	dbCtx    *database.Context
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if vaultPath != "" {
		cfg.Vault.Path = vaultPath
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires config, logger, storage backend and tracker. Callers must
// call close.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Output: cmd.ErrOrStderr(),
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, err
	}

	dir, err := vault.NewDir(cfg.Vault.Path, cfg.Vault.Extensions)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger.With("vault", dir.Root()),
		vault:    dir,
		registry: metrics.DefaultRegistry(),
		dataDir:  cfg.DataDir(dir.Root()),
	}
	a.legacy = filesystem.New(a.dataDir)

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		a.dbCtx, err = database.CreateDatabase(config.GetDBPath(a.dataDir))
		if err != nil {
			return nil, err
		}
		a.store = database.NewDocumentRepository(a.dbCtx)
	default:
		a.store = a.legacy
	}

	a.data = datastore.New(a.store,
		datastore.WithLegacyStore(a.legacy),
		datastore.WithKinds(a.registry.Kinds()),
		datastore.WithLogger(a.logger),
	)
	a.tracker = tracker.New(a.vault, a.registry, a.data,
		tracker.WithLocation(loc),
		tracker.WithLogger(a.logger),
	)

	a.logger.Debug("opened vault", "data_dir", a.dataDir, "backend", cfg.Storage.Backend)
	return a, nil
}

func (a *app) close() {
	a.tracker.Close()
	if a.dbCtx != nil {
		if err := database.CloseDatabase(a.dbCtx); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}

// settings loads the settings document and checks it against the
// registered metrics.
func (a *app) settings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.LoadSettings(cmd.Context(), a.store)
	if err != nil {
		return config.Settings{}, err
	}
	if err := s.Validate(kindNames(a.registry.Kinds())); err != nil {
		a.logger.Warn("invalid settings, using defaults", "error", err)
		return config.DefaultSettings(), nil
	}
	return s, nil
}

// relPath converts a command line path into the vault-relative form.
func (a *app) relPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		if _, statErr := os.Stat(abs); statErr == nil {
			path = abs
		}
	}
	return a.vault.Rel(path)
}

func kindNames(kinds []metrics.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func getTerminalWidth() int {
	// Try to get terminal width from stdout
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	// Default width if terminal size cannot be determined
	return 80
}
