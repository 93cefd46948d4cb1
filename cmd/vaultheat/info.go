package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vault-md/vaultheat/internal/activity"
	"github.com/vault-md/vaultheat/internal/database"
	"github.com/vault-md/vaultheat/internal/storage"
)

func newInfoCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show storage metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := a.collectInfo(cmd)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "table":
				outputInfoTable(cmd, info)
				return nil
			default:
				return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

type infoOutput struct {
	Vault         string         `json:"vault"`
	DataDir       string         `json:"dataDir"`
	Backend       string         `json:"backend"`
	SchemaVersion string         `json:"schemaVersion"`
	DBVersion     *uint          `json:"dbVersion,omitempty"`
	DBDirty       bool           `json:"dbDirty,omitempty"`
	Metrics       []string       `json:"metrics"`
	Checkpoints   int            `json:"checkpoints"`
	Days          int            `json:"days"`
	Documents     []documentInfo `json:"documents"`
	StoredKeys    []string       `json:"storedKeys,omitempty"`
}

// keyLister is implemented by backends that can enumerate their documents.
type keyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

type documentInfo struct {
	Key       string `json:"key"`
	Present   bool   `json:"present"`
	Size      int64  `json:"size,omitempty"`
	Hash      string `json:"hash,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (a *app) collectInfo(cmd *cobra.Command) (infoOutput, error) {
	ctx := cmd.Context()

	store, err := a.tracker.Snapshot(ctx)
	if err != nil {
		return infoOutput{}, err
	}

	out := infoOutput{
		Vault:         a.vault.Root(),
		DataDir:       a.dataDir,
		Backend:       a.cfg.Storage.Backend,
		SchemaVersion: activity.SchemaVersion,
		Metrics:       kindNames(a.registry.Kinds()),
		Checkpoints:   len(store.Checkpoints),
		Days:          len(store.DailyActivity),
	}

	if a.dbCtx != nil {
		v, dirty, err := database.SchemaVersion(a.dbCtx)
		if err != nil {
			return infoOutput{}, err
		}
		out.DBVersion = &v
		out.DBDirty = dirty
	}

	if lister, ok := a.store.(keyLister); ok {
		keys, err := lister.Keys(ctx)
		if err != nil {
			return infoOutput{}, err
		}
		out.StoredKeys = keys
	}

	documents := []struct {
		key   string
		store storage.DocumentStore
	}{
		{storage.CurrentDocumentKey, a.store},
		{storage.SettingsKey, a.store},
		{storage.LegacyDocumentKey, a.legacy},
	}
	for _, doc := range documents {
		d := documentInfo{Key: doc.key}
		if describer, ok := doc.store.(storage.Describer); ok {
			di, err := describer.Describe(ctx, doc.key)
			switch {
			case errors.Is(err, storage.ErrNotFound):
			case err != nil:
				return infoOutput{}, err
			default:
				d.Present = true
				d.Size = di.Size
				d.Hash = di.Hash
				d.UpdatedAt = di.ModTime.Format(time.RFC3339)
			}
		}
		out.Documents = append(out.Documents, d)
	}

	return out, nil
}

func outputInfoTable(cmd *cobra.Command, info infoOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Vault:        %s\n", info.Vault)
	fmt.Fprintf(w, "Data Dir:     %s\n", info.DataDir)
	fmt.Fprintf(w, "Backend:      %s\n", info.Backend)
	fmt.Fprintf(w, "Schema:       %s\n", info.SchemaVersion)
	if info.DBVersion != nil {
		fmt.Fprintf(w, "DB Version:   %d (dirty: %t)\n", *info.DBVersion, info.DBDirty)
	}
	fmt.Fprintf(w, "Metrics:      %v\n", info.Metrics)
	fmt.Fprintf(w, "Checkpoints:  %d\n", info.Checkpoints)
	fmt.Fprintf(w, "Active Days:  %d\n", info.Days)

	for _, d := range info.Documents {
		if !d.Present {
			fmt.Fprintf(w, "%-40s (absent)\n", d.Key)
			continue
		}
		fmt.Fprintf(w, "%-40s %s, updated %s, sha256 %.12s\n", d.Key, humanize.Bytes(uint64(d.Size)), d.UpdatedAt, d.Hash)
	}
	if len(info.StoredKeys) > 0 {
		fmt.Fprintf(w, "Stored Keys:  %v\n", info.StoredKeys)
	}
}
