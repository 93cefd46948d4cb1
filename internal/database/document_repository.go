package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqldb "github.com/vault-md/vaultheat/internal/database/sqlc"
	"github.com/vault-md/vaultheat/internal/storage"
)

// DocumentRepository stores whole documents as rows of the documents table.
type DocumentRepository struct {
	ctx *Context
	now func() time.Time
}

var (
	_ storage.DocumentStore = (*DocumentRepository)(nil)
	_ storage.Describer     = (*DocumentRepository)(nil)
)

func NewDocumentRepository(dbCtx *Context) *DocumentRepository {
	return &DocumentRepository{ctx: dbCtx, now: time.Now}
}

func (r *DocumentRepository) queries() (*sqldb.Queries, error) {
	queries := queriesFromContext(r.ctx)
	if queries == nil {
		return nil, errors.New("document repository: missing database context")
	}
	return queries, nil
}

func (r *DocumentRepository) Load(ctx context.Context, key string) ([]byte, error) {
	queries, err := r.queries()
	if err != nil {
		return nil, err
	}

	row, err := queries.GetDocument(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	return row.Content, nil
}

// Save upserts the row inside a transaction so readers see either the old
// or the new document.
func (r *DocumentRepository) Save(ctx context.Context, key string, data []byte) error {
	queries, err := r.queries()
	if err != nil {
		return err
	}

	tx, err := r.ctx.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = queries.WithTx(tx).UpsertDocument(ctx, sqldb.UpsertDocumentParams{
		Key:       key,
		Content:   data,
		Hash:      calculateHash(data),
		Size:      int64(len(data)),
		UpdatedAt: r.now().UnixMilli(),
	})
	if err != nil {
		return rollback(tx, fmt.Errorf("failed to save document %s: %w", key, err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", key, err)
	}
	return nil
}

// EnsureFolder is a no-op: the table exists once migrations have run.
func (r *DocumentRepository) EnsureFolder(context.Context, string) error {
	if _, err := r.queries(); err != nil {
		return err
	}
	return nil
}

func (r *DocumentRepository) Exists(ctx context.Context, key string) (bool, error) {
	queries, err := r.queries()
	if err != nil {
		return false, err
	}

	exists, err := queries.DocumentExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", key, err)
	}
	return exists, nil
}

func (r *DocumentRepository) Describe(ctx context.Context, key string) (storage.DocumentInfo, error) {
	queries, err := r.queries()
	if err != nil {
		return storage.DocumentInfo{}, err
	}

	row, err := queries.GetDocument(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DocumentInfo{}, storage.ErrNotFound
		}
		return storage.DocumentInfo{}, fmt.Errorf("failed to describe document %s: %w", key, err)
	}

	return storage.DocumentInfo{
		Key:     row.Key,
		Size:    row.Size,
		ModTime: time.UnixMilli(row.UpdatedAt),
		Hash:    row.Hash,
	}, nil
}

// Keys lists the stored document keys.
func (r *DocumentRepository) Keys(ctx context.Context) ([]string, error) {
	queries, err := r.queries()
	if err != nil {
		return nil, err
	}
	return queries.ListDocumentKeys(ctx)
}
