package sqldb

import "context"

const getDocument = `SELECT key, content, hash, size, updated_at FROM documents WHERE key = ?`

func (q *Queries) GetDocument(ctx context.Context, key string) (Document, error) {
	row := q.db.QueryRowContext(ctx, getDocument, key)
	var d Document
	err := row.Scan(&d.Key, &d.Content, &d.Hash, &d.Size, &d.UpdatedAt)
	return d, err
}

const upsertDocument = `INSERT INTO documents (key, content, hash, size, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    content = excluded.content,
    hash = excluded.hash,
    size = excluded.size,
    updated_at = excluded.updated_at`

type UpsertDocumentParams struct {
	Key       string
	Content   []byte
	Hash      string
	Size      int64
	UpdatedAt int64
}

func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.ExecContext(ctx, upsertDocument,
		arg.Key,
		arg.Content,
		arg.Hash,
		arg.Size,
		arg.UpdatedAt,
	)
	return err
}

const documentExists = `SELECT EXISTS(SELECT 1 FROM documents WHERE key = ?)`

func (q *Queries) DocumentExists(ctx context.Context, key string) (bool, error) {
	row := q.db.QueryRowContext(ctx, documentExists, key)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const listDocumentKeys = `SELECT key FROM documents ORDER BY key`

func (q *Queries) ListDocumentKeys(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listDocumentKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
