package sqldb

// Document is one row of the documents table.
type Document struct {
	Key       string
	Content   []byte
	Hash      string
	Size      int64
	UpdatedAt int64
}
