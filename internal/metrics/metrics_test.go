package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-md/vaultheat/internal/vault"
)

type stubReader map[string]string

func (s stubReader) ReadContent(_ context.Context, f vault.File) (string, error) {
	content, ok := s[f.Path]
	if !ok {
		return "", errors.New("unreadable")
	}
	return content, nil
}

func TestDefaultRegistryKinds(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	assert.Equal(t, []Kind{FileSize, WordCount}, r.Kinds())
	assert.True(t, r.Has(FileSize))
	assert.False(t, r.Has(Kind("lineCount")))
}

func TestRegisterKeepsOrderAndReplaces(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	r.Register(Kind("lineCount"), func(context.Context, ContentReader, vault.File) (float64, error) { return 1, nil })
	r.Register(FileSize, func(context.Context, ContentReader, vault.File) (float64, error) { return 42, nil })

	assert.Equal(t, []Kind{FileSize, WordCount, Kind("lineCount")}, r.Kinds())

	values, errs := r.Evaluate(context.Background(), stubReader{"a.md": "x"}, vault.File{Path: "a.md", Size: 7})
	assert.Nil(t, errs)
	assert.Equal(t, 42.0, values[FileSize])
	assert.Equal(t, 1.0, values[Kind("lineCount")])
}

func TestParse(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	kind, err := r.Parse("wordcount")
	require.NoError(t, err)
	assert.Equal(t, WordCount, kind)

	_, err = r.Parse("bogus")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEvaluateIsolatesFailures(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	f := vault.File{Path: "missing.md", Size: 120}

	values, errs := r.Evaluate(context.Background(), stubReader{}, f)

	assert.Equal(t, 120.0, values[FileSize])
	_, ok := values[WordCount]
	assert.False(t, ok)
	require.Contains(t, errs, WordCount)
	assert.NotContains(t, errs, FileSize)
}

func TestCountWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
		{"  leading and trailing  ", 3},
		{"# Heading\n\n- item one\n- item two\n", 8},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CountWords(tt.content), "content %q", tt.content)
	}
}

func TestEvaluateWordCount(t *testing.T) {
	t.Parallel()

	reader := stubReader{"note.md": "hello brave new world"}
	got, err := EvaluateWordCount(context.Background(), reader, vault.File{Path: "note.md"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	_, err = EvaluateWordCount(context.Background(), nil, vault.File{Path: "note.md"})
	assert.Error(t, err)
}
