// Package metrics maps metric kinds to the evaluators that compute them for a
// vault file.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/vault-md/vaultheat/internal/vault"
)

// Kind identifies a metric.
type Kind string

// Built-in metric kinds. The string values are part of the on-disk format.
const (
	FileSize  Kind = "fileSize"
	WordCount Kind = "wordCount"
)

// ErrUnknownKind is returned when a kind has no registered evaluator.
var ErrUnknownKind = errors.New("metrics: unknown kind")

// ContentReader reads the text of a vault file.
type ContentReader interface {
	ReadContent(ctx context.Context, f vault.File) (string, error)
}

// Evaluator computes one metric value for a file. It must be deterministic
// for identical content and must not modify the file.
type Evaluator func(ctx context.Context, r ContentReader, f vault.File) (float64, error)

// Registry maps kinds to evaluators. Kinds keep their registration order.
type Registry struct {
	mu         sync.RWMutex
	order      []Kind
	evaluators map[Kind]Evaluator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[Kind]Evaluator)}
}

// DefaultRegistry returns a registry holding the built-in kinds.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FileSize, EvaluateFileSize)
	r.Register(WordCount, EvaluateWordCount)
	return r
}

// Register adds or replaces the evaluator for kind.
func (r *Registry) Register(kind Kind, fn Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.evaluators[kind]; !ok {
		r.order = append(r.order, kind)
	}
	r.evaluators[kind] = fn
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, len(r.order))
	copy(kinds, r.order)
	return kinds
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.evaluators[kind]
	return ok
}

// Parse resolves a kind name, accepting any letter case.
func (r *Registry) Parse(name string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range r.order {
		if strings.EqualFold(string(kind), name) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Evaluate runs every evaluator for f. Values holds the kinds that
// succeeded; errs holds the kinds that failed. A failing evaluator does not
// prevent the others from running.
func (r *Registry) Evaluate(ctx context.Context, reader ContentReader, f vault.File) (values map[Kind]float64, errs map[Kind]error) {
	r.mu.RLock()
	order := make([]Kind, len(r.order))
	copy(order, r.order)
	evaluators := make(map[Kind]Evaluator, len(r.evaluators))
	for k, fn := range r.evaluators {
		evaluators[k] = fn
	}
	r.mu.RUnlock()

	values = make(map[Kind]float64, len(order))
	for _, kind := range order {
		value, err := evaluators[kind](ctx, reader, f)
		if err != nil {
			if errs == nil {
				errs = make(map[Kind]error)
			}
			errs[kind] = err
			continue
		}
		values[kind] = value
	}
	return values, errs
}

// EvaluateFileSize returns the file size in bytes.
func EvaluateFileSize(_ context.Context, _ ContentReader, f vault.File) (float64, error) {
	return float64(f.Size), nil
}

// EvaluateWordCount returns the number of whitespace-separated words.
func EvaluateWordCount(ctx context.Context, r ContentReader, f vault.File) (float64, error) {
	if r == nil {
		return 0, errors.New("metrics: word count needs a content reader")
	}

	content, err := r.ReadContent(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return float64(CountWords(content)), nil
}

// CountWords counts runs of non-space characters.
func CountWords(content string) int {
	return len(strings.FieldsFunc(content, unicode.IsSpace))
}
