// Package sequencer runs store mutations one at a time, in submission order.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vault-md/vaultheat/internal/logging"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("sequencer: closed")

// Op is one queued operation. The context it receives is never cancelled by
// the submitter.
type Op func(ctx context.Context) error

// State is the lifecycle state of an operation.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
)

type task struct {
	id       string
	name     string
	fn       Op
	ctx      context.Context
	done     chan error
	queuedAt time.Time
}

// Stats is a snapshot of the queue.
type Stats struct {
	Queued    int
	Running   string // name of the running op, empty when idle
	Completed uint64
	Failed    uint64
}

// Sequencer owns a FIFO of pending operations and a single worker goroutine.
type Sequencer struct {
	logger *slog.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*task
	running   string
	closed    bool
	completed uint64
	failed    uint64

	stopped chan struct{}
}

// New starts a sequencer. Call Close to drain and stop it.
func New(logger *slog.Logger) *Sequencer {
	s := &Sequencer{
		logger:  logging.OrDefault(logger),
		stopped: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Submit appends fn to the queue and returns a channel that receives its
// result exactly once. Values carried by ctx are passed on to fn, but its
// cancellation is not.
func (s *Sequencer) Submit(ctx context.Context, name string, fn Op) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrClosed
		return done
	}

	id := uuid.NewString()
	t := &task{
		id:       id,
		name:     name,
		fn:       fn,
		ctx:      WithOpID(context.WithoutCancel(ctx), id),
		done:     done,
		queuedAt: time.Now(),
	}
	s.queue = append(s.queue, t)
	depth := len(s.queue)
	s.cond.Signal()
	s.mu.Unlock()

	s.logger.Debug("operation queued", "op_id", t.id, "op", name, "state", StateQueued, "queue_depth", depth)
	return done
}

// Do submits fn and waits for it. If ctx is cancelled first, Do returns
// ctx.Err() while the operation still runs in its turn.
func (s *Sequencer) Do(ctx context.Context, name string, fn Op) error {
	done := s.Submit(ctx, name, fn)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, waits for every queued operation to finish,
// and stops the worker. It is safe to call more than once.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()

	<-s.stopped
}

// Stats returns a snapshot of the queue.
func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Queued:    len(s.queue),
		Running:   s.running,
		Completed: s.completed,
		Failed:    s.failed,
	}
}

func (s *Sequencer) run() {
	defer close(s.stopped)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.running = t.name
		s.mu.Unlock()

		err := s.execute(t)

		s.mu.Lock()
		s.running = ""
		if err != nil {
			s.failed++
		} else {
			s.completed++
		}
		s.mu.Unlock()

		t.done <- err
	}
}

func (s *Sequencer) execute(t *task) (err error) {
	start := time.Now()
	s.logger.Debug("operation running", "op_id", t.id, "op", t.name, "state", StateRunning,
		"waited", start.Sub(t.queuedAt))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sequencer: operation %s panicked: %v", t.name, r)
		}
		if err != nil {
			s.logger.Warn("operation failed", "op_id", t.id, "op", t.name, "state", StateDone,
				"duration", time.Since(start), "error", err)
			return
		}
		s.logger.Debug("operation done", "op_id", t.id, "op", t.name, "state", StateDone,
			"duration", time.Since(start))
	}()

	return t.fn(t.ctx)
}

type opIDKey struct{}

// WithOpID returns a context carrying an operation id for log correlation.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID returns the operation id carried by ctx, if any.
func OpID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey{}).(string)
	return id
}
