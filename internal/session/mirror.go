package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/survival-check/internal/logging"
)

// Mirror copies session snapshots into a Cache so readers do not contend
// with the session lock. Writes run on a single background worker; Observe
// only queues the snapshot, so a slow cache never holds a session lock.
// Queued snapshots for the same session coalesce to the latest one.
type Mirror struct {
	cache          Cache
	ttl            time.Duration
	writeTimeout   time.Duration
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string]mirrorOp
	order   []string
	busy    bool
	closed  bool
	stopped chan struct{}
}

// mirrorOp is either a snapshot write or, when forget is set, a delete.
type mirrorOp struct {
	snap   Snapshot
	forget bool
	done   chan error
}

// NewMirror returns a mirror writing entries that expire after ttl. Call
// Close to drain queued writes and stop the worker.
func NewMirror(cache Cache, ttl time.Duration, logger *zap.Logger) *Mirror {
	m := &Mirror{
		cache:          cache,
		ttl:            ttl,
		writeTimeout:   2 * time.Second,
		logger:         logger.Named("session_mirror"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		pending:        map[string]mirrorOp{},
		stopped:        make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.run()
	return m
}

func mirrorKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Observe is an Observer that queues snap for writing. Failures are logged
// and the stale key is deleted; the session remains the source of truth.
func (m *Mirror) Observe(snap Snapshot) {
	m.enqueue(snap.ID, mirrorOp{snap: snap})
}

// Flush blocks until every queued write has been applied.
func (m *Mirror) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.order) > 0 || m.busy {
		m.cond.Wait()
	}
}

// Close drains the queue and stops the worker. Observe calls after Close
// are dropped.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.stopped
		return
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	<-m.stopped
}

func (m *Mirror) enqueue(id string, op mirrorOp) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	prev, queued := m.pending[id]
	if !queued {
		m.order = append(m.order, id)
	} else if prev.done != nil {
		prev.done <- nil
	}
	m.pending[id] = op
	m.cond.Broadcast()
	return true
}

func (m *Mirror) run() {
	defer close(m.stopped)
	for {
		m.mu.Lock()
		for len(m.order) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.order) == 0 {
			m.mu.Unlock()
			return
		}
		id := m.order[0]
		m.order = m.order[1:]
		op := m.pending[id]
		delete(m.pending, id)
		m.busy = true
		m.mu.Unlock()

		var err error
		if op.forget {
			err = m.del(id)
		} else {
			m.write(op.snap)
		}
		if op.done != nil {
			op.done <- err
		}

		m.mu.Lock()
		m.busy = false
		m.cond.Broadcast()
		m.mu.Unlock()
	}
}

func (m *Mirror) write(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	opLogger := logging.WithOperation(m.logger, "mirror.observe", snap.State.RequestID)
	payload, err := json.Marshal(snap)
	if err != nil {
		opLogger.Error("failed to serialize session snapshot", zap.Error(err))
		return
	}
	err = m.withRetry(ctx, snap.State.RequestID, "cache.set.session", func() error {
		return m.cache.Set(ctx, mirrorKey(snap.ID), string(payload), m.ttl)
	})
	if err == nil {
		return
	}
	opLogger.Error("failed to mirror session snapshot", zap.Error(err), zap.String("session_id", snap.ID))
	// The previous snapshot is now stale; drop it so readers fall through.
	if err := m.del(snap.ID); err != nil {
		opLogger.Error("failed to drop stale session snapshot", zap.Error(err), zap.String("session_id", snap.ID))
	}
}

func (m *Mirror) del(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	return m.withRetry(ctx, "", "cache.del.session", func() error {
		return m.cache.Del(ctx, mirrorKey(id))
	})
}

// Load reads a mirrored snapshot. It returns ErrNotFound on a cache miss.
func (m *Mirror) Load(ctx context.Context, id string) (Snapshot, error) {
	var cached string
	err := m.withRetry(ctx, "", "cache.get.session", func() error {
		value, err := m.cache.Get(ctx, mirrorKey(id))
		if err != nil {
			return err
		}
		cached = value
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(cached), &snap); err != nil {
		return Snapshot{}, logging.NewOperationError("mirror.decode", "", err)
	}
	return snap, nil
}

// Forget deletes the mirrored snapshot. The delete is ordered after any
// write already queued for id.
func (m *Mirror) Forget(ctx context.Context, id string) error {
	done := make(chan error, 1)
	if !m.enqueue(id, mirrorOp{forget: true, done: done}) {
		return m.withRetry(ctx, "", "cache.del.session", func() error {
			return m.cache.Del(ctx, mirrorKey(id))
		})
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return logging.NewOperationError("cache.del.session", "", ctx.Err())
	}
}

func (m *Mirror) withRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	backoff := m.initialBackoff
	opLogger := logging.WithOperation(m.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < m.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= m.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == m.retryAttempts-1 {
			if !errors.Is(err, redis.Nil) {
				opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
