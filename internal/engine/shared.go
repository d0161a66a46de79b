package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/ports/adapter"
)

// syncConn is a blocking session outside the async pool.
type syncConn struct {
	id int

	mu      sync.Mutex
	sess    adapter.Session
	lastErr adapter.DriverError
}

// syncTable holds blocking sessions. The first one opened successfully becomes
// the shared connection and stays so for the life of the engine.
type syncTable struct {
	mu     sync.Mutex
	last   int
	shared int
	conns  map[int]*syncConn
}

func newSyncTable() *syncTable {
	return &syncTable{conns: make(map[int]*syncConn)}
}

func (t *syncTable) add(s adapter.Session) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last++
	t.conns[t.last] = &syncConn{id: t.last, sess: s}
	if t.shared == 0 {
		t.shared = t.last
	}
	return t.last
}

func (t *syncTable) get(h int) (*syncConn, error) {
	if h <= 0 {
		return nil, fmt.Errorf("connection handle %d: %w", h, domain.ErrInvalidArgument)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[h]
	if !ok {
		return nil, fmt.Errorf("connection handle %d: %w", h, domain.ErrNotFound)
	}
	return c, nil
}

func (t *syncTable) remove(h int) *syncConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.conns[h]
	delete(t.conns, h)
	return c
}

func (t *syncTable) closeAll(ctx context.Context) error {
	t.mu.Lock()
	conns := t.conns
	t.conns = make(map[int]*syncConn)
	t.mu.Unlock()

	var errs []error
	for _, c := range conns {
		c.mu.Lock()
		if err := c.sess.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sync connection %d: %w", c.id, err))
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Connect opens a blocking session independent of the async pool and returns its handle.
func (e *Engine) Connect(ctx context.Context, p adapter.ConnParams) (int, error) {
	if p.Host == "" || p.User == "" || p.Database == "" {
		return 0, fmt.Errorf("host, user and database are required: %w", domain.ErrInvalidArgument)
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return 0, domain.ErrClosed
	}

	sess, err := e.dialer.Dial(ctx, p)
	if err != nil {
		e.log.Warn().Err(err).Str("host", p.Host).Msg("sync connect failed")
		return 0, err
	}
	h := e.syncConns.add(sess)
	e.log.Info().Int("handle", h).Msg("sync connection opened")
	return h, nil
}

// SharedConnection returns the first sync connection that was opened, if any.
func (e *Engine) SharedConnection() (int, bool) {
	e.syncConns.mu.Lock()
	defer e.syncConns.mu.Unlock()
	return e.syncConns.shared, e.syncConns.shared != 0
}

// ExecSync runs query on sync connection h and returns the affected row count.
func (e *Engine) ExecSync(ctx context.Context, h int, query string) (int64, error) {
	c, err := e.syncConns.get(h)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.sess.Exec(ctx, query)
	c.lastErr = classify(e.dialer, err)
	return n, err
}

// QuerySync runs query on sync connection h and registers the rows as a result handle.
func (e *Engine) QuerySync(ctx context.Context, h int, query string) (int, error) {
	c, err := e.syncConns.get(h)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	rs, err := c.sess.Query(ctx, query)
	c.lastErr = classify(e.dialer, err)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return e.results.put(rs), nil
}

// SyncError returns the last driver error of sync connection h.
func (e *Engine) SyncError(h int) (adapter.DriverError, error) {
	c, err := e.syncConns.get(h)
	if err != nil {
		return adapter.DriverError{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr, nil
}

// Disconnect closes sync connection h. The shared handle is not reassigned.
func (e *Engine) Disconnect(ctx context.Context, h int) error {
	if _, err := e.syncConns.get(h); err != nil {
		return err
	}
	c := e.syncConns.remove(h)
	if c == nil {
		return fmt.Errorf("connection handle %d: %w", h, domain.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Close(ctx)
}

// Escape quotes text for a string literal in the engine's SQL dialect.
func (e *Engine) Escape(s string) string { return e.dialer.Escape(s) }
