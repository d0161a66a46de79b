package engine

import (
	"context"
	"errors"
	"sync"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"
	"asyncsql/internal/domain/ports/adapter"
)

// Connection is one pool slot. task is guarded by Engine.mu; the session and
// the last error belong to whichever worker holds the binding.
type Connection struct {
	id   int
	task int64 // zero when idle

	mu      sync.Mutex
	sess    adapter.Session
	lastErr adapter.DriverError
}

func (c *Connection) ID() int { return c.id }

func (c *Connection) idle() bool { return c.task == 0 }

// LastError is the driver error of the most recent call; Code 0 means it succeeded.
func (c *Connection) LastError() adapter.DriverError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) setLastError(e adapter.DriverError) {
	c.mu.Lock()
	c.lastErr = e
	c.mu.Unlock()
}

// run executes query on the session, dialing first when the slot has none.
func (c *Connection) run(ctx context.Context, d adapter.Dialer, p adapter.ConnParams, query string, save bool) (*model.ResultSet, error) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess == nil {
		s, err := d.Dial(ctx, p)
		if err != nil {
			return nil, errors.Join(domain.ErrNoConnection, err)
		}
		c.mu.Lock()
		c.sess = s
		c.mu.Unlock()
		sess = s
	}

	if save {
		return sess.Query(ctx, query)
	}
	_, err := sess.Exec(ctx, query)
	return nil, err
}

func (c *Connection) close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	err := c.sess.Close(ctx)
	c.sess = nil
	return err
}

// classify turns err into the driver's error shape, falling back to a client error.
func classify(d adapter.Dialer, err error) adapter.DriverError {
	if err == nil {
		return adapter.DriverError{}
	}
	if c, ok := d.(adapter.ErrorClassifier); ok {
		return c.Classify(err)
	}
	return adapter.DriverError{Code: adapter.ClientErrorCode, Message: err.Error()}
}
