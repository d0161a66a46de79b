package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"
	"asyncsql/internal/domain/ports/adapter"

	"github.com/stretchr/testify/require"
)

// fakeDialer hands out in-memory sessions. Queries starting with BLOCK wait for
// release, FAIL returns an error and PANIC panics inside the driver.
type fakeDialer struct {
	mu        sync.Mutex
	failDials int
	dials     int
	sessions  []*fakeSession
	executed  []string

	gate        chan struct{}
	releaseOnce sync.Once

	running    atomic.Int32
	maxRunning atomic.Int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{gate: make(chan struct{})}
}

func (d *fakeDialer) Name() string { return "fake" }

func (d *fakeDialer) Escape(s string) string { return strings.ReplaceAll(s, "'", "''") }

func (d *fakeDialer) Classify(err error) adapter.DriverError {
	return adapter.DriverError{Code: 1064, SQLState: "42000", Message: err.Error()}
}

func (d *fakeDialer) Dial(_ context.Context, _ adapter.ConnParams) (adapter.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failDials > 0 {
		d.failDials--
		return nil, errors.New("connection refused")
	}
	s := &fakeSession{d: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) release() { d.releaseOnce.Do(func() { close(d.gate) }) }

func (d *fakeDialer) queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.executed...)
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeSession struct {
	d      *fakeDialer
	closed atomic.Bool
}

func (s *fakeSession) run(ctx context.Context, q string) error {
	n := s.d.running.Add(1)
	defer s.d.running.Add(-1)
	for {
		m := s.d.maxRunning.Load()
		if n <= m || s.d.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}

	s.d.mu.Lock()
	s.d.executed = append(s.d.executed, q)
	s.d.mu.Unlock()

	switch {
	case strings.HasPrefix(q, "BLOCK"):
		select {
		case <-s.d.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	case strings.HasPrefix(q, "FAIL"):
		return errors.New("you have an error in your SQL syntax")
	case strings.HasPrefix(q, "PANIC"):
		panic("driver bug")
	}
	return nil
}

func (s *fakeSession) Exec(ctx context.Context, q string) (int64, error) {
	if err := s.run(ctx, q); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *fakeSession) Query(ctx context.Context, q string) (*model.ResultSet, error) {
	if err := s.run(ctx, q); err != nil {
		return nil, err
	}
	rs := model.NewResultSet([]string{"query", "nothing"})
	text := q
	rs.AppendRow([]*string{&text, nil})
	return rs, nil
}

func (s *fakeSession) Ping(context.Context) error { return nil }

func (s *fakeSession) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

var testParams = adapter.ConnParams{Host: "localhost", User: "cj", Password: "pw", Database: "openCJ", Port: 3306}

func newTestEngine(t *testing.T, d *fakeDialer, opts Options) *Engine {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	e := New(d, opts, nil)
	t.Cleanup(func() {
		d.release()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	})
	return e
}

func newStartedEngine(t *testing.T, d *fakeDialer, conns int) *Engine {
	t.Helper()
	e := newTestEngine(t, d, Options{})
	_, err := e.Init(context.Background(), testParams, conns)
	require.NoError(t, err)
	return e
}

// waitFetch polls FetchAndRelease until the task is no longer pending or running.
func waitFetch(t *testing.T, e *Engine, id int64) Fetched {
	t.Helper()
	var (
		f   Fetched
		err error
	)
	require.Eventually(t, func() bool {
		f, err = e.FetchAndRelease(id)
		return !errors.Is(err, domain.ErrNotReady)
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, err)
	return f
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
