// Package engine runs SQL queries in the background for a caller that must never
// block on the network. Callers submit query text, keep going, and later poll for
// finished task ids and collect each result exactly once.
//
// One mutex guards the task queue and the connection list. A dispatcher goroutine
// pairs pending tasks with idle connections, head of queue first, and hands each
// pairing to a worker pool sized to the connection count. Workers run the query
// without the lock and take it again only to publish the outcome and free the
// connection in a single step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"asyncsql/internal/config"
	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"
	"asyncsql/internal/domain/ports/adapter"
	"asyncsql/internal/infra/logging"
	"asyncsql/internal/infra/metrics"
	"asyncsql/internal/infra/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Options struct {
	PollInterval      time.Duration
	MaxQueryLength    int
	LongQueryCapacity int
	// DoneTTL > 0 lets EvictExpired drop done tasks nobody fetched in time.
	DoneTTL time.Duration
	// Dev disables query redaction in logs.
	Dev bool
	Now func() time.Time
}

func OptionsFromConfig(cfg config.EngineConfig, dev bool) Options {
	return Options{
		PollInterval:      cfg.PollInterval,
		MaxQueryLength:    cfg.MaxQueryLength,
		LongQueryCapacity: cfg.LongQueryCapacity,
		DoneTTL:           cfg.DoneTTL,
		Dev:               dev,
	}
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = config.DefaultPollInterval
	}
	if o.MaxQueryLength <= 0 {
		o.MaxQueryLength = config.DefaultMaxQueryLength
	}
	if o.LongQueryCapacity <= 0 {
		o.LongQueryCapacity = config.DefaultLongQueryCapacity
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Fetched is what a caller gets back for a finished task.
type Fetched struct {
	TaskID int64
	// Handle is a result-set handle (> 0) when the task saved its result and
	// succeeded, zero otherwise. The caller owns it and must FreeResult it.
	Handle int
	// Err is the execution error, if the query failed.
	Err      error
	ConnID   int
	Duration time.Duration
}

type Stats struct {
	EngineID    string `json:"engine_id"`
	Driver      string `json:"driver"`
	Connections int    `json:"connections"`
	Busy        int    `json:"busy"`
	Pending     int    `json:"pending"`
	Running     int    `json:"running"`
	Done        int    `json:"done"`
	Results     int    `json:"results"`
	LongQueries int    `json:"long_queries"`
	LastTaskID  int64  `json:"last_task_id"`
}

type Engine struct {
	id     string
	dialer adapter.Dialer
	opts   Options
	log    *zerolog.Logger

	mu           sync.Mutex
	queue        *taskQueue
	conns        []*Connection
	params       adapter.ConnParams
	initializing bool
	closed       bool
	lastID       int64

	workers  *worker.Pool
	runCtx   context.Context
	cancel   context.CancelFunc
	started  bool
	wake     chan struct{}
	stop     chan struct{}
	loopDone chan struct{}

	results     *resultTable
	longQueries *longQueryTable
	syncConns   *syncTable
}

func New(dialer adapter.Dialer, opts Options, logger *zerolog.Logger) *Engine {
	opts.normalize()
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	id := uuid.NewString()
	l := logging.Component(logger, "engine").With().Str("engine_id", id).Str("driver", dialer.Name()).Logger()
	return &Engine{
		id:          id,
		dialer:      dialer,
		opts:        opts,
		log:         &l,
		queue:       newTaskQueue(),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		results:     newResultTable(),
		longQueries: newLongQueryTable(opts.LongQueryCapacity),
		syncConns:   newSyncTable(),
	}
}

func (e *Engine) ID() string { return e.id }

// Init opens count connections and starts the dispatcher. A connection whose
// dial fails is kept empty and redialed by the first query that lands on it.
// It returns the connection handles in creation order.
func (e *Engine) Init(ctx context.Context, p adapter.ConnParams, count int) ([]int, error) {
	defer logging.TraceDuration(e.log, "Engine.Init")()
	if count <= 0 {
		return nil, fmt.Errorf("connection count %d: %w", count, domain.ErrInvalidArgument)
	}
	if p.Host == "" || p.User == "" || p.Database == "" {
		return nil, fmt.Errorf("host, user and database are required: %w", domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return nil, domain.ErrClosed
	case e.initializing || e.conns != nil:
		e.mu.Unlock()
		e.log.Warn().Msg("async pool already initialized; keeping existing connections")
		return nil, domain.ErrAlreadyInitialized
	}
	e.initializing = true
	e.mu.Unlock()

	conns := make([]*Connection, count)
	handles := make([]int, count)
	for i := range conns {
		c := &Connection{id: i + 1}
		sess, err := e.dialer.Dial(ctx, p)
		if err != nil {
			c.lastErr = classify(e.dialer, err)
			e.log.Warn().Err(err).Int("conn_id", c.id).Msg("connection failed; will redial on first query")
		} else {
			c.sess = sess
		}
		conns[i] = c
		handles[i] = c.id
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.initializing = false
	if e.closed {
		for _, c := range conns {
			_ = c.close(ctx)
		}
		return nil, domain.ErrClosed
	}
	e.conns = conns
	e.params = p
	e.runCtx, e.cancel = context.WithCancel(context.Background())
	e.workers = worker.NewPool(count, e.log)
	e.workers.Start(e.runCtx)
	e.startDispatcherLocked()
	metrics.SetDBPoolStats(count, count, 0)
	e.log.Info().Int("connections", count).Str("host", p.Host).Str("database", p.Database).Msg("async pool initialized")
	return handles, nil
}

// ConnectionCount is zero until Init succeeded.
func (e *Engine) ConnectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// ConnectionError returns the last driver error seen on pool connection id.
func (e *Engine) ConnectionError(id int) (adapter.DriverError, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id <= 0 || id > len(e.conns) {
		return adapter.DriverError{}, fmt.Errorf("connection %d: %w", id, domain.ErrNotFound)
	}
	return e.conns[id-1].LastError(), nil
}

// Submit queues query and returns its task id. It never touches the network.
// Text longer than MaxQueryLength is cut; longer queries go through the long
// query builder.
func (e *Engine) Submit(query string, save bool) (int64, error) {
	return e.enqueue(query, save, e.opts.MaxQueryLength)
}

func (e *Engine) enqueue(query string, save bool, limit int) (int64, error) {
	if strings.TrimSpace(query) == "" {
		return 0, fmt.Errorf("empty query: %w", domain.ErrInvalidArgument)
	}
	query = truncate(query, limit)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, domain.ErrClosed
	}
	e.lastID++
	id := e.lastID
	e.queue.push(model.NewTask(id, query, save, e.opts.Now()))
	e.mu.Unlock()

	metrics.IncTaskSubmitted()
	e.log.Debug().Int64("task_id", id).Bool("save", save).Str("query", logging.Redact(query, e.opts.Dev)).Msg("query submitted")
	e.signal()
	return id, nil
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

// ListDoneIDs returns the ids of finished tasks in queue order. Tasks stay queued.
func (e *Engine) ListDoneIDs() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0)
	e.queue.each(func(t *model.Task) bool {
		if t.IsDone() {
			ids = append(ids, t.ID)
		}
		return true
	})
	return ids
}

// FetchAndRelease removes a finished task and hands over its result.
// It returns domain.ErrNotReady while the task is pending or running and
// domain.ErrNotFound for ids that were never submitted or already fetched.
func (e *Engine) FetchAndRelease(id int64) (Fetched, error) {
	e.mu.Lock()
	t := e.queue.get(id)
	if t == nil {
		e.mu.Unlock()
		e.log.Warn().Int64("task_id", id).Msg("async query id not found")
		return Fetched{}, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	if !t.IsDone() {
		e.mu.Unlock()
		return Fetched{TaskID: id}, domain.ErrNotReady
	}
	e.queue.remove(id)
	e.mu.Unlock()

	f := Fetched{
		TaskID:   t.ID,
		Err:      t.Err,
		ConnID:   t.ConnID,
		Duration: t.FinishedAt.Sub(t.StartedAt),
	}
	if t.Save && t.Result != nil {
		f.Handle = e.results.put(t.Result)
	}
	return f, nil
}

// EvictExpired drops done tasks older than DoneTTL and returns how many went.
// It is a no-op when DoneTTL is zero.
func (e *Engine) EvictExpired() int {
	if e.opts.DoneTTL <= 0 {
		return 0
	}
	cutoff := e.opts.Now().Add(-e.opts.DoneTTL)

	e.mu.Lock()
	var expired []int64
	e.queue.each(func(t *model.Task) bool {
		if t.IsDone() && t.FinishedAt.Before(cutoff) {
			expired = append(expired, t.ID)
		}
		return true
	})
	for _, id := range expired {
		e.queue.remove(id)
	}
	e.mu.Unlock()

	if n := len(expired); n > 0 {
		metrics.AddTasksEvicted(n)
		e.log.Info().Int("count", n).Dur("ttl", e.opts.DoneTTL).Msg("evicted unfetched results")
	}
	return len(expired)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		EngineID:    e.id,
		Driver:      e.dialer.Name(),
		Connections: len(e.conns),
		LastTaskID:  e.lastID,
	}
	for _, c := range e.conns {
		if !c.idle() {
			s.Busy++
		}
	}
	s.Pending, s.Running, s.Done = e.queue.counts()
	e.mu.Unlock()

	s.Results = e.results.len()
	s.LongQueries = e.longQueries.len()
	return s
}

// PublishMetrics refreshes the queue and pool gauges.
func (e *Engine) PublishMetrics() {
	s := e.Stats()
	metrics.SetQueueDepth(s.Pending, s.Running, s.Done)
	metrics.SetDBPoolStats(s.Connections, s.Connections-s.Busy, s.Busy)
}

// Close stops dispatching, waits for running queries (cancelling them if ctx
// expires first) and closes every session. Pending tasks are abandoned.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	workers := e.workers
	conns := e.conns
	cancel := e.cancel
	e.mu.Unlock()

	if started {
		close(e.stop)
		<-e.loopDone
	}
	if workers != nil {
		if err := workers.StopContext(ctx); err != nil {
			e.log.Warn().Err(err).Msg("cancelling in-flight queries")
			cancel()
			workers.Stop()
		}
	}
	if cancel != nil {
		cancel()
	}

	var errs []error
	for _, c := range conns {
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close connection %d: %w", c.id, err))
		}
	}
	if err := e.syncConns.closeAll(ctx); err != nil {
		errs = append(errs, err)
	}
	e.log.Info().Msg("engine closed")
	return errors.Join(errs...)
}
