package engine

import (
	"time"

	"asyncsql/internal/domain/model"
	"asyncsql/internal/infra/metrics"
)

// startDispatcherLocked launches the dispatch loop once per engine.
func (e *Engine) startDispatcherLocked() {
	if e.started {
		e.log.Warn().Msg("dispatcher already started")
		return
	}
	e.started = true
	go e.loop()
}

// signal wakes the dispatcher without blocking; wakeups coalesce.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// loop dispatches on every submission or completion, and on each poll tick as
// a safety net for missed wakeups.
func (e *Engine) loop() {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	e.log.Info().Dur("poll_interval", e.opts.PollInterval).Msg("dispatcher started")
	for {
		e.dispatch()
		select {
		case <-e.stop:
			e.log.Info().Msg("dispatcher stopped")
			return
		case <-e.wake:
		case <-ticker.C:
		}
	}
}

// dispatch walks pending tasks from the head and binds each to the next idle
// connection. When no connection is idle the rest of the queue waits.
func (e *Engine) dispatch() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || len(e.conns) == 0 {
		return 0
	}

	assigned := 0
	next := 0
	e.queue.each(func(t *model.Task) bool {
		if !t.IsPending() {
			return true
		}
		for next < len(e.conns) && !e.conns[next].idle() {
			next++
		}
		if next == len(e.conns) {
			return false
		}
		c := e.conns[next]
		next++

		t.Start(c.id, e.opts.Now())
		c.task = t.ID
		if err := e.workers.Submit(e.execute(t, c)); err != nil {
			// cannot happen while the pool is sized to the connections; undo and retry next cycle
			e.log.Error().Err(err).Int64("task_id", t.ID).Int("conn_id", c.id).Msg("worker rejected task")
			t.State = model.TaskStatePending
			t.ConnID = 0
			c.task = 0
			return false
		}
		assigned++
		return true
	})

	if assigned > 0 {
		pending, running, done := e.queue.counts()
		metrics.SetQueueDepth(pending, running, done)
		metrics.SetDBPoolStats(len(e.conns), len(e.conns)-running, running)
	}
	return assigned
}
