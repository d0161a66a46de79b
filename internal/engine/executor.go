package engine

import (
	"context"
	"fmt"

	"asyncsql/internal/domain/model"
	"asyncsql/internal/infra/logging"
	"asyncsql/internal/infra/metrics"
	"asyncsql/internal/infra/worker"
)

// execute returns the worker job running t on c. The query and save flag never
// change after submission, so the job reads them without the lock.
func (e *Engine) execute(t *model.Task, c *Connection) worker.Task {
	id, query, save := t.ID, t.Query, t.Save
	return func(ctx context.Context) (err error) {
		ctx = logging.WithConnID(logging.WithTaskID(ctx, id), c.id)
		log := logging.With(ctx, e.log)

		start := e.opts.Now()
		var rs *model.ResultSet
		defer func() {
			if r := recover(); r != nil {
				rs, err = nil, fmt.Errorf("driver panic: %v", r)
			}
			elapsed := e.opts.Now().Sub(start)
			e.complete(t, c, rs, err)

			metrics.ObserveQuery(e.dialer.Name(), save, err == nil, elapsed)
			if err != nil {
				metrics.IncTaskCompleted("failed")
				log.Warn().Err(err).Dur("duration", elapsed).Str("query", logging.Redact(query, e.opts.Dev)).Msg("query failed")
				return
			}
			metrics.IncTaskCompleted("succeeded")
			log.Debug().Dur("duration", elapsed).Msg("query done")
		}()

		rs, err = c.run(ctx, e.dialer, e.params, query, save)
		return err
	}
}

// complete publishes the outcome and frees the connection in one step under
// the lock, so the dispatcher never sees a free connection with a running task.
func (e *Engine) complete(t *model.Task, c *Connection, rs *model.ResultSet, err error) {
	c.setLastError(classify(e.dialer, err))

	e.mu.Lock()
	t.Finish(rs, err, e.opts.Now())
	c.task = 0
	e.mu.Unlock()

	e.signal()
}
