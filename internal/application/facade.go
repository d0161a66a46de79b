package application

import (
	"context"
	"errors"
	"fmt"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/ports/adapter"
	"asyncsql/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Facade exposes the engine through plain integer handles so a scripting host
// can forward calls without knowing about Go types.
type Facade struct {
	eng QueryEngine
	log *zerolog.Logger
}

func NewFacade(eng QueryEngine, logger *zerolog.Logger) *Facade {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Facade{eng: eng, log: logging.Component(logger, "facade")}
}

// Init opens count async connections and returns their handles.
func (f *Facade) Init(ctx context.Context, host, user, password, database string, port, count int) ([]int, error) {
	p := adapter.ConnParams{Host: host, User: user, Password: password, Database: database, Port: port}
	ids, err := f.eng.Init(ctx, p, count)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return ids, nil
}

func (f *Facade) Submit(query string, save bool) (int64, error) {
	return f.eng.Submit(query, save)
}

func (f *Facade) ListDoneIDs() []int64 { return f.eng.ListDoneIDs() }

// FetchAndRelease returns a result handle (> 0) for a finished task that saved
// its rows. It returns 0 with ErrNotReady while the task is still queued or
// running, and 0 with a nil error once it finished without a result.
// Failed queries are reported through ConnectionError.
func (f *Facade) FetchAndRelease(id int64) (int, error) {
	res, err := f.eng.FetchAndRelease(id)
	if err != nil {
		return 0, err
	}
	if res.Err != nil {
		f.log.Debug().Err(res.Err).Int64("task_id", id).Int("conn_id", res.ConnID).Msg("fetched failed query")
	}
	return res.Handle, nil
}

func (f *Facade) OpenLongQuery() int { return f.eng.OpenLongQuery() }

// AppendLongQuery reports whether text fit in buffer h.
func (f *Facade) AppendLongQuery(h int, text string) bool {
	return f.eng.AppendLongQuery(h, text) == nil
}

func (f *Facade) SubmitLongQuery(h int, save bool) (int64, error) {
	return f.eng.SubmitLongQuery(h, save)
}

// DiscardLongQuery releases buffer h without running it.
func (f *Facade) DiscardLongQuery(h int) error { return f.eng.DiscardLongQuery(h) }

func (f *Facade) NumRows(h int) (int, error)   { return f.eng.NumRows(h) }
func (f *Facade) NumFields(h int) (int, error) { return f.eng.NumFields(h) }

func (f *Facade) FieldSeek(h, offset int) (int, error) { return f.eng.FieldSeek(h, offset) }

// FetchField returns the next column name. A bad handle reads as exhausted.
func (f *Facade) FetchField(h int) (string, bool) {
	name, ok, err := f.eng.FetchField(h)
	if err != nil {
		return "", false
	}
	return name, ok
}

// FetchRow returns the next row. Nil cells are SQL NULL. A bad handle reads as exhausted.
func (f *Facade) FetchRow(h int) ([]*string, bool) {
	row, ok, err := f.eng.FetchRow(h)
	if err != nil {
		return nil, false
	}
	return row, ok
}

// FreeResult releases handle h. Zero, negative and already freed handles are invalid.
func (f *Facade) FreeResult(h int) error {
	err := f.eng.FreeResult(h)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	return err
}

// ConnectionError returns the last driver error seen on async connection h.
// Code is zero when the last query succeeded.
func (f *Facade) ConnectionError(h int) (code int, msg string, err error) {
	de, err := f.eng.ConnectionError(h)
	if err != nil {
		return 0, "", err
	}
	return de.Code, de.Message, nil
}

// SyncError is ConnectionError for connections opened with Connect.
func (f *Facade) SyncError(h int) (code int, msg string, err error) {
	de, err := f.eng.SyncError(h)
	if err != nil {
		return 0, "", err
	}
	return de.Code, de.Message, nil
}

// Connect opens a blocking connection. The first one to succeed becomes the
// shared connection used by Query and QueryResult.
func (f *Facade) Connect(ctx context.Context, host, user, password, database string, port int) (int, error) {
	p := adapter.ConnParams{Host: host, User: user, Password: password, Database: database, Port: port}
	return f.eng.Connect(ctx, p)
}

func (f *Facade) Disconnect(ctx context.Context, h int) error { return f.eng.Disconnect(ctx, h) }

func (f *Facade) SharedConnection() (int, bool) { return f.eng.SharedConnection() }

// Query runs a statement on the shared connection and returns the affected row count.
func (f *Facade) Query(ctx context.Context, query string) (int64, error) {
	h, ok := f.eng.SharedConnection()
	if !ok {
		return 0, fmt.Errorf("no shared connection: %w", domain.ErrNotInitialized)
	}
	return f.eng.ExecSync(ctx, h, query)
}

// QueryResult runs a query on the shared connection and returns a result handle.
func (f *Facade) QueryResult(ctx context.Context, query string) (int, error) {
	h, ok := f.eng.SharedConnection()
	if !ok {
		return 0, fmt.Errorf("no shared connection: %w", domain.ErrNotInitialized)
	}
	return f.eng.QuerySync(ctx, h, query)
}

func (f *Facade) Escape(s string) string { return f.eng.Escape(s) }
