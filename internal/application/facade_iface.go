package application

import (
	"context"

	"asyncsql/internal/domain/ports/adapter"
	"asyncsql/internal/engine"
)

// QueryEngine is the engine surface the facade needs. *engine.Engine satisfies it;
// tests pass light-weight mocks.
type QueryEngine interface {
	Init(ctx context.Context, p adapter.ConnParams, count int) ([]int, error)
	Submit(query string, save bool) (int64, error)
	ListDoneIDs() []int64
	FetchAndRelease(id int64) (engine.Fetched, error)
	ConnectionError(id int) (adapter.DriverError, error)

	OpenLongQuery() int
	AppendLongQuery(h int, text string) error
	SubmitLongQuery(h int, save bool) (int64, error)
	DiscardLongQuery(h int) error

	NumRows(h int) (int, error)
	NumFields(h int) (int, error)
	FetchRow(h int) ([]*string, bool, error)
	FetchField(h int) (string, bool, error)
	FieldSeek(h, offset int) (int, error)
	FreeResult(h int) error

	Connect(ctx context.Context, p adapter.ConnParams) (int, error)
	Disconnect(ctx context.Context, h int) error
	SharedConnection() (int, bool)
	ExecSync(ctx context.Context, h int, query string) (int64, error)
	QuerySync(ctx context.Context, h int, query string) (int, error)
	SyncError(h int) (adapter.DriverError, error)
	Escape(s string) string
}

var _ QueryEngine = (*engine.Engine)(nil)
