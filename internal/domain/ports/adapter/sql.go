package adapter

import (
	"context"

	"asyncsql/internal/domain/model"
)

// ConnParams identifies the database every pool connection talks to.
type ConnParams struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}

// Dialer opens database sessions. Implementations live under internal/infra/db.
type Dialer interface {
	Dial(ctx context.Context, p ConnParams) (Session, error)
	// Escape quotes text for use inside a string literal of this dialect.
	Escape(s string) string
	Name() string
}

// Session is a single database session. It is used by one goroutine at a time.
type Session interface {
	// Exec runs a statement and discards any rows.
	Exec(ctx context.Context, query string) (affected int64, err error)
	// Query runs a statement and materialises its rows.
	Query(ctx context.Context, query string) (*model.ResultSet, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// DriverError is what a driver reports for its last failure. Code is the
// server error number when the dialect has one, ClientErrorCode for failures
// that never reached the server.
type DriverError struct {
	Code     int
	SQLState string
	Message  string
}

const ClientErrorCode = -1

// ErrorClassifier turns driver errors into a DriverError. Dialers may implement it.
type ErrorClassifier interface {
	Classify(err error) DriverError
}
