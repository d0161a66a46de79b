package postgres

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"
	"asyncsql/internal/domain/ports/adapter"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

var (
	_ adapter.Dialer          = (*Dialer)(nil)
	_ adapter.ErrorClassifier = (*Dialer)(nil)
	_ adapter.Session         = (*session)(nil)
)

// Dialer opens pgx sessions for the async engine.
type Dialer struct {
	ConnectTimeout time.Duration
}

func NewDialer(connectTimeout time.Duration) *Dialer {
	return &Dialer{ConnectTimeout: connectTimeout}
}

func (d *Dialer) Name() string { return "postgres" }

func (d *Dialer) Dial(ctx context.Context, p adapter.ConnParams) (adapter.Session, error) {
	s := &session{connString: ConnString(p), timeout: d.ConnectTimeout}
	if err := s.reconnect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Escape doubles single quotes; standard_conforming_strings is on by default.
func (d *Dialer) Escape(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ReplaceAll(s, "'", "''")
}

func (d *Dialer) Classify(err error) adapter.DriverError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return adapter.DriverError{Code: 1, SQLState: pgErr.Code, Message: pgErr.Message}
	}
	return adapter.DriverError{Code: adapter.ClientErrorCode, Message: err.Error()}
}

// session wraps a single *pgx.Conn and redials when the previous one broke.
type session struct {
	connString string
	timeout    time.Duration

	mu   sync.Mutex
	conn *pgx.Conn
}

func (s *session) reconnect(ctx context.Context) error {
	if s.conn != nil && !s.conn.IsClosed() {
		return nil
	}
	conn, err := connect(ctx, s.connString, s.timeout)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *session) live(ctx context.Context) (*pgx.Conn, error) {
	if err := s.reconnect(ctx); err != nil {
		return nil, errors.Join(domain.ErrNoConnection, err)
	}
	return s.conn, nil
}

func (s *session) Exec(ctx context.Context, query string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.live(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := conn.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query uses the simple protocol so every value arrives in text form, the same
// shape row fetches hand to the caller.
func (s *session) Query(ctx context.Context, query string) (*model.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, pgx.QuerySimpleProtocol(true))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, fd := range fields {
		cols[i] = string(fd.Name)
	}
	rs := model.NewResultSet(cols)
	for rows.Next() {
		raw := rows.RawValues()
		row := make([]*string, len(raw))
		for i, v := range raw {
			if v == nil {
				continue
			}
			cell := string(v)
			row[i] = &cell
		}
		rs.AppendRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *session) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.live(ctx)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

func (s *session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}
