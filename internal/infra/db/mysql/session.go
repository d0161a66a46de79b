package mysql

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"asyncsql/internal/domain/model"
	"asyncsql/internal/domain/ports/adapter"

	driver "github.com/go-sql-driver/mysql"
)

var (
	_ adapter.Dialer          = (*Dialer)(nil)
	_ adapter.ErrorClassifier = (*Dialer)(nil)
	_ adapter.Session         = (*session)(nil)
)

// Dialer opens MySQL sessions. Each session is a *sql.DB capped at one open
// connection, so database/sql replaces a dropped connection on the next call.
type Dialer struct {
	ConnectTimeout time.Duration
}

func NewDialer(connectTimeout time.Duration) *Dialer {
	return &Dialer{ConnectTimeout: connectTimeout}
}

func (d *Dialer) Name() string { return "mysql" }

// Config translates p into a driver config.
func (d *Dialer) Config(p adapter.ConnParams) *driver.Config {
	cfg := driver.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.DBName = p.Database
	if d.ConnectTimeout > 0 {
		cfg.Timeout = d.ConnectTimeout
	}
	return cfg
}

func (d *Dialer) Dial(ctx context.Context, p adapter.ConnParams) (adapter.Session, error) {
	connector, err := driver.NewConnector(d.Config(p))
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{db: db}, nil
}

var escapes = strings.NewReplacer(
	"\\", "\\\\",
	"'", "\\'",
	"\"", "\\\"",
	"\x00", "\\0",
	"\n", "\\n",
	"\r", "\\r",
	"\x1a", "\\Z",
)

// Escape follows mysql_real_escape_string for utf8 connections.
func (d *Dialer) Escape(s string) string { return escapes.Replace(s) }

func (d *Dialer) Classify(err error) adapter.DriverError {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		return adapter.DriverError{
			Code:     int(myErr.Number),
			SQLState: strings.TrimRight(string(myErr.SQLState[:]), "\x00"),
			Message:  myErr.Message,
		}
	}
	return adapter.DriverError{Code: adapter.ClientErrorCode, Message: err.Error()}
}

type session struct {
	db *sql.DB
}

func (s *session) Exec(ctx context.Context, query string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *session) Query(ctx context.Context, query string) (*model.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := model.NewResultSet(cols)
	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]*string, len(cols))
		for i, c := range cells {
			if c.Valid {
				v := c.String
				row[i] = &v
			}
		}
		rs.AppendRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (s *session) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *session) Close(context.Context) error { return s.db.Close() }
