package postgres

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"asyncsql/internal/domain/ports/adapter"

	"github.com/jackc/pgx/v4"
)

// ConnString builds a postgres:// URL for p.
func ConnString(p adapter.ConnParams) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	return u.String()
}

// connect opens one physical connection; it is the single place that talks to pgx.Connect.
func connect(ctx context.Context, connString string, timeout time.Duration) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		cfg.ConnectTimeout = timeout
	}
	return pgx.ConnectConfig(ctx, cfg)
}
