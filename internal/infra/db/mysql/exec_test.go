//go:build !integration

package mysql

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConnector serves Exec calls whose result cannot report affected rows.
type stubConnector struct{ rowsErr error }

func (c stubConnector) Connect(context.Context) (sqldriver.Conn, error) { return stubConn(c), nil }
func (c stubConnector) Driver() sqldriver.Driver                        { return nil }

type stubConn struct{ rowsErr error }

func (stubConn) Prepare(string) (sqldriver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                           { return nil }
func (stubConn) Begin() (sqldriver.Tx, error)           { return nil, errors.New("not supported") }

func (c stubConn) ExecContext(context.Context, string, []sqldriver.NamedValue) (sqldriver.Result, error) {
	return stubResult(c), nil
}

type stubResult struct{ rowsErr error }

func (stubResult) LastInsertId() (int64, error) { return 0, nil }

func (r stubResult) RowsAffected() (int64, error) {
	if r.rowsErr != nil {
		return 0, r.rowsErr
	}
	return 3, nil
}

func TestSession_ExecReportsRowsAffected(t *testing.T) {
	s := &session{db: sql.OpenDB(stubConnector{})}
	defer s.Close(context.Background())

	n, err := s.Exec(context.Background(), "UPDATE players SET x = 1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestSession_ExecSurfacesRowsAffectedError(t *testing.T) {
	rowsErr := errors.New("rows affected unavailable")
	s := &session{db: sql.OpenDB(stubConnector{rowsErr: rowsErr})}
	defer s.Close(context.Background())

	_, err := s.Exec(context.Background(), "UPDATE players SET x = 1")
	assert.ErrorIs(t, err, rowsErr)
}
