package engine

import (
	"testing"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestResults_CursorAccess(t *testing.T) {
	e := newTestEngine(t, newFakeDialer(), Options{})

	rs := model.NewResultSet([]string{"id", "name", "time"})
	rs.AppendRow([]*string{str("1"), str("bhop"), nil})
	rs.AppendRow([]*string{str("2"), str("kz"), str("1234")})
	h := e.results.put(rs)

	n, err := e.NumRows(h)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = e.NumFields(h)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	row, ok, err := e.FetchRow(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bhop", *row[1])
	assert.Nil(t, row[2])

	row, ok, err = e.FetchRow(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1234", *row[2])

	_, ok, err = e.FetchRow(h)
	require.NoError(t, err)
	assert.False(t, ok)

	name, ok, err := e.FetchField(h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "id", name)

	prev, err := e.FieldSeek(h, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, prev)
	name, _, err = e.FetchField(h)
	require.NoError(t, err)
	assert.Equal(t, "time", name)
	_, ok, err = e.FetchField(h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResults_FreeOnce(t *testing.T) {
	e := newTestEngine(t, newFakeDialer(), Options{})
	h := e.results.put(model.NewResultSet([]string{"a"}))

	require.NoError(t, e.FreeResult(h))
	assert.ErrorIs(t, e.FreeResult(h), domain.ErrNotFound)
	_, err := e.NumRows(h)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, e.FreeResult(0), domain.ErrInvalidArgument)
	assert.ErrorIs(t, e.FreeResult(-3), domain.ErrInvalidArgument)
}

func TestResults_HandlesAreNotReused(t *testing.T) {
	e := newTestEngine(t, newFakeDialer(), Options{})
	a := e.results.put(model.NewResultSet(nil))
	require.NoError(t, e.FreeResult(a))
	b := e.results.put(model.NewResultSet(nil))
	assert.Greater(t, b, a)
}

func TestResults_FetchedHandleCarriesRows(t *testing.T) {
	e := newStartedEngine(t, newFakeDialer(), 1)
	id, err := e.Submit("SELECT name FROM maps", true)
	require.NoError(t, err)

	f := waitFetch(t, e, id)
	require.NoError(t, f.Err)
	require.NotZero(t, f.Handle)

	row, ok, err := e.FetchRow(f.Handle)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SELECT name FROM maps", *row[0])
	require.NoError(t, e.FreeResult(f.Handle))
	assert.Zero(t, e.Stats().Results)
}
