package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"asyncsql/internal/application"
	"asyncsql/internal/domain"
	"asyncsql/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine overrides the calls exec makes; anything else panics on the nil embed.
type stubEngine struct {
	application.QueryEngine

	submitted []string
	chunks    []string
	capacity  int
	discarded bool

	polls int
	cols  []string
	rows  [][]*string
}

func (s *stubEngine) Submit(q string, _ bool) (int64, error) {
	s.submitted = append(s.submitted, q)
	return 1, nil
}

func (s *stubEngine) OpenLongQuery() int { return 1 }

func (s *stubEngine) AppendLongQuery(_ int, text string) error {
	if len(strings.Join(s.chunks, ""))+len(text) >= s.capacity {
		return domain.ErrOutOfSpace
	}
	s.chunks = append(s.chunks, text)
	return nil
}

func (s *stubEngine) SubmitLongQuery(int, bool) (int64, error) {
	s.submitted = append(s.submitted, strings.Join(s.chunks, ""))
	return 2, nil
}

func (s *stubEngine) DiscardLongQuery(int) error {
	s.discarded = true
	return nil
}

func (s *stubEngine) FetchAndRelease(id int64) (engine.Fetched, error) {
	s.polls++
	if s.polls < 3 {
		return engine.Fetched{}, domain.ErrNotReady
	}
	return engine.Fetched{TaskID: id, Handle: 4}, nil
}

func (s *stubEngine) FetchField(int) (string, bool, error) {
	if len(s.cols) == 0 {
		return "", false, nil
	}
	c := s.cols[0]
	s.cols = s.cols[1:]
	return c, true, nil
}

func (s *stubEngine) FetchRow(int) ([]*string, bool, error) {
	if len(s.rows) == 0 {
		return nil, false, nil
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, true, nil
}

func TestSubmit_SplitsLongQueries(t *testing.T) {
	stub := &stubEngine{capacity: 100}
	f := application.NewFacade(stub, nil)

	_, err := submit(f, "SELECT 1", true, 10)
	require.NoError(t, err)

	long := "SELECT * FROM times WHERE map = 'kz_long'"
	_, err = submit(f, long, true, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", long}, stub.submitted)
	assert.Len(t, stub.chunks, 5)
}

func TestSubmit_OverflowDiscardsBuffer(t *testing.T) {
	stub := &stubEngine{capacity: 16}
	f := application.NewFacade(stub, nil)

	_, err := submit(f, strings.Repeat("x", 40), true, 10)
	assert.ErrorIs(t, err, domain.ErrOutOfSpace)
	assert.True(t, stub.discarded)
	assert.Empty(t, stub.submitted)
}

func TestAwaitAndPrint(t *testing.T) {
	name := "bhop_easy"
	stub := &stubEngine{
		cols: []string{"name", "record"},
		rows: [][]*string{{&name, nil}},
	}
	f := application.NewFacade(stub, nil)

	h, err := awaitResult(context.Background(), f, 1, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 4, h)

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, f, h))
	assert.Equal(t, "name\trecord\nbhop_easy\tNULL\n", buf.String())
}
