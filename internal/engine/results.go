package engine

import (
	"fmt"
	"sync"

	"asyncsql/internal/domain"
	"asyncsql/internal/domain/model"
)

// resultTable hands out integer handles for materialised result sets.
// Handles start at 1 and are never reused, so a stale handle cannot alias a new result.
type resultTable struct {
	mu   sync.Mutex
	last int
	sets map[int]*model.ResultSet
}

func newResultTable() *resultTable {
	return &resultTable{sets: make(map[int]*model.ResultSet)}
}

func (r *resultTable) put(rs *model.ResultSet) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last++
	r.sets[r.last] = rs
	return r.last
}

// do runs fn on the result behind h while holding the table lock.
func (r *resultTable) do(h int, fn func(rs *model.ResultSet)) error {
	if h <= 0 {
		return fmt.Errorf("result handle %d: %w", h, domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.sets[h]
	if !ok {
		return fmt.Errorf("result handle %d: %w", h, domain.ErrNotFound)
	}
	fn(rs)
	return nil
}

func (r *resultTable) free(h int) error {
	if h <= 0 {
		return fmt.Errorf("result handle %d: %w", h, domain.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sets[h]; !ok {
		return fmt.Errorf("result handle %d: %w", h, domain.ErrNotFound)
	}
	delete(r.sets, h)
	return nil
}

func (r *resultTable) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sets)
}

// Result-set access for handles returned by FetchAndRelease and QuerySync.

func (e *Engine) NumRows(h int) (n int, err error) {
	err = e.results.do(h, func(rs *model.ResultSet) { n = rs.NumRows() })
	return n, err
}

func (e *Engine) NumFields(h int) (n int, err error) {
	err = e.results.do(h, func(rs *model.ResultSet) { n = rs.NumFields() })
	return n, err
}

// FetchRow returns the next row; ok is false once the rows are exhausted.
func (e *Engine) FetchRow(h int) (row []*string, ok bool, err error) {
	err = e.results.do(h, func(rs *model.ResultSet) { row, ok = rs.NextRow() })
	return row, ok, err
}

// FetchField returns the next column name; ok is false past the last column.
func (e *Engine) FetchField(h int) (name string, ok bool, err error) {
	err = e.results.do(h, func(rs *model.ResultSet) { name, ok = rs.NextField() })
	return name, ok, err
}

// FieldSeek moves the field cursor and returns the previous position.
func (e *Engine) FieldSeek(h, offset int) (prev int, err error) {
	err = e.results.do(h, func(rs *model.ResultSet) { prev = rs.SeekField(offset) })
	return prev, err
}

func (e *Engine) FreeResult(h int) error { return e.results.free(h) }
