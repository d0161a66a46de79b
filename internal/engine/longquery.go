package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"asyncsql/internal/domain"
	"asyncsql/internal/infra/metrics"
)

// longQueryTable stages query text larger than the normal submission limit.
// Each buffer belongs to the caller holding its handle.
type longQueryTable struct {
	capacity int

	mu   sync.Mutex
	last int
	bufs map[int]*strings.Builder
}

func newLongQueryTable(capacity int) *longQueryTable {
	return &longQueryTable{capacity: capacity, bufs: make(map[int]*strings.Builder)}
}

func (l *longQueryTable) open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last++
	b := &strings.Builder{}
	b.Grow(l.capacity)
	l.bufs[l.last] = b
	return l.last
}

// appendText fails with ErrOutOfSpace when the result would reach capacity,
// leaving the buffer as it was.
func (l *longQueryTable) appendText(h int, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bufs[h]
	if !ok {
		return fmt.Errorf("long query handle %d: %w", h, domain.ErrInvalidArgument)
	}
	if text == "" {
		return nil
	}
	if b.Len()+len(text) >= l.capacity {
		return fmt.Errorf("%d + %d bytes exceeds %d: %w", b.Len(), len(text), l.capacity, domain.ErrOutOfSpace)
	}
	b.WriteString(text)
	return nil
}

// take releases the buffer and returns its contents.
func (l *longQueryTable) take(h int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bufs[h]
	if !ok {
		return "", fmt.Errorf("long query handle %d: %w", h, domain.ErrInvalidArgument)
	}
	delete(l.bufs, h)
	return b.String(), nil
}

func (l *longQueryTable) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bufs)
}

// OpenLongQuery allocates an empty long query buffer and returns its handle.
func (e *Engine) OpenLongQuery() int {
	metrics.IncLongQuery("opened")
	return e.longQueries.open()
}

// AppendLongQuery adds text to buffer h. Empty text is accepted and ignored.
func (e *Engine) AppendLongQuery(h int, text string) error {
	err := e.longQueries.appendText(h, text)
	if errors.Is(err, domain.ErrOutOfSpace) {
		metrics.IncLongQuery("overflow")
	}
	if err != nil {
		e.log.Warn().Err(err).Int("handle", h).Msg("append to long query rejected")
	}
	return err
}

// SubmitLongQuery queues the buffer's contents like Submit, bounded by the
// buffer capacity instead of MaxQueryLength. The buffer is released either way.
func (e *Engine) SubmitLongQuery(h int, save bool) (int64, error) {
	text, err := e.longQueries.take(h)
	if err != nil {
		return 0, err
	}
	metrics.IncLongQuery("submitted")
	return e.enqueue(text, save, e.opts.LongQueryCapacity)
}

// DiscardLongQuery releases buffer h without submitting it.
func (e *Engine) DiscardLongQuery(h int) error {
	if _, err := e.longQueries.take(h); err != nil {
		return err
	}
	metrics.IncLongQuery("discarded")
	return nil
}
