package model

// ResultSet is a fully materialised query result. Cells are nil for SQL NULL.
type ResultSet struct {
	Columns []string
	Rows    [][]*string

	rowPos   int
	fieldPos int
}

func NewResultSet(columns []string) *ResultSet {
	return &ResultSet{Columns: columns, Rows: make([][]*string, 0, 16)}
}

func (r *ResultSet) AppendRow(row []*string) { r.Rows = append(r.Rows, row) }

func (r *ResultSet) NumRows() int   { return len(r.Rows) }
func (r *ResultSet) NumFields() int { return len(r.Columns) }

// NextRow returns the row under the cursor and advances it.
func (r *ResultSet) NextRow() ([]*string, bool) {
	if r.rowPos >= len(r.Rows) {
		return nil, false
	}
	row := r.Rows[r.rowPos]
	r.rowPos++
	return row, true
}

// NextField returns the next column name and advances the field cursor.
func (r *ResultSet) NextField() (string, bool) {
	if r.fieldPos >= len(r.Columns) {
		return "", false
	}
	name := r.Columns[r.fieldPos]
	r.fieldPos++
	return name, true
}

// SeekField moves the field cursor and returns its previous position.
// Offsets are clamped to [0, NumFields].
func (r *ResultSet) SeekField(offset int) int {
	prev := r.fieldPos
	switch {
	case offset < 0:
		offset = 0
	case offset > len(r.Columns):
		offset = len(r.Columns)
	}
	r.fieldPos = offset
	return prev
}
