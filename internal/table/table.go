// Package table implements Table: a named container of columns plus a
// row manager, with an optional key column and a cursor factory.
package table

import (
	"strand/internal/column"
	"strand/internal/cursor"
	"strand/internal/dberrors"
	"strand/internal/dbname"
	"strand/internal/index"
	"strand/internal/record"
	"strand/internal/rowid"
	"strand/internal/value"
)

// Table owns an ordered set of named Columns and the row-ID manager that
// tracks which rows currently exist.
type Table struct {
	name string

	columns    []*column.Column
	colIndex   map[string]int
	keyColumn  string // "" if no key column is set

	rows *rowid.Manager

	// referrerHooks fire on RemoveRow, in addition to this table's own
	// column unsets, so that another table's reference columns pointing
	// at a removed row get bulk-cleared too. Database wires these up when
	// it creates a reference column.
	referrerHooks []func(rowID int64)
	referrerCount int // back-edges from other tables' reference columns targeting this one
}

// New returns an empty table named name.
func New(name string) *Table {
	return &Table{name: name, colIndex: make(map[string]int), rows: rowid.New()}
}

func (t *Table) Name() string     { return t.name }
func (t *Table) NumRows() int     { return t.rows.NumRows() }
func (t *Table) IsEmpty() bool    { return t.rows.IsEmpty() }
func (t *Table) IsFull() bool     { return t.rows.IsFull() }
func (t *Table) NumColumns() int  { return len(t.columns) }

func (t *Table) MaxRowID() (int64, bool) { return t.rows.MaxRowID() }

// Rename is Database's entry point for renaming a table in place; Database
// owns keeping its own name-to-table index in sync.
func (t *Table) Rename(name string) { t.name = name }

// ReferrerCount reports how many other tables' reference columns target
// this table; a positive count blocks table removal (see Database).
func (t *Table) ReferrerCount() int { return t.referrerCount }

func (t *Table) AddReferrer()    { t.referrerCount++ }
func (t *Table) RemoveReferrer() { t.referrerCount-- }

// RegisterReferrerHook adds a callback invoked with every row-ID this
// table removes, so Database can clear another table's reference column
// cells that point here.
func (t *Table) RegisterReferrerHook(fn func(rowID int64)) {
	t.referrerHooks = append(t.referrerHooks, fn)
}

func (t *Table) FindColumn(name string) (*column.Column, bool) {
	i, ok := t.colIndex[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

func (t *Table) GetColumn(i int) (*column.Column, bool) {
	if i < 0 || i >= len(t.columns) {
		return nil, false
	}
	return t.columns[i], true
}

// CreateColumn adds a new, empty column of kind to the table.
func (t *Table) CreateColumn(name string, kind value.Kind) (*column.Column, error) {
	if err := dbname.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := t.colIndex[name]; exists {
		return nil, dberrors.New(dberrors.AlreadyExists, "Table.CreateColumn", "table %q already has a column named %q", t.name, name)
	}
	col := column.New(name, kind)
	t.appendColumn(col)
	return col, nil
}

// CreateReferenceColumn is Database's entry point for wiring a reference
// column; Database owns the cross-table back-edge bookkeeping (AddReferrer /
// RegisterReferrerHook on the target table) once this returns.
func (t *Table) CreateReferenceColumn(name, target string) (*column.Column, error) {
	if err := dbname.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := t.colIndex[name]; exists {
		return nil, dberrors.New(dberrors.AlreadyExists, "Table.CreateColumn", "table %q already has a column named %q", t.name, name)
	}
	col := column.NewReference(name, target)
	t.appendColumn(col)
	return col, nil
}

func (t *Table) appendColumn(col *column.Column) {
	t.colIndex[col.Name()] = len(t.columns)
	t.columns = append(t.columns, col)
}

// RemoveColumn removes a column. It fails if the column is the table's
// key column — removing the key column model by calling UnsetKeyColumn
// first makes the intent explicit and keeps find_row's contract stable
// for the lifetime of any given key column.
func (t *Table) RemoveColumn(name string) error {
	i, ok := t.colIndex[name]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Table.RemoveColumn", "table %q has no column named %q", t.name, name)
	}
	if name == t.keyColumn {
		return dberrors.New(dberrors.NotRemovable, "Table.RemoveColumn", "column %q is the key column of table %q", name, t.name)
	}
	t.columns = append(t.columns[:i], t.columns[i+1:]...)
	delete(t.colIndex, name)
	for n, idx := range t.colIndex {
		if idx > i {
			t.colIndex[n] = idx - 1
		}
	}
	return nil
}

func (t *Table) RenameColumn(oldName, newName string) error {
	if err := dbname.Validate(newName); err != nil {
		return err
	}
	i, ok := t.colIndex[oldName]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Table.RenameColumn", "table %q has no column named %q", t.name, oldName)
	}
	if _, exists := t.colIndex[newName]; exists {
		return dberrors.New(dberrors.AlreadyExists, "Table.RenameColumn", "table %q already has a column named %q", t.name, newName)
	}
	t.columns[i].SetName(newName)
	delete(t.colIndex, oldName)
	t.colIndex[newName] = i
	if t.keyColumn == oldName {
		t.keyColumn = newName
	}
	return nil
}

// ReorderColumn moves name to position newIndex in the ordered column
// list, shifting the columns between its old and new positions.
func (t *Table) ReorderColumn(name string, newIndex int) error {
	i, ok := t.colIndex[name]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Table.ReorderColumn", "table %q has no column named %q", t.name, name)
	}
	if newIndex < 0 || newIndex >= len(t.columns) {
		return dberrors.New(dberrors.OutOfRange, "Table.ReorderColumn", "index %d out of range for %d columns", newIndex, len(t.columns))
	}
	col := t.columns[i]
	remaining := make([]*column.Column, 0, len(t.columns)-1)
	remaining = append(remaining, t.columns[:i]...)
	remaining = append(remaining, t.columns[i+1:]...)
	if newIndex > len(remaining) {
		newIndex = len(remaining)
	}
	reordered := make([]*column.Column, 0, len(t.columns))
	reordered = append(reordered, remaining[:newIndex]...)
	reordered = append(reordered, col)
	reordered = append(reordered, remaining[newIndex:]...)
	t.columns = reordered
	for idx, c := range t.columns {
		t.colIndex[c.Name()] = idx
	}
	return nil
}

// SetKeyColumn promotes an existing column to be the table's key column.
func (t *Table) SetKeyColumn(name string) error {
	col, ok := t.FindColumn(name)
	if !ok {
		return dberrors.New(dberrors.NotFound, "Table.SetKeyColumn", "table %q has no column named %q", t.name, name)
	}
	if t.keyColumn != "" {
		return dberrors.New(dberrors.InvalidOperation, "Table.SetKeyColumn", "table %q already has key column %q", t.name, t.keyColumn)
	}
	if err := col.SetKeyAttribute(); err != nil {
		return err
	}
	t.keyColumn = name
	return nil
}

func (t *Table) UnsetKeyColumn() error {
	if t.keyColumn == "" {
		return dberrors.New(dberrors.NoKeyColumn, "Table.UnsetKeyColumn", "table %q has no key column", t.name)
	}
	col, _ := t.FindColumn(t.keyColumn)
	col.UnsetKeyAttribute()
	t.keyColumn = ""
	return nil
}

func (t *Table) keyCol() (*column.Column, bool) {
	if t.keyColumn == "" {
		return nil, false
	}
	return t.FindColumn(t.keyColumn)
}

// InsertRow allocates the smallest free row-ID, sets key (if the table
// has a key column) and validates the row.
func (t *Table) InsertRow(key value.Datum) (int64, error) {
	rowID := t.rows.FindNextRowID()
	if err := t.insertAt(rowID, key); err != nil {
		return 0, err
	}
	return rowID, nil
}

// InsertRowAt inserts at a caller-chosen row-ID, failing with
// AlreadyExists if it is already valid.
func (t *Table) InsertRowAt(rowID int64, key value.Datum) error {
	if t.rows.Test(rowID) {
		return dberrors.New(dberrors.AlreadyExists, "Table.InsertRowAt", "row %d already exists in table %q", rowID, t.name)
	}
	return t.insertAt(rowID, key)
}

func (t *Table) insertAt(rowID int64, key value.Datum) error {
	col, hasKey := t.keyCol()
	if hasKey {
		if key.IsNA() {
			return dberrors.New(dberrors.InvalidOperation, "Table.InsertRow", "table %q has a key column; a non-N/A key is required", t.name)
		}
	} else if !key.IsNA() {
		return dberrors.New(dberrors.InvalidOperation, "Table.InsertRow", "table %q has no key column; key must be N/A", t.name)
	}
	if err := t.rows.Reserve(rowID); err != nil {
		return err
	}
	if hasKey {
		if err := col.SetKey(rowID, key); err != nil {
			return err
		}
	}
	return t.rows.Validate(rowID)
}

// FindOrInsertRow returns the row matching key, inserting it if absent.
func (t *Table) FindOrInsertRow(key value.Datum) (rowID int64, inserted bool, err error) {
	if id, ok := t.FindRow(key); ok {
		return id, false, nil
	}
	id, err := t.InsertRow(key)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// RemoveRow unsets every column's cell, invokes any registered referrer
// hooks (clearing other tables' reference-column cells pointing here),
// then invalidates the row-ID.
func (t *Table) RemoveRow(rowID int64) error {
	if !t.rows.Test(rowID) {
		return dberrors.New(dberrors.NotFound, "Table.RemoveRow", "row %d does not exist in table %q", rowID, t.name)
	}
	for _, hook := range t.referrerHooks {
		hook(rowID)
	}
	for _, col := range t.columns {
		if err := col.Unset(rowID); err != nil {
			return err
		}
	}
	return t.rows.Invalidate(rowID)
}

func (t *Table) TestRow(rowID int64) bool { return t.rows.Test(rowID) }

func (t *Table) FindRow(key value.Datum) (int64, bool) {
	col, ok := t.keyCol()
	if !ok {
		return 0, false
	}
	return col.FindOne(key)
}

// CreateCursor returns a table-scan cursor honoring opts.
func (t *Table) CreateCursor(opts cursor.Options) cursor.Cursor {
	if t.rows.IsEmpty() {
		return cursor.Empty()
	}
	return newScanCursor(t.rows, opts)
}

// CreateIndex builds an index over an existing column, scanning every
// currently valid row.
func (t *Table) CreateIndex(columnName, indexName string, variant index.Variant) (*index.Index, error) {
	col, ok := t.FindColumn(columnName)
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "Table.CreateIndex", "table %q has no column named %q", t.name, columnName)
	}
	return col.CreateIndex(indexName, variant, t.validRowIDs())
}

func (t *Table) validRowIDs() []int64 {
	max, ok := t.rows.MaxRowID()
	if !ok {
		return nil
	}
	ids := make([]int64, 0, t.rows.NumRows())
	for r := int64(0); r <= max; r++ {
		if t.rows.Test(r) {
			ids = append(ids, r)
		}
	}
	return ids
}

// scanCursor walks row-IDs in ascending or descending order, using the
// fast path of the bitmap being fully dense (captured once at creation,
// per the no-concurrent-structural-mutation contract) to skip per-row
// bit tests.
type scanCursor struct {
	rows   *rowid.Manager
	dense  bool
	pos    int64
	max    int64
	reverse bool
	offset uint64
	limit  uint64
	done   bool
}

func newScanCursor(rows *rowid.Manager, opts cursor.Options) *scanCursor {
	max, _ := rows.MaxRowID()
	sc := &scanCursor{
		rows:    rows,
		dense:   rows.IsFull(),
		max:     max,
		reverse: opts.Order == cursor.Reverse,
		offset:  opts.Offset,
		limit:   opts.Limit,
	}
	if sc.reverse {
		sc.pos = max
	}
	return sc
}

func (sc *scanCursor) Read(out []record.Record) int {
	if sc.done || sc.limit == 0 {
		return 0
	}
	n := 0
	for n < len(out) && sc.limit > 0 {
		if sc.pos < 0 || sc.pos > sc.max {
			sc.done = true
			break
		}
		valid := sc.dense || sc.rows.Test(sc.pos)
		if valid {
			if sc.offset > 0 {
				sc.offset--
			} else {
				out[n] = record.Record{RowID: sc.pos, Score: 0.0}
				n++
				sc.limit--
			}
		}
		if sc.reverse {
			sc.pos--
		} else {
			sc.pos++
		}
	}
	return n
}
