// Package database implements Database: an ordered, named collection of
// Tables plus the cross-table bookkeeping a reference column needs —
// back-edge counting that blocks removing a still-referenced table, and
// the hook that clears a referrer column's cells when the row they point
// at is removed.
package database

import (
	"strand/internal/column"
	"strand/internal/dberrors"
	"strand/internal/dbname"
	"strand/internal/table"
	"strand/internal/value"
)

// Database owns an ordered set of named Tables. Tables themselves know
// nothing about each other; Database is where reference columns get their
// cross-table wiring.
type Database struct {
	names []string
	byName map[string]*table.Table
}

// New returns an empty Database.
func New() *Database {
	return &Database{byName: make(map[string]*table.Table)}
}

func (d *Database) NumTables() int { return len(d.names) }

// FindTable returns the table named name, if any.
func (d *Database) FindTable(name string) (*table.Table, bool) {
	t, ok := d.byName[name]
	return t, ok
}

// GetTable returns the i-th table in creation/reorder order.
func (d *Database) GetTable(i int) (*table.Table, bool) {
	if i < 0 || i >= len(d.names) {
		return nil, false
	}
	return d.byName[d.names[i]], true
}

// CreateTable adds a new, empty table named name.
func (d *Database) CreateTable(name string) (*table.Table, error) {
	if err := dbname.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := d.byName[name]; exists {
		return nil, dberrors.New(dberrors.AlreadyExists, "Database.CreateTable", "database already has a table named %q", name)
	}
	t := table.New(name)
	d.byName[name] = t
	d.names = append(d.names, name)
	return t, nil
}

// RemoveTable removes a table. It fails if any other table still holds a
// reference column targeting it — references would otherwise dangle.
func (d *Database) RemoveTable(name string) error {
	t, ok := d.byName[name]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Database.RemoveTable", "database has no table named %q", name)
	}
	if t.ReferrerCount() > 0 {
		return dberrors.New(dberrors.NotRemovable, "Database.RemoveTable", "table %q is referenced by a reference column of another table", name)
	}
	delete(d.byName, name)
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			break
		}
	}
	return nil
}

// RenameTable renames a table in place, preserving its position.
func (d *Database) RenameTable(oldName, newName string) error {
	if err := dbname.Validate(newName); err != nil {
		return err
	}
	t, ok := d.byName[oldName]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Database.RenameTable", "database has no table named %q", oldName)
	}
	if _, exists := d.byName[newName]; exists {
		return dberrors.New(dberrors.AlreadyExists, "Database.RenameTable", "database already has a table named %q", newName)
	}
	t.Rename(newName)
	delete(d.byName, oldName)
	d.byName[newName] = t
	for i, n := range d.names {
		if n == oldName {
			d.names[i] = newName
			break
		}
	}
	return nil
}

// ReorderTable moves name to position newIndex in the ordered table list.
func (d *Database) ReorderTable(name string, newIndex int) error {
	i := -1
	for idx, n := range d.names {
		if n == name {
			i = idx
			break
		}
	}
	if i < 0 {
		return dberrors.New(dberrors.NotFound, "Database.ReorderTable", "database has no table named %q", name)
	}
	if newIndex < 0 || newIndex >= len(d.names) {
		return dberrors.New(dberrors.OutOfRange, "Database.ReorderTable", "index %d out of range for %d tables", newIndex, len(d.names))
	}
	remaining := make([]string, 0, len(d.names)-1)
	remaining = append(remaining, d.names[:i]...)
	remaining = append(remaining, d.names[i+1:]...)
	if newIndex > len(remaining) {
		newIndex = len(remaining)
	}
	reordered := make([]string, 0, len(d.names))
	reordered = append(reordered, remaining[:newIndex]...)
	reordered = append(reordered, name)
	reordered = append(reordered, remaining[newIndex:]...)
	d.names = reordered
	return nil
}

// CreateReferenceColumn adds an Int column named name to srcTable that
// addresses rows of dstTable. Database registers the cross-table
// back-edges: dstTable's referrer count goes up (blocking its removal
// while the column exists; a self-reference does not count) and a hook
// fires on dstTable.RemoveRow to clear the new column's cells pointing at
// the removed row.
func (d *Database) CreateReferenceColumn(srcTable, name, dstTable string) (*column.Column, error) {
	src, ok := d.byName[srcTable]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "Database.CreateReferenceColumn", "database has no table named %q", srcTable)
	}
	dst, ok := d.byName[dstTable]
	if !ok {
		return nil, dberrors.New(dberrors.NotFound, "Database.CreateReferenceColumn", "database has no table named %q", dstTable)
	}
	col, err := src.CreateReferenceColumn(name, dstTable)
	if err != nil {
		return nil, err
	}
	if dstTable != srcTable {
		dst.AddReferrer()
	}
	dst.RegisterReferrerHook(func(rowID int64) {
		col.ClearReferencesTo(rowID)
	})
	return col, nil
}

// RemoveReferenceColumn drops a reference column and its back-edge. Only
// valid for columns created through CreateReferenceColumn.
func (d *Database) RemoveReferenceColumn(srcTable, name string) error {
	src, ok := d.byName[srcTable]
	if !ok {
		return dberrors.New(dberrors.NotFound, "Database.RemoveReferenceColumn", "database has no table named %q", srcTable)
	}
	col, ok := src.FindColumn(name)
	if !ok {
		return dberrors.New(dberrors.NotFound, "Database.RemoveReferenceColumn", "table %q has no column named %q", srcTable, name)
	}
	target := col.ReferenceTable()
	if target == "" {
		return dberrors.New(dberrors.InvalidOperation, "Database.RemoveReferenceColumn", "column %q of table %q is not a reference column", name, srcTable)
	}
	if err := src.RemoveColumn(name); err != nil {
		return err
	}
	if dst, ok := d.byName[target]; ok && target != srcTable {
		dst.RemoveReferrer()
	}
	return nil
}

// InsertRows bulk-inserts keys into table name, stopping at the first
// failure and reporting how many rows were committed before it. Callers
// that need all-or-nothing semantics should remove those rows on error
// themselves — Database does not roll back partial progress.
func (d *Database) InsertRows(tableName string, keys []value.Datum) (inserted int, err error) {
	t, ok := d.byName[tableName]
	if !ok {
		return 0, dberrors.New(dberrors.NotFound, "Database.InsertRows", "database has no table named %q", tableName)
	}
	for i, key := range keys {
		if _, err := t.InsertRow(key); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
