// Package cursor defines the bounded, forward-only iterator that produces
// record batches from tables and indexes.
package cursor

import "strand/internal/record"

// OrderType selects ascending ("regular") or descending ("reverse")
// iteration order, relative to whatever ordering the underlying source
// (row-ID for a table scan, key for an index scan) defines.
type OrderType int

const (
	Regular OrderType = iota
	Reverse
)

// Options controls how many records a cursor skips and emits, and in
// which direction it walks its source.
type Options struct {
	Offset uint64
	Limit  uint64
	Order  OrderType
}

// DefaultOptions emits every matching row in ascending order.
func DefaultOptions() Options {
	return Options{Limit: ^uint64(0), Order: Regular}
}

// Cursor is a bounded, forward-only iterator over record batches. Once
// Read returns 0, every subsequent call must also return 0.
type Cursor interface {
	// Read fills up to len(out) records and returns how many it wrote.
	Read(out []record.Record) int
}

// ReadAll drains c into a single Array, reading it in batches of up to
// 1024 records.
func ReadAll(c Cursor) record.Array {
	var out record.Array
	buf := make([]record.Record, 1024)
	for {
		n := c.Read(buf)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

type emptyCursor struct{}

func (emptyCursor) Read(out []record.Record) int { return 0 }

// Empty returns a Cursor that is exhausted from the start.
func Empty() Cursor { return emptyCursor{} }

// Slice adapts a pre-computed record.Array, honoring offset/limit/order,
// into a Cursor. It is used by indexes and by the sorter's output, where
// the full result is already materialized.
type Slice struct {
	records record.Array
	pos     int
}

// NewSlice applies opts.Offset/Limit/Order to records and returns a
// Cursor over the result. Order reverses the given slice; it does not
// re-sort it (the caller is expected to hand in data in its natural
// order for the given source).
func NewSlice(records record.Array, opts Options) *Slice {
	out := records
	if opts.Order == Reverse {
		rev := make(record.Array, len(records))
		for i, r := range records {
			rev[len(records)-1-i] = r
		}
		out = rev
	}
	offset := opts.Offset
	if offset > uint64(len(out)) {
		offset = uint64(len(out))
	}
	out = out[offset:]
	limit := opts.Limit
	if limit < uint64(len(out)) {
		out = out[:limit]
	}
	return &Slice{records: out}
}

func (s *Slice) Read(out []record.Record) int {
	n := copy(out, s.records[s.pos:])
	s.pos += n
	return n
}
