package sorter

import (
	"testing"

	"strand/internal/expr"
	"strand/internal/record"
	"strand/internal/table"
	"strand/internal/value"
)

func rowIDOrder(t *testing.T, tb *table.Table, typ Type) SorterOrder {
	t.Helper()
	b := expr.NewBuilder(tb)
	b.RowID()
	e, err := b.Release()
	if err != nil {
		t.Fatal(err)
	}
	return SorterOrder{Expr: e, Type: typ}
}

func columnOrder(t *testing.T, tb *table.Table, col string, typ Type) SorterOrder {
	t.Helper()
	b := expr.NewBuilder(tb)
	if err := b.Column(col); err != nil {
		t.Fatal(err)
	}
	e, err := b.Release()
	if err != nil {
		t.Fatal(err)
	}
	return SorterOrder{Expr: e, Type: typ}
}

func TestSortByRowIDAscending(t *testing.T) {
	tb := table.New("t")
	recs := record.Array{{RowID: 3}, {RowID: 1}, {RowID: 2}}
	s := New([]SorterOrder{rowIDOrder(t, tb, Regular)}, Options{Limit: ^uint64(0)})
	out := s.Sort(recs)
	if out[0].RowID != 1 || out[1].RowID != 2 || out[2].RowID != 3 {
		t.Fatalf("got %v, want ascending row-ids", out)
	}
}

func TestSortByRowIDDescending(t *testing.T) {
	tb := table.New("t")
	recs := record.Array{{RowID: 3}, {RowID: 1}, {RowID: 2}}
	s := New([]SorterOrder{rowIDOrder(t, tb, Reverse)}, Options{Limit: ^uint64(0)})
	out := s.Sort(recs)
	if out[0].RowID != 3 || out[1].RowID != 2 || out[2].RowID != 1 {
		t.Fatalf("got %v, want descending row-ids", out)
	}
}

func TestSortWithOffsetAndLimit(t *testing.T) {
	tb := table.New("t")
	recs := record.Array{{RowID: 5}, {RowID: 1}, {RowID: 3}, {RowID: 2}, {RowID: 4}}
	s := New([]SorterOrder{rowIDOrder(t, tb, Regular)}, Options{Offset: 1, Limit: 2})
	out := s.Sort(recs)
	if len(out) != 2 || out[0].RowID != 2 || out[1].RowID != 3 {
		t.Fatalf("got %v, want rows 2 and 3", out)
	}
}

// Mirrors the literal tie-break scenario: an Int column drawn from a
// small domain, tie-broken by row_id, must be non-decreasing with
// strictly increasing row-ids within each tie.
func TestSortWithTieBreak(t *testing.T) {
	tb := table.New("t")
	tb.CreateColumn("v", value.KindInt)
	col, _ := tb.FindColumn("v")
	const n = 256
	recs := make(record.Array, n)
	for i := 0; i < n; i++ {
		col.Set(int64(i), value.FromInt(value.Int(int64(i%16))))
		recs[i] = record.Record{RowID: int64(i)}
	}
	orders := []SorterOrder{
		columnOrder(t, tb, "v", Regular),
		rowIDOrder(t, tb, Regular),
	}
	s := New(orders, Options{Limit: ^uint64(0)})
	out := s.Sort(recs)
	if len(out) != n {
		t.Fatalf("got %d records, want %d", len(out), n)
	}
	for i := 0; i < n-1; i++ {
		a := col.Get(out[i].RowID).Int()
		b := col.Get(out[i+1].RowID).Int()
		if a > b {
			t.Fatalf("not sorted at %d: %d > %d", i, a, b)
		}
		if a == b && out[i].RowID >= out[i+1].RowID {
			t.Fatalf("tie-break failed at %d: row-ids %d, %d", i, out[i].RowID, out[i+1].RowID)
		}
	}
}

func TestSortBoolPutsNAlast(t *testing.T) {
	tb := table.New("t")
	tb.CreateColumn("b", value.KindBool)
	col, _ := tb.FindColumn("b")
	col.Set(0, value.FromBool(value.BoolTrue))
	col.Set(1, value.FromBool(value.BoolFalse))
	// row 2 left unset -> N/A
	recs := record.Array{{RowID: 0}, {RowID: 1}, {RowID: 2}}
	s := New([]SorterOrder{columnOrder(t, tb, "b", Regular)}, Options{Limit: ^uint64(0)})
	out := s.Sort(recs)
	if out[0].RowID != 1 || out[1].RowID != 0 || out[2].RowID != 2 {
		t.Fatalf("got %v, want false, true, N/A order", out)
	}
}

func TestSortTextLexicographic(t *testing.T) {
	tb := table.New("t")
	tb.CreateColumn("s", value.KindText)
	col, _ := tb.FindColumn("s")
	words := []string{"banana", "apple", "cherry"}
	recs := make(record.Array, len(words))
	for i, w := range words {
		col.Set(int64(i), value.FromText(value.TextFromString(w)))
		recs[i] = record.Record{RowID: int64(i)}
	}
	s := New([]SorterOrder{columnOrder(t, tb, "s", Regular)}, Options{Limit: ^uint64(0)})
	out := s.Sort(recs)
	want := []string{"apple", "banana", "cherry"}
	for i, r := range out {
		got := col.Get(r.RowID).Text().String()
		if got != want[i] {
			t.Fatalf("position %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestSortIdempotentOnAlreadySortedInput(t *testing.T) {
	tb := table.New("t")
	recs := record.Array{{RowID: 1}, {RowID: 2}, {RowID: 3}}
	s := New([]SorterOrder{rowIDOrder(t, tb, Regular)}, Options{Limit: ^uint64(0)})
	out1 := s.Sort(recs)
	out2 := s.Sort(out1)
	for i := range out1 {
		if out1[i].RowID != out2[i].RowID {
			t.Fatalf("sorting twice should be idempotent: %v vs %v", out1, out2)
		}
	}
}

func TestPartialSortFastPathMatchesFullSort(t *testing.T) {
	tb := table.New("t")
	const n = 200
	recs := make(record.Array, n)
	for i := 0; i < n; i++ {
		recs[i] = record.Record{RowID: int64(n - i)}
	}
	s := New([]SorterOrder{rowIDOrder(t, tb, Regular)}, Options{Offset: 2, Limit: 5})
	out := s.Sort(recs.Clone())
	want := []int64{3, 4, 5, 6, 7}
	for i, r := range out {
		if r.RowID != want[i] {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestLargeRunUsesGeneralPath(t *testing.T) {
	tb := table.New("t")
	const n = 2000
	recs := make(record.Array, n)
	for i := 0; i < n; i++ {
		recs[i] = record.Record{RowID: int64(n - i)}
	}
	// offset+limit >= 1000 disqualifies the bounded-heap fast path.
	s := New([]SorterOrder{rowIDOrder(t, tb, Regular)}, Options{Limit: 1500})
	out := s.Sort(recs)
	if len(out) != 1500 {
		t.Fatalf("got %d records, want 1500", len(out))
	}
	for i := 0; i < len(out)-1; i++ {
		if out[i].RowID >= out[i+1].RowID {
			t.Fatalf("not strictly ascending at %d", i)
		}
	}
}
