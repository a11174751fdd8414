package index

import (
	"testing"

	"strand/internal/cursor"
	"strand/internal/record"
	"strand/internal/value"
)

func ids(t *testing.T, c cursor.Cursor) []int64 {
	t.Helper()
	recs := cursor.ReadAll(c)
	return recs.RowIDs()
}

func TestTreeInsertFindRemove(t *testing.T) {
	idx := New("by_age", Tree, value.KindInt)
	mustInsert := func(r int64, v int64) {
		if err := idx.Insert(r, value.FromInt(value.Int(v))); err != nil {
			t.Fatal(err)
		}
	}
	mustInsert(0, 10)
	mustInsert(1, 20)
	mustInsert(2, 10)

	if !idx.Contains(value.FromInt(value.Int(10))) {
		t.Fatalf("expected to contain 10")
	}
	if id, ok := idx.FindOne(value.FromInt(value.Int(10))); !ok || id != 0 {
		t.Fatalf("FindOne(10) = %d,%v, want 0,true", id, ok)
	}
	if idx.NumEntries() != 3 {
		t.Fatalf("NumEntries = %d, want 3", idx.NumEntries())
	}
	if idx.TestUniqueness() {
		t.Fatalf("two rows share value 10, must not be unique")
	}

	idx.Remove(0, value.FromInt(value.Int(10)))
	if idx.NumEntries() != 2 {
		t.Fatalf("NumEntries after remove = %d, want 2", idx.NumEntries())
	}
	if id, ok := idx.FindOne(value.FromInt(value.Int(10))); !ok || id != 2 {
		t.Fatalf("FindOne(10) after removing row 0 = %d,%v, want 2,true", id, ok)
	}
}

func TestHashInsertFindRemove(t *testing.T) {
	idx := New("by_name", Hash, value.KindText)
	if err := idx.Insert(0, value.FromText(value.TextFromString("a"))); err != nil {
		t.Fatal(err)
	}
	if !idx.Contains(value.FromText(value.TextFromString("a"))) {
		t.Fatalf("expected to contain %q", "a")
	}
	idx.Remove(0, value.FromText(value.TextFromString("a")))
	if idx.Contains(value.FromText(value.TextFromString("a"))) {
		t.Fatalf("value should be gone after Remove")
	}
}

func TestInsertRejectsWrongKind(t *testing.T) {
	idx := New("by_age", Tree, value.KindInt)
	if err := idx.Insert(0, value.FromText(value.TextFromString("x"))); err == nil {
		t.Fatalf("expected a type error")
	}
}

func TestFindInRangeInclusive(t *testing.T) {
	idx := New("by_age", Tree, value.KindInt)
	for r, v := range []int64{10, 20, 30, 40} {
		idx.Insert(int64(r), value.FromInt(value.Int(v)))
	}
	lower := &EndPoint{Value: value.FromInt(value.Int(20)), Bound: Inclusive}
	upper := &EndPoint{Value: value.FromInt(value.Int(30)), Bound: Inclusive}
	c, err := idx.FindInRange(lower, upper, cursor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, c)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 row-ids (20 and 30)", got)
	}
}

func TestFindInRangeExclusiveInt(t *testing.T) {
	idx := New("by_age", Tree, value.KindInt)
	for r, v := range []int64{10, 20, 30, 40} {
		idx.Insert(int64(r), value.FromInt(value.Int(v)))
	}
	lower := &EndPoint{Value: value.FromInt(value.Int(10)), Bound: Exclusive}
	upper := &EndPoint{Value: value.FromInt(value.Int(40)), Bound: Exclusive}
	c, err := idx.FindInRange(lower, upper, cursor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, c)
	if len(got) != 2 {
		t.Fatalf("got %v, want rows for 20 and 30 only", got)
	}
}

func TestFindInRangeExclusiveText(t *testing.T) {
	idx := New("by_name", Tree, value.KindText)
	idx.Insert(0, value.FromText(value.TextFromString("a")))
	idx.Insert(1, value.FromText(value.TextFromString("b")))
	idx.Insert(2, value.FromText(value.TextFromString("c")))
	lower := &EndPoint{Value: value.FromText(value.TextFromString("a")), Bound: Exclusive}
	c, err := idx.FindInRange(lower, nil, cursor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, c)
	if len(got) != 2 {
		t.Fatalf("got %v, want b and c only (a excluded)", got)
	}
}

func TestFindStartsWithAndFindPrefixes(t *testing.T) {
	idx := New("by_name", Tree, value.KindText)
	idx.Insert(0, value.FromText(value.TextFromString("app")))
	idx.Insert(1, value.FromText(value.TextFromString("apple")))
	idx.Insert(2, value.FromText(value.TextFromString("banana")))

	c, err := idx.FindStartsWith(value.FromText(value.TextFromString("app")), cursor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got := ids(t, c)
	if len(got) != 2 {
		t.Fatalf("FindStartsWith(app) = %v, want rows 0 and 1", got)
	}

	c2, err := idx.FindPrefixes(value.FromText(value.TextFromString("apple")), cursor.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	got2 := ids(t, c2)
	if len(got2) != 2 {
		t.Fatalf("FindPrefixes(apple) = %v, want rows 0 (app) and 1 (apple)", got2)
	}
}

func TestFindInRangeRejectsHashIndex(t *testing.T) {
	idx := New("by_age", Hash, value.KindInt)
	_, err := idx.FindInRange(nil, nil, cursor.DefaultOptions())
	if err == nil {
		t.Fatalf("hash index has no order, FindInRange must fail")
	}
}

func TestFindHonorsOffsetAndLimit(t *testing.T) {
	idx := New("by_age", Tree, value.KindInt)
	idx.Insert(0, value.FromInt(value.Int(5)))
	idx.Insert(1, value.FromInt(value.Int(5)))
	idx.Insert(2, value.FromInt(value.Int(5)))
	opts := cursor.Options{Offset: 1, Limit: 1, Order: cursor.Regular}
	c := idx.Find(value.FromInt(value.Int(5)), opts)
	buf := make([]record.Record, 8)
	n := c.Read(buf)
	if n != 1 || buf[0].RowID != 1 {
		t.Fatalf("Read = %d records (first %v), want 1 record with row-id 1", n, buf[:n])
	}
}
