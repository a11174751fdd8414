package merger

import (
	"sort"
	"testing"

	"strand/internal/record"
)

func rows(ids ...int64) record.Array {
	out := make(record.Array, len(ids))
	for i, id := range ids {
		out[i] = record.Record{RowID: id, Score: float64(id)}
	}
	return out
}

func rowIDs(recs record.Array) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.RowID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func assertIDs(t *testing.T, got record.Array, want []int64) {
	t.Helper()
	gotIDs := rowIDs(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("got %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("got %v, want %v", gotIDs, want)
		}
	}
}

// A = {1,2,3}, B = {2,3,4}: AND -> {2,3}, OR -> {1,2,3,4}, MINUS -> {1}.
func TestSetSemanticsScenario(t *testing.T) {
	a := rows(1, 2, 3)
	b := rows(2, 3, 4)

	and := Merge(a, b, Options{Logical: AND, Score: Plus, Limit: ^uint64(0)})
	assertIDs(t, and, []int64{2, 3})

	or := Merge(a, b, Options{Logical: OR, Score: Plus, Limit: ^uint64(0)})
	assertIDs(t, or, []int64{1, 2, 3, 4})

	minus := Merge(a, b, Options{Logical: MINUS, Score: Plus, Limit: ^uint64(0)})
	assertIDs(t, minus, []int64{1})

	xor := Merge(a, b, Options{Logical: XOR, Score: Plus, Limit: ^uint64(0)})
	assertIDs(t, xor, []int64{1, 4})
}

func TestLeftEmitsEveryARow(t *testing.T) {
	a := rows(1, 2, 3)
	b := rows(2, 3, 4)
	left := Merge(a, b, Options{Logical: LEFT, Score: Plus, MissingScore: -1, Limit: ^uint64(0)})
	assertIDs(t, left, []int64{1, 2, 3})
}

func TestRightEmitsEveryBRow(t *testing.T) {
	a := rows(1, 2, 3)
	b := rows(2, 3, 4)
	right := Merge(a, b, Options{Logical: RIGHT, Score: Plus, MissingScore: -1, Limit: ^uint64(0)})
	assertIDs(t, right, []int64{2, 3, 4})
}

func TestMinusIsOrientationStable(t *testing.T) {
	// Swap which array is physically smaller; MINUS must still mean
	// "A-only" regardless of which side the algorithm hashes internally.
	a := rows(1, 2, 3, 4, 5, 6) // larger than b
	b := rows(2, 3)
	got := Merge(a, b, Options{Logical: MINUS, Score: Plus, Limit: ^uint64(0)})
	assertIDs(t, got, []int64{1, 4, 5, 6})
}

func scoreOf(recs record.Array, rowID int64) (float64, bool) {
	for _, r := range recs {
		if r.RowID == rowID {
			return r.Score, true
		}
	}
	return 0, false
}

func TestScoreMinusIsOrientationStable(t *testing.T) {
	a := record.Array{{RowID: 1, Score: 10}}
	b := record.Array{{RowID: 1, Score: 3}}
	// a is smaller-or-equal so it gets hashed; result must still read
	// A.score - B.score = 7, not the reverse.
	got := Merge(a, b, Options{Logical: AND, Score: ScoreMinus, Limit: ^uint64(0)})
	s, ok := scoreOf(got, 1)
	if !ok || s != 7 {
		t.Fatalf("score = %v,%v, want 7,true", s, ok)
	}

	// Now make b the smaller (hashed) side; orientation must not flip.
	aBig := record.Array{{RowID: 1, Score: 10}, {RowID: 2, Score: 20}, {RowID: 3, Score: 30}}
	bSmall := record.Array{{RowID: 1, Score: 3}}
	got2 := Merge(aBig, bSmall, Options{Logical: AND, Score: ScoreMinus, Limit: ^uint64(0)})
	s2, ok2 := scoreOf(got2, 1)
	if !ok2 || s2 != 7 {
		t.Fatalf("score = %v,%v, want 7,true", s2, ok2)
	}
}

func TestMissingScoreUsedForUnmatchedSide(t *testing.T) {
	a := rows(1)
	b := record.Array{}
	got := Merge(a, b, Options{Logical: OR, Score: Plus, MissingScore: 100, Limit: ^uint64(0)})
	s, ok := scoreOf(got, 1)
	if !ok || s != 101 { // combine(Plus, A.score=1, missing=100)
		t.Fatalf("score = %v,%v, want 101,true", s, ok)
	}
}

func TestOffsetAndLimit(t *testing.T) {
	a := rows(1, 2, 3, 4, 5)
	b := rows(1, 2, 3, 4, 5)
	got := Merge(a, b, Options{Logical: AND, Score: Plus, Offset: 1, Limit: 2})
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}
