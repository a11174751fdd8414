package rowid

import "testing"

func TestRowLifecycle(t *testing.T) {
	m := New()
	for i := 0; i < 3; i++ {
		id := m.FindNextRowID()
		if err := m.Validate(id); err != nil {
			t.Fatalf("Validate(%d): %v", id, err)
		}
		if id != int64(i) {
			t.Fatalf("row %d: got id %d, want %d", i, id, i)
		}
	}
	if m.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3", m.NumRows())
	}

	if err := m.Invalidate(1); err != nil {
		t.Fatalf("Invalidate(1): %v", err)
	}
	if m.Test(1) {
		t.Fatal("row 1 should no longer be valid")
	}
	if m.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", m.NumRows())
	}
	if max, ok := m.MaxRowID(); !ok || max != 2 {
		t.Fatalf("MaxRowID() = (%d, %v), want (2, true)", max, ok)
	}

	next := m.FindNextRowID()
	if next != 1 {
		t.Fatalf("FindNextRowID() = %d, want 1 (the hole left by removing row 1)", next)
	}
	if err := m.Validate(next); err != nil {
		t.Fatalf("Validate(%d): %v", next, err)
	}
	if !m.Test(1) {
		t.Fatal("row 1 should be valid again")
	}
}

func TestMassChurn(t *testing.T) {
	const n = 16384
	m := New()

	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = m.FindNextRowID()
		if err := m.Validate(ids[i]); err != nil {
			t.Fatalf("Validate(%d): %v", ids[i], err)
		}
	}
	if m.NumRows() != n {
		t.Fatalf("NumRows() = %d, want %d", m.NumRows(), n)
	}
	if max, ok := m.MaxRowID(); !ok || max != n-1 {
		t.Fatalf("MaxRowID() = (%d, %v), want (%d, true)", max, ok, n-1)
	}
	if !m.IsFull() {
		t.Fatal("bitmap should be dense after packing 0..n-1")
	}

	for i := 0; i < n; i++ {
		if err := m.Invalidate(ids[i]); err != nil {
			t.Fatalf("Invalidate(%d): %v", ids[i], err)
		}
	}
	if !m.IsEmpty() {
		t.Fatalf("NumRows() = %d, want 0", m.NumRows())
	}
	if _, ok := m.MaxRowID(); ok {
		t.Fatal("MaxRowID() should report not-ok when empty")
	}

	for i := 0; i < n; i++ {
		id := m.FindNextRowID()
		if err := m.Validate(id); err != nil {
			t.Fatalf("Validate(%d): %v", id, err)
		}
		if id != int64(i) {
			t.Fatalf("re-insert %d: got id %d, want %d", i, id, i)
		}
	}
	if m.NumRows() != n {
		t.Fatalf("NumRows() = %d, want %d", m.NumRows(), n)
	}
	if max, ok := m.MaxRowID(); !ok || max != n-1 {
		t.Fatalf("MaxRowID() = (%d, %v), want (%d, true)", max, ok, n-1)
	}
}

func TestTestMatchesBitState(t *testing.T) {
	m := New()
	if m.Test(0) {
		t.Fatal("row 0 should not be valid before any insert")
	}
	if err := m.Validate(5); err != nil {
		t.Fatalf("Validate(5): %v", err)
	}
	for r := int64(0); r < 10; r++ {
		want := r == 5
		if got := m.Test(r); got != want {
			t.Errorf("Test(%d) = %v, want %v", r, got, want)
		}
	}
	if err := m.Invalidate(5); err != nil {
		t.Fatalf("Invalidate(5): %v", err)
	}
	if m.Test(5) {
		t.Fatal("row 5 should no longer be valid")
	}
}

func TestInvalidateUnsetRow(t *testing.T) {
	m := New()
	if err := m.Invalidate(0); err == nil {
		t.Fatal("Invalidate on an empty bitmap should fail")
	}
	if err := m.Validate(0); err != nil {
		t.Fatalf("Validate(0): %v", err)
	}
	if err := m.Invalidate(1); err == nil {
		t.Fatal("Invalidate on a never-validated row should fail")
	}
}

func TestIsFullSingleGap(t *testing.T) {
	m := New()
	for i := int64(0); i < 200; i++ {
		if err := m.Validate(i); err != nil {
			t.Fatalf("Validate(%d): %v", i, err)
		}
	}
	if !m.IsFull() {
		t.Fatal("bitmap packed 0..199 should be full")
	}
	if err := m.Invalidate(100); err != nil {
		t.Fatalf("Invalidate(100): %v", err)
	}
	if m.IsFull() {
		t.Fatal("bitmap with a hole at 100 should not be full")
	}
	if got := m.FindNextRowID(); got != 100 {
		t.Fatalf("FindNextRowID() = %d, want 100", got)
	}
}

func TestReserveWithoutValidateDoesNotCountAsFull(t *testing.T) {
	m := New()
	if err := m.Validate(0); err != nil {
		t.Fatalf("Validate(0): %v", err)
	}
	if err := m.Reserve(500); err != nil {
		t.Fatalf("Reserve(500): %v", err)
	}
	if max, ok := m.MaxRowID(); !ok || max != 0 {
		t.Fatalf("MaxRowID() = (%d, %v), want (0, true); Reserve must not validate", max, ok)
	}
	if m.NumRows() != 1 {
		t.Fatalf("NumRows() = %d, want 1", m.NumRows())
	}
}
