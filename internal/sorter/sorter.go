// Package sorter implements the multi-key ternary quicksort that reorders
// record batches produced by a cursor or an expression filter.
package sorter

import (
	"container/heap"

	"strand/internal/expr"
	"strand/internal/record"
	"strand/internal/value"
)

// Type selects ascending ("regular") or descending ("reverse") order for
// one SorterOrder.
type Type int

const (
	Regular Type = iota
	Reverse
)

// SorterOrder is one key in a multi-key sort: evaluate Expr, order by its
// result, breaking ties with the next SorterOrder in the list.
type SorterOrder struct {
	Expr *expr.Expression
	Type Type
}

// Options bounds a Sort's output window, applied after the full ordering.
type Options struct {
	Offset uint64
	Limit  uint64
}

// Sorter reorders record batches by an ordered list of keys, all drawn
// from the same table.
type Sorter struct {
	orders []SorterOrder
	opts   Options
}

func New(orders []SorterOrder, opts Options) *Sorter {
	return &Sorter{orders: orders, opts: opts}
}

// Sort returns exactly min(limit, max(0, len(records)-offset)) records:
// records reordered by the key list, windowed to [offset, offset+limit).
// The input array is left untouched; Sort works on its own copy.
func (s *Sorter) Sort(records record.Array) record.Array {
	work := records.Clone()
	if len(s.orders) == 0 {
		return windowed(work, s.opts)
	}
	if s.fastPathEligible() {
		return s.partialSortByRowID(work)
	}
	s.sortRange(work, 0, len(work), 0)
	return windowed(work, s.opts)
}

func windowed(records record.Array, opts Options) record.Array {
	offset := opts.Offset
	if offset > uint64(len(records)) {
		offset = uint64(len(records))
	}
	out := records[offset:]
	if opts.Limit < uint64(len(out)) {
		out = out[:opts.Limit]
	}
	return out
}

// fastPathEligible reports whether the first order is a bare row_id
// projection and the requested window is small enough for the bounded
// max-heap partial sort to pay off.
func (s *Sorter) fastPathEligible() bool {
	if !s.orders[0].Expr.IsRowIDProjection() {
		return false
	}
	if s.opts.Offset >= 1000 || s.opts.Limit >= 1000 {
		return false
	}
	k := s.opts.Offset + s.opts.Limit
	return k < 1000
}

// sortRange orders records[lo:hi] by orders[orderIdx], descending into
// orders[orderIdx+1] to break ties within equal-key runs.
func (s *Sorter) sortRange(records record.Array, lo, hi, orderIdx int) {
	n := hi - lo
	if n < 2 || orderIdx >= len(s.orders) {
		return
	}
	order := s.orders[orderIdx]
	sub := records[lo:hi]
	reverse := order.Type == Reverse
	vals := orderValues(order, sub)
	kind := orderKind(order)

	switch kind {
	case value.KindBool:
		ltEnd, gtStart := partitionBool(sub, vals, reverse)
		s.sortRange(records, lo, lo+ltEnd, orderIdx+1)
		s.sortRange(records, lo+ltEnd, lo+gtStart, orderIdx+1)
		s.sortRange(records, lo+gtStart, hi, orderIdx+1)
	case value.KindText:
		texts := make([]value.Text, n)
		for i, d := range vals {
			texts[i] = d.Text()
		}
		pivot := texts[choosePivotIndex(n)]
		ltEnd, gtStart := partitionText(sub, texts, pivot, reverse)
		s.sortRange(records, lo, lo+ltEnd, orderIdx)
		s.sortRange(records, lo+ltEnd, lo+gtStart, orderIdx+1)
		s.sortRange(records, lo+gtStart, hi, orderIdx)
	default:
		keys := make([]uint64, n)
		for i, d := range vals {
			keys[i] = sortKeyOf(d, kind, reverse)
		}
		pivot := keys[choosePivotIndex(n)]
		ltEnd, gtStart := partitionKeys(sub, keys, pivot)
		s.sortRange(records, lo, lo+ltEnd, orderIdx)
		s.sortRange(records, lo+ltEnd, lo+gtStart, orderIdx+1)
		s.sortRange(records, lo+gtStart, hi, orderIdx)
	}
}

// choosePivotIndex implements the spec's small-run pivot rule (median of
// positions 1, n/2, n-2) and falls back to a median of (0, n/2, n-1) for
// larger runs, avoiding the reverse-sorted quicksort worst case either
// way.
func choosePivotIndex(n int) int {
	if n <= 16 {
		return medianOfThreeIndices(n, 1, n/2, n-2)
	}
	return medianOfThreeIndices(n, 0, n/2, n-1)
}

// medianOfThreeIndices returns whichever of a, b, c is the middle
// candidate position, clamped into [0,n) so tiny runs never index
// out of range.
func medianOfThreeIndices(n, a, b, c int) int {
	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	a, b, c = clamp(a), clamp(b), clamp(c)
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return b
}

func orderValues(o SorterOrder, sub record.Array) []value.Datum {
	switch {
	case o.Expr.IsRowIDProjection():
		out := make([]value.Datum, len(sub))
		for i, r := range sub {
			out[i] = value.FromInt(value.Int(r.RowID))
		}
		return out
	case o.Expr.IsScoreProjection():
		out := make([]value.Datum, len(sub))
		for i, r := range sub {
			out[i] = value.FromFloat(value.Float(r.Score))
		}
		return out
	default:
		return o.Expr.Evaluate(sub)
	}
}

func orderKind(o SorterOrder) value.Kind {
	if o.Expr.IsRowIDProjection() {
		return value.KindInt
	}
	if o.Expr.IsScoreProjection() {
		return value.KindFloat
	}
	return o.Expr.Result()
}

func sortKeyOf(d value.Datum, kind value.Kind, reverse bool) uint64 {
	switch kind {
	case value.KindInt:
		return d.Int().SortKey(reverse)
	case value.KindFloat:
		return d.Float().SortKey(reverse)
	case value.KindGeoPoint:
		return d.GeoPoint().SortKey(reverse)
	default:
		return ^uint64(0)
	}
}

// boolRank places N/A last regardless of direction: regular orders
// false(0) < true(1) < N/A(2); reverse swaps only the two present
// states, true(0) < false(1) < N/A(2).
func boolRank(b value.Bool, reverse bool) int {
	if b.IsNA() {
		return 2
	}
	if reverse {
		if b.IsTrue() {
			return 0
		}
		return 1
	}
	if b.IsTrue() {
		return 1
	}
	return 0
}

// partitionBool stable-buckets sub into its three possible ranks. Bool
// has only three distinct values, so a direct bucket pass is simpler and
// just as correct as an in-place ternary swap.
func partitionBool(sub record.Array, vals []value.Datum, reverse bool) (ltEnd, gtStart int) {
	var buckets [3]record.Array
	for i, d := range vals {
		r := boolRank(d.Bool(), reverse)
		buckets[r] = append(buckets[r], sub[i])
	}
	pos := 0
	for _, b := range buckets {
		copy(sub[pos:], b)
		pos += len(b)
	}
	return len(buckets[0]), len(buckets[0]) + len(buckets[1])
}

// textCompare is a 3-way compare with N/A always sorting last, applying
// reverse only to the present/present comparison.
func textCompare(a, b value.Text, reverse bool) int {
	aNA, bNA := a.IsNA(), b.IsNA()
	switch {
	case aNA && bNA:
		return 0
	case aNA:
		return 1
	case bNA:
		return -1
	}
	c := a.Compare(b)
	if reverse {
		c = -c
	}
	return c
}

// partitionText performs an in-place 3-way (Dutch national flag) split
// of sub (and its parallel texts slice) against pivot.
func partitionText(sub record.Array, texts []value.Text, pivot value.Text, reverse bool) (ltEnd, gtStart int) {
	n := len(texts)
	lt, i, gt := 0, 0, n-1
	for i <= gt {
		c := textCompare(texts[i], pivot, reverse)
		switch {
		case c < 0:
			sub[lt], sub[i] = sub[i], sub[lt]
			texts[lt], texts[i] = texts[i], texts[lt]
			lt++
			i++
		case c > 0:
			sub[i], sub[gt] = sub[gt], sub[i]
			texts[i], texts[gt] = texts[gt], texts[i]
			gt--
		default:
			i++
		}
	}
	return lt, gt + 1
}

// partitionKeys performs an in-place 3-way split of sub (and its
// parallel keys slice) against pivot, used for Int/Float/GeoPoint orders
// once each value has been mapped to a radix-comparable uint64 key.
func partitionKeys(sub record.Array, keys []uint64, pivot uint64) (ltEnd, gtStart int) {
	n := len(keys)
	lt, i, gt := 0, 0, n-1
	for i <= gt {
		switch {
		case keys[i] < pivot:
			sub[lt], sub[i] = sub[i], sub[lt]
			keys[lt], keys[i] = keys[i], keys[lt]
			lt++
			i++
		case keys[i] > pivot:
			sub[i], sub[gt] = sub[gt], sub[i]
			keys[i], keys[gt] = keys[gt], keys[i]
			gt--
		default:
			i++
		}
	}
	return lt, gt + 1
}

// recordHeap is a container/heap.Interface over records compared by cmp.
type recordHeap struct {
	items []record.Record
	less  func(a, b record.Record) bool
}

func (h *recordHeap) Len() int            { return len(h.items) }
func (h *recordHeap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *recordHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *recordHeap) Push(x interface{})  { h.items = append(h.items, x.(record.Record)) }
func (h *recordHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// partialSortByRowID implements the bounded max-heap fast path: maintain
// the best K = offset+limit row-ids seen so far in a heap, then drain the
// heap in final order and window the result. Scanning uses an inverted
// comparator so the heap root is always the current worst-of-the-kept
// element (the one to evict); draining uses the true order so repeated
// heap.Pop yields the final sequence directly.
func (s *Sorter) partialSortByRowID(records record.Array) record.Array {
	reverse := s.orders[0].Type == Reverse
	k := int(s.opts.Offset + s.opts.Limit)
	if k > len(records) {
		k = len(records)
	}
	if k == 0 {
		return nil
	}

	betterThanRoot := func(candidate, root record.Record) bool {
		if reverse {
			return candidate.RowID > root.RowID
		}
		return candidate.RowID < root.RowID
	}
	evictLess := func(a, b record.Record) bool {
		if reverse {
			return a.RowID < b.RowID
		}
		return a.RowID > b.RowID
	}

	scan := &recordHeap{less: evictLess}
	heap.Init(scan)
	for _, r := range records {
		if scan.Len() < k {
			heap.Push(scan, r)
			continue
		}
		if betterThanRoot(r, scan.items[0]) {
			scan.items[0] = r
			heap.Fix(scan, 0)
		}
	}

	trueLess := func(a, b record.Record) bool {
		if reverse {
			return a.RowID > b.RowID
		}
		return a.RowID < b.RowID
	}
	final := &recordHeap{items: scan.items, less: trueLess}
	heap.Init(final)
	out := make(record.Array, 0, final.Len())
	for final.Len() > 0 {
		out = append(out, heap.Pop(final).(record.Record))
	}
	return windowed(out, s.opts)
}
