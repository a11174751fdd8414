// Package index implements the Tree (ordered) and Hash (unordered)
// secondary access paths a Column maintains over its own values.
package index

import (
	"math"
	"sort"

	"strand/internal/cursor"
	"strand/internal/dberrors"
	"strand/internal/record"
	"strand/internal/value"
)

// Variant distinguishes the two index shapes.
type Variant int

const (
	Tree Variant = iota
	Hash
)

// Bound marks whether a range EndPoint includes its value.
type Bound int

const (
	Inclusive Bound = iota
	Exclusive
)

// EndPoint is one bound of a FindInRange query.
type EndPoint struct {
	Value value.Datum
	Bound Bound
}

type treeEntry struct {
	value  value.Datum
	rowIDs []int64 // kept sorted ascending
}

// hashKey is a comparable projection of a Datum, used as a Go map key.
// Floats canonicalize +0/-0 to the same bits, matching value.Float.Match.
type hashKey struct {
	u uint64
	s string
}

// Index is a secondary access path over one scalar column.
type Index struct {
	Name    string
	Variant Variant
	Kind    value.Kind

	tree []treeEntry         // Variant == Tree, sorted ascending by Kind's Less
	hash map[hashKey][]int64 // Variant == Hash
}

// New returns an empty index of variant over a column of kind.
func New(name string, variant Variant, kind value.Kind) *Index {
	idx := &Index{Name: name, Variant: variant, Kind: kind}
	if variant == Hash {
		idx.hash = make(map[hashKey][]int64)
	}
	return idx
}

func (idx *Index) checkKind(d value.Datum) error {
	if d.Kind() != idx.Kind {
		return dberrors.New(dberrors.TypeError, "Index", "index %q holds %s, got %s", idx.Name, idx.Kind, d.Kind())
	}
	return nil
}

// Insert adds (rowID, v) to the index; v must not be N/A.
func (idx *Index) Insert(rowID int64, v value.Datum) error {
	if err := idx.checkKind(v); err != nil {
		return err
	}
	if idx.Variant == Hash {
		k := toHashKey(v)
		idx.hash[k] = insertSorted(idx.hash[k], rowID)
		return nil
	}
	i, found := idx.search(v)
	if found {
		idx.tree[i].rowIDs = insertSorted(idx.tree[i].rowIDs, rowID)
		return nil
	}
	idx.tree = append(idx.tree, treeEntry{})
	copy(idx.tree[i+1:], idx.tree[i:])
	idx.tree[i] = treeEntry{value: v, rowIDs: []int64{rowID}}
	return nil
}

// Remove deletes (rowID, v) from the index if present.
func (idx *Index) Remove(rowID int64, v value.Datum) {
	if idx.Variant == Hash {
		k := toHashKey(v)
		ids := removeSorted(idx.hash[k], rowID)
		if len(ids) == 0 {
			delete(idx.hash, k)
		} else {
			idx.hash[k] = ids
		}
		return
	}
	i, found := idx.search(v)
	if !found {
		return
	}
	idx.tree[i].rowIDs = removeSorted(idx.tree[i].rowIDs, rowID)
	if len(idx.tree[i].rowIDs) == 0 {
		idx.tree = append(idx.tree[:i], idx.tree[i+1:]...)
	}
}

// Contains reports whether any entry matches v.
func (idx *Index) Contains(v value.Datum) bool {
	if idx.Variant == Hash {
		return len(idx.hash[toHashKey(v)]) > 0
	}
	_, found := idx.search(v)
	return found
}

// FindOne returns the smallest row-ID matching v.
func (idx *Index) FindOne(v value.Datum) (int64, bool) {
	if idx.Variant == Hash {
		ids := idx.hash[toHashKey(v)]
		if len(ids) == 0 {
			return 0, false
		}
		return ids[0], true
	}
	i, found := idx.search(v)
	if !found || len(idx.tree[i].rowIDs) == 0 {
		return 0, false
	}
	return idx.tree[i].rowIDs[0], true
}

// NumEntries returns the total number of (row, value) memberships, not
// the number of distinct keys.
func (idx *Index) NumEntries() int {
	n := 0
	if idx.Variant == Hash {
		for _, ids := range idx.hash {
			n += len(ids)
		}
		return n
	}
	for _, e := range idx.tree {
		n += len(e.rowIDs)
	}
	return n
}

// TestUniqueness reports whether every distinct value maps to exactly one
// row.
func (idx *Index) TestUniqueness() bool {
	if idx.Variant == Hash {
		for _, ids := range idx.hash {
			if len(ids) > 1 {
				return false
			}
		}
		return true
	}
	for _, e := range idx.tree {
		if len(e.rowIDs) > 1 {
			return false
		}
	}
	return true
}

// Find returns a cursor over every row-ID matching v.
func (idx *Index) Find(v value.Datum, opts cursor.Options) cursor.Cursor {
	var ids []int64
	if idx.Variant == Hash {
		ids = idx.hash[toHashKey(v)]
	} else if i, found := idx.search(v); found {
		ids = idx.tree[i].rowIDs
	}
	return idsToCursor(ids, opts)
}

// FindInRange returns every row-ID whose value falls within [lower, upper]
// (nil means unbounded on that side). Tree variant only.
func (idx *Index) FindInRange(lower, upper *EndPoint, opts cursor.Options) (cursor.Cursor, error) {
	if idx.Variant != Tree {
		return nil, dberrors.New(dberrors.InvalidOperation, "Index.FindInRange", "hash index %q has no order", idx.Name)
	}
	lo := 0
	if lower != nil {
		inclusiveLower, empty := idx.lowerBound(*lower)
		if empty {
			return cursor.Empty(), nil
		}
		lo = sort.Search(len(idx.tree), func(i int) bool {
			return !valueLess(idx.tree[i].value, inclusiveLower)
		})
	}
	hi := len(idx.tree)
	excludeExactUpper := false
	var upperVal value.Datum
	if upper != nil {
		var empty bool
		upperVal, empty = idx.upperComparisonValue(*upper)
		if empty {
			return cursor.Empty(), nil
		}
		hi = sort.Search(len(idx.tree), func(i int) bool {
			return valueLess(upperVal, idx.tree[i].value)
		})
		excludeExactUpper = idx.Kind == value.KindText && upper.Bound == Exclusive
	}
	if excludeExactUpper && hi > lo && idx.tree[hi-1].value.Match(upperVal) {
		hi--
	}
	var ids []int64
	for _, e := range idx.tree[lo:hi] {
		ids = append(ids, e.rowIDs...)
	}
	return idsToCursor(ids, opts), nil
}

// FindStartsWith returns every row-ID whose Text value begins with
// prefix. Tree + Text only.
func (idx *Index) FindStartsWith(prefix value.Datum, opts cursor.Options) (cursor.Cursor, error) {
	if idx.Variant != Tree || idx.Kind != value.KindText {
		return nil, dberrors.New(dberrors.InvalidOperation, "Index.FindStartsWith", "only a Text tree index supports prefix search")
	}
	p := prefix.Text()
	lo := sort.Search(len(idx.tree), func(i int) bool { return !idx.tree[i].value.Text().Less(p) })
	var ids []int64
	for _, e := range idx.tree[lo:] {
		t := e.value.Text()
		if !hasBytePrefix(t, p) {
			break
		}
		ids = append(ids, e.rowIDs...)
	}
	return idsToCursor(ids, opts), nil
}

// FindPrefixes returns every row-ID whose stored Text value is itself a
// prefix of v (the reverse of FindStartsWith). Tree + Text only.
func (idx *Index) FindPrefixes(v value.Datum, opts cursor.Options) (cursor.Cursor, error) {
	if idx.Variant != Tree || idx.Kind != value.KindText {
		return nil, dberrors.New(dberrors.InvalidOperation, "Index.FindPrefixes", "only a Text tree index supports prefix search")
	}
	needle := v.Text()
	hi := sort.Search(len(idx.tree), func(i int) bool { return !idx.tree[i].value.Text().Less(needle) })
	if hi < len(idx.tree) && idx.tree[hi].value.Text().Match(needle) {
		hi++
	}
	var ids []int64
	for _, e := range idx.tree[:hi] {
		if hasBytePrefix(needle, e.value.Text()) {
			ids = append(ids, e.rowIDs...)
		}
	}
	return idsToCursor(ids, opts), nil
}

func hasBytePrefix(s, prefix value.Text) bool {
	sb, pb := []byte(s.String()), []byte(prefix.String())
	if len(pb) > len(sb) {
		return false
	}
	for i := range pb {
		if sb[i] != pb[i] {
			return false
		}
	}
	return true
}

// search returns the tree index where v is, or where it would be
// inserted, via binary search over the Kind-specific Less order.
func (idx *Index) search(v value.Datum) (int, bool) {
	i := sort.Search(len(idx.tree), func(i int) bool {
		return !valueLess(idx.tree[i].value, v)
	})
	if i < len(idx.tree) && idx.tree[i].value.Match(v) {
		return i, true
	}
	return i, false
}

// lowerBound converts ep into an inclusive lower-bound Datum for search
// purposes, or (zero, true) if the exclusive conversion makes the range
// provably empty (saturation).
func (idx *Index) lowerBound(ep EndPoint) (value.Datum, bool) {
	if ep.Bound == Inclusive {
		return ep.Value, false
	}
	switch idx.Kind {
	case value.KindInt:
		i := ep.Value.Int()
		if i == math.MaxInt64 {
			return value.Datum{}, true
		}
		return value.FromInt(i.Add(1)), false
	case value.KindFloat:
		return value.FromFloat(ep.Value.Float().NextAfter(value.Float(math.Inf(1)))), false
	case value.KindText:
		t := ep.Value.Text()
		return value.FromText(value.NewText(append([]byte(t.String()), 0))), false
	default:
		return ep.Value, false
	}
}

// upperComparisonValue returns the Datum used to compute the inclusive
// search cutoff for the upper bound. For Int/Float the exclusive case is
// converted to an adjacent inclusive value; Text exclusion is applied
// afterward against the exact stored string (see FindInRange). For any
// other kind the value is used as given, so an exclusive upper bound acts
// as an inclusive one.
func (idx *Index) upperComparisonValue(ep EndPoint) (value.Datum, bool) {
	if ep.Bound == Inclusive {
		return ep.Value, false
	}
	switch idx.Kind {
	case value.KindInt:
		i := ep.Value.Int()
		if i == value.IntNA+1 {
			return value.Datum{}, true
		}
		return value.FromInt(i.Sub(1)), false
	case value.KindFloat:
		return value.FromFloat(ep.Value.Float().NextAfter(value.Float(math.Inf(-1)))), false
	default:
		return ep.Value, false
	}
}

func valueLess(a, b value.Datum) bool {
	switch a.Kind() {
	case value.KindBool:
		return a.Bool().Less(b.Bool())
	case value.KindInt:
		return a.Int().Less(b.Int())
	case value.KindFloat:
		return a.Float().Less(b.Float())
	case value.KindGeoPoint:
		return a.GeoPoint().Less(b.GeoPoint())
	case value.KindText:
		return a.Text().Less(b.Text())
	default:
		return false
	}
}

// toHashKey canonicalizes a Datum into a comparable Go value for the hash
// variant's map, normalizing +0.0/-0.0 the same way value.Float.Match does.
func toHashKey(d value.Datum) hashKey {
	switch d.Kind() {
	case value.KindBool:
		return hashKey{u: uint64(d.Bool())}
	case value.KindInt:
		return hashKey{u: uint64(d.Int())}
	case value.KindFloat:
		f := d.Float()
		if float64(f) == 0 {
			f = 0
		}
		return hashKey{u: f.SortKey(false)}
	case value.KindGeoPoint:
		return hashKey{u: d.GeoPoint().SortKey(false)}
	case value.KindText:
		return hashKey{s: d.Text().String()}
	default:
		return hashKey{}
	}
}

func insertSorted(ids []int64, rowID int64) []int64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= rowID })
	if i < len(ids) && ids[i] == rowID {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = rowID
	return ids
}

func removeSorted(ids []int64, rowID int64) []int64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= rowID })
	if i >= len(ids) || ids[i] != rowID {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}

func idsToCursor(ids []int64, opts cursor.Options) cursor.Cursor {
	recs := make(record.Array, len(ids))
	for i, id := range ids {
		recs[i] = record.Record{RowID: id, Score: 0.0}
	}
	return cursor.NewSlice(recs, opts)
}
