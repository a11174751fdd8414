package value

// Datum is the tagged union carrying any one value of the closed kind
// set. It is the currency of Column.Set/Get and of expression constants.
// Dispatch is always on Kind; there is no reflection-based path.
type Datum struct {
	kind Kind

	b   Bool
	i   Int
	f   Float
	g   GeoPoint
	t   Text
	bv  BoolVector
	iv  IntVector
	fv  FloatVector
	gv  GeoPointVector
	tv  TextVector
}

func NA() Datum { return Datum{kind: KindNA} }

func FromBool(v Bool) Datum         { return Datum{kind: KindBool, b: v} }
func FromInt(v Int) Datum           { return Datum{kind: KindInt, i: v} }
func FromFloat(v Float) Datum       { return Datum{kind: KindFloat, f: v} }
func FromGeoPoint(v GeoPoint) Datum { return Datum{kind: KindGeoPoint, g: v} }
func FromText(v Text) Datum         { return Datum{kind: KindText, t: v} }
func FromBoolVector(v BoolVector) Datum         { return Datum{kind: KindBoolVector, bv: v} }
func FromIntVector(v IntVector) Datum           { return Datum{kind: KindIntVector, iv: v} }
func FromFloatVector(v FloatVector) Datum       { return Datum{kind: KindFloatVector, fv: v} }
func FromGeoPointVector(v GeoPointVector) Datum { return Datum{kind: KindGeoPointVector, gv: v} }
func FromTextVector(v TextVector) Datum         { return Datum{kind: KindTextVector, tv: v} }

func (d Datum) Kind() Kind { return d.kind }

// IsNA reports whether d carries no value, either because it is the
// untyped NA() or because its typed payload is that kind's N/A state.
func (d Datum) IsNA() bool {
	switch d.kind {
	case KindNA:
		return true
	case KindBool:
		return d.b.IsNA()
	case KindInt:
		return d.i.IsNA()
	case KindFloat:
		return d.f.IsNA()
	case KindGeoPoint:
		return d.g.IsNA()
	case KindText:
		return d.t.IsNA()
	case KindBoolVector:
		return d.bv.IsNA()
	case KindIntVector:
		return d.iv.IsNA()
	case KindFloatVector:
		return d.fv.IsNA()
	case KindGeoPointVector:
		return d.gv.IsNA()
	case KindTextVector:
		return d.tv.IsNA()
	default:
		return true
	}
}

func (d Datum) Bool() Bool                 { return d.b }
func (d Datum) Int() Int                   { return d.i }
func (d Datum) Float() Float               { return d.f }
func (d Datum) GeoPoint() GeoPoint         { return d.g }
func (d Datum) Text() Text                 { return d.t }
func (d Datum) BoolVector() BoolVector     { return d.bv }
func (d Datum) IntVector() IntVector       { return d.iv }
func (d Datum) FloatVector() FloatVector   { return d.fv }
func (d Datum) GeoPointVector() GeoPointVector { return d.gv }
func (d Datum) TextVector() TextVector     { return d.tv }

// NAOfKind returns the N/A datum typed to kind; kind KindNA yields the
// untyped NA().
func NAOfKind(kind Kind) Datum {
	switch kind {
	case KindBool:
		return FromBool(BoolNA)
	case KindInt:
		return FromInt(IntNA)
	case KindFloat:
		return FromFloat(NAFloat())
	case KindGeoPoint:
		return FromGeoPoint(NAGeoPoint())
	case KindText:
		return FromText(NAText())
	case KindBoolVector:
		return FromBoolVector(NABoolVector())
	case KindIntVector:
		return FromIntVector(NAIntVector())
	case KindFloatVector:
		return FromFloatVector(NAFloatVector())
	case KindGeoPointVector:
		return FromGeoPointVector(NAGeoPointVector())
	case KindTextVector:
		return FromTextVector(NATextVector())
	default:
		return NA()
	}
}

// Match is the reflexive, NA-identifying equality used by indexes and
// find_one. Datums of different kinds match only when both are N/A, so
// an untyped NA() matches any NA datum of any kind.
func (d Datum) Match(o Datum) bool {
	if d.kind != o.kind {
		if d.IsNA() && o.IsNA() {
			return true
		}
		return false
	}
	switch d.kind {
	case KindNA:
		return true
	case KindBool:
		return d.b.Match(o.b)
	case KindInt:
		return d.i.Match(o.i)
	case KindFloat:
		return d.f.Match(o.f)
	case KindGeoPoint:
		return d.g.Match(o.g)
	case KindText:
		return d.t.Match(o.t)
	case KindBoolVector:
		return d.bv.Match(o.bv)
	case KindIntVector:
		return d.iv.Match(o.iv)
	case KindFloatVector:
		return d.fv.Match(o.fv)
	case KindGeoPointVector:
		return d.gv.Match(o.gv)
	case KindTextVector:
		return d.tv.Match(o.tv)
	default:
		return false
	}
}
