// Package expr implements the postfix-built, typed expression engine:
// Builder accumulates atoms and operators with arity/type checks at push
// time; Expression evaluates the resulting program over record batches in
// filter, adjust or evaluate mode.
//
// The runtime representation — a flat instruction stream over a constant
// pool, interpreted by a small stack machine — is the same shape as the
// teacher's bytecode virtual machine, retargeted from scripting values to
// the closed value.Datum set and from per-instruction scalars to
// per-block Datum slices, so one instruction processes a whole batch.
package expr

import (
	"strand/internal/column"
	"strand/internal/dberrors"
	"strand/internal/record"
	"strand/internal/table"
	"strand/internal/value"
)

// BlockSize bounds the scratch buffer used by Filter/Adjust/Evaluate: a
// record batch larger than this is processed in consecutive sub-batches.
const BlockSize = 1024

type opcode uint8

const (
	opConstant opcode = iota
	opRowID
	opScore
	opColumn

	opNot
	opBitNotBool
	opBitNotInt
	opPosInt
	opPosFloat
	opNegInt
	opNegFloat

	opAnd
	opOr
	opXor

	opEq
	opNeq
	opLt
	opLe
	opGt
	opGe

	opBitAndBool
	opBitOrBool
	opBitXorBool
	opBitAndInt
	opBitOrInt
	opBitXorInt
	opShl
	opShr
	opShrLogical

	opAddInt
	opSubInt
	opMulInt
	opDivInt
	opModInt
	opAddFloat
	opSubFloat
	opMulFloat
	opDivFloat
	opModFloat
)

type instruction struct {
	op  opcode
	arg int
}

// Expression is an immutable, compiled postfix program.
type Expression struct {
	program   []instruction
	constants []value.Datum
	columns   []*column.Column
	result    value.Kind
}

func (e *Expression) BlockSize() int { return BlockSize }

// Result returns the value.Kind the expression evaluates to.
func (e *Expression) Result() value.Kind { return e.result }

// IsRowIDProjection reports whether the expression is exactly the bare
// row_id atom, letting callers (the sorter) skip Evaluate and read
// record.Record.RowID directly.
func (e *Expression) IsRowIDProjection() bool {
	return len(e.program) == 1 && e.program[0].op == opRowID
}

// IsScoreProjection reports whether the expression is exactly the bare
// score atom, letting callers (the sorter) skip Evaluate and read
// record.Record.Score directly.
func (e *Expression) IsScoreProjection() bool {
	return len(e.program) == 1 && e.program[0].op == opScore
}

// Builder accumulates a postfix program, type-checking every push. A
// parallel type stack mirrors the runtime value stack so arity and kind
// mismatches are caught at build time instead of at evaluation.
type Builder struct {
	t         *table.Table
	program   []instruction
	constants []value.Datum
	columns   []*column.Column
	types     []value.Kind
	frames    []int // stack depths recorded by BeginSubexpression
	err       error
}

// NewBuilder returns a Builder whose column() atoms resolve against t.
func NewBuilder(t *table.Table) *Builder {
	return &Builder{t: t}
}

func (b *Builder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return err
}

func (b *Builder) push(k value.Kind) { b.types = append(b.types, k) }

func (b *Builder) pop() (value.Kind, error) {
	if len(b.types) == 0 {
		return value.KindNA, dberrors.New(dberrors.MalformedExpression, "Builder", "operator applied to an empty stack")
	}
	k := b.types[len(b.types)-1]
	b.types = b.types[:len(b.types)-1]
	return k, nil
}

// Constant pushes a literal datum.
func (b *Builder) Constant(d value.Datum) {
	b.constants = append(b.constants, d)
	b.program = append(b.program, instruction{op: opConstant, arg: len(b.constants) - 1})
	b.push(d.Kind())
}

// RowID pushes the record's row-ID as an Int.
func (b *Builder) RowID() {
	b.program = append(b.program, instruction{op: opRowID})
	b.push(value.KindInt)
}

// Score pushes the record's score as a Float.
func (b *Builder) Score() {
	b.program = append(b.program, instruction{op: opScore})
	b.push(value.KindFloat)
}

// Column pushes name's per-record value, resolved against the Builder's
// table. "_score" is accepted as an alias for Score() (see DESIGN.md).
func (b *Builder) Column(name string) error {
	if name == "_score" {
		b.Score()
		return nil
	}
	col, ok := b.t.FindColumn(name)
	if !ok {
		return b.fail(dberrors.New(dberrors.NotFound, "Builder.Column", "table %q has no column named %q", b.t.Name(), name))
	}
	b.columns = append(b.columns, col)
	b.program = append(b.program, instruction{op: opColumn, arg: len(b.columns) - 1})
	b.push(col.Kind())
	return nil
}

func (b *Builder) typeError(op string, got ...value.Kind) error {
	return b.fail(dberrors.New(dberrors.TypeError, "Builder."+op, "unexpected operand kind(s) %v", got))
}

// BeginSubexpression marks the current stack depth; EndSubexpression
// checks exactly one value was produced since the matching Begin. The
// closed operator set has no variadic operator, so this pair is pure
// Builder-side bracket hygiene, not part of the emitted program.
func (b *Builder) BeginSubexpression() {
	b.frames = append(b.frames, len(b.types))
}

func (b *Builder) EndSubexpression() error {
	if len(b.frames) == 0 {
		return b.fail(dberrors.New(dberrors.MalformedExpression, "Builder.EndSubexpression", "no matching BeginSubexpression"))
	}
	mark := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	if len(b.types) != mark+1 {
		return b.fail(dberrors.New(dberrors.MalformedExpression, "Builder.EndSubexpression", "subexpression must leave exactly one value on the stack"))
	}
	return nil
}

// Not is logical negation: Bool -> Bool.
func (b *Builder) Not() error {
	k, err := b.pop()
	if err != nil {
		return b.fail(err)
	}
	if k != value.KindBool {
		return b.typeError("Not", k)
	}
	b.program = append(b.program, instruction{op: opNot})
	b.push(value.KindBool)
	return nil
}

// BitNot is bitwise complement: Bool -> Bool, Int -> Int.
func (b *Builder) BitNot() error {
	k, err := b.pop()
	if err != nil {
		return b.fail(err)
	}
	switch k {
	case value.KindBool:
		b.program = append(b.program, instruction{op: opBitNotBool})
	case value.KindInt:
		b.program = append(b.program, instruction{op: opBitNotInt})
	default:
		return b.typeError("BitNot", k)
	}
	b.push(k)
	return nil
}

// Pos is unary plus: Int -> Int, Float -> Float (a type-checking no-op
// numerically, kept so the operator set mirrors Neg).
func (b *Builder) Pos() error {
	k, err := b.pop()
	if err != nil {
		return b.fail(err)
	}
	switch k {
	case value.KindInt:
		b.program = append(b.program, instruction{op: opPosInt})
	case value.KindFloat:
		b.program = append(b.program, instruction{op: opPosFloat})
	default:
		return b.typeError("Pos", k)
	}
	b.push(k)
	return nil
}

// Neg is unary negation: Int -> Int, Float -> Float.
func (b *Builder) Neg() error {
	k, err := b.pop()
	if err != nil {
		return b.fail(err)
	}
	switch k {
	case value.KindInt:
		b.program = append(b.program, instruction{op: opNegInt})
	case value.KindFloat:
		b.program = append(b.program, instruction{op: opNegFloat})
	default:
		return b.typeError("Neg", k)
	}
	b.push(k)
	return nil
}

func (b *Builder) popBinary(op string) (value.Kind, value.Kind, error) {
	r, err := b.pop()
	if err != nil {
		return value.KindNA, value.KindNA, b.fail(err)
	}
	l, err := b.pop()
	if err != nil {
		return value.KindNA, value.KindNA, b.fail(err)
	}
	if l != r {
		return l, r, b.typeError(op, l, r)
	}
	return l, r, nil
}

// And, Or, Xor are Kleene-logic binary operators: Bool, Bool -> Bool.
func (b *Builder) And() error { return b.logical(opAnd, "And") }
func (b *Builder) Or() error  { return b.logical(opOr, "Or") }
func (b *Builder) Xor() error { return b.logical(opXor, "Xor") }

func (b *Builder) logical(op opcode, name string) error {
	l, _, err := b.popBinary(name)
	if err != nil {
		return err
	}
	if l != value.KindBool {
		return b.typeError(name, l)
	}
	b.program = append(b.program, instruction{op: op})
	b.push(value.KindBool)
	return nil
}

// Eq, Neq, Lt, Le, Gt, Ge compare two same-kind scalars and push Bool;
// N/A on either side propagates to N/A rather than false.
func (b *Builder) Eq() error { return b.compare(opEq, "Eq") }
func (b *Builder) Neq() error { return b.compare(opNeq, "Neq") }
func (b *Builder) Lt() error { return b.compare(opLt, "Lt") }
func (b *Builder) Le() error { return b.compare(opLe, "Le") }
func (b *Builder) Gt() error { return b.compare(opGt, "Gt") }
func (b *Builder) Ge() error { return b.compare(opGe, "Ge") }

func (b *Builder) compare(op opcode, name string) error {
	l, _, err := b.popBinary(name)
	if err != nil {
		return err
	}
	if l.IsVector() {
		return b.typeError(name, l)
	}
	b.program = append(b.program, instruction{op: op})
	b.push(value.KindBool)
	return nil
}

// BitAnd, BitOr, BitXor: Bool,Bool->Bool or Int,Int->Int.
func (b *Builder) BitAnd() error { return b.bitwise("BitAnd", opBitAndBool, opBitAndInt) }
func (b *Builder) BitOr() error  { return b.bitwise("BitOr", opBitOrBool, opBitOrInt) }
func (b *Builder) BitXor() error { return b.bitwise("BitXor", opBitXorBool, opBitXorInt) }

func (b *Builder) bitwise(name string, boolOp, intOp opcode) error {
	l, _, err := b.popBinary(name)
	if err != nil {
		return err
	}
	switch l {
	case value.KindBool:
		b.program = append(b.program, instruction{op: boolOp})
	case value.KindInt:
		b.program = append(b.program, instruction{op: intOp})
	default:
		return b.typeError(name, l)
	}
	b.push(l)
	return nil
}

// Shl, Shr, ShrLogical: Int, Int -> Int.
func (b *Builder) Shl() error         { return b.shift(opShl, "Shl") }
func (b *Builder) Shr() error         { return b.shift(opShr, "Shr") }
func (b *Builder) ShrLogical() error  { return b.shift(opShrLogical, "ShrLogical") }

func (b *Builder) shift(op opcode, name string) error {
	l, _, err := b.popBinary(name)
	if err != nil {
		return err
	}
	if l != value.KindInt {
		return b.typeError(name, l)
	}
	b.program = append(b.program, instruction{op: op})
	b.push(value.KindInt)
	return nil
}

// Add, Sub, Mul, Div, Mod: Int,Int->Int or Float,Float->Float.
func (b *Builder) Add() error { return b.arith("Add", opAddInt, opAddFloat) }
func (b *Builder) Sub() error { return b.arith("Sub", opSubInt, opSubFloat) }
func (b *Builder) Mul() error { return b.arith("Mul", opMulInt, opMulFloat) }
func (b *Builder) Div() error { return b.arith("Div", opDivInt, opDivFloat) }
func (b *Builder) Mod() error { return b.arith("Mod", opModInt, opModFloat) }

func (b *Builder) arith(name string, intOp, floatOp opcode) error {
	l, _, err := b.popBinary(name)
	if err != nil {
		return err
	}
	switch l {
	case value.KindInt:
		b.program = append(b.program, instruction{op: intOp})
	case value.KindFloat:
		b.program = append(b.program, instruction{op: floatOp})
	default:
		return b.typeError(name, l)
	}
	b.push(l)
	return nil
}

// Release validates that exactly one node remains and produces an
// immutable Expression.
func (b *Builder) Release() (*Expression, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.frames) != 0 {
		return nil, dberrors.New(dberrors.MalformedExpression, "Builder.Release", "unclosed BeginSubexpression")
	}
	if len(b.types) != 1 {
		return nil, dberrors.New(dberrors.MalformedExpression, "Builder.Release", "expression must reduce to exactly one value, has %d", len(b.types))
	}
	return &Expression{
		program:   b.program,
		constants: b.constants,
		columns:   b.columns,
		result:    b.types[0],
	}, nil
}

// evalBlock runs the program over one sub-batch, returning one Datum per
// record.
func (e *Expression) evalBlock(records record.Array) []value.Datum {
	var stack [][]value.Datum
	for _, ins := range e.program {
		switch ins.op {
		case opConstant:
			d := e.constants[ins.arg]
			batch := make([]value.Datum, len(records))
			for i := range batch {
				batch[i] = d
			}
			stack = append(stack, batch)
		case opRowID:
			batch := make([]value.Datum, len(records))
			for i, r := range records {
				batch[i] = value.FromInt(value.Int(r.RowID))
			}
			stack = append(stack, batch)
		case opScore:
			batch := make([]value.Datum, len(records))
			for i, r := range records {
				batch[i] = value.FromFloat(value.Float(r.Score))
			}
			stack = append(stack, batch)
		case opColumn:
			stack = append(stack, e.columns[ins.arg].Read(records))
		default:
			stack = applyOp(stack, ins.op)
		}
	}
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

func applyOp(stack [][]value.Datum, op opcode) [][]value.Datum {
	if isUnary(op) {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return append(stack, applyUnary(op, top))
	}
	b := stack[len(stack)-1]
	a := stack[len(stack)-2]
	stack = stack[:len(stack)-2]
	return append(stack, applyBinary(op, a, b))
}

func isUnary(op opcode) bool {
	switch op {
	case opNot, opBitNotBool, opBitNotInt, opPosInt, opPosFloat, opNegInt, opNegFloat:
		return true
	default:
		return false
	}
}

func applyUnary(op opcode, in []value.Datum) []value.Datum {
	out := make([]value.Datum, len(in))
	for i, d := range in {
		switch op {
		case opNot:
			out[i] = value.FromBool(d.Bool().Not())
		case opBitNotBool:
			out[i] = value.FromBool(d.Bool().Not())
		case opBitNotInt:
			out[i] = value.FromInt(d.Int().BitNot())
		case opPosInt:
			out[i] = d
		case opPosFloat:
			out[i] = d
		case opNegInt:
			out[i] = value.FromInt(d.Int().Neg())
		case opNegFloat:
			out[i] = value.FromFloat(d.Float().Neg())
		}
	}
	return out
}

func applyBinary(op opcode, a, b []value.Datum) []value.Datum {
	n := len(a)
	out := make([]value.Datum, n)
	for i := 0; i < n; i++ {
		out[i] = applyBinaryOne(op, a[i], b[i])
	}
	return out
}

func applyBinaryOne(op opcode, a, b value.Datum) value.Datum {
	switch op {
	case opAnd:
		return value.FromBool(a.Bool().And(b.Bool()))
	case opOr:
		return value.FromBool(a.Bool().Or(b.Bool()))
	case opXor:
		return value.FromBool(a.Bool().Xor(b.Bool()))
	case opEq:
		return compareDatum(a, b, cmpEq)
	case opNeq:
		return compareDatum(a, b, cmpNeq)
	case opLt:
		return compareDatum(a, b, cmpLt)
	case opLe:
		return compareDatum(a, b, cmpLe)
	case opGt:
		return compareDatum(a, b, cmpGt)
	case opGe:
		return compareDatum(a, b, cmpGe)
	case opBitAndBool:
		return value.FromBool(a.Bool().And(b.Bool()))
	case opBitOrBool:
		return value.FromBool(a.Bool().Or(b.Bool()))
	case opBitXorBool:
		return value.FromBool(a.Bool().Xor(b.Bool()))
	case opBitAndInt:
		return bitInt(a, b, func(x, y int64) int64 { return x & y })
	case opBitOrInt:
		return bitInt(a, b, func(x, y int64) int64 { return x | y })
	case opBitXorInt:
		return bitInt(a, b, func(x, y int64) int64 { return x ^ y })
	case opShl:
		return value.FromInt(a.Int().Shl(b.Int()))
	case opShr:
		return value.FromInt(a.Int().Shr(b.Int()))
	case opShrLogical:
		return value.FromInt(a.Int().ShrLogical(b.Int()))
	case opAddInt:
		return value.FromInt(a.Int().Add(b.Int()))
	case opSubInt:
		return value.FromInt(a.Int().Sub(b.Int()))
	case opMulInt:
		return value.FromInt(a.Int().Mul(b.Int()))
	case opDivInt:
		return value.FromInt(a.Int().Div(b.Int()))
	case opModInt:
		return value.FromInt(a.Int().Mod(b.Int()))
	case opAddFloat:
		return value.FromFloat(a.Float().Add(b.Float()))
	case opSubFloat:
		return value.FromFloat(a.Float().Sub(b.Float()))
	case opMulFloat:
		return value.FromFloat(a.Float().Mul(b.Float()))
	case opDivFloat:
		return value.FromFloat(a.Float().Div(b.Float()))
	case opModFloat:
		return value.FromFloat(a.Float().Mod(b.Float()))
	default:
		return value.NA()
	}
}

func bitInt(a, b value.Datum, f func(int64, int64) int64) value.Datum {
	if a.IsNA() || b.IsNA() {
		return value.FromInt(value.IntNA)
	}
	return value.FromInt(value.Int(f(int64(a.Int()), int64(b.Int()))))
}

type cmpKind int

const (
	cmpEq cmpKind = iota
	cmpNeq
	cmpLt
	cmpLe
	cmpGt
	cmpGe
)

// compareDatum implements ==, !=, <, <=, >, >= with N/A propagation
// (distinct from Datum.Match's NA-reflexive equality): either side N/A
// yields Bool N/A.
func compareDatum(a, b value.Datum, kind cmpKind) value.Datum {
	if a.IsNA() || b.IsNA() {
		return value.FromBool(value.BoolNA)
	}
	var eq, lt bool
	switch a.Kind() {
	case value.KindBool:
		eq = a.Bool() == b.Bool()
		lt = a.Bool().Less(b.Bool())
	case value.KindInt:
		eq = a.Int() == b.Int()
		lt = a.Int().Less(b.Int())
	case value.KindFloat:
		eq = a.Float().Equal(b.Float())
		lt = a.Float().Less(b.Float())
	case value.KindGeoPoint:
		eq = a.GeoPoint() == b.GeoPoint()
		lt = a.GeoPoint().Less(b.GeoPoint())
	case value.KindText:
		eq = a.Text().Compare(b.Text()) == 0
		lt = a.Text().Less(b.Text())
	default:
		eq = a.Match(b)
	}
	var result bool
	switch kind {
	case cmpEq:
		result = eq
	case cmpNeq:
		result = !eq
	case cmpLt:
		result = lt
	case cmpLe:
		result = lt || eq
	case cmpGt:
		result = !lt && !eq
	case cmpGe:
		result = !lt
	}
	if result {
		return value.FromBool(value.BoolTrue)
	}
	return value.FromBool(value.BoolFalse)
}

func forEachBlock(records record.Array, fn func(block record.Array, offset int)) {
	for off := 0; off < len(records); off += BlockSize {
		end := off + BlockSize
		if end > len(records) {
			end = len(records)
		}
		fn(records[off:end], off)
	}
}

// Filter keeps records for which the expression evaluates to true,
// skipping offset initial keeps and capping the kept count at limit.
func (e *Expression) Filter(records record.Array, offset, limit uint64) record.Array {
	if e.result != value.KindBool {
		return nil
	}
	var out record.Array
	forEachBlock(records, func(block record.Array, _ int) {
		if limit == 0 {
			return
		}
		results := e.evalBlock(block)
		for i, d := range results {
			if !d.Bool().IsTrue() {
				continue
			}
			if offset > 0 {
				offset--
				continue
			}
			if limit == 0 {
				return
			}
			out = append(out, block[i])
			limit--
		}
	})
	return out
}

// Adjust evaluates the expression as Float and assigns it to each
// record's score, in place.
func (e *Expression) Adjust(records record.Array) {
	if e.result != value.KindFloat {
		return
	}
	forEachBlock(records, func(block record.Array, offset int) {
		results := e.evalBlock(block)
		for i, d := range results {
			records[offset+i].Score = float64(d.Float())
		}
	})
}

// Evaluate computes the expression over every record, returning one
// Datum per record.
func (e *Expression) Evaluate(records record.Array) []value.Datum {
	out := make([]value.Datum, 0, len(records))
	forEachBlock(records, func(block record.Array, _ int) {
		out = append(out, e.evalBlock(block)...)
	})
	return out
}
