package exec

import (
	"fmt"
	"strconv"

	"github.com/cuemby/polydb/pkg/value"
)

// PartKind selects how one segment of an Idiom addresses its target.
type PartKind int

const (
	// PartField addresses a named object field.
	PartField PartKind = iota
	// PartIndex addresses a numeric array element.
	PartIndex
	// PartAll addresses every element of an Object or Array.
	PartAll
)

// Part is one segment of an Idiom, e.g. the "b" or "[0]" in "a.b[0].c".
type Part struct {
	Kind  PartKind
	Field string
	Index int
}

// Idiom is a field path: a.b[0].c decomposes into
// [Field("a"), Field("b"), Index(0), Field("c")].
type Idiom []Part

func (p Part) String() string {
	switch p.Kind {
	case PartIndex:
		return "[" + strconv.Itoa(p.Index) + "]"
	case PartAll:
		return "[*]"
	default:
		return p.Field
	}
}

// Get resolves the idiom against v, returning value.None{} (IsNone) if
// any segment is absent. PartAll returns an Array collecting every
// matching element's own remaining-path resolution.
func (id Idiom) Get(v value.Value) value.Value {
	cur := v
	for i, part := range id {
		switch part.Kind {
		case PartField:
			next, ok := cur.Field(part.Field)
			if !ok {
				return value.None()
			}
			cur = next
		case PartIndex:
			arr, ok := cur.AsArray()
			if !ok || part.Index < 0 || part.Index >= len(arr) {
				return value.None()
			}
			cur = arr[part.Index]
		case PartAll:
			rest := id[i+1:]
			switch cur.Kind() {
			case value.KindArray:
				arr, _ := cur.AsArray()
				out := make([]value.Value, len(arr))
				for j, el := range arr {
					out[j] = rest.Get(el)
				}
				return value.Array(out)
			case value.KindObject:
				keys := cur.ObjectKeys()
				out := make([]value.Value, 0, len(keys))
				for _, k := range keys {
					el, _ := cur.Field(k)
					out = append(out, rest.Get(el))
				}
				return value.Array(out)
			default:
				return value.None()
			}
		}
	}
	return cur
}

// PhysicalExpr is evaluated once per row by Filter, and is the basis
// any richer query-language expression tree would compile down to.
type PhysicalExpr interface {
	Eval(row value.Value) (value.Value, error)
	String() string
}

// FieldExpr resolves an Idiom against the row.
type FieldExpr struct{ Path Idiom }

func (e FieldExpr) Eval(row value.Value) (value.Value, error) { return e.Path.Get(row), nil }
func (e FieldExpr) String() string {
	s := ""
	for i, p := range e.Path {
		if i > 0 && p.Kind == PartField {
			s += "."
		}
		s += p.String()
	}
	return s
}

// LiteralExpr always evaluates to a fixed value.
type LiteralExpr struct{ Value value.Value }

func (e LiteralExpr) Eval(value.Value) (value.Value, error) { return e.Value, nil }
func (e LiteralExpr) String() string                        { return "<literal>" }

// CompareOp is the comparison a CompareExpr applies.
type CompareOp int

const (
	CmpEqual CompareOp = iota
	CmpNotEqual
	CmpLess
	CmpLessOrEqual
	CmpGreater
	CmpGreaterOrEqual
)

// CompareExpr evaluates Left and Right and compares them with Op.
type CompareExpr struct {
	Op          CompareOp
	Left, Right PhysicalExpr
}

func (e CompareExpr) String() string { return fmt.Sprintf("(%s %d %s)", e.Left, e.Op, e.Right) }

func (e CompareExpr) Eval(row value.Value) (value.Value, error) {
	l, err := e.Left.Eval(row)
	if err != nil {
		return value.None(), fmt.Errorf("%s: %w", e, err)
	}
	r, err := e.Right.Eval(row)
	if err != nil {
		return value.None(), fmt.Errorf("%s: %w", e, err)
	}
	switch e.Op {
	case CmpEqual:
		return value.Bool(value.Equal(l, r)), nil
	case CmpNotEqual:
		return value.Bool(!value.Equal(l, r)), nil
	default:
		lf, lok := numeric(l)
		rf, rok := numeric(r)
		if !lok || !rok {
			return value.Bool(false), nil
		}
		switch e.Op {
		case CmpLess:
			return value.Bool(lf < rf), nil
		case CmpLessOrEqual:
			return value.Bool(lf <= rf), nil
		case CmpGreater:
			return value.Bool(lf > rf), nil
		case CmpGreaterOrEqual:
			return value.Bool(lf >= rf), nil
		default:
			return value.None(), fmt.Errorf("%s: unknown comparison operator %d", e, e.Op)
		}
	}
}

func numeric(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInt:
		n, _ := v.AsInt()
		return float64(n), true
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, true
	default:
		return 0, false
	}
}

// AndExpr/OrExpr/NotExpr compose boolean PhysicalExprs, short-circuiting
// left to right.
type AndExpr struct{ Left, Right PhysicalExpr }

func (e AndExpr) String() string { return fmt.Sprintf("(%s AND %s)", e.Left, e.Right) }
func (e AndExpr) Eval(row value.Value) (value.Value, error) {
	l, err := e.Left.Eval(row)
	if err != nil {
		return value.None(), err
	}
	if !l.Truthy() {
		return value.Bool(false), nil
	}
	r, err := e.Right.Eval(row)
	if err != nil {
		return value.None(), err
	}
	return value.Bool(r.Truthy()), nil
}

type OrExpr struct{ Left, Right PhysicalExpr }

func (e OrExpr) String() string { return fmt.Sprintf("(%s OR %s)", e.Left, e.Right) }
func (e OrExpr) Eval(row value.Value) (value.Value, error) {
	l, err := e.Left.Eval(row)
	if err != nil {
		return value.None(), err
	}
	if l.Truthy() {
		return value.Bool(true), nil
	}
	r, err := e.Right.Eval(row)
	if err != nil {
		return value.None(), err
	}
	return value.Bool(r.Truthy()), nil
}

type NotExpr struct{ Inner PhysicalExpr }

func (e NotExpr) String() string { return fmt.Sprintf("(NOT %s)", e.Inner) }
func (e NotExpr) Eval(row value.Value) (value.Value, error) {
	v, err := e.Inner.Eval(row)
	if err != nil {
		return value.None(), err
	}
	return value.Bool(!v.Truthy()), nil
}
