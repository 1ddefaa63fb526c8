// Package regionmath implements RegionMath (§4.B/4.E): a postfix
// sequence of terms over stored region IDs, and the stack evaluator
// that turns such a sequence, plus a region reader, into a concrete
// region.Region. Grounded on
// original_source/include/pique/encoding/region-math.hpp and
// src/encoding/region-math.cpp.
package regionmath

import (
	"errors"
	"fmt"

	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/setops"
)

// ErrStackUnderflow is an Arithmetic-kind error (§7): a term popped more
// operands than the stack held.
var ErrStackUnderflow = errors.New("regionmath: stack underflow")

// ErrNotSingleResult is an Arithmetic-kind error: after evaluating every
// term the stack did not contain exactly one result.
var ErrNotSingleResult = errors.New("regionmath: postfix sequence did not reduce to a single result")

// TermKind tags the three RegionMath term variants.
type TermKind int

const (
	RegionTermKind TermKind = iota
	UnaryOpTermKind
	NAryOpTermKind
)

// Term is one postfix entry: a region reference, a unary op, or an
// n-ary op consuming `Arity` operands from the stack.
type Term struct {
	Kind  TermKind
	RID   region.RID
	Unary setops.UnaryOp
	Nary  setops.Op
	Arity int
}

func RegionTerm(rid region.RID) Term { return Term{Kind: RegionTermKind, RID: rid} }
func UnaryTerm(op setops.UnaryOp) Term {
	return Term{Kind: UnaryOpTermKind, Unary: op}
}
func NaryTerm(op setops.Op, arity int) Term {
	return Term{Kind: NAryOpTermKind, Nary: op, Arity: arity}
}

// Expr is a RegionMath postfix expression: a sequence of Terms.
type Expr []Term

// Single returns a one-term Expr referencing only rid, mirroring the
// source's RegionMath(region_id_t only) convenience constructor.
func Single(rid region.RID) Expr { return Expr{RegionTerm(rid)} }

// PushRegion, PushRegionRange, PushUnary, and PushNary build up an Expr
// fluently, mirroring the source's push_region/push_op helpers.
func (e Expr) PushRegion(rid region.RID) Expr { return append(e, RegionTerm(rid)) }

func (e Expr) PushRegionRange(lb, ub region.RID) Expr {
	for rid := lb; rid < ub; rid++ {
		e = append(e, RegionTerm(rid))
	}
	return e
}

func (e Expr) PushUnary(op setops.UnaryOp) Expr { return append(e, UnaryTerm(op)) }

func (e Expr) PushNary(op setops.Op, arity int) Expr {
	return append(e, NaryTerm(op, arity))
}

// AllRegions returns the set of distinct RegionTerm RIDs referenced,
// mirroring get_all_regions.
func (e Expr) AllRegions() map[region.RID]struct{} {
	out := make(map[region.RID]struct{})
	for _, t := range e {
		if t.Kind == RegionTermKind {
			out[t.RID] = struct{}{}
		}
	}
	return out
}

func (e Expr) String() string {
	s := ""
	for i, t := range e {
		if i > 0 {
			s += " "
		}
		switch t.Kind {
		case RegionTermKind:
			s += fmt.Sprintf("r%d", t.RID)
		case UnaryOpTermKind:
			s += "NOT"
		case NAryOpTermKind:
			s += fmt.Sprintf("%s/%d", naryOpName(t.Nary), t.Arity)
		}
	}
	return s
}

func naryOpName(op setops.Op) string {
	switch op {
	case setops.UNION:
		return "UNION"
	case setops.INTERSECTION:
		return "INTERSECTION"
	case setops.DIFFERENCE:
		return "DIFFERENCE"
	default:
		return "SYMDIFF"
	}
}

// RegionReader lazily fetches a stored region by ID; used so that
// cost-pruned subexpressions (never evaluated) never trigger I/O.
type RegionReader func(rid region.RID) (region.Region, error)

// stackEntry tracks whether a region on the evaluation stack is the
// sole remaining reference to its value, in which case an n-ary op
// consuming it may use an in-place implementation without altering
// semantics (§4.E resource discipline).
type stackEntry struct {
	r       region.Region
	mutable bool
}

// Evaluate runs the postfix stack interpreter (§4.E): RegionTerm pushes
// a lazily-read region (mutable, since it has no other referent once
// read), UnaryOp applies op to the top of stack in place of it, NAryOp
// pops Arity operands and invokes setops.Nary, marking operands mutable
// only when every popped operand was itself marked mutable (so a
// region held elsewhere — e.g. by the cache — is never silently
// consumed by an in-place op before the semantics guarantee it's safe).
func Evaluate(expr Expr, read RegionReader) (region.Region, error) {
	var stack []stackEntry

	pop := func(n int) ([]stackEntry, error) {
		if len(stack) < n {
			return nil, ErrStackUnderflow
		}
		popped := stack[len(stack)-n:]
		stack = stack[:len(stack)-n]
		return popped, nil
	}

	for _, t := range expr {
		switch t.Kind {
		case RegionTermKind:
			r, err := read(t.RID)
			if err != nil {
				return nil, err
			}
			stack = append(stack, stackEntry{r: r, mutable: true})

		case UnaryOpTermKind:
			popped, err := pop(1)
			if err != nil {
				return nil, err
			}
			var result region.Region
			if popped[0].mutable {
				result, err = setops.InplaceUnary(popped[0].r, t.Unary)
			} else {
				result, err = setops.Unary(popped[0].r, t.Unary)
			}
			if err != nil {
				return nil, err
			}
			stack = append(stack, stackEntry{r: result, mutable: true})

		case NAryOpTermKind:
			popped, err := pop(t.Arity)
			if err != nil {
				return nil, err
			}
			operands := make([]region.Region, len(popped))
			allMutable := true
			for i, p := range popped {
				operands[i] = p.r
				if !p.mutable {
					allMutable = false
				}
			}
			var result region.Region
			if allMutable {
				result, err = setops.InplaceNary(operands, t.Nary)
			} else {
				result, err = setops.Nary(operands, t.Nary)
			}
			if err != nil {
				return nil, err
			}
			stack = append(stack, stackEntry{r: result, mutable: true})
		}
	}

	if len(stack) != 1 {
		return nil, ErrNotSingleResult
	}
	return stack[0].r, nil
}
