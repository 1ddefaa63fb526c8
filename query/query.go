// Package query implements the query engine of §4.H: a postfix Query
// over named-variable range constraints, evaluated partition by
// partition against an IndexIOCache, producing a QueryCursor that
// yields one result region per partition visited. Grounded on
// original_source/include/pique/query/query.hpp (the Query/
// ConstraintTerm/operator-term data model) and
// original_source/include/pique/query/simple-query-engine.hpp (the
// per-partition algorithm).
package query

import (
	"errors"
	"fmt"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/setops"
)

// ErrMalformedQuery is a Configuration-kind error (§7): the postfix
// term sequence did not reduce to exactly one result, or an operator
// term's arity exceeded the operands available on the stack.
var ErrMalformedQuery = errors.New("query: malformed postfix term sequence")

// TermKind tags the three Query term variants, mirroring
// query.hpp's QueryTerm subclasses.
type TermKind int

const (
	ConstraintTermKind TermKind = iota
	UnaryOpTermKind
	NAryOpTermKind
)

// Term is one entry of a postfix Query: a named-variable range
// constraint, a unary set operation applied to the term below it, or
// an n-ary set operation consuming Arity terms below it.
type Term struct {
	Kind TermKind

	// ConstraintTerm fields.
	Varname string
	Lower   binning.Bound
	Upper   binning.Bound

	// UnaryOpTerm / NAryOpTerm fields.
	Unary setops.UnaryOp
	Nary  setops.Op
	Arity int
}

// Constraint builds a ConstraintTerm: "Varname in [lb, ub)", mirroring
// query.hpp's ConstraintTerm(varname, lower_bound, upper_bound).
func Constraint(varname string, lb, ub binning.Bound) Term {
	return Term{Kind: ConstraintTermKind, Varname: varname, Lower: lb, Upper: ub}
}

// Unary builds a UnaryOperatorTerm, currently only NOT.
func Unary(op setops.UnaryOp) Term {
	return Term{Kind: UnaryOpTermKind, Unary: op}
}

// NAry builds an NAryOperatorTerm consuming arity operands.
func NAry(op setops.Op, arity int) Term {
	return Term{Kind: NAryOpTermKind, Nary: op, Arity: arity}
}

// Query is a postfix sequence of Terms, mirroring query.hpp's
// Query : public std::vector<shared_ptr<QueryTerm>>.
type Query []Term

// Variables returns the distinct variable names referenced by any
// ConstraintTerm in q, used by the per-partition algorithm's open step
// (§4.H step 1: "open the union of index partitions referenced by
// every variable appearing in the query").
func (q Query) Variables() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range q {
		if t.Kind == ConstraintTermKind {
			if _, ok := seen[t.Varname]; !ok {
				seen[t.Varname] = struct{}{}
				out = append(out, t.Varname)
			}
		}
	}
	return out
}

// validate walks q as a stack-depth simulation without evaluating
// anything, confirming the postfix sequence reduces to exactly one
// result and every operator has enough operands below it.
func (q Query) validate() error {
	depth := 0
	for _, t := range q {
		switch t.Kind {
		case ConstraintTermKind:
			depth++
		case UnaryOpTermKind:
			if depth < 1 {
				return fmt.Errorf("%w: unary op with no operand", ErrMalformedQuery)
			}
		case NAryOpTermKind:
			if t.Arity < 1 || depth < t.Arity {
				return fmt.Errorf("%w: n-ary op of arity %d with %d operands available", ErrMalformedQuery, t.Arity, depth)
			}
			depth -= t.Arity - 1
		}
	}
	if depth != 1 {
		return fmt.Errorf("%w: postfix sequence reduces to %d results, want 1", ErrMalformedQuery, depth)
	}
	return nil
}
