package query

import (
	"testing"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/setops"
)

func TestVariablesDeduplicatesAndPreservesOrder(t *testing.T) {
	q := Query{
		Constraint("b", binning.NegInf(), binning.PosInf()),
		Constraint("a", binning.NegInf(), binning.PosInf()),
		Constraint("b", binning.At(1), binning.At(2)),
		NAry(setops.UNION, 2),
		NAry(setops.INTERSECTION, 2),
	}
	got := q.Variables()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("Variables() = %v, want [b a]", got)
	}
}

func TestValidateAcceptsWellFormedQueries(t *testing.T) {
	cases := []Query{
		{Constraint("v", binning.NegInf(), binning.PosInf())},
		{
			Constraint("v", binning.NegInf(), binning.At(1)),
			Constraint("v", binning.At(1), binning.PosInf()),
			NAry(setops.UNION, 2),
		},
		{
			Constraint("v", binning.NegInf(), binning.At(1)),
			Unary(setops.NOT),
		},
		{
			Constraint("a", binning.NegInf(), binning.At(1)),
			Constraint("b", binning.NegInf(), binning.At(1)),
			Constraint("c", binning.NegInf(), binning.At(1)),
			NAry(setops.UNION, 3),
			Unary(setops.NOT),
		},
	}
	for i, q := range cases {
		if err := q.validate(); err != nil {
			t.Errorf("case %d: validate() = %v, want nil", i, err)
		}
	}
}

func TestValidateRejectsMalformedQueries(t *testing.T) {
	cases := []Query{
		{}, // empty
		{
			Constraint("v", binning.NegInf(), binning.At(1)),
			Constraint("v", binning.At(1), binning.PosInf()),
		}, // two results left on the stack, no combine
		{
			Unary(setops.NOT),
		}, // unary with nothing below it
		{
			Constraint("v", binning.NegInf(), binning.At(1)),
			NAry(setops.UNION, 2),
		}, // arity exceeds available operands
	}
	for i, q := range cases {
		if err := q.validate(); err == nil {
			t.Errorf("case %d: validate() = nil, want an error", i)
		}
	}
}
