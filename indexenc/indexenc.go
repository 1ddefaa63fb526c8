// Package indexenc implements the index-encoding schemes of §4.D:
// EQUALITY, RANGE, HIERARCHICAL, BINARY_COMPONENT, INTERVAL. Each
// scheme maps nbins quantizer bins onto a (usually smaller) set of
// stored regions and answers a bin-range query by producing a
// regionmath.Expr over those stored region IDs. Grounded on
// original_source/src/encoding/*/*-encoding.cpp.
package indexenc

import (
	"errors"

	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/regionmath"
)

// Type tags the five index-encoding schemes.
type Type int

const (
	EQUALITY Type = iota
	RANGE
	HIERARCHICAL
	BINARY_COMPONENT
	INTERVAL
)

var typeNames = map[Type]string{
	EQUALITY:         "EQUALITY",
	RANGE:            "RANGE",
	HIERARCHICAL:     "HIERARCHICAL",
	BINARY_COMPONENT: "BINARY_COMPONENT",
	INTERVAL:         "INTERVAL",
}

func (t Type) String() string { return typeNames[t] }

var namesToType = func() map[string]Type {
	out := make(map[string]Type, len(typeNames))
	for t, n := range typeNames {
		out[n] = t
	}
	return out
}()

// TypeByName resolves a catalog/CLI-supplied scheme name (case as
// written in typeNames, e.g. "EQUALITY") back to its Type, the
// name-driven construction the bySchemeType registry comment
// anticipates.
func TypeByName(name string) (Type, bool) {
	t, ok := namesToType[name]
	return t, ok
}

// ErrInvalidBinRange is a Configuration-kind error (§7): lb/ub fall
// outside [0, nbins] or lb > ub.
var ErrInvalidBinRange = errors.New("indexenc: invalid bin range")

// Scheme is one index-encoding implementation.
type Scheme interface {
	Type() Type
	// NumRegions returns the number of stored regions this scheme
	// produces for a binning spec with nbins finite bins.
	NumRegions(nbins int) int
	// EncodedRegionDefinitions returns, for each stored region (in
	// order), the list of bin IDs it is the union of. Used at build
	// time to fold flat per-bin regions into the scheme's stored
	// regions.
	EncodedRegionDefinitions(nbins int) [][]int
	// RangeQuery returns the RegionMath answering the half-open bin
	// predicate [lb, ub), optionally the complement-based alternative.
	// Schemes that have no useful complement alternative (RANGE) ignore
	// preferComplement. Precondition: the trivial cases
	// (lb==0 && ub==nbins, and lb==ub) are handled by the caller (§4.H
	// step 2) before a scheme is ever consulted.
	RangeQuery(nbins, lb, ub int, preferComplement bool) (regionmath.Expr, error)
	// HasComplementAlternative reports whether calling RangeQuery with
	// preferComplement=true yields a genuinely different plan worth
	// costing against the non-complement plan. EQUALITY and INTERVAL
	// report true; RANGE, HIERARCHICAL and BINARY_COMPONENT produce one
	// plan per (lb, ub) and report false.
	HasComplementAlternative() bool
}

func validateBinRange(nbins, lb, ub int) error {
	if lb < 0 || ub > nbins || lb > ub {
		return ErrInvalidBinRange
	}
	return nil
}

// bySchemeType is the registry backing a name/config-driven construction
// at catalog-load time.
var bySchemeType = map[Type]func() Scheme{
	EQUALITY:         func() Scheme { return Equality{} },
	RANGE:            func() Scheme { return Range{} },
	HIERARCHICAL:     func() Scheme { return Hierarchical{} },
	BINARY_COMPONENT: func() Scheme { return BinaryComponent{} },
	INTERVAL:         func() Scheme { return Interval{} },
}

// New constructs the Scheme for t.
func New(t Type) (Scheme, error) {
	ctor, ok := bySchemeType[t]
	if !ok {
		return nil, ErrInvalidBinRange
	}
	return ctor(), nil
}

func rid(i int) region.RID { return region.RID(i) }
