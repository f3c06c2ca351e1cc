package cabal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a package version: a non-empty sequence of non-negative
// integers, compared lexicographically. Shorter sequences sort before
// their extensions, so 1.2 < 1.2.0 < 1.3.
type Version []int

// NewVersion constructs a Version from integer components. It panics if
// no components are given or any is negative; use ParseVersion for
// untrusted input.
func NewVersion(parts ...int) Version {
	if len(parts) == 0 {
		panic("version must have at least one component")
	}
	for _, p := range parts {
		if p < 0 {
			panic("version components must be non-negative")
		}
	}
	v := make(Version, len(parts))
	copy(v, parts)
	return v
}

// ParseVersion parses a dotted version string, e.g. "1.2.3".
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return nil, errors.New("empty version string")
	}
	segs := strings.Split(s, ".")
	v := make(Version, len(segs))
	for i, seg := range segs {
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 {
			return nil, errors.Errorf("malformed version string %q", s)
		}
		v[i] = n
	}
	return v, nil
}

func (v Version) String() string {
	segs := make([]string, len(v))
	for i, n := range v {
		segs[i] = strconv.Itoa(n)
	}
	return strings.Join(segs, ".")
}

// Compare returns -1, 0 or 1 as v sorts before, equal to, or after o.
func (v Version) Compare(o Version) int {
	for i := 0; i < len(v) && i < len(o); i++ {
		switch {
		case v[i] < o[i]:
			return -1
		case v[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(v) < len(o):
		return -1
	case len(v) > len(o):
		return 1
	}
	return 0
}

// majorUpperBound is the exclusive upper bound implied by a
// major-bounded range on v: the first two components with the last of
// them incremented. A single-component version has its sole component
// incremented.
func (v Version) majorUpperBound() Version {
	if len(v) == 1 {
		return Version{v[0] + 1}
	}
	return Version{v[0], v[1] + 1}
}

type rangeOp uint8

const (
	rAny rangeOp = iota
	rNone
	rEq
	rAtLeast
	rBefore
	rMajor
	rUnion
	rIsect
	rCompl
)

// VersionRange is a total predicate over versions: a boolean combination
// of the primitive ranges ==V, >=V, <V and ^>=V (major-bounded). The
// empty range is representable and admits nothing. Ranges are immutable
// after construction; intersection and union build structure rather
// than evaluating eagerly.
type VersionRange struct {
	op   rangeOp
	v    Version
	a, b *VersionRange
}

// AnyVersion admits every version.
func AnyVersion() VersionRange { return VersionRange{op: rAny} }

// EmptyRange admits no version.
func EmptyRange() VersionRange { return VersionRange{op: rNone} }

// Exactly admits only v.
func Exactly(v Version) VersionRange { return VersionRange{op: rEq, v: v} }

// AtLeast admits versions >= v.
func AtLeast(v Version) VersionRange { return VersionRange{op: rAtLeast, v: v} }

// Before admits versions < v.
func Before(v Version) VersionRange { return VersionRange{op: rBefore, v: v} }

// WithinMajor admits versions >= v below v's major upper bound.
func WithinMajor(v Version) VersionRange { return VersionRange{op: rMajor, v: v} }

// UnionRanges admits versions admitted by either argument.
func UnionRanges(a, b VersionRange) VersionRange {
	return VersionRange{op: rUnion, a: &a, b: &b}
}

// IntersectRanges admits versions admitted by both arguments.
func IntersectRanges(a, b VersionRange) VersionRange {
	if a.op == rAny {
		return b
	}
	if b.op == rAny {
		return a
	}
	return VersionRange{op: rIsect, a: &a, b: &b}
}

// Complement admits exactly the versions a does not.
func Complement(a VersionRange) VersionRange {
	return VersionRange{op: rCompl, a: &a}
}

// Contains reports whether the range admits v. Evaluation is total: it
// terminates for every range and every version.
func (r VersionRange) Contains(v Version) bool {
	switch r.op {
	case rAny:
		return true
	case rNone:
		return false
	case rEq:
		return v.Compare(r.v) == 0
	case rAtLeast:
		return v.Compare(r.v) >= 0
	case rBefore:
		return v.Compare(r.v) < 0
	case rMajor:
		return v.Compare(r.v) >= 0 && v.Compare(r.v.majorUpperBound()) < 0
	case rUnion:
		return r.a.Contains(v) || r.b.Contains(v)
	case rIsect:
		return r.a.Contains(v) && r.b.Contains(v)
	case rCompl:
		return !r.a.Contains(v)
	}
	panic(fmt.Sprintf("canary - unknown range op %d", r.op))
}

// isAny reports whether the range is syntactically the wildcard. This is
// a structural check, not a semantic one.
func (r VersionRange) isAny() bool { return r.op == rAny }

// rangeJSON is the serialized form of a VersionRange used by the index
// cache; the internal representation stays unexported.
type rangeJSON struct {
	Op string        `json:"op"`
	V  Version       `json:"v,omitempty"`
	A  *VersionRange `json:"a,omitempty"`
	B  *VersionRange `json:"b,omitempty"`
}

var rangeOpNames = map[rangeOp]string{
	rAny:     "any",
	rNone:    "none",
	rEq:      "eq",
	rAtLeast: "atLeast",
	rBefore:  "before",
	rMajor:   "major",
	rUnion:   "union",
	rIsect:   "isect",
	rCompl:   "compl",
}

func (r VersionRange) MarshalJSON() ([]byte, error) {
	name, has := rangeOpNames[r.op]
	if !has {
		return nil, errors.Errorf("unknown range op %d", r.op)
	}
	return json.Marshal(rangeJSON{Op: name, V: r.v, A: r.a, B: r.b})
}

func (r *VersionRange) UnmarshalJSON(data []byte) error {
	var rj rangeJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	for op, name := range rangeOpNames {
		if name == rj.Op {
			*r = VersionRange{op: op, v: rj.V, a: rj.A, b: rj.B}
			return nil
		}
	}
	return errors.Errorf("unknown range op %q", rj.Op)
}

func (r VersionRange) String() string {
	switch r.op {
	case rAny:
		return "*"
	case rNone:
		return "none"
	case rEq:
		return "==" + r.v.String()
	case rAtLeast:
		return ">=" + r.v.String()
	case rBefore:
		return "<" + r.v.String()
	case rMajor:
		return "^>=" + r.v.String()
	case rUnion:
		return "(" + r.a.String() + " || " + r.b.String() + ")"
	case rIsect:
		return "(" + r.a.String() + " && " + r.b.String() + ")"
	case rCompl:
		return "!(" + r.a.String() + ")"
	}
	panic(fmt.Sprintf("canary - unknown range op %d", r.op))
}
