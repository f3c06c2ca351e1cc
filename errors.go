package cabal

import (
	"bytes"
	"fmt"
	"strings"
)

// FailureCategory classifies a failure. Categories are kinds, not
// types: every category except BudgetExhausted is recoverable inside
// the walk by trying another branch.
type FailureCategory uint8

const (
	FailUnknownPackage FailureCategory = iota
	FailVersionConflict
	FailFlagConflict
	FailMissingExtension
	FailMissingLanguage
	FailMissingPkgConfig
	FailCycleDetected
	FailSIRViolation
	FailLinkingViolation
	FailBudgetExhausted
)

func (fc FailureCategory) String() string {
	switch fc {
	case FailUnknownPackage:
		return "unknown package"
	case FailVersionConflict:
		return "version conflict"
	case FailFlagConflict:
		return "flag conflict"
	case FailMissingExtension:
		return "missing extension"
	case FailMissingLanguage:
		return "missing language"
	case FailMissingPkgConfig:
		return "missing pkg-config library"
	case FailCycleDetected:
		return "dependency cycle"
	case FailSIRViolation:
		return "single instance restriction violation"
	case FailLinkingViolation:
		return "linking violation"
	case FailBudgetExhausted:
		return "backjump budget exhausted"
	}
	panic(fmt.Sprintf("canary - unknown failure category %d", fc))
}

// solveFailure is the internal interface of every leaf failure: a
// category, a human message, a terse trace rendering, and the conflict
// set that drives backjumping.
type solveFailure interface {
	error
	Category() FailureCategory
	traceString() string
	conflictSet() ConflictSet
}

type unknownPackageFailure struct {
	qpn      QPN
	depender Var
	hasDep   bool
	cs       ConflictSet
}

func (e *unknownPackageFailure) Category() FailureCategory { return FailUnknownPackage }
func (e *unknownPackageFailure) conflictSet() ConflictSet  { return e.cs }

func (e *unknownPackageFailure) Error() string {
	if e.hasDep {
		return fmt.Sprintf("Package %s, required by %s, is not present in any index.", e.qpn, e.depender)
	}
	return fmt.Sprintf("Target package %s is not present in any index.", e.qpn)
}

func (e *unknownPackageFailure) traceString() string {
	return fmt.Sprintf("%s unknown", e.qpn)
}

// emptyRangeFailure reports that no candidate version of a qualified
// name satisfies the accumulated constraints.
type emptyRangeFailure struct {
	qpn          QPN
	contributing []labeledRange
	cs           ConflictSet
}

func (e *emptyRangeFailure) Category() FailureCategory { return FailVersionConflict }
func (e *emptyRangeFailure) conflictSet() ConflictSet  { return e.cs }

func (e *emptyRangeFailure) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "No version of %s satisfies the intersection of constraints:", e.qpn)
	for _, lr := range e.contributing {
		fmt.Fprintf(&buf, "\n\t%s", lr.describe())
	}
	return buf.String()
}

func (e *emptyRangeFailure) traceString() string {
	return fmt.Sprintf("no admissible versions of %s", e.qpn)
}

// versionNotAllowedFailure reports that a specific candidate fell
// outside the accumulated range for its name.
type versionNotAllowedFailure struct {
	goal    atom
	failing []labeledRange
	cs      ConflictSet
}

func (e *versionNotAllowedFailure) Category() FailureCategory { return FailVersionConflict }
func (e *versionNotAllowedFailure) conflictSet() ConflictSet  { return e.cs }

func (e *versionNotAllowedFailure) Error() string {
	if len(e.failing) == 1 {
		return fmt.Sprintf("Could not introduce %s, as it is not allowed by constraint %s.",
			e.goal, e.failing[0].describe())
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Could not introduce %s, as it is not allowed by constraints from:", e.goal)
	for _, lr := range e.failing {
		fmt.Fprintf(&buf, "\n\t%s", lr.describe())
	}
	return buf.String()
}

func (e *versionNotAllowedFailure) traceString() string {
	return fmt.Sprintf("%s not allowed by current constraints", e.goal)
}

// disjointConstraintFailure reports a dependency whose range has no
// possible intersection with the constraints already accumulated on the
// target.
type disjointConstraintFailure struct {
	depender atom
	dep      QPN
	vr       VersionRange
	existing []labeledRange
	cs       ConflictSet
}

func (e *disjointConstraintFailure) Category() FailureCategory { return FailVersionConflict }
func (e *disjointConstraintFailure) conflictSet() ConflictSet  { return e.cs }

func (e *disjointConstraintFailure) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Could not introduce %s, as its dependency on %s with constraint %s admits no candidate alongside the existing constraints:",
		e.depender, e.dep, e.vr)
	for _, lr := range e.existing {
		fmt.Fprintf(&buf, "\n\t%s", lr.describe())
	}
	return buf.String()
}

func (e *disjointConstraintFailure) traceString() string {
	return fmt.Sprintf("constraint %s on %s leaves no candidates", e.vr, e.dep)
}

// constraintNotAllowedFailure reports a dependency constraint that does
// not admit the already-selected version of its target.
type constraintNotAllowedFailure struct {
	depender atom
	dep      QPN
	vr       VersionRange
	selected Version
	cs       ConflictSet
}

func (e *constraintNotAllowedFailure) Category() FailureCategory { return FailVersionConflict }
func (e *constraintNotAllowedFailure) conflictSet() ConflictSet  { return e.cs }

func (e *constraintNotAllowedFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as its dependency on %s with constraint %s does not allow the currently selected version %s.",
		e.depender, e.dep, e.vr, e.selected)
}

func (e *constraintNotAllowedFailure) traceString() string {
	return fmt.Sprintf("%s depends on %s with %s, but %s is selected", e.depender, e.dep, e.vr, e.selected)
}

// flagConflictFailure reports a flag with no assignable value: both
// values forbidden. A manual flag always keeps one value, its default
// or its pin, so it never produces this failure.
type flagConflictFailure struct {
	qpn  QPN
	flag FlagName
	cs   ConflictSet
}

func (e *flagConflictFailure) Category() FailureCategory { return FailFlagConflict }
func (e *flagConflictFailure) conflictSet() ConflictSet  { return e.cs }

func (e *flagConflictFailure) Error() string {
	return fmt.Sprintf("No value of flag %s:%s satisfies the constraints on it.", e.qpn, e.flag)
}

func (e *flagConflictFailure) traceString() string {
	return fmt.Sprintf("flag %s:%s has no assignable value", e.qpn, e.flag)
}

type missingExtensionFailure struct {
	ext  string
	goal atom
	cs   ConflictSet
}

func (e *missingExtensionFailure) Category() FailureCategory { return FailMissingExtension }
func (e *missingExtensionFailure) conflictSet() ConflictSet  { return e.cs }

func (e *missingExtensionFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s: the configured compiler does not support extension %s.", e.goal, e.ext)
}

func (e *missingExtensionFailure) traceString() string {
	return fmt.Sprintf("%s requires unsupported extension %s", e.goal, e.ext)
}

type missingLanguageFailure struct {
	lang string
	goal atom
	cs   ConflictSet
}

func (e *missingLanguageFailure) Category() FailureCategory { return FailMissingLanguage }
func (e *missingLanguageFailure) conflictSet() ConflictSet  { return e.cs }

func (e *missingLanguageFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s: the configured compiler does not support language %s.", e.goal, e.lang)
}

func (e *missingLanguageFailure) traceString() string {
	return fmt.Sprintf("%s requires unsupported language %s", e.goal, e.lang)
}

type missingPkgConfigFailure struct {
	lib       string
	vr        VersionRange
	available []Version
	goal      atom
	cs        ConflictSet
}

func (e *missingPkgConfigFailure) Category() FailureCategory { return FailMissingPkgConfig }
func (e *missingPkgConfigFailure) conflictSet() ConflictSet  { return e.cs }

func (e *missingPkgConfigFailure) Error() string {
	if len(e.available) == 0 {
		return fmt.Sprintf("Could not introduce %s: pkg-config library %s is not present.", e.goal, e.lib)
	}
	vs := make([]string, len(e.available))
	for i, v := range e.available {
		vs[i] = v.String()
	}
	return fmt.Sprintf("Could not introduce %s: no installed version of pkg-config library %s (have %s) satisfies %s.",
		e.goal, e.lib, strings.Join(vs, ", "), e.vr)
}

func (e *missingPkgConfigFailure) traceString() string {
	return fmt.Sprintf("%s requires pkg-config %s %s, unsatisfied", e.goal, e.lib, e.vr)
}

// compilerTooOldFailure records a candidate excluded because the
// configured compiler predates the candidate's declared minimum.
type compilerTooOldFailure struct {
	goal     atom
	min      Version
	compiler Version
	cs       ConflictSet
}

func (e *compilerTooOldFailure) Category() FailureCategory { return FailVersionConflict }
func (e *compilerTooOldFailure) conflictSet() ConflictSet  { return e.cs }

func (e *compilerTooOldFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s: it declares minimum compiler version %s, but the configured compiler is %s.",
		e.goal, e.min, e.compiler)
}

func (e *compilerTooOldFailure) traceString() string {
	return fmt.Sprintf("%s needs compiler >=%s", e.goal, e.min)
}

type cycleFailure struct {
	members []QPN
	cs      ConflictSet
}

func (e *cycleFailure) Category() FailureCategory { return FailCycleDetected }
func (e *cycleFailure) conflictSet() ConflictSet  { return e.cs }

func (e *cycleFailure) Error() string {
	parts := make([]string, len(e.members))
	for i, m := range e.members {
		parts[i] = m.String()
	}
	return fmt.Sprintf("The install plan contains a dependency cycle through %s.", strings.Join(parts, " -> "))
}

func (e *cycleFailure) traceString() string {
	parts := make([]string, len(e.members))
	for i, m := range e.members {
		parts[i] = m.String()
	}
	return "cycle: " + strings.Join(parts, " -> ")
}

// sirViolationFailure reports two linked qualifiers diverging on a
// stanza choice, which the single instance restriction on the stanza
// variable rejects.
type sirViolationFailure struct {
	qpn     QPN
	partner QPN
	stanza  Stanza
	cs      ConflictSet
}

func (e *sirViolationFailure) Category() FailureCategory { return FailSIRViolation }
func (e *sirViolationFailure) conflictSet() ConflictSet  { return e.cs }

func (e *sirViolationFailure) Error() string {
	return fmt.Sprintf("Linked instances %s and %s disagree on stanza %s; a linked package admits a single stanza set.",
		e.qpn, e.partner, e.stanza)
}

func (e *sirViolationFailure) traceString() string {
	return fmt.Sprintf("linked %s and %s disagree on stanza %s", e.qpn, e.partner, e.stanza)
}

// linkingViolationFailure reports two linked qualifiers diverging on a
// flag value.
type linkingViolationFailure struct {
	qpn     QPN
	partner QPN
	flag    FlagName
	cs      ConflictSet
}

func (e *linkingViolationFailure) Category() FailureCategory { return FailLinkingViolation }
func (e *linkingViolationFailure) conflictSet() ConflictSet  { return e.cs }

func (e *linkingViolationFailure) Error() string {
	return fmt.Sprintf("Linked instances %s and %s disagree on flag %s; linked packages share one build artifact.",
		e.qpn, e.partner, e.flag)
}

func (e *linkingViolationFailure) traceString() string {
	return fmt.Sprintf("linked %s and %s disagree on flag %s", e.qpn, e.partner, e.flag)
}

// reinstallFailure reports the avoid-reinstalls post-check rejecting a
// plan that rebuilds an already-installed (name, version).
type reinstallFailure struct {
	goal atom
	cs   ConflictSet
}

func (e *reinstallFailure) Category() FailureCategory { return FailVersionConflict }
func (e *reinstallFailure) conflictSet() ConflictSet  { return e.cs }

func (e *reinstallFailure) Error() string {
	return fmt.Sprintf("The plan would rebuild %s, which is already installed, and avoid-reinstalls is set.", e.goal)
}

func (e *reinstallFailure) traceString() string {
	return fmt.Sprintf("%s would be a reinstall", e.goal)
}

// failedCandidate pairs an excluded candidate with the failure that
// excluded it, for the final narrative.
type failedCandidate struct {
	version Version
	f       solveFailure
}

// SolveFailure is the failure surfaced to callers when the search is
// exhausted or the budget runs out. It carries the final conflict set,
// the source labels of the constraints behind it, and the deterministic
// log of the whole search.
type SolveFailure struct {
	Cat          FailureCategory
	ConflictVars []Var
	Narrative    string
	Log          string
}

func (e *SolveFailure) Error() string { return e.Narrative }

// Category distinguishes a true failure from budget exhaustion; the
// shapes are otherwise identical.
func (e *SolveFailure) Category() FailureCategory { return e.Cat }
