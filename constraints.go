package cabal

import "fmt"

// ConstraintSource tags where a constraint came from. Sources never
// change how the solver decides, only how failures are explained.
type ConstraintSource uint8

const (
	// SourceUser marks a constraint supplied directly by the user.
	SourceUser ConstraintSource = iota
	// SourceDependency marks a constraint derived from a package
	// dependency encountered during the walk.
	SourceDependency
	// SourceSetupDependency marks a constraint derived from a setup
	// script dependency.
	SourceSetupDependency
	// SourceInstalled marks a constraint imposed by an installed
	// package's concrete dependency set.
	SourceInstalled
	// SourceProject marks a constraint imposed by the sandbox or
	// project configuration.
	SourceProject
)

func (cs ConstraintSource) String() string {
	switch cs {
	case SourceUser:
		return "user constraint"
	case SourceDependency:
		return "dependency"
	case SourceSetupDependency:
		return "setup dependency"
	case SourceInstalled:
		return "installed package"
	case SourceProject:
		return "project configuration"
	}
	panic(fmt.Sprintf("canary - unknown constraint source %d", cs))
}

// LabeledPackageConstraint is an externally supplied constraint on a
// package: a version range, pinned flag values, or both. The label is
// free text naming the constraint's origin for error messages.
type LabeledPackageConstraint struct {
	Name   PackageName
	Range  VersionRange
	Flags  FlagAssignment
	Source ConstraintSource
	Label  string
}

// labeledRange is one accumulated version constraint on a qualified
// name, with the provenance the explainer needs.
type labeledRange struct {
	vr     VersionRange
	source ConstraintSource
	label  string
	// origin is the variable whose decision imposed the constraint;
	// hasOrigin is false for user and project constraints, which
	// precede all decisions.
	origin    Var
	hasOrigin bool
}

func (lr labeledRange) describe() string {
	if lr.hasOrigin {
		return fmt.Sprintf("%s %s (%s from %s)", lr.vr, lr.label, lr.source, lr.origin)
	}
	if lr.label != "" {
		return fmt.Sprintf("%s (%s: %s)", lr.vr, lr.source, lr.label)
	}
	return fmt.Sprintf("%s (%s)", lr.vr, lr.source)
}

// InstalledPreference selects how installed and latest versions trade
// off when ordering candidates.
type InstalledPreference uint8

const (
	// PreferAllInstalled orders installed instances of a package ahead
	// of all source instances.
	PreferAllInstalled InstalledPreference = iota
	// PreferAllLatest orders strictly by version, an installed instance
	// winning a tie with a source instance of the same version.
	PreferAllLatest
	// PreferLatestForSelected applies PreferAllLatest to user targets
	// and PreferAllInstalled to everything else.
	PreferLatestForSelected
)

// PackagePreference is a soft preference: candidates inside the range
// order ahead of candidates outside it, but nothing is pruned.
type PackagePreference struct {
	Name  PackageName
	Range VersionRange
}

// Preferences collects the soft orderings applied at choice points.
type Preferences struct {
	Version   []PackagePreference
	Installed InstalledPreference
	// Stanzas lists the stanzas preferred enabled per package. A
	// preferred stanza tries enable first but accepts disable.
	Stanzas map[PackageName][]Stanza
}

func (p Preferences) versionPrefs(name PackageName) []VersionRange {
	var out []VersionRange
	for _, pp := range p.Version {
		if pp.Name == name {
			out = append(out, pp.Range)
		}
	}
	return out
}

func (p Preferences) prefersStanza(name PackageName, st Stanza) bool {
	for _, s := range p.Stanzas[name] {
		if s == st {
			return true
		}
	}
	return false
}

// constraintModel accumulates version constraints and flag pins. The
// byName maps hold the externally supplied constraints, frozen after
// Prepare; byQPN grows and shrinks with the walk via the journal.
type constraintModel struct {
	byName   map[PackageName][]labeledRange
	flagPins map[PackageName]FlagAssignment
	byQPN    map[QPN][]labeledRange
}

func newConstraintModel(constraints []LabeledPackageConstraint) *constraintModel {
	cm := &constraintModel{
		byName:   make(map[PackageName][]labeledRange),
		flagPins: make(map[PackageName]FlagAssignment),
		byQPN:    make(map[QPN][]labeledRange),
	}
	for _, lc := range constraints {
		if !lc.Range.isAny() {
			cm.byName[lc.Name] = append(cm.byName[lc.Name], labeledRange{
				vr:     lc.Range,
				source: lc.Source,
				label:  lc.Label,
			})
		}
		if len(lc.Flags) > 0 {
			pins := cm.flagPins[lc.Name]
			if pins == nil {
				pins = make(FlagAssignment)
				cm.flagPins[lc.Name] = pins
			}
			for f, val := range lc.Flags {
				pins[f] = val
			}
		}
	}
	return cm
}

// rangesOn returns every constraint bearing on the qualified name:
// externally supplied constraints on the bare name plus constraints
// accumulated during the walk.
func (cm *constraintModel) rangesOn(qpn QPN) []labeledRange {
	base := cm.byName[qpn.Name]
	acc := cm.byQPN[qpn]
	out := make([]labeledRange, 0, len(base)+len(acc))
	out = append(out, base...)
	out = append(out, acc...)
	return out
}

// versionRange is the lazily built intersection of every constraint on
// the qualified name.
func (cm *constraintModel) versionRange(qpn QPN) VersionRange {
	vr := AnyVersion()
	for _, lr := range cm.rangesOn(qpn) {
		vr = IntersectRanges(vr, lr.vr)
	}
	return vr
}

// forbiddenFlagValue reports which values of the flag are ruled out by
// user pins. Pins apply to the bare package name across qualifiers.
func (cm *constraintModel) forbiddenFlagValue(qpn QPN, f FlagName) (forbidTrue, forbidFalse bool) {
	pins, has := cm.flagPins[qpn.Name]
	if !has {
		return false, false
	}
	val, pinned := pins[f]
	if !pinned {
		return false, false
	}
	return !val, val
}

func (cm *constraintModel) push(qpn QPN, lr labeledRange) {
	cm.byQPN[qpn] = append(cm.byQPN[qpn], lr)
}

func (cm *constraintModel) pop(qpn QPN) {
	lrs := cm.byQPN[qpn]
	if len(lrs) == 0 {
		panic("canary - popping constraint from empty stack")
	}
	cm.byQPN[qpn] = lrs[:len(lrs)-1]
}
