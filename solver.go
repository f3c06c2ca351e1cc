package cabal

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// defaultMaxBackjumps bounds the walk when the caller does not supply a
// budget. Exceeding it terminates with a BudgetExhausted failure.
const defaultMaxBackjumps = 100000

// Target is one user-requested package, optionally constrained. A zero
// Range admits any version.
type Target struct {
	Name  PackageName
	Range VersionRange
}

// Options are the solver's behavioral switches.
type Options struct {
	// IndependentGoals places each target in its own namespace,
	// disabling the single instance restriction across targets while
	// keeping it within each target's closure.
	IndependentGoals bool
	// ReorderGoals prefers goals whose conflict sets contain the most
	// recently failed decision.
	ReorderGoals bool
	// CountConflicts keys goal ordering on how often each variable has
	// appeared in conflict sets. An explicit GoalOrder wins entirely.
	CountConflicts bool
	// StrongFlags promotes flag goals ahead of package goals.
	StrongFlags bool
	// AvoidReinstalls filters out source candidates that would rebuild
	// an installed (name, version), and rechecks the final plan.
	AvoidReinstalls bool
	// ShadowInstalledPackages filters out installed packages shadowed
	// by a source release of the same (name, version).
	ShadowInstalledPackages bool
	// DisableBackjumping falls back to chronological backtracking.
	DisableBackjumping bool
	// MaxBackjumps bounds the walk; 0 means the default budget, a
	// negative value means unlimited.
	MaxBackjumps int
	// GoalOrder is an explicit goal ordering by package name. When
	// supplied it dominates every ordering heuristic; a package's flag
	// and stanza goals rank with the package.
	GoalOrder []PackageName
	// EnableAllTests / EnableAllBenchmarks force the corresponding
	// stanza enabled on every target package.
	EnableAllTests      bool
	EnableAllBenchmarks bool
}

// SolveParameters is the full input tuple. All of it is treated as
// immutable once handed to Prepare.
type SolveParameters struct {
	Platform    Platform
	Compiler    CompilerInfo
	PkgConfig   PkgConfigDb
	Targets     []Target
	Constraints []LabeledPackageConstraint
	Preferences Preferences
	Options     Options

	// Logger receives leveled progress output; nil gets a default
	// logger. The deterministic trace log is independent of it.
	Logger *logrus.Logger
}

// BadOptsFailure reports invalid solver parameters from Prepare.
type BadOptsFailure string

func (e BadOptsFailure) Error() string { return string(e) }

// A Solver is a preconstructed, validated solve run. It is single-use:
// Solve walks the lazy tree to one of three outcomes. The solver never
// writes to disk and never partially commits.
type Solver interface {
	// Solve runs the search. It returns a Solution, or a *SolveFailure
	// whose category distinguishes a true failure from an exhausted
	// backjump budget.
	Solve() (Solution, error)

	// HashInputs produces a deterministic digest of the full input
	// tuple, for detecting stale plans.
	HashInputs() []byte
}

type solver struct {
	params  SolveParameters
	opts    Options
	idx     *Index
	fullIdx *Index
	l       *logrus.Logger
	tl      *tracer

	vt     *varTable
	counts []int
	cm     *constraintModel
	a      *assignment
	goals  *goalSet
	j      *journal
	frames []*frame

	targets map[QPN]bool
	seq     int

	attempts  int
	backjumps int
	budgetHit bool

	lastFailed    Var
	hasLastFailed bool
	lastFail      solveFailure
	lastExhausted *frame
	finalCS       ConflictSet
	csSources     map[Var][]labeledRange
}

// Prepare validates the parameters and assembles a single-use Solver
// over the given index. The index is shared, not copied; it must not be
// mutated afterwards.
func Prepare(params SolveParameters, idx *Index) (Solver, error) {
	if idx == nil {
		return nil, BadOptsFailure("a non-nil index is required")
	}
	if len(params.Targets) == 0 {
		return nil, BadOptsFailure("at least one target is required")
	}
	seen := make(map[PackageName]bool)
	for _, t := range params.Targets {
		if t.Name == "" {
			return nil, BadOptsFailure("target with empty package name")
		}
		if seen[t.Name] {
			return nil, BadOptsFailure(fmt.Sprintf("duplicate target %q", t.Name))
		}
		seen[t.Name] = true
	}

	opts := params.Options
	if opts.MaxBackjumps == 0 {
		opts.MaxBackjumps = defaultMaxBackjumps
	} else if opts.MaxBackjumps < 0 {
		opts.MaxBackjumps = -1
	}

	l := params.Logger
	if l == nil {
		l = logrus.New()
	}

	s := &solver{
		params:    params,
		opts:      opts,
		fullIdx:   idx,
		idx:       idx.filterForOptions(opts.ShadowInstalledPackages, opts.AvoidReinstalls),
		l:         l,
		tl:        &tracer{},
		vt:        newVarTable(),
		cm:        newConstraintModel(params.Constraints),
		a:         newAssignment(),
		goals:     newGoalSet(),
		j:         &journal{},
		targets:   make(map[QPN]bool),
		csSources: make(map[Var][]labeledRange),
	}

	for i, t := range params.Targets {
		qual := qualTop
		if opts.IndependentGoals {
			qual = indepQualifier(i)
		}
		qpn := QPN{Qual: qual, Name: t.Name}
		s.targets[qpn] = true

		if !t.Range.isAny() {
			s.cm.push(qpn, labeledRange{
				vr:     t.Range,
				source: SourceUser,
				label:  fmt.Sprintf("target %s %s", t.Name, t.Range),
			})
		}

		s.seq++
		s.goals.add(&goal{
			v:      pkgVar(qpn),
			reason: goalReason{kind: reasonTarget},
			seq:    s.seq,
		})
	}

	return s, nil
}

// Solve runs the walk. The solver is pure: all inputs were frozen at
// Prepare, the only mutable state is the walk's own stack, and no I/O
// occurs.
func (s *solver) Solve() (Solution, error) {
	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"targets":     len(s.params.Targets),
			"independent": s.opts.IndependentGoals,
		}).Info("Beginning solve")
	}
	return s.solve()
}

// enableBackjumping mirrors the option's positive sense where the
// explorer reads it.
func (s *solver) enableBackjumping() bool { return !s.opts.DisableBackjumping }

// snapshotSources captures, for every package variable in C, the
// constraints currently accumulated on it. The walk reverts constraint
// state as it backtracks; the final narrative needs the view at failure
// time.
func (s *solver) snapshotSources(C ConflictSet) {
	for _, v := range C.vars(s.vt) {
		if v.Kind != VarPackage {
			continue
		}
		lrs := s.cm.rangesOn(v.QPN)
		cp := make([]labeledRange, len(lrs))
		copy(cp, lrs)
		s.csSources[v] = cp
	}
}
