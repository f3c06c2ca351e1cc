package cabal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// Test fixtures are declarative and built by direct construction, never
// by parsing real package descriptions. The string mini-DSL keeps them
// readable: "B 1" is package B version 1, "A any" / "A ==1" / "A >=1 <2"
// are dependencies.

// mkv parses a version, panicking on bad test data.
func mkv(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(fmt.Sprintf("malformed version in fixture: %q", s))
	}
	return v
}

// mkrange parses constraint tokens into an intersected range.
func mkrange(tokens ...string) VersionRange {
	vr := AnyVersion()
	for _, tok := range tokens {
		switch {
		case tok == "any":
		case strings.HasPrefix(tok, "=="):
			vr = IntersectRanges(vr, Exactly(mkv(tok[2:])))
		case strings.HasPrefix(tok, ">="):
			vr = IntersectRanges(vr, AtLeast(mkv(tok[2:])))
		case strings.HasPrefix(tok, "^>="):
			vr = IntersectRanges(vr, WithinMajor(mkv(tok[3:])))
		case strings.HasPrefix(tok, "<"):
			vr = IntersectRanges(vr, Before(mkv(tok[1:])))
		default:
			panic(fmt.Sprintf("malformed range token in fixture: %q", tok))
		}
	}
	return vr
}

// dep parses "name tok tok..." into a package dependency.
func dep(s string) Dep {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		panic(fmt.Sprintf("malformed dep in fixture: %q", s))
	}
	return PkgDep(PackageName(parts[0]), mkrange(parts[1:]...))
}

// mksrc builds a source package from "name version" plus deps.
func mksrc(nv string, deps ...Dep) SourcePackage {
	parts := strings.Fields(nv)
	if len(parts) != 2 {
		panic(fmt.Sprintf("malformed package header in fixture: %q", nv))
	}
	return SourcePackage{
		Name:    PackageName(parts[0]),
		Version: mkv(parts[1]),
		Deps:    deps,
	}
}

// mkinst builds an installed package; the unit id doubles as identity.
func mkinst(nv string, depends ...string) InstalledPackage {
	parts := strings.Fields(nv)
	if len(parts) != 2 {
		panic(fmt.Sprintf("malformed installed header in fixture: %q", nv))
	}
	uids := make([]UnitId, len(depends))
	for i, d := range depends {
		uids[i] = UnitId(d)
	}
	return InstalledPackage{
		UnitId:  UnitId(parts[0] + "-" + parts[1]),
		Name:    PackageName(parts[0]),
		Version: mkv(parts[1]),
		Depends: uids,
		Exposed: true,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func defaultCompiler() CompilerInfo {
	return CompilerInfo{
		Flavor:  "ghc",
		Version: mkv("9.4"),
		ABITag:  "abi1",
	}
}

// basicFixture covers one solver scenario end to end.
type basicFixture struct {
	n           string
	installed   []InstalledPackage
	source      []SourcePackage
	targets     []Target
	constraints []LabeledPackageConstraint
	prefs       Preferences
	opts        Options
	compiler    *CompilerInfo
	pkgconfig   PkgConfigDb

	// wantPlan lists expected "name-version" atoms; set equality.
	wantPlan []string
	// wantFlags asserts flag assignments per plan atom.
	wantFlags map[string]FlagAssignment
	// wantFail expects failure with this category.
	wantFail    bool
	wantFailCat FailureCategory
}

func targetsOf(names ...string) []Target {
	ts := make([]Target, len(names))
	for i, n := range names {
		ts[i] = Target{Name: PackageName(n)}
	}
	return ts
}

func (f basicFixture) solve(t *testing.T) (Solution, error) {
	t.Helper()
	idx, err := NewIndex(f.installed, f.source)
	if err != nil {
		t.Fatalf("bad fixture index: %s", err)
	}

	compiler := defaultCompiler()
	if f.compiler != nil {
		compiler = *f.compiler
	}

	params := SolveParameters{
		Platform:    Platform{OS: "linux", Arch: "x86_64", WordSize: 64},
		Compiler:    compiler,
		PkgConfig:   f.pkgconfig,
		Targets:     f.targets,
		Constraints: f.constraints,
		Preferences: f.prefs,
		Options:     f.opts,
		Logger:      quietLogger(),
	}

	s, err := Prepare(params, idx)
	if err != nil {
		t.Fatalf("Prepare failed: %s", err)
	}
	return s.Solve()
}

func planAtoms(sol Solution) []string {
	var out []string
	for _, rp := range sol.Packages() {
		out = append(out, fmt.Sprintf("%s-%s", rp.Name(), rp.Version()))
	}
	sort.Strings(out)
	return out
}

func (f basicFixture) run(t *testing.T) {
	t.Helper()
	sol, err := f.solve(t)

	if f.wantFail {
		if err == nil {
			t.Fatalf("expected %s failure, got solution %v", f.wantFailCat, planAtoms(sol))
		}
		sf, ok := err.(*SolveFailure)
		if !ok {
			t.Fatalf("expected *SolveFailure, got %T: %s", err, err)
		}
		if sf.Category() != f.wantFailCat {
			t.Fatalf("expected failure category %s, got %s\nnarrative:\n%s", f.wantFailCat, sf.Category(), sf.Narrative)
		}
		if sf.Log == "" {
			t.Fatal("failure carries no log")
		}
		return
	}

	if err != nil {
		t.Fatalf("expected solution, got failure: %s", err)
	}

	want := append([]string(nil), f.wantPlan...)
	sort.Strings(want)
	got := planAtoms(sol)
	if len(got) != len(want) {
		t.Fatalf("plan mismatch:\n  got  %v\n  want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("plan mismatch:\n  got  %v\n  want %v", got, want)
		}
	}

	for atomStr, wantFA := range f.wantFlags {
		var found *ConfiguredPackage
		for _, rp := range sol.Packages() {
			if rp.Configured != nil && fmt.Sprintf("%s-%s", rp.Name(), rp.Version()) == atomStr {
				found = rp.Configured
				break
			}
		}
		if found == nil {
			t.Fatalf("expected configured package %s in plan", atomStr)
		}
		for fl, val := range wantFA {
			got, has := found.Flags[fl]
			if !has {
				t.Fatalf("%s: flag %s undecided in plan", atomStr, fl)
			}
			if got != val {
				t.Fatalf("%s: flag %s = %v, want %v", atomStr, fl, got, val)
			}
		}
	}

	checkPlanSound(t, sol)
}

// checkPlanSound asserts the soundness invariants on a successful plan:
// every dependency unit is present, each (qualifier, name) appears
// once, and flag assignments are total over the declared set.
func checkPlanSound(t *testing.T, sol Solution) {
	t.Helper()
	units := make(map[UnitId]bool)
	for _, rp := range sol.Packages() {
		if units[rp.UnitId()] {
			t.Fatalf("unit %s appears twice in plan", rp.UnitId())
		}
		units[rp.UnitId()] = true
	}

	qualNames := make(map[string]bool)
	for _, rp := range sol.Packages() {
		if rp.Configured == nil {
			continue
		}
		cp := rp.Configured
		key := cp.Qualifier.String() + "/" + string(cp.Package.Name)
		if qualNames[key] {
			t.Fatalf("single instance restriction violated for %s", key)
		}
		qualNames[key] = true

		for _, dep := range cp.Depends {
			if !units[dep] {
				t.Fatalf("plan unit %s depends on %s, which is absent", cp.UnitId, dep)
			}
		}
		for _, fd := range cp.Package.Flags {
			if _, has := cp.Flags[fd.Name]; !has {
				t.Fatalf("flag assignment for %s not total: %s undecided", cp.UnitId, fd.Name)
			}
		}
	}
}

// sharedIndex is the index common to the first scenarios:
// installed A-1; source B-1 and B-2 depending on A, C-1 requiring B==1,
// D-1 requiring B==2, E-1 taking any B.
func sharedIndex() ([]InstalledPackage, []SourcePackage) {
	installed := []InstalledPackage{mkinst("A 1")}
	source := []SourcePackage{
		mksrc("B 1", dep("A any")),
		mksrc("B 2", dep("A any")),
		mksrc("C 1", dep("B ==1")),
		mksrc("D 1", dep("B ==2")),
		mksrc("E 1", dep("B any")),
	}
	return installed, source
}

func TestSolveAlreadyInstalled(t *testing.T) {
	installed, source := sharedIndex()
	basicFixture{
		n:         "alreadyInstalled",
		installed: installed,
		source:    source,
		targets:   targetsOf("A"),
		wantPlan:  []string{"A-1"},
	}.run(t)
}

func TestSolveSimpleDep(t *testing.T) {
	installed, source := sharedIndex()
	basicFixture{
		n:         "simpleDep",
		installed: installed,
		source:    source,
		targets:   targetsOf("C"),
		wantPlan:  []string{"A-1", "B-1", "C-1"},
	}.run(t)
}

func TestSolveIncompatibleTargets(t *testing.T) {
	installed, source := sharedIndex()
	basicFixture{
		n:           "incompatibleTargets",
		installed:   installed,
		source:      source,
		targets:     targetsOf("C", "D"),
		wantFail:    true,
		wantFailCat: FailVersionConflict,
	}.run(t)
}

func TestSolveIndependentGoals(t *testing.T) {
	installed, source := sharedIndex()
	f := basicFixture{
		n:         "independentGoals",
		installed: installed,
		source:    source,
		targets:   targetsOf("C", "D"),
		opts:      Options{IndependentGoals: true},
		wantPlan:  []string{"A-1", "B-1", "B-2", "C-1", "D-1"},
	}
	f.run(t)
}

func TestSolveFlagControlledDep(t *testing.T) {
	x := mksrc("X 1")
	x.Flags = []FlagDecl{{Name: "useY", Default: true}}
	x.Deps = []Dep{IfFlag("useY", []Dep{dep("Y any")}, nil)}
	y := mksrc("Y 1", dep("Z any"))

	basicFixture{
		n:         "flagControlledDep",
		source:    []SourcePackage{x, y},
		targets:   targetsOf("X"),
		wantPlan:  []string{"X-1"},
		wantFlags: map[string]FlagAssignment{"X-1": {"useY": false}},
	}.run(t)
}

func TestSolveCycleThroughSetup(t *testing.T) {
	c1 := mksrc("C 1")
	c2 := mksrc("C 2", dep("D any"))
	c2.SetupDeps = []Dep{dep("D any")}
	d1 := mksrc("D 1", dep("C any"))
	e1 := mksrc("E 1", dep("C ==2"))

	sol, err := basicFixture{
		n:       "cycleThroughSetup",
		source:  []SourcePackage{c1, c2, d1, e1},
		targets: targetsOf("E"),
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success, got: %s", err)
	}

	// top-level C must be 2 and the setup namespace must hold C-1
	var sawTopC2, sawSetupC1 bool
	for _, rp := range sol.Packages() {
		if rp.Configured == nil || rp.Name() != "C" {
			continue
		}
		cp := rp.Configured
		switch {
		case cp.Qualifier.Kind == QualTop && rp.Version().Compare(mkv("2")) == 0:
			sawTopC2 = true
		case cp.Qualifier.Kind == QualSetup && rp.Version().Compare(mkv("1")) == 0:
			sawSetupC1 = true
		}
	}
	if !sawTopC2 || !sawSetupC1 {
		t.Fatalf("expected C-2 in top and C-1 in setup namespace, plan: %v", planAtoms(sol))
	}
	checkPlanSound(t, sol)
}

func TestSolveRegularCycleFails(t *testing.T) {
	basicFixture{
		n: "regularCycle",
		source: []SourcePackage{
			mksrc("A 1", dep("B any")),
			mksrc("B 1", dep("A any")),
		},
		targets:     targetsOf("A"),
		wantFail:    true,
		wantFailCat: FailCycleDetected,
	}.run(t)
}

func TestSolveUnknownTarget(t *testing.T) {
	basicFixture{
		n:           "unknownTarget",
		source:      []SourcePackage{mksrc("A 1")},
		targets:     targetsOf("Q"),
		wantFail:    true,
		wantFailCat: FailUnknownPackage,
	}.run(t)
}

func TestSolveUnknownDep(t *testing.T) {
	basicFixture{
		n:           "unknownDep",
		source:      []SourcePackage{mksrc("A 1", dep("Zzz any"))},
		targets:     targetsOf("A"),
		wantFail:    true,
		wantFailCat: FailUnknownPackage,
	}.run(t)
}

func TestSolveUserConstraintNarrowsChoice(t *testing.T) {
	installed, source := sharedIndex()
	basicFixture{
		n:         "userConstraint",
		installed: installed,
		source:    source,
		targets:   targetsOf("E"),
		constraints: []LabeledPackageConstraint{{
			Name:   "B",
			Range:  mkrange("<2"),
			Source: SourceUser,
			Label:  "command line",
		}},
		wantPlan: []string{"A-1", "B-1", "E-1"},
	}.run(t)
}

func TestSolvePrefersLatestByDefaultOrder(t *testing.T) {
	installed, source := sharedIndex()
	basicFixture{
		n:         "latestWins",
		installed: installed,
		source:    source,
		targets:   targetsOf("E"),
		prefs:     Preferences{Installed: PreferAllLatest},
		wantPlan:  []string{"A-1", "B-2", "E-1"},
	}.run(t)
}

func TestSolveSoftPreferenceOrdersButNeverPrunes(t *testing.T) {
	installed, source := sharedIndex()

	// preference pulls B down to 1.x
	basicFixture{
		n:         "softPref",
		installed: installed,
		source:    source,
		targets:   targetsOf("E"),
		prefs: Preferences{
			Installed: PreferAllLatest,
			Version:   []PackagePreference{{Name: "B", Range: mkrange("<2")}},
		},
		wantPlan: []string{"A-1", "B-1", "E-1"},
	}.run(t)

	// an unsatisfiable preference must not turn success into failure
	basicFixture{
		n:         "softPrefUnsatisfiable",
		installed: installed,
		source:    source,
		targets:   targetsOf("C"),
		prefs: Preferences{
			Installed: PreferAllLatest,
			Version:   []PackagePreference{{Name: "B", Range: mkrange(">=9")}},
		},
		wantPlan: []string{"A-1", "B-1", "C-1"},
	}.run(t)
}

func TestSolveInstalledPreference(t *testing.T) {
	installed := []InstalledPackage{mkinst("A 1")}
	source := []SourcePackage{mksrc("A 1"), mksrc("A 2")}

	sol, err := basicFixture{
		n:         "preferInstalled",
		installed: installed,
		source:    source,
		targets:   targetsOf("A"),
		prefs:     Preferences{Installed: PreferAllInstalled},
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}
	if len(sol.Packages()) != 1 || sol.Packages()[0].PreExisting == nil {
		t.Fatalf("expected the installed A-1, got %v", planAtoms(sol))
	}

	sol, err = basicFixture{
		n:         "preferLatest",
		installed: installed,
		source:    source,
		targets:   targetsOf("A"),
		prefs:     Preferences{Installed: PreferAllLatest},
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}
	if len(sol.Packages()) != 1 || sol.Packages()[0].Configured == nil ||
		sol.Packages()[0].Version().Compare(mkv("2")) != 0 {
		t.Fatalf("expected source A-2, got %v", planAtoms(sol))
	}
}

func TestSolvePinnedFlagForcesFailure(t *testing.T) {
	x := mksrc("X 1")
	x.Flags = []FlagDecl{{Name: "useY", Default: true}}
	x.Deps = []Dep{IfFlag("useY", []Dep{dep("Y any")}, nil)}
	y := mksrc("Y 1", dep("Z any"))

	basicFixture{
		n:       "pinnedFlag",
		source:  []SourcePackage{x, y},
		targets: targetsOf("X"),
		constraints: []LabeledPackageConstraint{{
			Name:   "X",
			Flags:  FlagAssignment{"useY": true},
			Source: SourceUser,
			Label:  "flag pin",
		}},
		wantFail:    true,
		wantFailCat: FailUnknownPackage,
	}.run(t)
}

func TestSolveManualFlagHoldsDefault(t *testing.T) {
	x := mksrc("X 1")
	x.Flags = []FlagDecl{{Name: "extra", Default: false, Manual: true}}
	x.Deps = []Dep{IfFlag("extra", []Dep{dep("Missing any")}, nil)}

	basicFixture{
		n:         "manualFlag",
		source:    []SourcePackage{x},
		targets:   targetsOf("X"),
		wantPlan:  []string{"X-1"},
		wantFlags: map[string]FlagAssignment{"X-1": {"extra": false}},
	}.run(t)
}

func TestSolveExtensionAndLanguageDeps(t *testing.T) {
	compiler := defaultCompiler()
	compiler.Extensions = []string{"OverloadedStrings"}
	compiler.Languages = []string{"Haskell2010"}

	a := mksrc("A 1")
	a.Deps = []Dep{ExtDep("OverloadedStrings"), LangDep("Haskell2010")}

	basicFixture{
		n:        "extOK",
		source:   []SourcePackage{a},
		targets:  targetsOf("A"),
		compiler: &compiler,
		wantPlan: []string{"A-1"},
	}.run(t)

	b := mksrc("B 1")
	b.Deps = []Dep{ExtDep("TypeFamilies")}
	basicFixture{
		n:           "extMissing",
		source:      []SourcePackage{b},
		targets:     targetsOf("B"),
		compiler:    &compiler,
		wantFail:    true,
		wantFailCat: FailMissingExtension,
	}.run(t)

	c := mksrc("C 1")
	c.Deps = []Dep{LangDep("Haskell98")}
	basicFixture{
		n:           "langMissing",
		source:      []SourcePackage{c},
		targets:     targetsOf("C"),
		compiler:    &compiler,
		wantFail:    true,
		wantFailCat: FailMissingLanguage,
	}.run(t)
}

func TestSolvePkgConfigDeps(t *testing.T) {
	a := mksrc("A 1")
	a.Deps = []Dep{PkgConfigDep("zlib", mkrange(">=1.2"))}

	basicFixture{
		n:         "pkgconfigOK",
		source:    []SourcePackage{a},
		targets:   targetsOf("A"),
		pkgconfig: PkgConfigDb{"zlib": {mkv("1.2.11")}},
		wantPlan:  []string{"A-1"},
	}.run(t)

	basicFixture{
		n:           "pkgconfigTooOld",
		source:      []SourcePackage{a},
		targets:     targetsOf("A"),
		pkgconfig:   PkgConfigDb{"zlib": {mkv("1.1")}},
		wantFail:    true,
		wantFailCat: FailMissingPkgConfig,
	}.run(t)

	basicFixture{
		n:           "pkgconfigAbsent",
		source:      []SourcePackage{a},
		targets:     targetsOf("A"),
		wantFail:    true,
		wantFailCat: FailMissingPkgConfig,
	}.run(t)
}

func TestSolveBuildToolDep(t *testing.T) {
	a := mksrc("A 1")
	a.Deps = []Dep{ToolDep("happy", mkrange("any"))}
	tool := mksrc("happy 1")

	sol, err := basicFixture{
		n:       "buildTool",
		source:  []SourcePackage{a, tool},
		targets: targetsOf("A"),
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}

	var sawTool bool
	for _, rp := range sol.Packages() {
		if rp.Configured != nil && rp.Name() == "happy" {
			if rp.Configured.Qualifier.Kind != QualExe {
				t.Fatalf("expected happy in an exe qualifier, got %q", rp.Configured.Qualifier)
			}
			sawTool = true
		}
	}
	if !sawTool {
		t.Fatalf("expected the build tool in the plan, got %v", planAtoms(sol))
	}
	checkPlanSound(t, sol)
}

func TestSolveStanzaPreferredAcceptsDisable(t *testing.T) {
	c := mksrc("C 1")
	c.Stanzas = map[Stanza][]Dep{StanzaTests: {dep("TD any")}}
	td := mksrc("TD 1")

	// preferred and satisfiable: enabled, test dep in the plan
	sol, err := basicFixture{
		n:       "stanzaPreferred",
		source:  []SourcePackage{c, td},
		targets: targetsOf("C"),
		prefs:   Preferences{Stanzas: map[PackageName][]Stanza{"C": {StanzaTests}}},
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}
	got := planAtoms(sol)
	if len(got) != 2 {
		t.Fatalf("expected [C-1 TD-1], got %v", got)
	}

	// preferred but unsatisfiable: falls back to disabled
	c2 := mksrc("C 1")
	c2.Stanzas = map[Stanza][]Dep{StanzaTests: {dep("Missing any")}}
	basicFixture{
		n:        "stanzaFallsBack",
		source:   []SourcePackage{c2},
		targets:  targetsOf("C"),
		prefs:    Preferences{Stanzas: map[PackageName][]Stanza{"C": {StanzaTests}}},
		wantPlan: []string{"C-1"},
	}.run(t)
}

func TestSolveEnableAllTestsForcesStanza(t *testing.T) {
	c := mksrc("C 1")
	c.Stanzas = map[Stanza][]Dep{StanzaTests: {dep("Missing any")}}

	basicFixture{
		n:           "forcedStanza",
		source:      []SourcePackage{c},
		targets:     targetsOf("C"),
		opts:        Options{EnableAllTests: true},
		wantFail:    true,
		wantFailCat: FailUnknownPackage,
	}.run(t)
}

func TestSolveAvoidReinstallsAndShadowing(t *testing.T) {
	installed := []InstalledPackage{mkinst("B 1")}
	source := []SourcePackage{
		mksrc("B 1"),
		mksrc("B 2"),
		mksrc("C 1", dep("B ==1")),
	}

	sol, err := basicFixture{
		n:         "avoidReinstalls",
		installed: installed,
		source:    source,
		targets:   targetsOf("C"),
		opts:      Options{AvoidReinstalls: true},
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}
	for _, rp := range sol.Packages() {
		if rp.Name() == "B" && rp.PreExisting == nil {
			t.Fatal("avoid-reinstalls should keep the installed B-1")
		}
	}

	sol, err = basicFixture{
		n:         "shadowInstalled",
		installed: installed,
		source:    source,
		targets:   targetsOf("C"),
		opts:      Options{ShadowInstalledPackages: true},
	}.solve(t)
	if err != nil {
		t.Fatalf("expected success: %s", err)
	}
	for _, rp := range sol.Packages() {
		if rp.Name() == "B" && rp.Configured == nil {
			t.Fatal("shadowing should replace the installed B-1 with source")
		}
	}
}

func TestSolveBudgetExhausted(t *testing.T) {
	// The first backtrack moves A from 2 to 1; the unknown dependency of
	// C then forces a second backjump, which exceeds a budget of one.
	source := []SourcePackage{
		mksrc("T 1", dep("A any"), dep("B any"), dep("C any")),
		mksrc("A 1"),
		mksrc("A 2"),
		mksrc("B 1", dep("A ==1")),
		mksrc("C 1", dep("Missing any")),
	}

	basicFixture{
		n:           "budget",
		source:      source,
		targets:     targetsOf("T"),
		opts:        Options{MaxBackjumps: 1},
		wantFail:    true,
		wantFailCat: FailBudgetExhausted,
	}.run(t)

	// the same index without the budget reports the true conflict
	basicFixture{
		n:           "noBudget",
		source:      source,
		targets:     targetsOf("T"),
		opts:        Options{MaxBackjumps: -1},
		wantFail:    true,
		wantFailCat: FailUnknownPackage,
	}.run(t)
}

func TestSolveBacktracksAcrossVersions(t *testing.T) {
	// A-2's requirement is unsatisfiable; the solver must fall back to
	// A-1 rather than fail.
	source := []SourcePackage{
		mksrc("T 1", dep("A any"), dep("B any")),
		mksrc("A 1", dep("C ==1")),
		mksrc("A 2", dep("C ==2")),
		mksrc("B 1", dep("C ==1")),
		mksrc("C 1"),
	}
	basicFixture{
		n:        "backtrack",
		source:   source,
		targets:  targetsOf("T"),
		wantPlan: []string{"T-1", "A-1", "B-1", "C-1"},
	}.run(t)
}

func TestSolveExplicitGoalOrder(t *testing.T) {
	installed, source := sharedIndex()
	f := basicFixture{
		n:         "explicitOrder",
		installed: installed,
		source:    source,
		targets:   targetsOf("C"),
		opts:      Options{GoalOrder: []PackageName{"B", "C", "A"}},
		wantPlan:  []string{"A-1", "B-1", "C-1"},
	}
	f.run(t)
}

func TestSolveReorderAndCountConflictsPreserveOutcome(t *testing.T) {
	installed, source := sharedIndex()
	for _, opts := range []Options{
		{},
		{ReorderGoals: true},
		{CountConflicts: true},
		{ReorderGoals: true, CountConflicts: true},
		{StrongFlags: true},
		{DisableBackjumping: true},
	} {
		f := basicFixture{
			n:         "optionSweepSolvable",
			installed: installed,
			source:    source,
			targets:   targetsOf("C"),
			opts:      opts,
			wantPlan:  []string{"A-1", "B-1", "C-1"},
		}
		f.run(t)

		f = basicFixture{
			n:           "optionSweepUnsolvable",
			installed:   installed,
			source:      source,
			targets:     targetsOf("C", "D"),
			opts:        opts,
			wantFail:    true,
			wantFailCat: FailVersionConflict,
		}
		f.run(t)
	}
}

func TestSolveDeterministicOutput(t *testing.T) {
	installed, source := sharedIndex()
	f := basicFixture{
		n:         "determinism",
		installed: installed,
		source:    source,
		targets:   targetsOf("C", "E"),
	}

	sol1, err1 := f.solve(t)
	sol2, err2 := f.solve(t)
	if err1 != nil || err2 != nil {
		t.Fatalf("expected success twice: %v, %v", err1, err2)
	}

	if sol1.TraceLog() != sol2.TraceLog() {
		t.Fatal("trace logs differ between identical invocations")
	}
	if string(sol1.InputHash()) != string(sol2.InputHash()) {
		t.Fatal("input hashes differ between identical invocations")
	}
	p1, p2 := planAtoms(sol1), planAtoms(sol2)
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatal("plans differ between identical invocations")
		}
	}
}

func TestSolveFailureNarrativeIsDeterministic(t *testing.T) {
	installed, source := sharedIndex()
	f := basicFixture{
		n:         "failDeterminism",
		installed: installed,
		source:    source,
		targets:   targetsOf("C", "D"),
	}

	_, err1 := f.solve(t)
	_, err2 := f.solve(t)
	sf1 := err1.(*SolveFailure)
	sf2 := err2.(*SolveFailure)
	if sf1.Narrative != sf2.Narrative {
		t.Fatal("failure narratives differ between identical invocations")
	}
	if sf1.Log != sf2.Log {
		t.Fatal("failure logs differ between identical invocations")
	}
}
