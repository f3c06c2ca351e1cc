package cabal

import "fmt"

// PackageName is the opaque identifier of a package.
type PackageName string

// UnitId identifies a single concrete build of a package, installed or
// planned.
type UnitId string

// PackageId identifies one available release of a package.
type PackageId struct {
	Name    PackageName
	Version Version
}

func (pid PackageId) String() string {
	return fmt.Sprintf("%s-%s", pid.Name, pid.Version)
}

// FlagName names a configuration flag, scoped to a single package
// version.
type FlagName string

// FlagAssignment maps each declared flag of a package version to a
// value. A complete assignment is total over the declared set.
type FlagAssignment map[FlagName]bool

// Stanza is an optional, conditionally-enabled block of build metadata.
type Stanza uint8

const (
	StanzaTests Stanza = iota
	StanzaBenchmarks
)

func (st Stanza) String() string {
	switch st {
	case StanzaTests:
		return "test"
	case StanzaBenchmarks:
		return "bench"
	}
	panic(fmt.Sprintf("canary - unknown stanza %d", st))
}

// QualifierKind discriminates the namespaces package goals can live in.
type QualifierKind uint8

const (
	// QualTop is the default namespace for user targets and their
	// regular dependency closures.
	QualTop QualifierKind = iota
	// QualIndep is one independent-goal namespace; goals in distinct
	// Indep namespaces may resolve the same name to distinct versions.
	QualIndep
	// QualSetup is the namespace for the dependencies of a package's
	// own setup script.
	QualSetup
	// QualExe is the namespace for a build-tool dependency: a separate
	// build of the named package that produces an executable.
	QualExe
)

// Qualifier is a namespace on package names. Goals in distinct
// qualifiers may pick distinct versions; goals within one qualifier are
// subject to the single instance restriction.
type Qualifier struct {
	Kind QualifierKind
	// N is the independent-goal index for QualIndep.
	N int
	// Pkg is the owning package for QualSetup and QualExe.
	Pkg PackageName
	// Exe is the tool package for QualExe.
	Exe PackageName
}

var qualTop = Qualifier{Kind: QualTop}

func indepQualifier(n int) Qualifier { return Qualifier{Kind: QualIndep, N: n} }

func setupQualifier(p PackageName) Qualifier { return Qualifier{Kind: QualSetup, Pkg: p} }

func exeQualifier(p, exe PackageName) Qualifier {
	return Qualifier{Kind: QualExe, Pkg: p, Exe: exe}
}

func (q Qualifier) String() string {
	switch q.Kind {
	case QualTop:
		return ""
	case QualIndep:
		return fmt.Sprintf("indep(%d)", q.N)
	case QualSetup:
		return fmt.Sprintf("setup(%s)", q.Pkg)
	case QualExe:
		return fmt.Sprintf("%s:exe(%s)", q.Pkg, q.Exe)
	}
	panic(fmt.Sprintf("canary - unknown qualifier kind %d", q.Kind))
}

// QPN is a qualified package name: the unit of decision for the solver.
type QPN struct {
	Qual Qualifier
	Name PackageName
}

func (q QPN) String() string {
	if q.Qual.Kind == QualTop {
		return string(q.Name)
	}
	return q.Qual.String() + "/" + string(q.Name)
}

// VarKind discriminates the kinds of solver variables.
type VarKind uint8

const (
	VarPackage VarKind = iota
	VarFlag
	VarStanza
)

// Var is a solver variable: the version of a qualified package, the
// value of one of its flags, or the inclusion of one of its stanzas.
// Vars are the members of conflict sets.
type Var struct {
	Kind   VarKind
	QPN    QPN
	Flag   FlagName
	Stanza Stanza
}

func pkgVar(qpn QPN) Var { return Var{Kind: VarPackage, QPN: qpn} }

func flagVar(qpn QPN, f FlagName) Var { return Var{Kind: VarFlag, QPN: qpn, Flag: f} }

func stanzaVar(qpn QPN, st Stanza) Var { return Var{Kind: VarStanza, QPN: qpn, Stanza: st} }

func (v Var) String() string {
	switch v.Kind {
	case VarPackage:
		return v.QPN.String()
	case VarFlag:
		return fmt.Sprintf("%s:%s", v.QPN, v.Flag)
	case VarStanza:
		return fmt.Sprintf("%s:*%s", v.QPN, v.Stanza)
	}
	panic(fmt.Sprintf("canary - unknown var kind %d", v.Kind))
}

// InstalledPackage is an immutable, pre-validated package from the
// installed package database. It introduces no flag or stanza goals and
// its dependencies are concrete unit ids.
type InstalledPackage struct {
	UnitId  UnitId
	Name    PackageName
	Version Version
	Depends []UnitId
	Exposed bool
}

// FlagDecl declares one configuration flag of a source package version.
type FlagDecl struct {
	Name FlagName
	// Default is the value tried first by the solver.
	Default bool
	// Manual flags are never toggled automatically; only a user
	// constraint can move them off their default.
	Manual bool
}

// SourcePackage describes one available release of a buildable package:
// its dependency expression tree, declared flags and optional stanzas.
type SourcePackage struct {
	Name      PackageName
	Version   Version
	Deps      []Dep
	SetupDeps []Dep
	Flags     []FlagDecl
	Stanzas   map[Stanza][]Dep
	// MinCompiler is the declared minimum compiler version, or nil for
	// no bound.
	MinCompiler Version
}

func (sp *SourcePackage) pid() PackageId {
	return PackageId{Name: sp.Name, Version: sp.Version}
}

func (sp *SourcePackage) flagDecl(f FlagName) (FlagDecl, bool) {
	for _, fd := range sp.Flags {
		if fd.Name == f {
			return fd, true
		}
	}
	return FlagDecl{}, false
}

// PackageSource is one candidate instance of a package: either an
// installed package or an available source release. Exactly one field
// is non-nil.
type PackageSource struct {
	Installed *InstalledPackage
	Source    *SourcePackage
}

func (ps PackageSource) version() Version {
	if ps.Installed != nil {
		return ps.Installed.Version
	}
	return ps.Source.Version
}

func (ps PackageSource) name() PackageName {
	if ps.Installed != nil {
		return ps.Installed.Name
	}
	return ps.Source.Name
}

// Platform describes the host the plan is being computed for. The
// solver treats it as opaque input surfaced to hashing only.
type Platform struct {
	OS       string
	Arch     string
	WordSize int
}

// CompilerInfo is the fixed description of the configured compiler.
// Extension and language support is exactly the enumerated sets;
// unknown names are never assumed satisfiable.
type CompilerInfo struct {
	Flavor     string
	Version    Version
	Extensions []string
	Languages  []string
	ABITag     string
}

func (ci CompilerInfo) supportsExtension(ext string) bool {
	for _, e := range ci.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (ci CompilerInfo) supportsLanguage(lang string) bool {
	for _, l := range ci.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// PkgConfigDb maps external system library names to their installed
// versions.
type PkgConfigDb map[string][]Version

// atom pairs a qualified name with a concrete version: one candidate
// decision.
type atom struct {
	qpn     QPN
	version Version
}

func (a atom) String() string {
	return fmt.Sprintf("%s-%s", a.qpn, a.version)
}
