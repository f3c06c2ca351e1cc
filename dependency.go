package cabal

import "fmt"

// DepKind discriminates the variants of a dependency expression.
type DepKind uint8

const (
	// DepPackage is a dependency on another package's library,
	// optionally on a particular internal component of it.
	DepPackage DepKind = iota
	// DepBuildTool is a dependency on a distinct build of the named
	// package that produces an executable. It is resolved in its own
	// qualifier.
	DepBuildTool
	// DepExtension requires the configured compiler to support a
	// language extension.
	DepExtension
	// DepLanguage requires the configured compiler to support a base
	// language standard.
	DepLanguage
	// DepPkgConfig is a dependency on an external system library,
	// checked against the pkg-config database.
	DepPkgConfig
	// DepConditional guards two dependency lists on the value of a
	// flag. Conditionals nest arbitrarily.
	DepConditional
)

// Dep is one node of a dependency expression tree. The populated fields
// depend on Kind; use the constructors rather than literal structs.
type Dep struct {
	Kind DepKind

	// Name is the target package for DepPackage and DepBuildTool, and
	// the system library name for DepPkgConfig.
	Name  PackageName
	Range VersionRange
	// Component optionally names an internal component of the target
	// for DepPackage.
	Component string

	// Ext and Lang name the required extension / language standard.
	Ext  string
	Lang string

	// Flag guards Then/Else for DepConditional: Then applies when the
	// flag is true, Else when it is false.
	Flag FlagName
	Then []Dep
	Else []Dep
}

// PkgDep is a dependency on a package's library within the given range.
func PkgDep(name PackageName, vr VersionRange) Dep {
	return Dep{Kind: DepPackage, Name: name, Range: vr}
}

// ComponentDep is a PkgDep on a particular internal component.
func ComponentDep(name PackageName, component string, vr VersionRange) Dep {
	return Dep{Kind: DepPackage, Name: name, Component: component, Range: vr}
}

// ToolDep is a dependency on an executable built from the named package.
func ToolDep(name PackageName, vr VersionRange) Dep {
	return Dep{Kind: DepBuildTool, Name: name, Range: vr}
}

// ExtDep requires a compiler language extension.
func ExtDep(ext string) Dep { return Dep{Kind: DepExtension, Ext: ext} }

// LangDep requires a compiler language standard.
func LangDep(lang string) Dep { return Dep{Kind: DepLanguage, Lang: lang} }

// PkgConfigDep requires an external system library within the range.
func PkgConfigDep(lib string, vr VersionRange) Dep {
	return Dep{Kind: DepPkgConfig, Name: PackageName(lib), Range: vr}
}

// IfFlag guards thenDeps on the flag being true and elseDeps on it
// being false.
func IfFlag(f FlagName, thenDeps, elseDeps []Dep) Dep {
	return Dep{Kind: DepConditional, Flag: f, Then: thenDeps, Else: elseDeps}
}

func (d Dep) String() string {
	switch d.Kind {
	case DepPackage:
		if d.Component != "" {
			return fmt.Sprintf("%s:%s %s", d.Name, d.Component, d.Range)
		}
		return fmt.Sprintf("%s %s", d.Name, d.Range)
	case DepBuildTool:
		return fmt.Sprintf("tool:%s %s", d.Name, d.Range)
	case DepExtension:
		return "ext:" + d.Ext
	case DepLanguage:
		return "lang:" + d.Lang
	case DepPkgConfig:
		return fmt.Sprintf("pkgconfig:%s %s", d.Name, d.Range)
	case DepConditional:
		return fmt.Sprintf("if(%s)", d.Flag)
	}
	panic(fmt.Sprintf("canary - unknown dep kind %d", d.Kind))
}

// mentionsFlag reports whether any conditional in the tree is guarded
// by f.
func mentionsFlag(deps []Dep, f FlagName) bool {
	for _, d := range deps {
		if d.Kind != DepConditional {
			continue
		}
		if d.Flag == f || mentionsFlag(d.Then, f) || mentionsFlag(d.Else, f) {
			return true
		}
	}
	return false
}

// guardedPkgDeps collects the package dependencies reachable in the
// tree when f takes the given value, looking only beneath conditionals
// on f itself. It is used to classify flags as weak or trivial.
func guardedPkgDeps(deps []Dep, f FlagName, val bool) []Dep {
	var out []Dep
	for _, d := range deps {
		switch d.Kind {
		case DepConditional:
			if d.Flag == f {
				branch := d.Then
				if !val {
					branch = d.Else
				}
				out = append(out, collectPkgDeps(branch)...)
			} else {
				out = append(out, guardedPkgDeps(d.Then, f, val)...)
				out = append(out, guardedPkgDeps(d.Else, f, val)...)
			}
		}
	}
	return out
}

// collectPkgDeps flattens every package and build-tool dependency in
// the tree, ignoring guards.
func collectPkgDeps(deps []Dep) []Dep {
	var out []Dep
	for _, d := range deps {
		switch d.Kind {
		case DepPackage, DepBuildTool:
			out = append(out, d)
		case DepConditional:
			out = append(out, collectPkgDeps(d.Then)...)
			out = append(out, collectPkgDeps(d.Else)...)
		}
	}
	return out
}
