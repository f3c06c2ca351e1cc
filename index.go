package cabal

import (
	"sort"

	"github.com/pkg/errors"
)

// Index is the read-only catalogue of installed and source packages the
// solver draws candidates from. It is immutable after construction and
// safe to share between concurrent solver invocations.
type Index struct {
	source     sourceTrie
	installed  map[UnitId]*InstalledPackage
	instByName map[PackageName][]*InstalledPackage
}

// NewIndex builds an Index from installed and source package sets. The
// inputs are copied; version lists are ordered high-to-low. It errors on
// duplicate unit ids or duplicate (name, version) source entries.
func NewIndex(installed []InstalledPackage, source []SourcePackage) (*Index, error) {
	x := &Index{
		source:     newSourceTrie(),
		installed:  make(map[UnitId]*InstalledPackage, len(installed)),
		instByName: make(map[PackageName][]*InstalledPackage),
	}

	for i := range installed {
		ip := installed[i]
		if _, has := x.installed[ip.UnitId]; has {
			return nil, errors.Errorf("duplicate installed unit id %q", ip.UnitId)
		}
		x.installed[ip.UnitId] = &ip
		x.instByName[ip.Name] = append(x.instByName[ip.Name], &ip)
	}
	for _, ips := range x.instByName {
		sortInstalledDesc(ips)
	}

	byName := make(map[PackageName][]*SourcePackage)
	for i := range source {
		sp := source[i]
		for _, prev := range byName[sp.Name] {
			if prev.Version.Compare(sp.Version) == 0 {
				return nil, errors.Errorf("duplicate source package %s", sp.pid())
			}
		}
		byName[sp.Name] = append(byName[sp.Name], &sp)
	}
	for name, sps := range byName {
		sort.Slice(sps, func(i, j int) bool {
			return sps[i].Version.Compare(sps[j].Version) > 0
		})
		x.source.Insert(name, sps)
	}

	return x, nil
}

func sortInstalledDesc(ips []*InstalledPackage) {
	sort.Slice(ips, func(i, j int) bool {
		c := ips[i].Version.Compare(ips[j].Version)
		if c != 0 {
			return c > 0
		}
		return ips[i].UnitId < ips[j].UnitId
	})
}

// Lookup returns every candidate instance of the named package,
// installed and source, ordered high-to-low by version with installed
// instances preceding a source instance of equal version. Results are
// stable across queries. An unknown name yields nil.
func (x *Index) Lookup(name PackageName) []PackageSource {
	sps, _ := x.source.Get(name)
	ips := x.instByName[name]
	if len(sps) == 0 && len(ips) == 0 {
		return nil
	}

	out := make([]PackageSource, 0, len(sps)+len(ips))
	i, j := 0, 0
	for i < len(ips) || j < len(sps) {
		switch {
		case j >= len(sps):
			out = append(out, PackageSource{Installed: ips[i]})
			i++
		case i >= len(ips):
			out = append(out, PackageSource{Source: sps[j]})
			j++
		default:
			c := ips[i].Version.Compare(sps[j].Version)
			if c >= 0 {
				out = append(out, PackageSource{Installed: ips[i]})
				i++
			} else {
				out = append(out, PackageSource{Source: sps[j]})
				j++
			}
		}
	}
	return out
}

// Known reports whether the index has any instance of the named
// package.
func (x *Index) Known(name PackageName) bool {
	if _, has := x.source.Get(name); has {
		return true
	}
	_, has := x.instByName[name]
	return has
}

// InstalledByUnitId returns the installed package with the given unit
// id, if any.
func (x *Index) InstalledByUnitId(uid UnitId) (*InstalledPackage, bool) {
	ip, has := x.installed[uid]
	return ip, has
}

// SourceNames returns every name with at least one source release, in
// sorted order.
func (x *Index) SourceNames() []PackageName {
	return x.source.Names()
}

// filterForOptions derives an index with the shadow-installed-packages
// and avoid-reinstalls filters applied. Shadowing removes installed
// packages whose (name, version) also exists as a source release;
// avoiding reinstalls removes source releases whose (name, version) is
// already installed, leaving the installed copy as the only candidate.
// Both off returns the receiver unchanged.
func (x *Index) filterForOptions(shadow, avoidReinstalls bool) *Index {
	if !shadow && !avoidReinstalls {
		return x
	}

	d := &Index{
		source:     newSourceTrie(),
		installed:  make(map[UnitId]*InstalledPackage),
		instByName: make(map[PackageName][]*InstalledPackage),
	}

	hasSourceVersion := func(name PackageName, v Version) bool {
		sps, _ := x.source.Get(name)
		for _, sp := range sps {
			if sp.Version.Compare(v) == 0 {
				return true
			}
		}
		return false
	}
	isInstalledVersion := func(name PackageName, v Version) bool {
		for _, ip := range x.instByName[name] {
			if ip.Version.Compare(v) == 0 {
				return true
			}
		}
		return false
	}

	for uid, ip := range x.installed {
		if shadow && hasSourceVersion(ip.Name, ip.Version) {
			continue
		}
		d.installed[uid] = ip
		d.instByName[ip.Name] = append(d.instByName[ip.Name], ip)
	}
	for _, ips := range d.instByName {
		sortInstalledDesc(ips)
	}

	for _, name := range x.source.Names() {
		sps, _ := x.source.Get(name)
		kept := make([]*SourcePackage, 0, len(sps))
		for _, sp := range sps {
			if avoidReinstalls && isInstalledVersion(sp.Name, sp.Version) {
				continue
			}
			kept = append(kept, sp)
		}
		if len(kept) > 0 {
			d.source.Insert(name, kept)
		}
	}

	return d
}
