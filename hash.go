package cabal

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
)

// HashInputs computes a digest of every input the solve depends on:
// platform, compiler, pkg-config database, targets, constraints,
// preferences, options, and a fingerprint of the index. Identical
// inputs hash identically, so a caller can detect when a stored plan
// has gone stale.
func (s *solver) HashInputs() []byte {
	h := sha256.New()

	wr := func(ss ...string) {
		for _, str := range ss {
			h.Write([]byte(str))
			h.Write([]byte{0})
		}
	}

	p := s.params.Platform
	wr("platform", p.OS, p.Arch, strconv.Itoa(p.WordSize))

	c := s.params.Compiler
	wr("compiler", c.Flavor, c.Version.String(), c.ABITag)
	exts := append([]string(nil), c.Extensions...)
	sort.Strings(exts)
	wr(exts...)
	langs := append([]string(nil), c.Languages...)
	sort.Strings(langs)
	wr(langs...)

	libs := make([]string, 0, len(s.params.PkgConfig))
	for lib := range s.params.PkgConfig {
		libs = append(libs, lib)
	}
	sort.Strings(libs)
	for _, lib := range libs {
		wr("pkgconfig", lib)
		for _, v := range s.params.PkgConfig[lib] {
			wr(v.String())
		}
	}

	for _, t := range s.params.Targets {
		wr("target", string(t.Name), t.Range.String())
	}

	for _, lc := range s.params.Constraints {
		wr("constraint", string(lc.Name), lc.Range.String(), lc.Source.String(), lc.Label)
		flags := make([]string, 0, len(lc.Flags))
		for f, v := range lc.Flags {
			flags = append(flags, fmt.Sprintf("%s=%v", f, v))
		}
		sort.Strings(flags)
		wr(flags...)
	}

	prefs := s.params.Preferences
	wr("installedpref", strconv.Itoa(int(prefs.Installed)))
	for _, pp := range prefs.Version {
		wr("versionpref", string(pp.Name), pp.Range.String())
	}
	stanzaNames := make([]string, 0, len(prefs.Stanzas))
	for name := range prefs.Stanzas {
		stanzaNames = append(stanzaNames, string(name))
	}
	sort.Strings(stanzaNames)
	for _, name := range stanzaNames {
		wr("stanzapref", name)
		for _, st := range prefs.Stanzas[PackageName(name)] {
			wr(st.String())
		}
	}

	o := s.opts
	wr("options",
		strconv.FormatBool(o.IndependentGoals),
		strconv.FormatBool(o.ReorderGoals),
		strconv.FormatBool(o.CountConflicts),
		strconv.FormatBool(o.StrongFlags),
		strconv.FormatBool(o.AvoidReinstalls),
		strconv.FormatBool(o.ShadowInstalledPackages),
		strconv.FormatBool(o.DisableBackjumping),
		strconv.Itoa(o.MaxBackjumps),
		strconv.FormatBool(o.EnableAllTests),
		strconv.FormatBool(o.EnableAllBenchmarks),
	)
	for _, n := range o.GoalOrder {
		wr("goalorder", string(n))
	}

	s.hashIndex(wr)

	return h.Sum(nil)
}

// hashIndex fingerprints the filtered index the solve actually sees.
func (s *solver) hashIndex(wr func(...string)) {
	for _, name := range s.idx.SourceNames() {
		wr("source", string(name))
		for _, ps := range s.idx.Lookup(name) {
			if ps.Source != nil {
				wr(ps.Source.Version.String())
			}
		}
	}

	uids := make([]string, 0, len(s.idx.installed))
	for uid := range s.idx.installed {
		uids = append(uids, string(uid))
	}
	sort.Strings(uids)
	for _, uid := range uids {
		ip := s.idx.installed[UnitId(uid)]
		wr("installed", uid, string(ip.Name), ip.Version.String())
		for _, dep := range ip.Depends {
			wr(string(dep))
		}
	}
}
