package cabal

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Validation runs before a candidate's subtree is expanded: every
// decision is applied through here, and a non-nil return means the
// branch is rejected with the returned failure's conflict set. All
// mutations go through the journal, so a rejected or backjumped branch
// reverts cleanly.

// applyPackageBranch selects a candidate version for a package goal and
// validates every dependency it introduces.
func (s *solver) applyPackageBranch(g *goal, br pBranch) solveFailure {
	qpn := g.v.QPN

	si := &selectedInstance{
		qpn:     qpn,
		ps:      br.ps,
		version: br.version,
		pending: make(map[FlagName][]pendingCond),
	}
	s.a.pkgs[qpn] = si
	s.a.order = append(s.a.order, g.v)
	s.j.record(op{kind: opSelectPkg, qpn: qpn})

	s.tryLink(si)

	base := g.cs.clone()
	base.add(s.vt.index(g.v))

	if br.ps.Installed != nil {
		return s.processInstalledDeps(si, br.ps.Installed, base)
	}

	sp := br.ps.Source
	if fail := s.processDeps(si, sp.Deps, false, base); fail != nil {
		return fail
	}
	if fail := s.processDeps(si, sp.SetupDeps, true, base); fail != nil {
		return fail
	}

	s.introduceFlagGoals(si, sp, base)
	s.introduceStanzaGoals(si, sp, base)
	return nil
}

// processInstalledDeps walks an installed package's concrete dependency
// set. Installed packages are pre-validated; their dependencies pin
// exact versions of other installed units in the same qualifier.
func (s *solver) processInstalledDeps(si *selectedInstance, ip *InstalledPackage, base ConflictSet) solveFailure {
	for _, uid := range ip.Depends {
		dep, has := s.idx.InstalledByUnitId(uid)
		if !has {
			// The unit was filtered out or never registered; surface it
			// as an unknown package under this qualifier.
			cs := base.clone()
			qpn := QPN{Qual: si.qpn.Qual, Name: PackageName(uid)}
			cs.add(s.vt.index(pkgVar(qpn)))
			return &unknownPackageFailure{qpn: qpn, depender: pkgVar(si.qpn), hasDep: true, cs: cs}
		}
		d := PkgDep(dep.Name, Exactly(dep.Version))
		if fail := s.addDepEdge(si, d, false, SourceInstalled, base); fail != nil {
			return fail
		}
	}
	return nil
}

// processDeps walks a dependency expression tree with the flag values
// decided so far. Conditionals on undecided flags are parked as pending
// subtrees and revisited when the flag is assigned; base carries the
// conflict set of the guard path.
func (s *solver) processDeps(si *selectedInstance, deps []Dep, setup bool, base ConflictSet) solveFailure {
	for _, d := range deps {
		switch d.Kind {
		case DepConditional:
			val, decided := s.a.flagValue(si.qpn, d.Flag)
			if !decided {
				si.pending[d.Flag] = append(si.pending[d.Flag], pendingCond{dep: d, setup: setup, cs: base.clone()})
				s.j.record(op{kind: opAddPending, qpn: si.qpn, flag: d.Flag})
				continue
			}
			branch := d.Then
			if !val {
				branch = d.Else
			}
			cs := base.clone()
			cs.add(s.vt.index(flagVar(si.qpn, d.Flag)))
			if fail := s.processDeps(si, branch, setup, cs); fail != nil {
				return fail
			}

		case DepPackage, DepBuildTool:
			src := SourceDependency
			if setup {
				src = SourceSetupDependency
			}
			if fail := s.addDepEdge(si, d, setup, src, base); fail != nil {
				return fail
			}

		case DepExtension:
			if !s.params.Compiler.supportsExtension(d.Ext) {
				return &missingExtensionFailure{
					ext:  d.Ext,
					goal: atom{qpn: si.qpn, version: si.version},
					cs:   base.clone(),
				}
			}

		case DepLanguage:
			if !s.params.Compiler.supportsLanguage(d.Lang) {
				return &missingLanguageFailure{
					lang: d.Lang,
					goal: atom{qpn: si.qpn, version: si.version},
					cs:   base.clone(),
				}
			}

		case DepPkgConfig:
			if fail := s.checkPkgConfig(si, d, base); fail != nil {
				return fail
			}
		}
	}
	return nil
}

func (s *solver) checkPkgConfig(si *selectedInstance, d Dep, base ConflictSet) solveFailure {
	lib := string(d.Name)
	versions := s.params.PkgConfig[lib]
	for _, v := range versions {
		if d.Range.Contains(v) {
			return nil
		}
	}
	return &missingPkgConfigFailure{
		lib:       lib,
		vr:        d.Range,
		available: versions,
		goal:      atom{qpn: si.qpn, version: si.version},
		cs:        base.clone(),
	}
}

// addDepEdge validates and records one package (or build-tool)
// dependency edge, accumulating its constraint and introducing or
// strengthening the target goal.
func (s *solver) addDepEdge(si *selectedInstance, d Dep, setup bool, src ConstraintSource, base ConflictSet) solveFailure {
	target, kind := s.depTarget(si, d, setup)
	tv := pkgVar(target)

	if !s.idx.Known(target.Name) {
		cs := base.clone()
		cs.add(s.vt.index(tv))
		return &unknownPackageFailure{qpn: target, depender: pkgVar(si.qpn), hasDep: true, cs: cs}
	}

	s.cm.push(target, labeledRange{
		vr:        d.Range,
		source:    src,
		label:     fmt.Sprintf("%s requires %s %s", atom{qpn: si.qpn, version: si.version}, d.Name, d.Range),
		origin:    pkgVar(si.qpn),
		hasOrigin: true,
	})
	s.j.record(op{kind: opPushRange, qpn: target})

	if sel, has := s.a.selected(target); has {
		if !d.Range.Contains(sel.version) {
			cs := base.clone()
			cs.add(s.vt.index(tv))
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":          si.qpn.String(),
					"version":       si.version.String(),
					"depname":       target.String(),
					"curversion":    sel.version.String(),
					"newconstraint": d.Range.String(),
				}).Debug("Decision introduces a constraint that does not allow a selected version")
			}
			return &constraintNotAllowedFailure{
				depender: atom{qpn: si.qpn, version: si.version},
				dep:      target,
				vr:       d.Range,
				selected: sel.version,
				cs:       cs,
			}
		}
	} else {
		// Preliminary check: the new constraint must leave at least one
		// candidate inside the accumulated intersection. Strict
		// satisfaction is enforced when the subgoal itself is reached.
		if !s.anyCandidate(target) {
			existing := s.cm.rangesOn(target)
			cs := base.clone()
			cs.add(s.vt.index(tv))
			for _, lr := range existing {
				if lr.hasOrigin {
					cs.add(s.vt.index(lr.origin))
				}
			}
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":          si.qpn.String(),
					"version":       si.version.String(),
					"depname":       target.String(),
					"newconstraint": d.Range.String(),
				}).Debug("Decision cannot be added; its constraints are disjoint with existing constraints")
			}
			return &disjointConstraintFailure{
				depender: atom{qpn: si.qpn, version: si.version},
				dep:      target,
				vr:       d.Range,
				existing: existing,
				cs:       cs,
			}
		}
	}

	s.a.edges = append(s.a.edges, depEdge{from: si.qpn, to: target, kind: kind})
	s.j.record(op{kind: opAddEdge})

	if _, has := s.a.selected(target); !has {
		s.introduceGoal(si, target, d, setup, base)
	}
	return nil
}

// depTarget computes the qualified name a dependency resolves in.
// Regular dependencies stay in the depender's qualifier; setup
// dependencies open the depender's setup namespace; build-tool
// dependencies open an executable namespace. Independent-goal indices
// propagate through.
func (s *solver) depTarget(si *selectedInstance, d Dep, setup bool) (QPN, edgeKind) {
	parent := si.qpn.Qual
	switch {
	case d.Kind == DepBuildTool:
		q := Qualifier{Kind: QualExe, N: parent.N, Pkg: si.qpn.Name, Exe: d.Name}
		return QPN{Qual: q, Name: d.Name}, edgeTool
	case setup:
		q := Qualifier{Kind: QualSetup, N: parent.N, Pkg: si.qpn.Name}
		return QPN{Qual: q, Name: d.Name}, edgeSetup
	default:
		return QPN{Qual: parent, Name: d.Name}, edgeLib
	}
}

// anyCandidate reports whether any instance of the target satisfies the
// accumulated range intersection.
func (s *solver) anyCandidate(target QPN) bool {
	vr := s.cm.versionRange(target)
	for _, ps := range s.idx.Lookup(target.Name) {
		if vr.Contains(ps.version()) {
			return true
		}
	}
	return false
}

// introduceGoal adds or strengthens the package goal for a dependency
// target. A re-introduced goal unions the new path's conflict set into
// its own, so exhausting it can reach every choice that wanted it.
func (s *solver) introduceGoal(si *selectedInstance, target QPN, d Dep, setup bool, base ConflictSet) {
	tv := pkgVar(target)
	if g, has := s.goals.get(tv); has {
		s.j.record(op{kind: opMergeGoalCS, v: tv, prevCS: g.cs.clone()})
		g.cs.unionWith(base)
		return
	}

	kind := reasonDependency
	switch {
	case setup:
		kind = reasonSetupDependency
	case d.Kind == DepBuildTool:
		kind = reasonToolDependency
	}

	s.seq++
	g := &goal{
		v:      tv,
		reason: goalReason{kind: kind, from: pkgVar(si.qpn), hasFrom: true},
		cs:     base.clone(),
		seq:    s.seq,
	}
	s.goals.add(g)
	s.j.record(op{kind: opAddGoal, v: tv})
}

// introduceFlagGoals opens one goal per declared flag of a selected
// source package. Weak flags (no dependency drives their default) sort
// late in goal ordering; trivial flags guard nothing at all.
func (s *solver) introduceFlagGoals(si *selectedInstance, sp *SourcePackage, base ConflictSet) {
	all := make([]Dep, 0, len(sp.Deps)+len(sp.SetupDeps))
	all = append(all, sp.Deps...)
	all = append(all, sp.SetupDeps...)
	for _, st := range []Stanza{StanzaTests, StanzaBenchmarks} {
		all = append(all, sp.Stanzas[st]...)
	}

	for _, fd := range sp.Flags {
		trivial := !mentionsFlag(all, fd.Name)
		weak := len(guardedPkgDeps(all, fd.Name, fd.Default)) == 0

		s.seq++
		g := &goal{
			v:       flagVar(si.qpn, fd.Name),
			reason:  goalReason{kind: reasonFlagDecl, from: pkgVar(si.qpn), hasFrom: true},
			cs:      base.clone(),
			seq:     s.seq,
			decl:    fd,
			weak:    weak,
			trivial: trivial,
		}
		s.goals.add(g)
		s.j.record(op{kind: opAddGoal, v: g.v})
	}
}

// introduceStanzaGoals opens one goal per declared stanza.
func (s *solver) introduceStanzaGoals(si *selectedInstance, sp *SourcePackage, base ConflictSet) {
	for _, st := range []Stanza{StanzaTests, StanzaBenchmarks} {
		if _, has := sp.Stanzas[st]; !has {
			continue
		}
		s.seq++
		g := &goal{
			v:      stanzaVar(si.qpn, st),
			reason: goalReason{kind: reasonStanzaDecl, from: pkgVar(si.qpn), hasFrom: true},
			cs:     base.clone(),
			seq:    s.seq,
			stanza: st,
		}
		s.goals.add(g)
		s.j.record(op{kind: opAddGoal, v: g.v})
	}
}

// applyFlagBranch assigns a flag value, checks link agreement, and
// unfolds the conditional subtrees the assignment unlocks.
func (s *solver) applyFlagBranch(g *goal, val bool) solveFailure {
	qpn := g.v.QPN
	f := g.v.Flag

	fa := s.a.flags[qpn]
	if fa == nil {
		fa = make(FlagAssignment)
		s.a.flags[qpn] = fa
	}
	fa[f] = val
	s.a.order = append(s.a.order, g.v)
	s.j.record(op{kind: opSetFlag, qpn: qpn, flag: f})

	for _, partner := range s.a.linkPartners(qpn) {
		pv, decided := s.a.flagValue(partner, f)
		if decided && pv != val {
			cs := csOf(s.vt, g.v, flagVar(partner, f))
			cs.unionWith(g.cs)
			return &linkingViolationFailure{qpn: qpn, partner: partner, flag: f, cs: cs}
		}
	}

	si, has := s.a.selected(qpn)
	if !has {
		panic("canary - flag decided for unselected package")
	}

	pendings := si.pending[f]
	if len(pendings) > 0 {
		s.j.record(op{kind: opConsumePending, qpn: qpn, flag: f, pendings: pendings})
		si.pending[f] = nil
		for _, p := range pendings {
			branch := p.dep.Then
			if !val {
				branch = p.dep.Else
			}
			cs := p.cs.clone()
			cs.add(s.vt.index(g.v))
			if fail := s.processDeps(si, branch, p.setup, cs); fail != nil {
				return fail
			}
		}
	}
	return nil
}

// applyStanzaBranch decides a stanza, checks link agreement on the
// stanza variable, and unfolds the stanza's dependencies on enable.
func (s *solver) applyStanzaBranch(g *goal, enable bool) solveFailure {
	qpn := g.v.QPN
	st := g.stanza

	sa := s.a.stanzas[qpn]
	if sa == nil {
		sa = make(map[Stanza]bool)
		s.a.stanzas[qpn] = sa
	}
	sa[st] = enable
	s.a.order = append(s.a.order, g.v)
	s.j.record(op{kind: opSetStanza, qpn: qpn, stanza: st})

	for _, partner := range s.a.linkPartners(qpn) {
		pv, decided := s.a.stanzaValue(partner, st)
		if decided && pv != enable {
			cs := csOf(s.vt, g.v, stanzaVar(partner, st))
			cs.unionWith(g.cs)
			return &sirViolationFailure{qpn: qpn, partner: partner, stanza: st, cs: cs}
		}
	}

	if !enable {
		return nil
	}

	si, has := s.a.selected(qpn)
	if !has {
		panic("canary - stanza decided for unselected package")
	}
	cs := g.cs.clone()
	cs.add(s.vt.index(g.v))
	cs.add(s.vt.index(pkgVar(qpn)))
	return s.processDeps(si, si.ps.Source.Stanzas[st], false, cs)
}
