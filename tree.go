package cabal

// The search tree is lazy: nodes are materialized one at a time, on
// demand, as the driver walks. A node is either a leaf (Done, Fail) or
// a choice point. GoalChoice nodes commit to nothing themselves; they
// present the open goals and leave ordering to the driver.

type treeNode interface {
	isTreeNode()
}

// doneNode is a leaf with a consistent, complete assignment.
type doneNode struct{}

// failNode is a leaf failure carrying its conflict set (inside f).
type failNode struct {
	f solveFailure
}

// pBranch is one candidate version for a package choice.
type pBranch struct {
	ps      PackageSource
	version Version
}

// pChoiceNode decides which version of a qualified package to use.
// Branches are ordered by preference. excluded records candidates
// filtered out during expansion, for the final narrative. skippable
// is the slot for a package that is optional because every reason for
// its existence is a still-revocable optional stanza. expandPackage
// never sets it and no skip branch is ever built: stanza-guarded goals
// are introduced only after their stanza is decided enabled, so no
// package goal is optional.
type pChoiceNode struct {
	goal      *goal
	qpn       QPN
	branches  []pBranch
	excluded  []failedCandidate
	skippable bool
}

// fChoiceNode decides a flag value. values holds the branch order;
// pinned or manual or trivial flags may carry a single branch.
type fChoiceNode struct {
	goal    *goal
	qpn     QPN
	flag    FlagName
	weak    bool
	trivial bool
	values  []bool
}

// sChoiceNode decides whether to include an optional stanza.
type sChoiceNode struct {
	goal   *goal
	qpn    QPN
	stanza Stanza
	values []bool
}

// goalChoiceNode presents the equally-valid next goals; the driver
// orders them.
type goalChoiceNode struct {
	goals []*goal
}

func (doneNode) isTreeNode()       {}
func (failNode) isTreeNode()       {}
func (*pChoiceNode) isTreeNode()   {}
func (*fChoiceNode) isTreeNode()   {}
func (*sChoiceNode) isTreeNode()   {}
func (goalChoiceNode) isTreeNode() {}

// next materializes the next node for the current state: Done when no
// goals remain, otherwise a GoalChoice over the open goals.
func (s *solver) next() treeNode {
	if s.goals.empty() {
		return doneNode{}
	}
	return goalChoiceNode{goals: s.goals.all()}
}

// expand unfolds one goal into its choice node. A goal with no viable
// branches expands to a Fail leaf instead.
func (s *solver) expand(g *goal) treeNode {
	switch g.v.Kind {
	case VarPackage:
		return s.expandPackage(g)
	case VarFlag:
		return s.expandFlag(g)
	case VarStanza:
		return s.expandStanza(g)
	}
	panic("canary - unknown goal kind in expand")
}

func (s *solver) expandPackage(g *goal) treeNode {
	qpn := g.v.QPN

	if !s.idx.Known(qpn.Name) {
		cs := g.cs.clone()
		cs.add(s.vt.index(g.v))
		f := &unknownPackageFailure{qpn: qpn, cs: cs}
		if g.reason.hasFrom {
			f.depender = g.reason.from
			f.hasDep = true
		}
		return failNode{f: f}
	}

	vr := s.cm.versionRange(qpn)
	cands := s.idx.Lookup(qpn.Name)

	var branches []pBranch
	var excluded []failedCandidate
	for _, ps := range cands {
		v := ps.version()
		if !vr.Contains(v) {
			continue
		}
		if ps.Source != nil && ps.Source.MinCompiler != nil &&
			s.params.Compiler.Version.Compare(ps.Source.MinCompiler) < 0 {
			cs := g.cs.clone()
			cs.add(s.vt.index(g.v))
			excluded = append(excluded, failedCandidate{
				version: v,
				f: &compilerTooOldFailure{
					goal:     atom{qpn: qpn, version: v},
					min:      ps.Source.MinCompiler,
					compiler: s.params.Compiler.Version,
					cs:       cs,
				},
			})
			continue
		}
		branches = append(branches, pBranch{ps: ps, version: v})
	}

	if len(branches) == 0 {
		contributing := s.cm.rangesOn(qpn)
		cs := g.cs.clone()
		cs.add(s.vt.index(g.v))
		for _, lr := range contributing {
			if lr.hasOrigin {
				cs.add(s.vt.index(lr.origin))
			}
		}
		for _, fc := range excluded {
			cs.unionWith(fc.f.conflictSet())
		}
		return failNode{f: &emptyRangeFailure{qpn: qpn, contributing: contributing, cs: cs}}
	}

	branches = s.orderCandidates(g, branches)
	return &pChoiceNode{goal: g, qpn: qpn, branches: branches, excluded: excluded}
}

func (s *solver) expandFlag(g *goal) treeNode {
	qpn := g.v.QPN
	f := g.v.Flag
	forbidTrue, forbidFalse := s.cm.forbiddenFlagValue(qpn, f)

	if forbidTrue && forbidFalse {
		cs := g.cs.clone()
		cs.add(s.vt.index(g.v))
		return failNode{f: &flagConflictFailure{qpn: qpn, flag: f, cs: cs}}
	}

	def := g.decl.Default
	var values []bool
	switch {
	case g.decl.Manual:
		// A manual flag holds its default unless a user pin moves it.
		pinned := def
		if forbidTrue {
			pinned = false
		} else if forbidFalse {
			pinned = true
		}
		values = []bool{pinned}
	case g.trivial:
		// Both branches are structurally identical; decide arbitrarily.
		v := def
		if (v && forbidTrue) || (!v && forbidFalse) {
			v = !v
		}
		values = []bool{v}
	default:
		for _, v := range []bool{def, !def} {
			if v && forbidTrue {
				continue
			}
			if !v && forbidFalse {
				continue
			}
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		cs := g.cs.clone()
		cs.add(s.vt.index(g.v))
		return failNode{f: &flagConflictFailure{qpn: qpn, flag: f, cs: cs}}
	}

	return &fChoiceNode{goal: g, qpn: qpn, flag: f, weak: g.weak, trivial: g.trivial, values: values}
}

func (s *solver) expandStanza(g *goal) treeNode {
	qpn := g.v.QPN
	st := g.stanza

	var values []bool
	switch {
	case s.stanzaForced(qpn, st):
		values = []bool{true}
	case s.params.Preferences.prefersStanza(qpn.Name, st):
		values = []bool{true, false}
	default:
		values = []bool{false}
	}

	return &sChoiceNode{goal: g, qpn: qpn, stanza: st, values: values}
}

// stanzaForced reports whether the global stanza policy requires the
// stanza enabled: the package is a user target and the matching
// enable-all option is set.
func (s *solver) stanzaForced(qpn QPN, st Stanza) bool {
	if !s.targets[qpn] {
		return false
	}
	switch st {
	case StanzaTests:
		return s.opts.EnableAllTests
	case StanzaBenchmarks:
		return s.opts.EnableAllBenchmarks
	}
	return false
}
