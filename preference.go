package cabal

import "sort"

// Branch and goal ordering. Preferences are soft: they order branches
// at each choice point but never prune. Goal ordering is a policy, not
// an invariant; everything here is deterministic for a fixed input and
// option set.

// orderCandidates sorts a package choice's branches by: the installed
// preference policy, then soft version preferences, then version
// descending. An installed instance wins a tie with a source instance
// of the same version.
func (s *solver) orderCandidates(g *goal, branches []pBranch) []pBranch {
	prefs := s.params.Preferences.versionPrefs(g.v.QPN.Name)

	installedFirst := false
	switch s.params.Preferences.Installed {
	case PreferAllInstalled:
		installedFirst = true
	case PreferAllLatest:
		installedFirst = false
	case PreferLatestForSelected:
		installedFirst = !s.targets[g.v.QPN]
	}

	prefScore := func(v Version) int {
		n := 0
		for _, vr := range prefs {
			if vr.Contains(v) {
				n++
			}
		}
		return n
	}

	sort.SliceStable(branches, func(i, j int) bool {
		bi, bj := branches[i], branches[j]
		if installedFirst {
			ii, ij := bi.ps.Installed != nil, bj.ps.Installed != nil
			if ii != ij {
				return ii
			}
		}
		si, sj := prefScore(bi.version), prefScore(bj.version)
		if si != sj {
			return si > sj
		}
		c := bi.version.Compare(bj.version)
		if c != 0 {
			return c > 0
		}
		// same version: installed ahead of source
		return bi.ps.Installed != nil && bj.ps.Installed == nil
	})

	return branches
}

// goalRank buckets goals into ordering classes. Lower ranks are decided
// first. Weak flags always sort last; strong-flags promotes the
// remaining flag goals ahead of package goals to surface
// incompatibilities earlier.
func (s *solver) goalRank(g *goal) int {
	switch g.v.Kind {
	case VarFlag:
		if g.weak {
			return 4
		}
		if s.opts.StrongFlags {
			return 0
		}
		return 2
	case VarStanza:
		return 3
	default:
		return 1
	}
}

// explicitRank returns the position of the goal's package in the
// user-supplied goal order, or -1 when absent. An explicit order wins
// entirely over every heuristic.
func (s *solver) explicitRank(g *goal) int {
	for i, name := range s.opts.GoalOrder {
		if g.v.QPN.Name == name {
			return i
		}
	}
	return -1
}

// orderGoals implements the goal-order heuristic: (a) the explicit
// user order when supplied, else (b) conflict counts when
// count-conflicts is on, then recently-failed affinity when
// reorder-goals is on, then the class rank, then lexicographic.
func (s *solver) orderGoals(goals []*goal) *goal {
	best := goals[0]
	for _, g := range goals[1:] {
		if s.goalLess(g, best) {
			best = g
		}
	}
	return best
}

func (s *solver) goalLess(a, b *goal) bool {
	ea, eb := s.explicitRank(a), s.explicitRank(b)
	if ea >= 0 || eb >= 0 {
		if ea < 0 {
			return false
		}
		if eb < 0 {
			return true
		}
		return ea < eb
	}

	if s.opts.CountConflicts {
		ca, cb := s.conflictCount(a.v), s.conflictCount(b.v)
		if ca != cb {
			return ca > cb
		}
	}

	if s.opts.ReorderGoals && s.hasLastFailed {
		if li, has := s.vt.lookup(s.lastFailed); has {
			fa, fb := a.cs.has(li), b.cs.has(li)
			if fa != fb {
				return fa
			}
		}
	}

	ra, rb := s.goalRank(a), s.goalRank(b)
	if ra != rb {
		return ra < rb
	}

	return a.v.String() < b.v.String()
}

func (s *solver) conflictCount(v Var) int {
	i, has := s.vt.lookup(v)
	if !has || i >= len(s.counts) {
		return 0
	}
	return s.counts[i]
}

// noteConflicts feeds an observed conflict set into the count-conflicts
// tally.
func (s *solver) noteConflicts(cs ConflictSet) {
	for _, i := range cs.indices() {
		for len(s.counts) <= i {
			s.counts = append(s.counts, 0)
		}
		s.counts[i]++
	}
}
