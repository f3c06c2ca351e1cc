package cabal

import (
	"github.com/sirupsen/logrus"
)

// The driver walks the lazy tree depth-first with an explicit stack of
// frames, one per open choice point. Failures drive conflict-set
// backjumping: popping frames whose variables are irrelevant to the
// observed conflict without retrying their remaining branches.

// frame is one open choice point on the walk's stack.
type frame struct {
	g      *goal
	v      Var
	varIdx int

	pBranches []pBranch
	values    []bool // flag / stanza branch order

	next int
	// cs accumulates the conflict sets of every branch that failed at
	// this node.
	cs ConflictSet
	// excluded records rejected candidates for the final narrative.
	excluded []failedCandidate

	// mark0 is the journal watermark at frame creation; branchMark is
	// the watermark of the branch currently applied.
	mark0      int
	branchMark int
}

func (fr *frame) branchCount() int {
	if fr.v.Kind == VarPackage {
		return len(fr.pBranches)
	}
	return len(fr.values)
}

// solve runs the walk to one of the three outcomes: a Solution, a
// failure with a conflict set and narrative, or budget exhaustion.
func (s *solver) solve() (Solution, error) {
	for {
		node := s.next()

		if _, done := node.(doneNode); done {
			if fail := s.checkDone(); fail != nil {
				s.noteConflicts(fail.conflictSet())
				s.lastFail = fail
				s.traceFailure(fail)
				if !s.backjump(fail.conflictSet().clone()) {
					return nil, s.finalFailure(fail)
				}
				continue
			}
			s.traceDone()
			return s.buildSolution(), nil
		}

		gc := node.(goalChoiceNode)
		g := s.orderGoals(gc.goals)

		choice := s.expand(g)
		if fn, failed := choice.(failNode); failed {
			s.noteConflicts(fn.f.conflictSet())
			s.setLastFailed(g.v)
			s.traceFailure(fn.f)
			s.lastFail = fn.f
			if !s.backjump(fn.f.conflictSet().clone()) {
				return nil, s.finalFailure(fn.f)
			}
			continue
		}

		fr := s.newFrame(g, choice)
		fr.mark0 = s.j.mark()
		s.goals.remove(g.v)
		s.j.record(op{kind: opDecideGoal, goal: g})
		s.frames = append(s.frames, fr)

		descended, jumped, jcs := s.advanceFrame(fr)
		if descended {
			continue
		}
		C := s.exhaustFrame(fr, jumped, jcs)
		if !s.backjump(C) {
			return nil, s.finalFailure(s.lastFail)
		}
	}
}

func (s *solver) newFrame(g *goal, node treeNode) *frame {
	fr := &frame{g: g, v: g.v, varIdx: s.vt.index(g.v)}
	switch n := node.(type) {
	case *pChoiceNode:
		fr.pBranches = n.branches
		fr.excluded = n.excluded
	case *fChoiceNode:
		fr.values = n.values
	case *sChoiceNode:
		fr.values = n.values
	default:
		panic("canary - unexpected node kind for frame")
	}
	return fr
}

// checkDone validates the complete assignment: the full-graph cycle
// check and the avoid-reinstalls post-check.
func (s *solver) checkDone() solveFailure {
	if fail := s.checkCycles(); fail != nil {
		return fail
	}
	return s.checkReinstalls()
}

// advanceFrame tries branches from fr.next until one validates
// (descended) or the frame is out of branches. When backjumping is
// enabled and a branch fails with a conflict set not containing the
// frame's own variable, the whole node fails with that conflict set
// immediately: no sibling branch can resolve a conflict the variable
// does not participate in.
func (s *solver) advanceFrame(fr *frame) (descended, jumped bool, jcs ConflictSet) {
	for fr.next < fr.branchCount() {
		i := fr.next
		fr.next++
		fr.branchMark = s.j.mark()

		fail := s.applyBranch(fr, i)
		if fail == nil {
			s.traceSelect(fr, i)
			return true, false, ConflictSet{}
		}

		cs := fail.conflictSet()
		s.noteConflicts(cs)
		s.setLastFailed(fr.v)
		s.lastFail = fail
		s.traceReject(fr, i, fail)
		s.revertTo(fr.branchMark)
		fr.excluded = append(fr.excluded, failedCandidate{version: s.branchVersion(fr, i), f: fail})

		if s.enableBackjumping() && !cs.has(fr.varIdx) {
			return false, true, cs.clone()
		}
		fr.cs.unionWith(cs)
	}
	return false, false, ConflictSet{}
}

func (s *solver) applyBranch(fr *frame, i int) solveFailure {
	switch fr.v.Kind {
	case VarPackage:
		return s.applyPackageBranch(fr.g, fr.pBranches[i])
	case VarFlag:
		return s.applyFlagBranch(fr.g, fr.values[i])
	case VarStanza:
		return s.applyStanzaBranch(fr.g, fr.values[i])
	}
	panic("canary - unknown var kind in applyBranch")
}

func (s *solver) branchVersion(fr *frame, i int) Version {
	if fr.v.Kind == VarPackage {
		return fr.pBranches[i].version
	}
	return nil
}

// exhaustFrame computes the conflict set a spent frame propagates
// upward and pops it: the accumulated branch conflicts merged with the
// goal's own introduction set, minus the frame's variable. A jumped
// frame propagates the jumping conflict set untouched.
func (s *solver) exhaustFrame(fr *frame, jumped bool, jcs ConflictSet) ConflictSet {
	var C ConflictSet
	if jumped {
		C = jcs
	} else {
		C = fr.cs.clone()
		C.unionWith(fr.g.cs)
		C.remove(fr.varIdx)
		s.lastExhausted = fr
		s.snapshotSources(C)
	}
	s.revertTo(fr.mark0)
	s.frames = s.frames[:len(s.frames)-1]
	return C
}

// backjump pops stack frames toward the topmost decision whose variable
// appears in C. Frames popped en route are discarded without retrying
// their remaining branches: their variables are not in C, so retrying
// them cannot resolve it. Returns false when the root is exhausted,
// with the merged conflict set left in s.finalCS.
func (s *solver) backjump(C ConflictSet) bool {
	s.backjumps++
	if s.opts.MaxBackjumps >= 0 && s.backjumps > s.opts.MaxBackjumps {
		s.budgetHit = true
		s.finalCS = C
		return false
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"framecount": len(s.frames),
			"backjumps":  s.backjumps,
			"conflicts":  C.render(s.vt),
		}).Debug("Beginning backjump")
	}

	for {
		if len(s.frames) == 0 {
			s.finalCS = C
			return false
		}
		fr := s.frames[len(s.frames)-1]

		// undo the branch that led into the failed subtree
		s.revertTo(fr.branchMark)

		if s.enableBackjumping() && !C.has(fr.varIdx) {
			s.traceSkipFrame(fr)
			s.revertTo(fr.mark0)
			s.frames = s.frames[:len(s.frames)-1]
			continue
		}

		fr.cs.unionWith(C)
		descended, jumped, jcs := s.advanceFrame(fr)
		if descended {
			s.attempts++
			return true
		}
		C = s.exhaustFrame(fr, jumped, jcs)
	}
}

func (s *solver) setLastFailed(v Var) {
	s.lastFailed = v
	s.hasLastFailed = true
}
