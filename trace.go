package cabal

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	successChar = "✓"
	failChar    = "✗"
	backChar    = "←"
	linkChar    = "~"
)

// TraceEventKind tags entries of the walk's raw event stream.
type TraceEventKind uint8

const (
	TraceSelect TraceEventKind = iota
	TraceReject
	TraceBackjump
	TraceLink
	TraceDone
	TraceFail
)

// TraceEvent is one step of the walk. The stream is deterministic for a
// fixed input and option set; tests consume it directly while users see
// the rendered text.
type TraceEvent struct {
	Kind    TraceEventKind
	Var     Var
	Version Version
	Value   bool
	Depth   int
	Msg     string
}

// tracer accumulates the event stream and its rendered form. Rendering
// is separate from the events so the log stays assertable.
type tracer struct {
	events []TraceEvent
	buf    bytes.Buffer
}

func (t *tracer) record(ev TraceEvent) {
	t.events = append(t.events, ev)
	prefix := strings.Repeat("| ", ev.Depth)
	fmt.Fprintf(&t.buf, "%s%s\n", prefix, ev.Msg)
}

func (t *tracer) log() string { return t.buf.String() }

func (s *solver) depth() int { return len(s.frames) }

func (s *solver) traceSelect(fr *frame, i int) {
	var msg string
	ev := TraceEvent{Kind: TraceSelect, Var: fr.v, Depth: s.depth() - 1}
	switch fr.v.Kind {
	case VarPackage:
		ev.Version = fr.pBranches[i].version
		what := "source"
		if fr.pBranches[i].ps.Installed != nil {
			what = "installed"
		}
		msg = fmt.Sprintf("%s select %s-%s (%s)", successChar, fr.v.QPN, ev.Version, what)
	case VarFlag:
		ev.Value = fr.values[i]
		msg = fmt.Sprintf("%s flag %s=%v", successChar, fr.v, ev.Value)
	case VarStanza:
		ev.Value = fr.values[i]
		verb := "disable"
		if ev.Value {
			verb = "enable"
		}
		msg = fmt.Sprintf("%s %s stanza %s", successChar, verb, fr.v)
	}
	ev.Msg = msg
	s.tl.record(ev)

	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"var":      fr.v.String(),
			"attempts": s.attempts,
		}).Info("Accepted decision")
	}
}

func (s *solver) traceReject(fr *frame, i int, fail solveFailure) {
	ev := TraceEvent{Kind: TraceReject, Var: fr.v, Depth: s.depth()}
	switch fr.v.Kind {
	case VarPackage:
		ev.Version = fr.pBranches[i].version
		ev.Msg = fmt.Sprintf("%s reject %s-%s: %s", failChar, fr.v.QPN, ev.Version, fail.traceString())
	default:
		ev.Value = fr.values[i]
		ev.Msg = fmt.Sprintf("%s reject %s=%v: %s", failChar, fr.v, ev.Value, fail.traceString())
	}
	s.tl.record(ev)

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"var": fr.v.String(),
			"err": fail.Error(),
		}).Debug("Rejected branch")
	}
}

func (s *solver) traceFailure(fail solveFailure) {
	s.tl.record(TraceEvent{
		Kind:  TraceFail,
		Depth: s.depth(),
		Msg:   fmt.Sprintf("%s %s", failChar, fail.traceString()),
	})
}

func (s *solver) traceSkipFrame(fr *frame) {
	s.tl.record(TraceEvent{
		Kind:  TraceBackjump,
		Var:   fr.v,
		Depth: s.depth() - 1,
		Msg:   fmt.Sprintf("%s skip %s (not in conflict set)", backChar, fr.v),
	})

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithField("var", fr.v.String()).Debug("Backjump skipped frame without retrying")
	}
}

func (s *solver) traceLink(qpn, partner QPN) {
	s.tl.record(TraceEvent{
		Kind:  TraceLink,
		Var:   pkgVar(qpn),
		Depth: s.depth(),
		Msg:   fmt.Sprintf("%s link %s with %s", linkChar, qpn, partner),
	})
}

func (s *solver) traceDone() {
	s.tl.record(TraceEvent{
		Kind:  TraceDone,
		Depth: 0,
		Msg:   fmt.Sprintf("%s found solution with %d decisions", successChar, len(s.a.order)),
	})
}

// maxReportedAlternates bounds how many rejected candidates the final
// narrative lists per goal.
const maxReportedAlternates = 5

// finalFailure assembles the caller-facing failure: the exhausted goal,
// the source labels behind every conflict variable, and the alternates
// that were tried.
func (s *solver) finalFailure(last solveFailure) *SolveFailure {
	cat := FailVersionConflict
	if last != nil {
		cat = last.Category()
	}
	if s.budgetHit {
		cat = FailBudgetExhausted
	}

	cs := s.finalCS
	if cs.isEmpty() && last != nil {
		cs = last.conflictSet()
	}
	vars := cs.vars(s.vt)

	var buf bytes.Buffer
	if s.budgetHit {
		fmt.Fprintf(&buf, "Backjump limit of %d reached while searching for a plan.\n", s.opts.MaxBackjumps)
	} else {
		fmt.Fprintf(&buf, "Could not find a consistent install plan.\n")
	}

	if s.lastExhausted != nil {
		fr := s.lastExhausted
		fmt.Fprintf(&buf, "Exhausted goal: %s (%s)\n", fr.v, fr.g.reason)
		n := len(fr.excluded)
		if n > maxReportedAlternates {
			n = maxReportedAlternates
		}
		for _, fc := range fr.excluded[:n] {
			if fc.version != nil {
				fmt.Fprintf(&buf, "  tried %s-%s: %s\n", fr.v.QPN, fc.version, fc.f.Error())
			} else {
				fmt.Fprintf(&buf, "  tried %s: %s\n", fr.v, fc.f.Error())
			}
		}
		if len(fr.excluded) > n {
			fmt.Fprintf(&buf, "  (%d more alternatives omitted)\n", len(fr.excluded)-n)
		}
	} else if last != nil {
		fmt.Fprintf(&buf, "%s\n", last.Error())
	}

	if len(vars) > 0 {
		fmt.Fprintf(&buf, "Conflict set:\n")
		for _, v := range vars {
			fmt.Fprintf(&buf, "  %s\n", v)
			if v.Kind != VarPackage {
				continue
			}
			lrs, has := s.csSources[v]
			if !has {
				lrs = s.cm.rangesOn(v.QPN)
			}
			for _, lr := range lrs {
				fmt.Fprintf(&buf, "    constrained to %s\n", lr.describe())
			}
		}
	}

	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"category":  cat.String(),
			"backjumps": s.backjumps,
		}).Info("Solving failed")
	}

	return &SolveFailure{
		Cat:          cat,
		ConflictVars: vars,
		Narrative:    buf.String(),
		Log:          s.tl.log(),
	}
}
