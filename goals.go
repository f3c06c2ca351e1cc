package cabal

import "fmt"

// goalReasonKind says why a goal was introduced.
type goalReasonKind uint8

const (
	reasonTarget goalReasonKind = iota
	reasonDependency
	reasonSetupDependency
	reasonToolDependency
	reasonFlagDecl
	reasonStanzaDecl
)

// goalReason records the provenance of a goal for the explainer, and
// (through the goal's conflict set) for backjumping.
type goalReason struct {
	kind    goalReasonKind
	from    Var
	hasFrom bool
}

func (gr goalReason) String() string {
	switch gr.kind {
	case reasonTarget:
		return "user target"
	case reasonDependency:
		return fmt.Sprintf("dependency of %s", gr.from)
	case reasonSetupDependency:
		return fmt.Sprintf("setup dependency of %s", gr.from)
	case reasonToolDependency:
		return fmt.Sprintf("build-tool dependency of %s", gr.from)
	case reasonFlagDecl:
		return fmt.Sprintf("flag declared by %s", gr.from)
	case reasonStanzaDecl:
		return fmt.Sprintf("stanza declared by %s", gr.from)
	}
	panic(fmt.Sprintf("canary - unknown goal reason %d", gr.kind))
}

// goal is a pending decision: the version of a qualified package, the
// value of a flag, or the inclusion of a stanza. The goal's conflict
// set is the set of variables responsible for its existence; it is
// merged into any failure that exhausts the goal, so backjumping can
// reach the choices that introduced it.
type goal struct {
	v      Var
	reason goalReason
	cs     ConflictSet
	seq    int

	// flag goals
	decl    FlagDecl
	weak    bool
	trivial bool

	// stanza goals
	stanza Stanza
}

// goalSet is the set of open (undecided) goals.
type goalSet struct {
	open map[Var]*goal
}

func newGoalSet() *goalSet {
	return &goalSet{open: make(map[Var]*goal)}
}

func (gs *goalSet) get(v Var) (*goal, bool) {
	g, has := gs.open[v]
	return g, has
}

func (gs *goalSet) add(g *goal) {
	gs.open[g.v] = g
}

func (gs *goalSet) remove(v Var) {
	delete(gs.open, v)
}

func (gs *goalSet) empty() bool {
	return len(gs.open) == 0
}

// all returns the open goals ordered by introduction sequence, which is
// deterministic for a fixed walk.
func (gs *goalSet) all() []*goal {
	out := make([]*goal, 0, len(gs.open))
	for _, g := range gs.open {
		out = append(out, g)
	}
	sortGoalsBySeq(out)
	return out
}

func sortGoalsBySeq(goals []*goal) {
	for i := 1; i < len(goals); i++ {
		for j := i; j > 0 && goals[j].seq < goals[j-1].seq; j-- {
			goals[j], goals[j-1] = goals[j-1], goals[j]
		}
	}
}
