package cabal

import "strings"

// varTable assigns dense integer indices to solver variables, in order
// of first appearance. Conflict sets store indices; the table maps them
// back to names for the explainer. Index assignment follows the walk,
// so it is deterministic for a fixed input and option set.
type varTable struct {
	idx  map[Var]int
	vars []Var
}

func newVarTable() *varTable {
	return &varTable{idx: make(map[Var]int)}
}

// index returns the dense index for v, assigning one on first use.
func (t *varTable) index(v Var) int {
	if i, has := t.idx[v]; has {
		return i
	}
	i := len(t.vars)
	t.idx[v] = i
	t.vars = append(t.vars, v)
	return i
}

// lookup returns the index for v without assigning one.
func (t *varTable) lookup(v Var) (int, bool) {
	i, has := t.idx[v]
	return i, has
}

func (t *varTable) at(i int) Var { return t.vars[i] }

func (t *varTable) len() int { return len(t.vars) }

// ConflictSet is the set of variables whose assignments participated in
// a failure. It is a bitset over the dense variable indices of one
// solve's varTable.
type ConflictSet struct {
	words []uint64
}

func (cs ConflictSet) has(i int) bool {
	w := i >> 6
	if w >= len(cs.words) {
		return false
	}
	return cs.words[w]&(1<<(uint(i)&63)) != 0
}

func (cs *ConflictSet) add(i int) {
	w := i >> 6
	for len(cs.words) <= w {
		cs.words = append(cs.words, 0)
	}
	cs.words[w] |= 1 << (uint(i) & 63)
}

func (cs *ConflictSet) remove(i int) {
	w := i >> 6
	if w < len(cs.words) {
		cs.words[w] &^= 1 << (uint(i) & 63)
	}
}

func (cs *ConflictSet) unionWith(o ConflictSet) {
	for len(cs.words) < len(o.words) {
		cs.words = append(cs.words, 0)
	}
	for i, w := range o.words {
		cs.words[i] |= w
	}
}

func (cs ConflictSet) isEmpty() bool {
	for _, w := range cs.words {
		if w != 0 {
			return false
		}
	}
	return true
}

func (cs ConflictSet) clone() ConflictSet {
	words := make([]uint64, len(cs.words))
	copy(words, cs.words)
	return ConflictSet{words: words}
}

// indices returns the member indices in ascending order.
func (cs ConflictSet) indices() []int {
	var out []int
	for wi, w := range cs.words {
		for b := 0; b < 64; b++ {
			if w&(1<<uint(b)) != 0 {
				out = append(out, wi<<6|b)
			}
		}
	}
	return out
}

// vars resolves the member indices through the table, in index order.
func (cs ConflictSet) vars(t *varTable) []Var {
	idxs := cs.indices()
	out := make([]Var, len(idxs))
	for i, ix := range idxs {
		out[i] = t.at(ix)
	}
	return out
}

func (cs ConflictSet) render(t *varTable) string {
	vs := cs.vars(t)
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// csOf builds a conflict set from variables directly.
func csOf(t *varTable, vs ...Var) ConflictSet {
	var cs ConflictSet
	for _, v := range vs {
		cs.add(t.index(v))
	}
	return cs
}
