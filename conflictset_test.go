package cabal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictSetBitOps(t *testing.T) {
	var cs ConflictSet
	assert.True(t, cs.isEmpty())

	cs.add(3)
	cs.add(64)
	cs.add(130)
	assert.False(t, cs.isEmpty())
	assert.True(t, cs.has(3))
	assert.True(t, cs.has(64))
	assert.True(t, cs.has(130))
	assert.False(t, cs.has(4))
	assert.False(t, cs.has(1000))

	assert.Equal(t, []int{3, 64, 130}, cs.indices())

	cs.remove(64)
	assert.False(t, cs.has(64))
	assert.Equal(t, []int{3, 130}, cs.indices())
}

func TestConflictSetUnionAndClone(t *testing.T) {
	var a, b ConflictSet
	a.add(1)
	b.add(70)

	c := a.clone()
	c.unionWith(b)
	assert.Equal(t, []int{1, 70}, c.indices())

	// the clone must not alias the original
	assert.Equal(t, []int{1}, a.indices())
	c.add(2)
	assert.False(t, a.has(2))
}

func TestVarTableAssignsDenseStableIndices(t *testing.T) {
	vt := newVarTable()
	q := QPN{Qual: qualTop, Name: "A"}

	p := vt.index(pkgVar(q))
	f := vt.index(flagVar(q, "opt"))
	s := vt.index(stanzaVar(q, StanzaTests))

	assert.Equal(t, 0, p)
	assert.Equal(t, 1, f)
	assert.Equal(t, 2, s)

	// re-indexing returns the same slot
	assert.Equal(t, p, vt.index(pkgVar(q)))
	assert.Equal(t, 3, vt.len())

	got, has := vt.lookup(flagVar(q, "opt"))
	assert.True(t, has)
	assert.Equal(t, f, got)
	_, has = vt.lookup(flagVar(q, "other"))
	assert.False(t, has)

	assert.Equal(t, "A", vt.at(p).String())
	assert.Equal(t, "A:opt", vt.at(f).String())
	assert.Equal(t, "A:*test", vt.at(s).String())
}

func TestConflictSetRender(t *testing.T) {
	vt := newVarTable()
	q := QPN{Qual: setupQualifier("C"), Name: "D"}
	cs := csOf(vt, pkgVar(q), pkgVar(QPN{Qual: qualTop, Name: "A"}))
	assert.Equal(t, "{setup(C)/D, A}", cs.render(vt))
}
