package cabal

import (
	"github.com/armon/go-radix"
)

// Typed wrappers around radix trees, so the rest of the code can avoid
// type assertions. Only the operations the index actually needs are
// implemented.

// sourceTrie maps package names to their available source releases,
// ordered high-to-low by version.
type sourceTrie struct {
	t *radix.Tree
}

func newSourceTrie() sourceTrie {
	return sourceTrie{
		t: radix.New(),
	}
}

// Get is used to look up a specific name, returning the release list and
// whether it was found.
func (t sourceTrie) Get(name PackageName) ([]*SourcePackage, bool) {
	if v, has := t.t.Get(string(name)); has {
		return v.([]*SourcePackage), has
	}
	return nil, false
}

// Insert adds or replaces the release list for a name. Returns whether
// an entry was already present.
func (t sourceTrie) Insert(name PackageName, sps []*SourcePackage) bool {
	_, had := t.t.Insert(string(name), sps)
	return had
}

// Len returns the number of names in the tree.
func (t sourceTrie) Len() int {
	return t.t.Len()
}

// Names returns every package name in the tree in sorted order.
func (t sourceTrie) Names() []PackageName {
	names := make([]PackageName, 0, t.t.Len())
	t.t.Walk(func(s string, v interface{}) bool {
		names = append(names, PackageName(s))
		return false
	})
	return names
}
