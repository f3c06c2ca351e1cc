package cabal

import "fmt"

// ConfiguredPackage is a source package with bound flags, bound
// stanzas, and pinned dependency units: one node of the install plan.
type ConfiguredPackage struct {
	Package   *SourcePackage
	Qualifier Qualifier
	Flags     FlagAssignment
	Stanzas   []Stanza
	UnitId    UnitId
	Depends   []UnitId
}

// ResolverPackage is one entry of a plan: either a pre-existing
// installed package or a configured source package. Exactly one field
// is non-nil.
type ResolverPackage struct {
	PreExisting *InstalledPackage
	Configured  *ConfiguredPackage
}

func (rp ResolverPackage) Name() PackageName {
	if rp.PreExisting != nil {
		return rp.PreExisting.Name
	}
	return rp.Configured.Package.Name
}

func (rp ResolverPackage) Version() Version {
	if rp.PreExisting != nil {
		return rp.PreExisting.Version
	}
	return rp.Configured.Package.Version
}

func (rp ResolverPackage) UnitId() UnitId {
	if rp.PreExisting != nil {
		return rp.PreExisting.UnitId
	}
	return rp.Configured.UnitId
}

// A Solution is a consistent install plan: a topologically sorted list
// of packages (dependencies first), every dependency edge satisfied
// within the plan, acyclic except through setup namespaces.
type Solution interface {
	// Packages returns the plan in dependency order.
	Packages() []ResolverPackage

	// Attempts is the number of times the walk re-descended after
	// backtracking.
	Attempts() int

	// InputHash is the digest of the input tuple the plan was computed
	// from.
	InputHash() []byte

	// TraceLog is the deterministic rendered log of the search.
	TraceLog() string

	// TraceEvents is the raw event stream behind TraceLog.
	TraceEvents() []TraceEvent
}

type solution struct {
	p   []ResolverPackage
	att int
	hd  []byte
	tl  *tracer
}

func (r solution) Packages() []ResolverPackage { return r.p }
func (r solution) Attempts() int               { return r.att }
func (r solution) InputHash() []byte           { return r.hd }
func (r solution) TraceLog() string            { return r.tl.log() }
func (r solution) TraceEvents() []TraceEvent   { return r.tl.events }

// buildSolution assembles the plan from a validated complete
// assignment. Linked instances collapse into one configured package;
// installed packages dedupe by unit id.
func (s *solver) buildSolution() Solution {
	canon := func(qpn QPN) QPN {
		gid, has := s.a.groupOf[qpn]
		if !has {
			return qpn
		}
		return s.a.groups[gid][0]
	}

	// canonical plan nodes in decision order
	var nodes []QPN
	seen := make(map[QPN]bool)
	for _, v := range s.a.order {
		if v.Kind != VarPackage {
			continue
		}
		c := canon(v.QPN)
		if !seen[c] {
			seen[c] = true
			nodes = append(nodes, c)
		}
	}

	unitIds := s.assignUnitIds(nodes)

	// adjacency on canonical nodes, dedup'd, in recorded edge order
	adj := make(map[QPN][]QPN)
	edgeSeen := make(map[[2]QPN]bool)
	for _, e := range s.a.edges {
		f, t := canon(e.from), canon(e.to)
		if f == t {
			continue
		}
		k := [2]QPN{f, t}
		if !edgeSeen[k] {
			edgeSeen[k] = true
			adj[f] = append(adj[f], t)
		}
	}

	ordered := topoOrder(nodes, adj)

	var pkgs []ResolverPackage
	emittedUnits := make(map[UnitId]bool)
	for _, c := range ordered {
		si := s.a.pkgs[c]
		if si.ps.Installed != nil {
			uid := si.ps.Installed.UnitId
			if !emittedUnits[uid] {
				emittedUnits[uid] = true
				pkgs = append(pkgs, ResolverPackage{PreExisting: si.ps.Installed})
			}
			continue
		}

		flags := make(FlagAssignment)
		for f, v := range s.a.flags[c] {
			flags[f] = v
		}
		var stanzas []Stanza
		for _, st := range []Stanza{StanzaTests, StanzaBenchmarks} {
			if on, has := s.a.stanzas[c][st]; has && on {
				stanzas = append(stanzas, st)
			}
		}

		var depends []UnitId
		depSeen := make(map[UnitId]bool)
		for _, t := range adj[c] {
			uid := unitIds[t]
			if !depSeen[uid] {
				depSeen[uid] = true
				depends = append(depends, uid)
			}
		}

		pkgs = append(pkgs, ResolverPackage{Configured: &ConfiguredPackage{
			Package:   si.ps.Source,
			Qualifier: c.Qual,
			Flags:     flags,
			Stanzas:   stanzas,
			UnitId:    unitIds[c],
			Depends:   depends,
		}})
	}

	if s.l != nil {
		s.l.WithField("packages", len(pkgs)).Info("Found solution")
	}

	return solution{
		p:   pkgs,
		att: s.attempts,
		hd:  s.HashInputs(),
		tl:  s.tl,
	}
}

// assignUnitIds synthesizes deterministic unit ids for configured
// nodes. The id is name-version; distinct unlinked copies of the same
// release get a qualifier suffix.
func (s *solver) assignUnitIds(nodes []QPN) map[QPN]UnitId {
	baseCount := make(map[string]int)
	for _, c := range nodes {
		si := s.a.pkgs[c]
		if si.ps.Source == nil {
			continue
		}
		baseCount[si.ps.Source.pid().String()]++
	}

	out := make(map[QPN]UnitId, len(nodes))
	for _, c := range nodes {
		si := s.a.pkgs[c]
		if si.ps.Installed != nil {
			out[c] = si.ps.Installed.UnitId
			continue
		}
		base := si.ps.Source.pid().String()
		if baseCount[base] > 1 && c.Qual.Kind != QualTop {
			out[c] = UnitId(fmt.Sprintf("%s-%s", base, c.Qual))
		} else {
			out[c] = UnitId(base)
		}
	}
	return out
}

// topoOrder emits dependencies before dependers. Cycles permitted
// through setup namespaces cannot be ordered; when the sort stalls, the
// earliest node in decision order that sits on a cycle is emitted to
// break the tie (see stallPick).
func topoOrder(nodes []QPN, adj map[QPN][]QPN) []QPN {
	emitted := make(map[QPN]bool)
	var out []QPN
	for len(out) < len(nodes) {
		progressed := false
		for _, n := range nodes {
			if emitted[n] {
				continue
			}
			ready := true
			for _, d := range adj[n] {
				if !emitted[d] {
					ready = false
					break
				}
			}
			if ready {
				emitted[n] = true
				out = append(out, n)
				progressed = true
			}
		}
		if !progressed {
			pick := stallPick(nodes, adj, emitted)
			emitted[pick] = true
			out = append(out, pick)
		}
	}
	return out
}

// stallPick chooses which node to emit when the sort stalls on a
// permitted cycle: the earliest node, in decision order, that actually
// sits on a cycle among the unemitted remainder. Nodes merely blocked
// behind the cycle keep waiting.
func stallPick(nodes []QPN, adj map[QPN][]QPN, emitted map[QPN]bool) QPN {
	onCycle := func(n QPN) bool {
		seen := make(map[QPN]bool)
		stack := append([]QPN(nil), adj[n]...)
		for len(stack) > 0 {
			m := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if emitted[m] || seen[m] {
				continue
			}
			if m == n {
				return true
			}
			seen[m] = true
			stack = append(stack, adj[m]...)
		}
		return false
	}

	for _, n := range nodes {
		if !emitted[n] && onCycle(n) {
			return n
		}
	}
	for _, n := range nodes {
		if !emitted[n] {
			return n
		}
	}
	panic("canary - topo stall with nothing to emit")
}
