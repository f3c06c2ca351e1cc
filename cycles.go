package cabal

// Cycle analysis runs on the full graph at a Done leaf. A cycle through
// regular dependencies is a failure. A cycle passing through a package
// with setup dependencies is permitted iff the setup-qualified subspace
// resolved some package on the cycle to a different version than the
// cycle's own copy: the cycle is then broken through the setup
// namespace. Linked instances collapse into one node first, since they
// denote a single artifact.

// checkCycles returns a failure for the first impermissible cycle the
// depth-first search closes in the assignment's dependency graph, or
// nil. Cycles broken through a setup namespace are passed over.
func (s *solver) checkCycles() solveFailure {
	// canonical representative per node: link groups collapse
	canon := func(qpn QPN) QPN {
		gid, has := s.a.groupOf[qpn]
		if !has {
			return qpn
		}
		return s.a.groups[gid][0]
	}

	adj := make(map[QPN][]QPN)
	nodes := make([]QPN, 0, len(s.a.pkgs))
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
	for _, e := range s.a.edges {
		adj[canon(e.from)] = append(adj[canon(e.from)], canon(e.to))
	}

	// iterative DFS with tricolor marking; extracts the first cycle in
	// deterministic node/edge order
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[QPN]int)
	parent := make(map[QPN]QPN)

	var cycle []QPN
	for _, root := range nodes {
		if color[root] != white || cycle != nil {
			continue
		}
		type dfsFrame struct {
			n    QPN
			next int
		}
		stack := []dfsFrame{{n: root}}
		color[root] = grey
		for len(stack) > 0 && cycle == nil {
			fr := &stack[len(stack)-1]
			if fr.next >= len(adj[fr.n]) {
				color[fr.n] = black
				stack = stack[:len(stack)-1]
				continue
			}
			m := adj[fr.n][fr.next]
			fr.next++
			switch color[m] {
			case white:
				color[m] = grey
				parent[m] = fr.n
				stack = append(stack, dfsFrame{n: m})
			case grey:
				// back edge: walk parents from fr.n to m
				found := []QPN{m}
				for n := fr.n; n != m; n = parent[n] {
					found = append(found, n)
				}
				// reverse into dependency order
				for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
					found[i], found[j] = found[j], found[i]
				}
				if !s.cycleBrokenThroughSetup(found) {
					cycle = found
				}
			}
		}
	}

	if cycle == nil {
		return nil
	}

	cs := ConflictSet{}
	for _, m := range cycle {
		cs.add(s.vt.index(pkgVar(m)))
	}
	// include the setup copies of cycle members, so backjumping can
	// revisit the choice that kept the cycle closed
	for _, m := range cycle {
		si := s.a.pkgs[m]
		if si == nil || si.ps.Source == nil || len(si.ps.Source.SetupDeps) == 0 {
			continue
		}
		setupQ := Qualifier{Kind: QualSetup, N: m.Qual.N, Pkg: m.Name}
		for _, n := range cycle {
			sq := QPN{Qual: setupQ, Name: n.Name}
			if _, has := s.a.selected(sq); has {
				cs.add(s.vt.index(pkgVar(sq)))
			}
		}
	}

	return &cycleFailure{members: cycle, cs: cs}
}

// cycleBrokenThroughSetup reports whether some member of the cycle
// carries setup dependencies whose namespace resolved a cycle member's
// name to a different version. Equal versions (a linked setup copy)
// leave the cycle closed.
func (s *solver) cycleBrokenThroughSetup(cycle []QPN) bool {
	for _, m := range cycle {
		si := s.a.pkgs[m]
		if si == nil || si.ps.Source == nil || len(si.ps.Source.SetupDeps) == 0 {
			continue
		}
		setupQ := Qualifier{Kind: QualSetup, N: m.Qual.N, Pkg: m.Name}
		for _, n := range cycle {
			libSel, has := s.a.selected(n)
			if !has {
				continue
			}
			setupSel, has := s.a.selected(QPN{Qual: setupQ, Name: n.Name})
			if has && setupSel.version.Compare(libSel.version) != 0 {
				return true
			}
		}
	}
	return false
}

// checkReinstalls is the avoid-reinstalls post-check: with the option
// set, no configured package in the plan may share a (name, version)
// with an installed one. The index filter removes such candidates up
// front; this guards the invariant on the final plan.
func (s *solver) checkReinstalls() solveFailure {
	if !s.opts.AvoidReinstalls {
		return nil
	}
	for _, v := range s.a.order {
		if v.Kind != VarPackage {
			continue
		}
		si := s.a.pkgs[v.QPN]
		if si == nil || si.ps.Source == nil {
			continue
		}
		for _, ps := range s.fullIdx.Lookup(si.qpn.Name) {
			if ps.Installed != nil && ps.Installed.Version.Compare(si.version) == 0 {
				cs := csOf(s.vt, v)
				return &reinstallFailure{goal: atom{qpn: si.qpn, version: si.version}, cs: cs}
			}
		}
	}
	return nil
}
