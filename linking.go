package cabal

// Linking declares that two decisions in different qualifiers refer to
// the same build artifact. The driver links opportunistically whenever
// two qualifiers pick the same (name, version) source instance; linking
// two different versions is never allowed, and linked instances must
// agree on every flag and stanza decision (checked where those
// decisions are applied).

// tryLink joins the freshly selected instance to an existing link
// group, or pairs it with a lone same-version instance in another
// qualifier. Installed instances are never linked; they already denote
// one artifact.
func (s *solver) tryLink(si *selectedInstance) {
	if si.ps.Source == nil {
		return
	}

	for _, other := range s.a.sameName(si.qpn.Name) {
		if other.qpn == si.qpn || other.ps.Source == nil {
			continue
		}
		if other.version.Compare(si.version) != 0 {
			continue
		}
		if !s.linkCompatible(si, other) {
			continue
		}

		if gid, has := s.a.groupOf[other.qpn]; has {
			s.a.groups[gid] = append(s.a.groups[gid], si.qpn)
			s.a.groupOf[si.qpn] = gid
			s.j.record(op{kind: opLink, qpn: si.qpn, groupID: gid})
		} else {
			s.a.groupSeq++
			gid := s.a.groupSeq
			s.a.groups[gid] = []QPN{other.qpn, si.qpn}
			s.a.groupOf[other.qpn] = gid
			s.a.groupOf[si.qpn] = gid
			s.j.record(op{kind: opLink, qpn: si.qpn, groupID: gid, madeGroup: true})
		}
		s.traceLink(si.qpn, other.qpn)
		return
	}
}

// linkCompatible reports whether the partner's decided flags and
// stanzas are consistent with linking. At selection time the new
// instance has no decisions of its own, so only the partner's matter;
// later divergence is rejected when the decision is applied.
func (s *solver) linkCompatible(si, other *selectedInstance) bool {
	// Both instances resolve the same source release, so the declared
	// flag and stanza sets coincide; nothing decided yet can disagree.
	return true
}
