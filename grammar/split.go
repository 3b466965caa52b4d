package grammar

import "fmt"

// Lane tracing for reduce-reduce conflicts. Each conflicting reduce gets a
// lane that walks backward through the automaton, accumulating the
// spontaneous follow of every item it passes. When the accumulated follows
// of all lanes become pairwise disjoint the conflict is resolvable: the
// traced states are cloned, one copy per compatible group of resolutions,
// and the propagation fixpoint is re-run over the rewired automaton.

// laneEntry records the items under trace in one state of a lane.
type laneEntry struct {
	state int
	items *intSet
}

type laneTrace struct {
	entries []laneEntry
	follow  *intSet

	// complete marks a lane that ran out of ancestors or looped; its
	// follow no longer grows.
	complete bool
}

// collision is one conflict under resolution, one lane per conflicting
// item. previousStates forks it when a traced state has several ancestors.
type collision struct {
	lanes   []*laneTrace
	success bool
}

func (c *collision) clone() *collision {
	d := &collision{
		lanes:   make([]*laneTrace, len(c.lanes)),
		success: c.success,
	}
	for i, lane := range c.lanes {
		entries := make([]laneEntry, len(lane.entries))
		for j, e := range lane.entries {
			entries[j] = laneEntry{state: e.state, items: e.items.clone()}
		}
		d.lanes[i] = &laneTrace{
			entries:  entries,
			follow:   lane.follow.clone(),
			complete: lane.complete,
		}
	}
	return d
}

// spontaneousConflict reports a collision whose spontaneous follows
// already intersect. No amount of backward tracing can separate those.
func (c *collision) spontaneousConflict() bool {
	for i := 0; i < len(c.lanes); i++ {
		for j := i + 1; j < len(c.lanes); j++ {
			if !c.lanes[i].follow.disjoint(c.lanes[j].follow) {
				return true
			}
		}
	}
	return false
}

// laneFollow is the lane's accumulated follow plus, while the lane is
// still growing, the propagated lookaheads of the items at its tip.
func laneFollow(automaton *lr0Automaton, lane *laneTrace) *intSet {
	f := lane.follow.clone()
	if !lane.complete {
		tip := lane.entries[len(lane.entries)-1]
		state := automaton.state(tip.state)
		for _, idx := range tip.items.elements() {
			f.union(state.items[idx].la)
		}
	}
	return f
}

// findConflict seeds one lane per reduce whose lookahead intersects
// another reduce's lookahead in the given state.
func findConflict(automaton *lr0Automaton, n int) *collision {
	state := automaton.state(n)
	matches := newIntSet()
	for i, it := range state.items {
		if !it.reducible {
			continue
		}
		for j := i + 1; j < len(state.items); j++ {
			jt := state.items[j]
			if !jt.reducible {
				continue
			}
			if !it.la.disjoint(jt.la) {
				matches.insert(i)
				matches.insert(j)
			}
		}
	}

	c := &collision{}
	for _, i := range matches.elements() {
		c.lanes = append(c.lanes, &laneTrace{
			entries: []laneEntry{{state: n, items: newIntSet(i)}},
			follow:  state.items[i].spont.clone(),
		})
	}
	return c
}

// kernelItems replaces the items at each incomplete lane tip with the
// kernel items of the same state that propagate into them, so the next
// backward step can follow ancestor links.
func kernelItems(automaton *lr0Automaton, c *collision) {
	for _, lane := range c.lanes {
		if lane.complete {
			continue
		}
		tip := lane.entries[len(lane.entries)-1]
		state := automaton.state(tip.state)

		kernel := newIntSet()
		for _, idx := range tip.items.elements() {
			if idx < state.kernelLen {
				kernel.insert(idx)
				continue
			}
			for k := 0; k < state.kernelLen; k++ {
				for _, ref := range state.items[k].updates {
					if ref.state == tip.state && ref.item == idx {
						kernel.insert(k)
						break
					}
				}
			}
		}

		if kernel.len() == 0 {
			lane.complete = true
			continue
		}
		if !kernel.equal(tip.items) {
			lane.entries = append(lane.entries, laneEntry{state: tip.state, items: kernel})
		}
	}
}

// previousStates extends every incomplete lane one step backward. A tip
// with several ancestor states forks the whole collision, one copy per
// ancestor, so each backward path is traced independently.
func previousStates(automaton *lr0Automaton, conflicts []*collision) []*collision {
	for i := 0; i < len(conflicts); i++ {
		src := conflicts[i]
		if src.success {
			continue
		}

		// Every kernel item in a state has the same ancestor count, so
		// any incomplete lane tip tells us how many ways to fork.
		count := 0
		for _, lane := range src.lanes {
			if lane.complete {
				continue
			}
			tip := lane.entries[len(lane.entries)-1]
			item := tip.items.elements()[0]
			count = len(automaton.state(tip.state).items[item].ancestors)
			break
		}
		if count == 0 {
			for _, lane := range src.lanes {
				lane.complete = true
			}
			continue
		}

		if count > 1 {
			forks := make([]*collision, count-1)
			for j := range forks {
				forks[j] = src.clone()
			}
			rest := append([]*collision(nil), conflicts[i+1:]...)
			conflicts = append(conflicts[:i+1], forks...)
			conflicts = append(conflicts, rest...)
		}

		for j, lane := range src.lanes {
			if lane.complete {
				continue
			}
			tip := lane.entries[len(lane.entries)-1]
			state := automaton.state(tip.state)

			for k := 0; k < count; k++ {
				dlane := conflicts[i+k].lanes[j]
				items := newIntSet()
				var anc itemRef
				for _, idx := range tip.items.elements() {
					anc = state.items[idx].ancestors[k]
					items.insert(anc.item)
					dlane.follow.union(automaton.state(anc.state).items[anc.item].spont)
				}
				dlane.entries = append(dlane.entries, laneEntry{state: anc.state, items: items})

				// Revisiting a state already on the lane means a cycle.
				for l := len(dlane.entries) - 2; l >= 0; l-- {
					if dlane.entries[l].state == anc.state {
						dlane.complete = true
						break
					}
				}
			}
		}
		i += count - 1
	}
	return conflicts
}

// checkConflicts marks every collision whose lane follows are pairwise
// disjoint as resolved and reports whether any collision is still open.
func checkConflicts(automaton *lr0Automaton, conflicts []*collision) bool {
	for _, c := range conflicts {
		if c.success {
			continue
		}
		follows := make([]*intSet, len(c.lanes))
		for j, lane := range c.lanes {
			follows[j] = laneFollow(automaton, lane)
		}
		separated := true
	pairs:
		for j := 0; j < len(follows); j++ {
			for k := j + 1; k < len(follows); k++ {
				if !follows[j].disjoint(follows[k]) {
					separated = false
					break pairs
				}
			}
		}
		if separated {
			c.success = true
		}
	}

	for _, c := range conflicts {
		if !c.success {
			return true
		}
	}
	return false
}

// groupConflicts merges resolutions whose per-lane lookaheads stay
// pairwise disjoint after the merge. Every group shares one copy of the
// traced states, so fewer groups means fewer clones.
func groupConflicts(automaton *lr0Automaton, conflicts []*collision) [][]int {
	count := len(conflicts[0].lanes)

	groups := make([][]int, len(conflicts))
	lookahead := make([][]*intSet, len(conflicts))
	for i, c := range conflicts {
		groups[i] = []int{i}
		lookahead[i] = make([]*intSet, count)
		for j, lane := range c.lanes {
			lookahead[i][j] = laneFollow(automaton, lane)
		}
	}

	for {
		changed := false
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				combine := make([]*intSet, count)
				for k := 0; k < count; k++ {
					combine[k] = lookahead[i][k].clone()
					combine[k].union(lookahead[j][k])
				}

				compatible := true
			pairs:
				for k := 0; k < count; k++ {
					for l := k + 1; l < count; l++ {
						if !combine[k].disjoint(combine[l]) {
							compatible = false
							break pairs
						}
					}
				}
				if !compatible {
					continue
				}

				groups[i] = append(groups[i], groups[j]...)
				lookahead[i] = combine
				groups = append(groups[:j], groups[j+1:]...)
				lookahead = append(lookahead[:j], lookahead[j+1:]...)
				j--
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return groups
}

func mapState(m map[int]int, n int) int {
	if v, ok := m[n]; ok {
		return v
	}
	return n
}

// cloneState appends a copy of state n to the arena. The copy shares
// productions and keeps descendant references and kernel update lists,
// but starts with no ancestors and empty lookaheads; rewiring and the
// re-run propagation fill those in.
func cloneState(automaton *lr0Automaton, n int) int {
	src := automaton.state(n)
	dst := &lrState{
		items:        make([]*lrItem, len(src.items)),
		kernelLen:    src.kernelLen,
		shiftReduces: map[int]int{},
	}
	for k, it := range src.items {
		c := &lrItem{
			prod:       it.prod,
			dot:        it.dot,
			kernel:     it.kernel,
			reducible:  it.reducible,
			spont:      it.spont.clone(),
			la:         newIntSet(),
			descendant: it.descendant,
		}
		if k < src.kernelLen {
			c.updates = append([]itemRef(nil), it.updates...)
		}
		dst.items[k] = c
	}
	for tok, prod := range src.shiftReduces {
		dst.shiftReduces[tok] = prod
	}
	dst.gotos = append([]gotoEntry(nil), src.gotos...)
	return automaton.addState(dst)
}

// copyStates gives each group a private copy of the lane states and
// rewires descendants, ancestors, update targets and gotos along every
// lane so each copy parses with its own lookaheads. The first group to
// claim a state keeps the original.
func copyStates(automaton *lr0Automaton, conflicts []*collision, groups [][]int) {
	used := newIntSet()
	maps := make([]map[int]int, len(groups))

	for i, group := range groups {
		maps[i] = map[int]int{}

		list := newIntSet()
		for _, ci := range group {
			for _, lane := range conflicts[ci].lanes {
				for l := len(lane.entries) - 2; l >= 0; l-- {
					list.insert(lane.entries[l].state)
				}
			}
		}

		for _, n := range list.elements() {
			if !used.find(n) {
				used.insert(n)
				continue
			}
			maps[i][n] = cloneState(automaton, n)
		}
	}

	for i, group := range groups {
		if len(maps[i]) == 0 {
			continue
		}
		m := maps[i]

		for _, ci := range group {
			for _, lane := range conflicts[ci].lanes {
				length := len(lane.entries)

				// The state at the lane end is never copied; retarget its
				// successors into the group's copies. Retargeting moves
				// the ancestor edge from the original to the copy.
				tipState := lane.entries[length-1].state
				state := automaton.state(tipState)
				for l, it := range state.items {
					oldDst := it.descendant.state
					newDst := mapState(m, oldDst)
					if newDst != oldDst {
						it.descendant.state = newDst
						item := it.descendant.item
						tgt := automaton.state(newDst).items[item]
						tgt.ancestors = append(tgt.ancestors, itemRef{state: tipState, item: l})
						old := automaton.state(oldDst).items[item]
						for a, ref := range old.ancestors {
							if ref.state == tipState && ref.item == l {
								old.ancestors = append(old.ancestors[:a], old.ancestors[a+1:]...)
								break
							}
						}
					}
					if l < state.kernelLen {
						for u := range it.updates {
							it.updates[u].state = mapState(m, it.updates[u].state)
						}
					}
				}
				for g := range state.gotos {
					state.gotos[g].state = mapState(m, state.gotos[g].state)
				}

				// Walk the rest of the lane backward through the mapped
				// states, remapping their outgoing references the same
				// way.
				for l := length - 2; l >= 0; l-- {
					sn := mapState(m, lane.entries[l].state)
					st := automaton.state(sn)
					for mi, it := range st.items {
						oldDst := it.descendant.state
						newDst := mapState(m, oldDst)
						if newDst != oldDst {
							it.descendant.state = newDst
							item := it.descendant.item
							tgt := automaton.state(newDst).items[item]
							tgt.ancestors = append(tgt.ancestors, itemRef{state: sn, item: mi})
						}
						if mi < st.kernelLen {
							for u := range it.updates {
								it.updates[u].state = mapState(m, it.updates[u].state)
							}
						}
					}
					for g := range st.gotos {
						st.gotos[g].state = mapState(m, st.gotos[g].state)
					}

					if l > 0 && mapState(m, lane.entries[l-1].state) == sn {
						l--
					}
				}
			}
		}
	}
}

// splitStates resolves a reduce-reduce conflict in state n by lane
// tracing. On success the automaton has been rewired and the caller must
// re-run lookahead propagation and rebuild the action table.
func splitStates(automaton *lr0Automaton, n int, opts *Options) error {
	if !opts.SplitStates {
		return fmt.Errorf("reduce-reduce conflict in state %v (declare SPLITSTATES to resolve)", n)
	}

	conflicts := []*collision{findConflict(automaton, n)}
	for {
		for _, c := range conflicts {
			if !c.success && c.spontaneousConflict() {
				return fmt.Errorf("state %v: spontaneous look-ahead conflict cannot be separated by splitting", n)
			}
		}
		for _, c := range conflicts {
			if !c.success {
				kernelItems(automaton, c)
			}
		}
		conflicts = previousStates(automaton, conflicts)
		if !checkConflicts(automaton, conflicts) {
			break
		}
	}

	copyStates(automaton, conflicts, groupConflicts(automaton, conflicts))
	return nil
}
