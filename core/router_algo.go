package core

// Distributed Bellman-Ford over a state.DVTable. Every function here takes the table's
// lock for its whole duration, so a recompute always sees complete neighbour rows.

import (
	"errors"
	"maps"
	"slices"

	"github.com/encodeous/dvnet/state"
)

// ExportPolicy decides how the local vector is rewritten before it is sent to a neighbour.
type ExportPolicy int

const (
	// ExportPlain advertises the local vector unchanged
	ExportPlain ExportPolicy = iota
	// ExportPoisonReverse advertises INF for every destination reached through the receiving neighbour
	ExportPoisonReverse
)

func (p ExportPolicy) String() string {
	switch p {
	case ExportPlain:
		return "plain"
	case ExportPoisonReverse:
		return "poison-reverse"
	}
	return "unknown"
}

// Recompute rebuilds the local row from the neighbour rows:
//
//	cost(self, D) = min over neighbours N of (link(N) + cost(N, D))
//
// and reports whether any entry changed. The local node's own entry stays 0.
func Recompute(r *state.Rows) bool {
	self := r.Self()
	changed := false
	for _, dst := range r.Nodes() {
		if dst == self {
			continue
		}
		best := state.INF
		for _, n := range r.Neighbours() {
			link, _ := r.LinkCost(n)
			// r.Cost(n, n) is 0, so reaching the neighbour itself costs exactly the link
			best = min(best, state.AddCost(link, r.Cost(n, dst)))
		}
		if r.Cost(self, dst) != best {
			_ = r.SetCost(self, dst, best)
			changed = true
		}
	}
	return changed
}

// recomputeRoutes recomputes the local row and reports whether any cost or next hop
// changed. A next hop can move at equal cost, which still changes what poison reverse
// exports and where traffic is forwarded.
func recomputeRoutes(r *state.Rows, before map[state.NodeId]state.NodeId) bool {
	changed := Recompute(r)
	return !maps.Equal(before, NextHops(r)) || changed
}

// ApplyNeighbourVector stores a vector received from a neighbour and recomputes the local
// row. changed is true when a local cost or next hop differs from before, which means
// the vector should be re-advertised.
func ApplyNeighbourVector(tbl *state.DVTable, vec state.DistanceVector) (changed bool, err error) {
	err = tbl.Mutate(func(r *state.Rows) error {
		before := NextHops(r)
		if err := r.StoreVector(vec); err != nil {
			return err
		}
		changed = recomputeRoutes(r, before)
		return nil
	})
	return changed, err
}

// UpdateLinkCost records a new direct link cost to a neighbour, as measured by link
// probing, and recomputes the local row.
func UpdateLinkCost(tbl *state.DVTable, neigh state.NodeId, cost state.Cost) (changed bool, err error) {
	err = tbl.Mutate(func(r *state.Rows) error {
		before := NextHops(r)
		if err := r.SetLinkCost(neigh, cost); err != nil {
			return err
		}
		changed = recomputeRoutes(r, before)
		return nil
	})
	return changed, err
}

// ResetNeighbour forgets everything a neighbour has advertised, keeping its link cost.
func ResetNeighbour(tbl *state.DVTable, neigh state.NodeId) (changed bool, err error) {
	return ApplyNeighbourVector(tbl, state.DistanceVector{Source: neigh})
}

// NextHops picks, for every reachable destination, the neighbour that achieves the local
// cost. Ties go to the lowest neighbour id. Unreachable destinations are omitted.
func NextHops(r *state.Rows) map[state.NodeId]state.NodeId {
	self := r.Self()
	neighs := slices.Clone(r.Neighbours())
	slices.Sort(neighs)

	hops := make(map[state.NodeId]state.NodeId)
	for _, dst := range r.Nodes() {
		if dst == self {
			continue
		}
		cur := r.Cost(self, dst)
		if cur >= state.INF {
			continue
		}
		for _, n := range neighs {
			link, _ := r.LinkCost(n)
			if state.AddCost(link, r.Cost(n, dst)) == cur {
				hops[dst] = n
				break
			}
		}
	}
	return hops
}

// ExportVector builds the vector that should be advertised to the neighbour `to`.
func ExportVector(tbl *state.DVTable, to state.NodeId, policy ExportPolicy) (state.DistanceVector, error) {
	var vec state.DistanceVector
	err := tbl.View(func(r *state.Rows) {
		vec, _ = r.Vector(r.Self())
		if policy != ExportPoisonReverse {
			return
		}
		hops := NextHops(r)
		for i, e := range vec.Entries {
			if e.Dest == to {
				continue
			}
			if nh, ok := hops[e.Dest]; ok && nh == to {
				vec.Entries[i].Cost = state.INF
			}
		}
	})
	if err != nil {
		return state.DistanceVector{}, err
	}
	return vec, nil
}

// IsTableError reports whether err came from a table lookup rather than from I/O.
func IsTableError(err error) bool {
	return errors.Is(err, state.ErrNotFound) || errors.Is(err, state.ErrInvalidArgument) || errors.Is(err, state.ErrDestroyed)
}
