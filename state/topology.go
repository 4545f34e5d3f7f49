package state

import (
	"slices"
)

// Topology is a snapshot of the overlay as seen from one node.
type Topology interface {
	MyNodeId() NodeId
	// NeighbourIds are the nodes directly linked to this node, without duplicates
	NeighbourIds() []NodeId
	// AllNodeIds is a superset of NeighbourIds and contains MyNodeId
	AllNodeIds() []NodeId
	// DirectLinkCost is INF when a and b are not directly linked
	DirectLinkCost(a, b NodeId) Cost
}

type Link struct {
	A    NodeId `yaml:"a"`
	B    NodeId `yaml:"b"`
	Cost Cost   `yaml:"cost"`
}

// StaticTopology is a Topology built from a fixed list of nodes and undirected links.
type StaticTopology struct {
	Self  NodeId
	Nodes []NodeId
	Links []Link
}

func (t *StaticTopology) MyNodeId() NodeId {
	return t.Self
}

func (t *StaticTopology) NeighbourIds() []NodeId {
	neighs := make([]NodeId, 0)
	for _, l := range t.Links {
		var neigh NodeId
		switch t.Self {
		case l.A:
			neigh = l.B
		case l.B:
			neigh = l.A
		default:
			continue
		}
		if neigh != t.Self && !slices.Contains(neighs, neigh) {
			neighs = append(neighs, neigh)
		}
	}
	return neighs
}

func (t *StaticTopology) AllNodeIds() []NodeId {
	return slices.Clone(t.Nodes)
}

func (t *StaticTopology) DirectLinkCost(a, b NodeId) Cost {
	if a == b {
		return 0
	}
	best := INF
	for _, l := range t.Links {
		if l.A == a && l.B == b || l.A == b && l.B == a {
			best = min(best, ClampCost(l.Cost))
		}
	}
	return best
}
