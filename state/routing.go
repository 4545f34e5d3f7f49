package state

import (
	"fmt"
	"strings"
)

// NodeId identifies a node in the overlay. It is stable for the lifetime of the network.
type NodeId uint32

func (n NodeId) String() string {
	return fmt.Sprintf("%d", uint32(n))
}

// Cost is a path or link cost in [0, INF].
type Cost uint32

func (c Cost) String() string {
	if c >= INF {
		return "inf"
	}
	return fmt.Sprintf("%d", uint32(c))
}

// AddCost adds two costs, saturating at INF. An unreachable operand always yields INF.
func AddCost(a, b Cost) Cost {
	if a >= INF || b >= INF {
		return INF
	}
	return min(a+b, INF)
}

// ClampCost maps any value above INF to INF.
func ClampCost(c Cost) Cost {
	return min(c, INF)
}

type VectorEntry struct {
	Dest NodeId
	Cost Cost
}

// DistanceVector is the set of costs from Source to every destination it knows about.
type DistanceVector struct {
	Source  NodeId
	Entries []VectorEntry
}

// Cost returns the entry for dest, or INF if the vector does not carry one.
func (v DistanceVector) Cost(dest NodeId) Cost {
	if dest == v.Source {
		return 0
	}
	for _, e := range v.Entries {
		if e.Dest == dest {
			return e.Cost
		}
	}
	return INF
}

func (v DistanceVector) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%d: [", v.Source))
	for i, e := range v.Entries {
		if i != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d=%s", e.Dest, e.Cost))
	}
	sb.WriteString("]")
	return sb.String()
}
