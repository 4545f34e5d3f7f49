package core

import (
	"cmp"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/encodeous/dvnet/state"
	"github.com/gaissmai/bart"
)

// ForwardTable maps destinations to next hops, and prefixes to the node that owns them.
type ForwardTable struct {
	self     state.NodeId
	hops     map[state.NodeId]state.NodeId
	prefixes *bart.Table[state.NodeId]
}

type RouteChange struct {
	Dest  state.NodeId
	OldNh *state.NodeId
	NewNh *state.NodeId
}

func (c RouteChange) String() string {
	f := func(n *state.NodeId) string {
		if n == nil {
			return "none"
		}
		return n.String()
	}
	return fmt.Sprintf("%d: %s -> %s", c.Dest, f(c.OldNh), f(c.NewNh))
}

func NewForwardTable(self state.NodeId, cfg *state.CentralCfg) *ForwardTable {
	f := &ForwardTable{
		self:     self,
		hops:     make(map[state.NodeId]state.NodeId),
		prefixes: new(bart.Table[state.NodeId]),
	}
	for _, node := range cfg.Nodes {
		for _, p := range node.Prefixes {
			f.prefixes.Insert(p.Masked(), node.Id)
		}
	}
	return f
}

// Update replaces the next hops and returns what changed, ordered by destination.
func (f *ForwardTable) Update(hops map[state.NodeId]state.NodeId) []RouteChange {
	changes := make([]RouteChange, 0)
	for dst, nh := range hops {
		old, ok := f.hops[dst]
		if !ok || old != nh {
			c := RouteChange{Dest: dst, NewNh: &nh}
			if ok {
				c.OldNh = &old
			}
			changes = append(changes, c)
		}
	}
	for dst, old := range f.hops {
		if _, ok := hops[dst]; !ok {
			changes = append(changes, RouteChange{Dest: dst, OldNh: &old})
		}
	}
	slices.SortFunc(changes, func(a, b RouteChange) int {
		return cmp.Compare(a.Dest, b.Dest)
	})
	f.hops = maps.Clone(hops)
	return changes
}

func (f *ForwardTable) NextHop(dst state.NodeId) (state.NodeId, bool) {
	if dst == f.self {
		return f.self, true
	}
	nh, ok := f.hops[dst]
	return nh, ok
}

// Lookup finds the node owning addr by longest prefix match, and the next hop towards it.
func (f *ForwardTable) Lookup(addr netip.Addr) (dst state.NodeId, nh state.NodeId, ok bool) {
	dst, ok = f.prefixes.Lookup(addr)
	if !ok {
		return 0, 0, false
	}
	nh, ok = f.NextHop(dst)
	return dst, nh, ok
}

func (f *ForwardTable) String() string {
	rt := make([]string, 0)
	for _, dst := range slices.Sorted(maps.Keys(f.hops)) {
		rt = append(rt, fmt.Sprintf(" - %d via %d", dst, f.hops[dst]))
	}
	if len(rt) == 0 {
		return "    (none)\n"
	}
	return strings.Join(rt, "\n") + "\n"
}
