package core

import (
	"maps"
	"slices"
	"testing"

	"github.com/encodeous/dvnet/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// shortestPaths is an all-pairs Floyd-Warshall oracle over undirected links.
func shortestPaths(nodes []state.NodeId, links []state.Link) map[state.Pair[state.NodeId, state.NodeId]]state.Cost {
	d := make(map[state.Pair[state.NodeId, state.NodeId]]state.Cost)
	key := func(a, b state.NodeId) state.Pair[state.NodeId, state.NodeId] {
		return state.Pair[state.NodeId, state.NodeId]{V1: a, V2: b}
	}
	for _, a := range nodes {
		for _, b := range nodes {
			d[key(a, b)] = state.INF
		}
		d[key(a, a)] = 0
	}
	for _, l := range links {
		c := min(d[key(l.A, l.B)], state.ClampCost(l.Cost))
		d[key(l.A, l.B)] = c
		d[key(l.B, l.A)] = c
	}
	for _, k := range nodes {
		for _, i := range nodes {
			for _, j := range nodes {
				if via := state.AddCost(d[key(i, k)], d[key(k, j)]); via < d[key(i, j)] {
					d[key(i, j)] = via
				}
			}
		}
	}
	return d
}

// testNet runs the recurrence on one table per node in synchronous rounds, without a driver.
type testNet struct {
	nodes  []state.NodeId
	links  []state.Link
	tables map[state.NodeId]*state.DVTable
	down   map[state.Pair[state.NodeId, state.NodeId]]bool
	policy ExportPolicy
}

func newTestNet(t *testing.T, links []state.Link, policy ExportPolicy) *testNet {
	t.Helper()
	seen := make(map[state.NodeId]struct{})
	for _, l := range links {
		seen[l.A] = struct{}{}
		seen[l.B] = struct{}{}
	}
	n := &testNet{
		nodes:  slices.Sorted(maps.Keys(seen)),
		links:  links,
		tables: make(map[state.NodeId]*state.DVTable),
		down:   make(map[state.Pair[state.NodeId, state.NodeId]]bool),
		policy: policy,
	}
	for _, id := range n.nodes {
		tbl, err := state.NewDVTable(&state.StaticTopology{Self: id, Nodes: n.nodes, Links: links})
		require.NoError(t, err)
		n.tables[id] = tbl
		t.Cleanup(tbl.Destroy)
	}
	return n
}

// exports computes what every node currently advertises to each live neighbour.
func (n *testNet) exports(t *testing.T) map[state.Pair[state.NodeId, state.NodeId]]state.DistanceVector {
	t.Helper()
	out := make(map[state.Pair[state.NodeId, state.NodeId]]state.DistanceVector)
	for _, id := range n.nodes {
		for _, neigh := range n.tables[id].Neighbours() {
			if n.down[state.MakeSortedPair(id, neigh)] {
				continue
			}
			vec, err := ExportVector(n.tables[id], neigh, n.policy)
			require.NoError(t, err)
			out[state.Pair[state.NodeId, state.NodeId]{V1: id, V2: neigh}] = vec
		}
	}
	return out
}

// round delivers every node's current export to each live neighbour. It reports whether
// anything moved: a table reported a change, or any node now advertises something else.
func (n *testNet) round(t *testing.T) bool {
	t.Helper()
	before := n.exports(t)
	changed := false
	for _, id := range n.nodes {
		for _, neigh := range n.tables[id].Neighbours() {
			vec, ok := before[state.Pair[state.NodeId, state.NodeId]{V1: id, V2: neigh}]
			if !ok {
				continue
			}
			c, err := ApplyNeighbourVector(n.tables[neigh], vec)
			require.NoError(t, err)
			changed = changed || c
		}
	}
	return changed || !cmp.Equal(before, n.exports(t))
}

// converge runs rounds until nothing changes and returns how many rounds changed something.
func (n *testNet) converge(t *testing.T, maxRounds int) int {
	t.Helper()
	for i := 0; i < maxRounds; i++ {
		if !n.round(t) {
			return i
		}
	}
	t.Fatalf("no convergence after %d rounds", maxRounds)
	return maxRounds
}

func (n *testNet) setLinkDown(t *testing.T, a, b state.NodeId) {
	t.Helper()
	n.down[state.MakeSortedPair(a, b)] = true
	for _, p := range [][2]state.NodeId{{a, b}, {b, a}} {
		_, err := UpdateLinkCost(n.tables[p[0]], p[1], state.INF)
		require.NoError(t, err)
		_, err = ResetNeighbour(n.tables[p[0]], p[1])
		require.NoError(t, err)
	}
}

// requireOptimal checks every local vector against the oracle, ignoring links that are down.
func (n *testNet) requireOptimal(t *testing.T) {
	t.Helper()
	live := make([]state.Link, 0)
	for _, l := range n.links {
		if !n.down[state.MakeSortedPair(l.A, l.B)] {
			live = append(live, l)
		}
	}
	want := shortestPaths(n.nodes, live)
	for _, src := range n.nodes {
		for _, dst := range n.nodes {
			require.Equal(t, want[state.Pair[state.NodeId, state.NodeId]{V1: src, V2: dst}], n.tables[src].GetCost(src, dst),
				"cost from %d to %d", src, dst)
		}
	}
}
