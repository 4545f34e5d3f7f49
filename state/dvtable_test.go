package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 --1-- 2 --1-- 3, seen from 2
func lineTopology(self NodeId) *StaticTopology {
	return &StaticTopology{
		Self:  self,
		Nodes: []NodeId{1, 2, 3},
		Links: []Link{
			{A: 1, B: 2, Cost: 1},
			{A: 2, B: 3, Cost: 1},
		},
	}
}

type fakeTopology struct {
	self   NodeId
	neighs []NodeId
	nodes  []NodeId
}

func (f fakeTopology) MyNodeId() NodeId { return f.self }

func (f fakeTopology) NeighbourIds() []NodeId { return f.neighs }

func (f fakeTopology) AllNodeIds() []NodeId { return f.nodes }

func (f fakeTopology) DirectLinkCost(a, b NodeId) Cost { return 1 }

func TestNewDVTable_Line(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)
	defer tbl.Destroy()

	assert.Equal(t, NodeId(2), tbl.Self())
	assert.Equal(t, []NodeId{1, 3}, tbl.Neighbours())
	assert.Equal(t, []NodeId{1, 2, 3}, tbl.Nodes())

	// local row holds our direct links
	assert.Equal(t, Cost(1), tbl.GetCost(2, 1))
	assert.Equal(t, Cost(0), tbl.GetCost(2, 2))
	assert.Equal(t, Cost(1), tbl.GetCost(2, 3))

	// neighbour rows hold the neighbour's direct links
	assert.Equal(t, Cost(1), tbl.GetCost(1, 2))
	assert.Equal(t, INF, tbl.GetCost(1, 3))
	assert.Equal(t, INF, tbl.GetCost(3, 1))
	assert.Equal(t, Cost(1), tbl.GetCost(3, 2))

	cost, ok := tbl.LinkCost(1)
	assert.True(t, ok)
	assert.Equal(t, Cost(1), cost)
	_, ok = tbl.LinkCost(2)
	assert.False(t, ok)
}

func TestNewDVTable_SelfCostIsZero(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(1))
	require.NoError(t, err)
	for _, n := range tbl.Nodes() {
		assert.Equal(t, Cost(0), tbl.GetCost(n, n))
	}
	assert.Equal(t, Cost(0), tbl.LocalVector().Cost(1))
}

func TestNewDVTable_NoNeighbours(t *testing.T) {
	tbl, err := NewDVTable(&StaticTopology{Self: 7, Nodes: []NodeId{7, 8}})
	require.NoError(t, err)
	assert.Empty(t, tbl.Neighbours())

	want := DistanceVector{Source: 7, Entries: []VectorEntry{{Dest: 7, Cost: 0}, {Dest: 8, Cost: INF}}}
	if diff := cmp.Diff(want, tbl.LocalVector()); diff != "" {
		t.Errorf("local vector mismatch (-want +got):\n%s", diff)
	}

	tbl.Destroy()
	assert.Equal(t, INF, tbl.GetCost(7, 8))
	assert.Equal(t, Cost(0), tbl.GetCost(7, 7))
	assert.Empty(t, tbl.Nodes())
	assert.Equal(t, "(destroyed)\n", tbl.Render())
}

func TestNewDVTable_BadTopology(t *testing.T) {
	tests := []struct {
		name string
		topo Topology
	}{
		{"nil", nil},
		{"no nodes", fakeTopology{self: 1}},
		{"self missing", fakeTopology{self: 1, nodes: []NodeId{2, 3}}},
		{"duplicate node", fakeTopology{self: 1, nodes: []NodeId{1, 2, 2}}},
		{"neighbour is self", fakeTopology{self: 1, neighs: []NodeId{1}, nodes: []NodeId{1, 2}}},
		{"unknown neighbour", fakeTopology{self: 1, neighs: []NodeId{9}, nodes: []NodeId{1, 2}}},
		{"duplicate neighbour", fakeTopology{self: 1, neighs: []NodeId{2, 2}, nodes: []NodeId{1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewDVTable(tt.topo)
			assert.Nil(t, tbl)
			var topoErr *TopologyError
			require.ErrorAs(t, err, &topoErr)
			assert.Contains(t, err.Error(), "bad topology")
		})
	}
}

func TestDVTable_SetThenGet(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	require.NoError(t, tbl.SetCost(1, 3, 5))
	assert.Equal(t, Cost(5), tbl.GetCost(1, 3))

	require.NoError(t, tbl.SetCost(2, 3, 4))
	assert.Equal(t, Cost(4), tbl.GetCost(2, 3))
}

func TestDVTable_LookupIsDirectional(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	require.NoError(t, tbl.SetCost(1, 3, 5))
	assert.Equal(t, Cost(5), tbl.GetCost(1, 3))
	// the reverse direction lives in another row and is untouched
	assert.Equal(t, INF, tbl.GetCost(3, 1))
}

func TestDVTable_SetCostErrors(t *testing.T) {
	tbl, err := NewDVTable(&StaticTopology{
		Self:  1,
		Nodes: []NodeId{1, 2, 3},
		Links: []Link{{A: 1, B: 2, Cost: 3}},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, tbl.SetCost(2, 2, 1), ErrInvalidArgument)
	// 3 is a node, but not a neighbour, so it has no row
	assert.ErrorIs(t, tbl.SetCost(3, 2, 1), ErrNotFound)
	assert.ErrorIs(t, tbl.SetCost(2, 42, 1), ErrNotFound)
	assert.ErrorIs(t, tbl.SetCost(42, 2, 1), ErrNotFound)
	assert.Equal(t, INF, tbl.GetCost(42, 2))
}

func TestDVTable_CostsAreClamped(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	require.NoError(t, tbl.SetCost(1, 3, INF+100))
	assert.Equal(t, INF, tbl.GetCost(1, 3))
}

func TestDVTable_Destroy(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	tbl.Destroy()
	tbl.Destroy()

	assert.Equal(t, INF, tbl.GetCost(2, 1))
	assert.ErrorIs(t, tbl.SetCost(2, 1, 1), ErrDestroyed)
	assert.Empty(t, tbl.Neighbours())
	assert.Equal(t, "(destroyed)\n", tbl.Render())
	_, ok := tbl.Vector(1)
	assert.False(t, ok)
}

func TestDVTable_Render(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	expected := "" +
		"           1     2     3\n" +
		"     1     1     1   inf\n" +
		"     3   inf     1     1\n" +
		"     2     1     0     1\n"
	assert.Equal(t, expected, tbl.Render())
}

func TestDVTable_Vector(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	vec, ok := tbl.Vector(1)
	require.True(t, ok)
	want := DistanceVector{Source: 1, Entries: []VectorEntry{
		{Dest: 1, Cost: 0},
		{Dest: 2, Cost: 1},
		{Dest: 3, Cost: INF},
	}}
	if diff := cmp.Diff(want, vec); diff != "" {
		t.Errorf("vector mismatch (-want +got):\n%s", diff)
	}

	_, ok = tbl.Vector(42)
	assert.False(t, ok)
}

func TestRows_StoreVector(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	err = tbl.Mutate(func(r *Rows) error {
		return r.StoreVector(DistanceVector{
			Source: 1,
			Entries: []VectorEntry{
				{Dest: 3, Cost: 4},
				{Dest: 99, Cost: 1}, // unknown destination
				{Dest: 1, Cost: 7},  // cannot overwrite the link cost
			},
		})
	})
	require.NoError(t, err)

	assert.Equal(t, Cost(4), tbl.GetCost(1, 3))
	// not advertised, so unreachable
	assert.Equal(t, INF, tbl.GetCost(1, 2))
	cost, _ := tbl.LinkCost(1)
	assert.Equal(t, Cost(1), cost)

	err = tbl.Mutate(func(r *Rows) error {
		return r.StoreVector(DistanceVector{Source: 2})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRows_SetLinkCost(t *testing.T) {
	tbl, err := NewDVTable(lineTopology(2))
	require.NoError(t, err)

	err = tbl.Mutate(func(r *Rows) error {
		return r.SetLinkCost(3, 9)
	})
	require.NoError(t, err)
	cost, ok := tbl.LinkCost(3)
	assert.True(t, ok)
	assert.Equal(t, Cost(9), cost)

	err = tbl.Mutate(func(r *Rows) error {
		return r.SetLinkCost(2, 9)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
