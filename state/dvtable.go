package state

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// DVTable holds one distance vector per direct neighbour and one for the local node.
// Every read and write goes through a single mutex, so a recompute never observes a
// partially stored neighbour row.
type DVTable struct {
	mu   sync.Mutex
	self NodeId
	rows *Rows
}

// Rows is the unlocked view of a DVTable. It is only valid inside Mutate or View.
type Rows struct {
	self    NodeId
	sources []NodeId // neighbours in topology order, then self
	nodes   []NodeId
	rowIdx  map[NodeId]int
	colIdx  map[NodeId]int
	costs   []Cost // len(sources) * len(nodes), row major
}

// NewDVTable builds a table from a topology snapshot. Neighbour rows start with the
// neighbour's direct link costs, the local row starts with our own direct link costs,
// and everything that is not directly linked is INF.
func NewDVTable(topo Topology) (*DVTable, error) {
	if topo == nil {
		return nil, topologyErrorf("nil topology")
	}
	self := topo.MyNodeId()
	nodes := topo.AllNodeIds()
	neighs := topo.NeighbourIds()

	if len(nodes) == 0 {
		return nil, topologyErrorf("no nodes")
	}
	colIdx := make(map[NodeId]int, len(nodes))
	for i, n := range nodes {
		if _, ok := colIdx[n]; ok {
			return nil, topologyErrorf("duplicate node %d", n)
		}
		colIdx[n] = i
	}
	if _, ok := colIdx[self]; !ok {
		return nil, topologyErrorf("local node %d is not in the node list", self)
	}

	sources := make([]NodeId, 0, len(neighs)+1)
	rowIdx := make(map[NodeId]int, len(neighs)+1)
	for _, n := range neighs {
		if n == self {
			return nil, topologyErrorf("node %d lists itself as a neighbour", self)
		}
		if _, ok := colIdx[n]; !ok {
			return nil, topologyErrorf("neighbour %d is not in the node list", n)
		}
		if _, ok := rowIdx[n]; ok {
			return nil, topologyErrorf("duplicate neighbour %d", n)
		}
		rowIdx[n] = len(sources)
		sources = append(sources, n)
	}
	rowIdx[self] = len(sources)
	sources = append(sources, self)

	r := &Rows{
		self:    self,
		sources: sources,
		nodes:   slices.Clone(nodes),
		rowIdx:  rowIdx,
		colIdx:  colIdx,
		costs:   make([]Cost, len(sources)*len(nodes)),
	}
	for _, src := range sources {
		row := r.row(src)
		for j, dst := range r.nodes {
			switch {
			case dst == src && src == self:
				row[j] = 0
			case dst == src:
				// the neighbour's own entry carries our link cost to it
				row[j] = ClampCost(topo.DirectLinkCost(self, src))
			default:
				row[j] = ClampCost(topo.DirectLinkCost(src, dst))
			}
		}
	}
	return &DVTable{self: self, rows: r}, nil
}

// Destroy releases the table's storage. It is safe to call more than once.
func (t *DVTable) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
}

// Mutate runs fn with exclusive access to the rows.
func (t *DVTable) Mutate(fn func(r *Rows) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows == nil {
		return ErrDestroyed
	}
	return fn(t.rows)
}

// View runs fn with exclusive access to the rows. fn must not modify them.
func (t *DVTable) View(fn func(r *Rows)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows == nil {
		return ErrDestroyed
	}
	fn(t.rows)
	return nil
}

func (t *DVTable) Self() NodeId {
	return t.self
}

func (t *DVTable) Nodes() []NodeId {
	var nodes []NodeId
	_ = t.View(func(r *Rows) {
		nodes = slices.Clone(r.nodes)
	})
	return nodes
}

func (t *DVTable) Neighbours() []NodeId {
	var neighs []NodeId
	_ = t.View(func(r *Rows) {
		neighs = slices.Clone(r.Neighbours())
	})
	return neighs
}

// GetCost returns the cost stored in the row for from towards to. It is 0 when
// from == to and INF when the table holds no such entry.
func (t *DVTable) GetCost(from, to NodeId) Cost {
	if from == to {
		return 0
	}
	c := INF
	_ = t.View(func(r *Rows) {
		c = r.Cost(from, to)
	})
	return c
}

// SetCost overwrites the cost in the row for from towards to.
func (t *DVTable) SetCost(from, to NodeId, cost Cost) error {
	return t.Mutate(func(r *Rows) error {
		return r.SetCost(from, to, cost)
	})
}

// LinkCost returns the direct link cost to a neighbour.
func (t *DVTable) LinkCost(neigh NodeId) (Cost, bool) {
	c, ok := INF, false
	_ = t.View(func(r *Rows) {
		c, ok = r.LinkCost(neigh)
	})
	return c, ok
}

// LocalVector returns a copy of the local node's row.
func (t *DVTable) LocalVector() DistanceVector {
	vec := DistanceVector{Source: t.self}
	_ = t.View(func(r *Rows) {
		vec, _ = r.Vector(r.self)
	})
	return vec
}

// Vector returns a copy of the row for src.
func (t *DVTable) Vector(src NodeId) (DistanceVector, bool) {
	var vec DistanceVector
	ok := false
	_ = t.View(func(r *Rows) {
		vec, ok = r.Vector(src)
	})
	return vec, ok
}

// Render prints the table as a fixed width grid, one row per source.
func (t *DVTable) Render() string {
	out := "(destroyed)\n"
	_ = t.View(func(r *Rows) {
		out = r.Render()
	})
	return out
}

func (r *Rows) row(src NodeId) []Cost {
	i, ok := r.rowIdx[src]
	if !ok {
		return nil
	}
	w := len(r.nodes)
	return r.costs[i*w : (i+1)*w]
}

func (r *Rows) Self() NodeId {
	return r.self
}

// Nodes lists every destination. The slice must not be modified.
func (r *Rows) Nodes() []NodeId {
	return r.nodes
}

// Neighbours lists every neighbour row. The slice must not be modified.
func (r *Rows) Neighbours() []NodeId {
	return r.sources[:len(r.sources)-1]
}

func (r *Rows) IsNeighbour(n NodeId) bool {
	_, ok := r.rowIdx[n]
	return ok && n != r.self
}

func (r *Rows) Cost(from, to NodeId) Cost {
	if from == to {
		return 0
	}
	row := r.row(from)
	j, ok := r.colIdx[to]
	if row == nil || !ok {
		return INF
	}
	return row[j]
}

func (r *Rows) SetCost(from, to NodeId, cost Cost) error {
	if from == to {
		return fmt.Errorf("%w: cost from %d to itself", ErrInvalidArgument, from)
	}
	row := r.row(from)
	j, ok := r.colIdx[to]
	if row == nil || !ok {
		return fmt.Errorf("%w: %d -> %d", ErrNotFound, from, to)
	}
	row[j] = ClampCost(cost)
	return nil
}

func (r *Rows) LinkCost(neigh NodeId) (Cost, bool) {
	if !r.IsNeighbour(neigh) {
		return INF, false
	}
	return r.row(neigh)[r.colIdx[neigh]], true
}

func (r *Rows) SetLinkCost(neigh NodeId, cost Cost) error {
	if !r.IsNeighbour(neigh) {
		return fmt.Errorf("%w: %d is not a neighbour", ErrNotFound, neigh)
	}
	r.row(neigh)[r.colIdx[neigh]] = ClampCost(cost)
	return nil
}

// Vector copies the row for src. The source's entry for itself is reported as 0.
func (r *Rows) Vector(src NodeId) (DistanceVector, bool) {
	row := r.row(src)
	if row == nil {
		return DistanceVector{}, false
	}
	vec := DistanceVector{
		Source:  src,
		Entries: make([]VectorEntry, len(r.nodes)),
	}
	for j, dst := range r.nodes {
		c := row[j]
		if dst == src {
			c = 0
		}
		vec.Entries[j] = VectorEntry{Dest: dst, Cost: c}
	}
	return vec, true
}

// StoreVector overwrites a neighbour's row with the advertised entries. Destinations the
// advert does not mention become INF, unknown destinations are ignored and the
// neighbour's own entry keeps the link cost.
func (r *Rows) StoreVector(vec DistanceVector) error {
	if !r.IsNeighbour(vec.Source) {
		return fmt.Errorf("%w: %d is not a neighbour", ErrNotFound, vec.Source)
	}
	row := r.row(vec.Source)
	own := r.colIdx[vec.Source]
	for j := range row {
		if j != own {
			row[j] = INF
		}
	}
	for _, e := range vec.Entries {
		j, ok := r.colIdx[e.Dest]
		if !ok || j == own {
			continue
		}
		row[j] = ClampCost(e.Cost)
	}
	return nil
}

func (r *Rows) Render() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%6s", ""))
	for _, dst := range r.nodes {
		sb.WriteString(fmt.Sprintf("%6d", dst))
	}
	sb.WriteString("\n")
	for _, src := range r.sources {
		sb.WriteString(fmt.Sprintf("%6d", src))
		for _, c := range r.row(src) {
			sb.WriteString(fmt.Sprintf("%6s", c))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
