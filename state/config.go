package state

import (
	"net/netip"
	"slices"
)

type NodeCfg struct {
	Id       NodeId
	Endpoint netip.AddrPort // where the node receives advertisements
	Prefixes []netip.Prefix `yaml:",omitempty"` // prefixes routed to this node
}

// CentralCfg is shared by every node in the network
type CentralCfg struct {
	Key   *NetworkKey `yaml:",omitempty"` // if set, advertisements are authenticated with this key
	Nodes []NodeCfg
	Links []Link
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id            NodeId // unique id for this node
	Port          uint16 `yaml:",omitempty"`               // overrides the port of our own endpoint
	PoisonReverse bool   `yaml:"poison_reverse,omitempty"` // advertise routes learned from a neighbour back to it as unreachable
	LogPath       string `yaml:"log_path,omitempty"`       // if not empty, logs are also written to this file
	SocketPath    string `yaml:"socket_path,omitempty"`    // overrides the ipc socket location
}

func (c *CentralCfg) NodeIds() []NodeId {
	ids := make([]NodeId, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		ids = append(ids, n.Id)
	}
	return ids
}

func (c *CentralCfg) IsNode(node NodeId) bool {
	return c.TryGetNode(node) != nil
}

func (c *CentralCfg) GetNode(node NodeId) NodeCfg {
	val := c.TryGetNode(node)
	if val == nil {
		panic("node " + node.String() + " not found")
	}
	return *val
}

func (c *CentralCfg) TryGetNode(node NodeId) *NodeCfg {
	idx := slices.IndexFunc(c.Nodes, func(cfg NodeCfg) bool {
		return cfg.Id == node
	})
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

// FindNodeBy returns the node that owns the endpoint
func (c *CentralCfg) FindNodeBy(ep netip.AddrPort) *NodeId {
	for _, n := range c.Nodes {
		if n.Endpoint == ep {
			return &n.Id
		}
	}
	return nil
}

// Topology returns the network as seen from self
func (c *CentralCfg) Topology(self NodeId) *StaticTopology {
	return &StaticTopology{
		Self:  self,
		Nodes: c.NodeIds(),
		Links: slices.Clone(c.Links),
	}
}
