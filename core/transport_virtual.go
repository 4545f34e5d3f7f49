package core

import (
	"fmt"
	"sync"

	"github.com/encodeous/dvnet/perf"
	"github.com/encodeous/dvnet/state"
)

// VirtualNetwork connects nodes running in the same process. Packets are delivered
// asynchronously and may be reordered, like UDP.
type VirtualNetwork struct {
	mu       sync.Mutex
	handlers map[state.NodeId]PacketHandler
	down     map[state.Pair[state.NodeId, state.NodeId]]bool
	wg       sync.WaitGroup
}

func NewVirtualNetwork() *VirtualNetwork {
	return &VirtualNetwork{
		handlers: make(map[state.NodeId]PacketHandler),
		down:     make(map[state.Pair[state.NodeId, state.NodeId]]bool),
	}
}

// Attach registers a node on the network.
func (v *VirtualNetwork) Attach(id state.NodeId, handler PacketHandler) *VirtualTransport {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handlers[id] = handler
	return &VirtualTransport{vn: v, id: id}
}

// SetLinkDown drops every packet between a and b, in both directions, while down is true.
func (v *VirtualNetwork) SetLinkDown(a, b state.NodeId, down bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.down[state.MakeSortedPair(a, b)] = down
}

// Wait blocks until every packet in flight has been handed to its receiver.
func (v *VirtualNetwork) Wait() {
	v.wg.Wait()
}

func (v *VirtualNetwork) send(from, to state.NodeId, pkt []byte) error {
	v.mu.Lock()
	h, ok := v.handlers[to]
	down := v.down[state.MakeSortedPair(from, to)]
	v.mu.Unlock()
	if !ok {
		return fmt.Errorf("node %d is not attached", to)
	}
	if down {
		return nil // silently dropped
	}
	buf := make([]byte, len(pkt))
	copy(buf, pkt)
	perf.SentBytesPerSecond.Add(float64(len(buf)))
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		h(buf)
	}()
	return nil
}

type VirtualTransport struct {
	vn *VirtualNetwork
	id state.NodeId
}

func (t *VirtualTransport) Send(to state.NodeId, pkt []byte) error {
	return t.vn.send(t.id, to, pkt)
}

func (t *VirtualTransport) Close() error {
	t.vn.mu.Lock()
	defer t.vn.mu.Unlock()
	delete(t.vn.handlers, t.id)
	return nil
}
