package core

import (
	"github.com/encodeous/dvnet/state"
)

// Transport carries advertisements between neighbours.
type Transport interface {
	Send(to state.NodeId, pkt []byte) error
	Close() error
}

// PacketHandler receives raw packets. It is called from the transport's own goroutines,
// so it must not touch State directly.
type PacketHandler func(pkt []byte)
