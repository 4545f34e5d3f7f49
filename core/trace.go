package core

import (
	"fmt"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/dvnet/state"
)

// RouteTrace fans router events out to every subscriber, such as an ipc trace session.
type RouteTrace struct {
	broadcast.Broadcaster
}

type TraceEvent struct {
	Event RouterEvent
	Desc  string
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("%s %s", e.Event, e.Desc)
}

func (n *RouteTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	return nil
}

func (n *RouteTrace) Cleanup(s *state.State) error {
	return n.Broadcaster.Close()
}
