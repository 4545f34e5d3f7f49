package state

import "time"

const (
	// INF is the cost of an unreachable destination. It leaves enough headroom in a
	// uint32 that INF + INF never overflows.
	INF = Cost(1<<16 - 1)
	// INFM is the largest cost that is still reachable.
	INFM = INF - 1
)

var (
	AdvertiseDelay         = time.Second * 5
	TriggeredUpdateDelay   = time.Millisecond * 50
	NeighbourDeadThreshold = 4 * AdvertiseDelay
	GcDelay                = time.Millisecond * 1000
	SafeMTU                = 1200

	// DefaultPort is bound when the node has no endpoint and the local config names no port
	DefaultPort uint16 = 57176

	// ControlTOS marks advertisements as network control traffic (DSCP CS6)
	ControlTOS = 0xc0

	// the dispatch loop warns when a single task runs longer than this
	SlowDispatchThreshold = time.Millisecond * 4
)
