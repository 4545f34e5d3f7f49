package state

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a (from, to) pair or a neighbour is absent from the table.
	ErrNotFound = errors.New("not found in table")
	// ErrInvalidArgument is returned for requests that can never succeed, such as a cost from a node to itself.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDestroyed is returned by writes to a table after Destroy.
	ErrDestroyed = errors.New("table destroyed")
)

// TopologyError reports a malformed topology snapshot. No table is built when it is returned.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("bad topology: %s", e.Reason)
}

func topologyErrorf(format string, args ...any) *TopologyError {
	return &TopologyError{Reason: fmt.Sprintf(format, args...)}
}
