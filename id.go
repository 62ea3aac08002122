package evcore

import "sync/atomic"

// Id is a monotonically increasing, never-recycled identifier. Ids from
// different counter spaces (objects, event loops, connections) are never
// compared against each other; each space is self-contained and only
// meaningful within the component that minted it.
type Id uint64

var (
	nextObjectId     atomic.Uint64
	nextEventLoopId  atomic.Uint64
	nextConnectionId atomic.Uint64
)

func newObjectId() Id     { return Id(nextObjectId.Add(1)) }
func newEventLoopId() Id  { return Id(nextEventLoopId.Add(1)) }
func newConnectionId() Id { return Id(nextConnectionId.Add(1)) }
