package runtime

import (
	"sync/atomic"

	"whiteboard/domain"
)

// firstParticipantID keeps identities in the six digit range clients display.
const firstParticipantID = 100000

// IdentityAllocator hands out participant identities. They only grow, so an
// identity is never reused within the life of the process.
type IdentityAllocator struct {
	last atomic.Int64
}

func NewIdentityAllocator() *IdentityAllocator {
	a := &IdentityAllocator{}
	a.last.Store(firstParticipantID)
	return a
}

func (a *IdentityAllocator) Next() domain.ParticipantID {
	return domain.ParticipantID(a.last.Add(1))
}
