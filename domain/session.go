package domain

import "github.com/google/uuid"

// SessionStats is a point-in-time view of the session registry.
type SessionStats struct {
	SessionID uuid.UUID
	Owner     ParticipantID
	HasOwner  bool
	Ended     bool
	Admitted  int
	Pending   int
}
