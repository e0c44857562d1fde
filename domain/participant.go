// Package domain contains core concepts of the whiteboard session.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"cmp"
	"fmt"
	"slices"
)

// ParticipantID is assigned by the server when a connection is accepted.
// Clients never choose it.
type ParticipantID int64

// Role is decided once, at admission, and never reassigned.
type Role string

const (
	RoleOwner Role = "owner"
	RoleGuest Role = "guest"
)

func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleGuest
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("unknown role %q", string(r))
	}
	return []byte(r), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role := Role(text)
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", string(text))
	}
	*r = role
	return nil
}

// Participant is a member of the session, admitted or pending.
// Display names are not unique; the ID is the only identity.
type Participant struct {
	ID   ParticipantID
	Name string
	Role Role
}

func (p Participant) IsOwner() bool {
	return p.Role == RoleOwner
}

func (p Participant) String() string {
	return fmt.Sprintf("%s-%d", p.Name, p.ID)
}

// Roster is a snapshot of the admitted participants, ordered by ID.
type Roster []Participant

func NewRoster(participants ...Participant) Roster {
	roster := Roster(slices.Clone(participants))
	slices.SortFunc(roster, func(a, b Participant) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return roster
}

func (r Roster) Contains(id ParticipantID) bool {
	return slices.ContainsFunc(r, func(p Participant) bool { return p.ID == id })
}
