package runtime

import (
	"fmt"
	"sync"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/errors"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Ensure *Registry satisfies the lookups the router relies on.
var _ contract.IRegistry = (*Registry)(nil)

type member struct {
	participant domain.Participant
	sink        contract.Sink
}

// Membership tells which pool a participant was found in.
type Membership int

const (
	NotRegistered Membership = iota
	Pending
	Admitted
)

// JoinOutcome describes where a join-request landed.
// Owner is only set when the joiner was parked in pending.
type JoinOutcome struct {
	Participant domain.Participant
	Roster      domain.Roster
	Owner       *contract.Recipient
}

// Departure describes a participant that left the registry.
type Departure struct {
	Participant domain.Participant
	From        Membership
	Roster      domain.Roster
}

// Registry is the single session of the process: the admitted participants,
// the applicants waiting for the owner's decision and the owner identity.
//
// Every compound operation runs under one lock so that decisions such as
// "is this the first participant" and the matching insert are atomic.
// No lock is ever held while writing to a connection.
type Registry struct {
	mu        sync.RWMutex
	sessionID uuid.UUID
	owner     domain.ParticipantID
	ownerSet  bool
	ended     bool
	admitted  map[domain.ParticipantID]member
	pending   map[domain.ParticipantID]member
}

func NewRegistry() *Registry {
	return &Registry{
		sessionID: uuid.New(),
		admitted:  make(map[domain.ParticipantID]member),
		pending:   make(map[domain.ParticipantID]member),
	}
}

func (r *Registry) SessionID() uuid.UUID {
	return r.sessionID
}

// Join registers a participant. The very first participant of the session is
// admitted as owner; everyone after that is parked in pending and the owner's
// recipient is returned so the request can be forwarded.
func (r *Registry) Join(id domain.ParticipantID, name string, sink contract.Sink) (JoinOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 1. A closed session never reopens
	if r.ended {
		return JoinOutcome{}, errors.ErrSessionEnded
	}
	if r.membership(id) != NotRegistered {
		return JoinOutcome{}, fmt.Errorf("participant %d: %w", id, errors.ErrAlreadyJoined)
	}

	// 2. First one in owns the board
	if !r.ownerSet {
		owner := domain.Participant{ID: id, Name: name, Role: domain.RoleOwner}
		r.admitted[id] = member{participant: owner, sink: sink}
		r.owner = id
		r.ownerSet = true
		return JoinOutcome{Participant: owner, Roster: r.roster()}, nil
	}

	owner, ok := r.admitted[r.owner]
	if !ok {
		// The owner left without the session being closed; nobody can approve.
		return JoinOutcome{}, errors.ErrSessionEnded
	}
	// 3. Everybody else waits for the owner
	applicant := domain.Participant{ID: id, Name: name, Role: domain.RoleGuest}
	r.pending[id] = member{participant: applicant, sink: sink}
	return JoinOutcome{
		Participant: applicant,
		Owner:       &contract.Recipient{ID: owner.participant.ID, Sink: owner.sink},
	}, nil
}

// Accept moves a pending applicant into the admitted pool on behalf of the owner.
func (r *Registry) Accept(actor, target domain.ParticipantID) (domain.Participant, domain.Roster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwner(actor); err != nil {
		return domain.Participant{}, nil, err
	}
	applicant, ok := r.pending[target]
	if !ok {
		return domain.Participant{}, nil, fmt.Errorf("participant %d: %w", target, errors.ErrNotPending)
	}
	delete(r.pending, target)
	r.admitted[target] = applicant
	return applicant.participant, r.roster(), nil
}

// Reject drops a pending applicant on behalf of the owner and returns it so
// the rejection can still be delivered.
func (r *Registry) Reject(actor, target domain.ParticipantID) (domain.Participant, contract.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOwner(actor); err != nil {
		return domain.Participant{}, contract.Recipient{}, err
	}
	applicant, ok := r.pending[target]
	if !ok {
		return domain.Participant{}, contract.Recipient{}, fmt.Errorf("participant %d: %w", target, errors.ErrNotPending)
	}
	delete(r.pending, target)
	return applicant.participant, contract.Recipient{ID: target, Sink: applicant.sink}, nil
}

// CheckKick validates a removal requested by actor without mutating anything.
// The caller broadcasts the notice first and then calls Remove.
func (r *Registry) CheckKick(actor, target domain.ParticipantID) (domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkOwner(actor); err != nil {
		return domain.Participant{}, err
	}
	if target == r.owner {
		// Only way out for the owner is to leave
		return domain.Participant{}, errors.ErrCannotKickOwner
	}
	kicked, ok := r.admitted[target]
	if !ok {
		return domain.Participant{}, fmt.Errorf("participant %d: %w", target, errors.ErrNotAdmitted)
	}
	return kicked.participant, nil
}

// Remove deletes an admitted participant. It reports false when the
// participant was already gone.
func (r *Registry) Remove(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admitted[id]; !ok {
		return false
	}
	delete(r.admitted, id)
	return true
}

// Depart removes a guest or an applicant and returns the roster left behind.
// The owner is never removed here: its departure closes the whole session
// through EndSession once the force-quit has been broadcast.
func (r *Registry) Depart(id domain.ParticipantID) (Departure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasOwner() && id == r.owner {
		return Departure{}, fmt.Errorf("participant %d is the owner: end the session instead", id)
	}
	if m, ok := r.pending[id]; ok {
		delete(r.pending, id)
		return Departure{Participant: m.participant, From: Pending}, nil
	}
	if m, ok := r.admitted[id]; ok {
		delete(r.admitted, id)
		return Departure{Participant: m.participant, From: Admitted, Roster: r.roster()}, nil
	}
	// Already gone, kicked or session ended
	return Departure{From: NotRegistered}, nil
}

// EndSession empties the registry after the owner left and refuses every
// later join. The applicants still waiting are returned so they can be told.
func (r *Registry) EndSession() []contract.Recipient {
	r.mu.Lock()
	defer r.mu.Unlock()

	waiting := lo.MapToSlice(r.pending, func(id domain.ParticipantID, m member) contract.Recipient {
		return contract.Recipient{ID: id, Sink: m.sink}
	})
	// From now on there is no owner anymore, IsOwner and Stats agree on it
	r.ended = true
	clear(r.admitted)
	clear(r.pending)
	return waiting
}

// Recipients snapshots the admitted participants except one.
// Pending applicants are never part of it.
func (r *Registry) Recipients(except domain.ParticipantID) []contract.Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recipients := make([]contract.Recipient, 0, len(r.admitted))
	for id, m := range r.admitted {
		if id == except {
			continue // never echo back to the sender
		}
		recipients = append(recipients, contract.Recipient{ID: id, Sink: m.sink})
	}
	return recipients
}

// Lookup finds a participant in either pool.
func (r *Registry) Lookup(id domain.ParticipantID) (contract.Recipient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.admitted[id]; ok {
		return contract.Recipient{ID: id, Sink: m.sink}, true
	}
	if m, ok := r.pending[id]; ok {
		return contract.Recipient{ID: id, Sink: m.sink}, true
	}
	return contract.Recipient{}, false
}

// Admitted returns the admitted participant with the given ID.
func (r *Registry) Admitted(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.admitted[id]
	return m.participant, ok
}

func (r *Registry) Membership(id domain.ParticipantID) Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membership(id)
}

func (r *Registry) IsOwner(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasOwner() && r.owner == id
}

// Owner reports the current owner, none once the session has ended.
func (r *Registry) Owner() (domain.ParticipantID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasOwner() {
		return 0, false
	}
	return r.owner, true
}

func (r *Registry) Ended() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ended
}

func (r *Registry) Roster() domain.Roster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roster()
}

func (r *Registry) Stats() domain.SessionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, hasOwner := r.owner, r.hasOwner()
	if !hasOwner {
		owner = 0
	}
	return domain.SessionStats{
		SessionID: r.sessionID,
		Owner:     owner,
		HasOwner:  hasOwner,
		Ended:     r.ended,
		Admitted:  len(r.admitted),
		Pending:   len(r.pending),
	}
}

func (r *Registry) membership(id domain.ParticipantID) Membership {
	if _, ok := r.admitted[id]; ok {
		return Admitted
	}
	if _, ok := r.pending[id]; ok {
		return Pending
	}
	return NotRegistered
}

func (r *Registry) hasOwner() bool {
	return r.ownerSet && !r.ended
}

func (r *Registry) checkOwner(actor domain.ParticipantID) error {
	if r.ended {
		return errors.ErrSessionEnded
	}
	if !r.ownerSet || actor != r.owner {
		return fmt.Errorf("participant %d: %w", actor, errors.ErrNotOwner)
	}
	return nil
}

func (r *Registry) roster() domain.Roster {
	return domain.NewRoster(lo.MapToSlice(r.admitted, func(_ domain.ParticipantID, m member) domain.Participant {
		return m.participant
	})...)
}

func (r *Registry) IsAdmitted(id domain.ParticipantID) bool {
	return r.Membership(id) == Admitted
}
