package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/domain/event"
	"whiteboard/errors"
	"whiteboard/runtime"

	"github.com/samber/lo"
)

const (
	reasonSessionEnded = "session has ended"
	reasonOwnerLeft    = "owner left the session"
)

type ISessionService interface {
	Join(ctx context.Context, id domain.ParticipantID, name string, sink contract.Sink) error
	Accept(ctx context.Context, actor, target domain.ParticipantID) error
	Reject(ctx context.Context, actor, target domain.ParticipantID) error
	Kick(ctx context.Context, actor, target domain.ParticipantID) error
	Relay(ctx context.Context, sender domain.ParticipantID, record event.Record) error
	LoadImage(ctx context.Context, sender domain.ParticipantID, record event.Record) error
	Leave(ctx context.Context, id domain.ParticipantID) error
}

// SessionService applies one client action to the registry and routes the
// resulting events. Registry mutations happen first and in one step, routing
// happens afterwards without any lock held.
type SessionService struct {
	log      *slog.Logger
	registry *runtime.Registry
	router   contract.IRouter
}

func NewSessionService(log *slog.Logger, registry *runtime.Registry, router contract.IRouter) *SessionService {
	return &SessionService{log: log, registry: registry, router: router}
}

// Join admits the first participant as owner and parks everyone else until
// the owner decides. Joining an ended session is answered with a rejection.
func (s *SessionService) Join(ctx context.Context, id domain.ParticipantID, name string, sink contract.Sink) error {
	outcome, err := s.registry.Join(id, name, sink)
	switch {
	case stderrors.Is(err, errors.ErrSessionEnded):
		s.log.Info("Join refused, session has ended", "participant_id", id)
		reject := event.JoinReject{
			Target: &event.ParticipantRef{ID: id, Name: name},
			Reason: reasonSessionEnded,
		}
		return s.router.Deliver(ctx, event.NewRecord(nil, reject), sink)
	case err != nil:
		return err
	}

	self := event.RefOf(outcome.Participant)
	if outcome.Owner == nil {
		s.log.Info("Session owner assigned", "participant_id", id, "name", name)
		assign := event.OwnerAssign{Owner: self, Roster: event.RosterRefs(outcome.Roster)}
		return s.router.SendDirect(ctx, event.NewRecord(nil, assign), id)
	}

	s.log.Info("Join request pending", "participant_id", id, "owner_id", outcome.Owner.ID)
	request := event.JoinRequest{Name: name, Applicant: &self}
	if err := s.router.Deliver(ctx, event.NewRecord(&self, request), outcome.Owner.Sink); err != nil {
		return fmt.Errorf("forward join request to owner: %w", err)
	}
	return nil
}

// Accept admits a pending applicant and tells every admitted participant but
// the owner, the newcomer included.
func (s *SessionService) Accept(ctx context.Context, actor, target domain.ParticipantID) error {
	admitted, roster, err := s.registry.Accept(actor, target)
	if err != nil {
		return err
	}
	s.log.Info("Participant admitted", "participant_id", target, "roster", len(roster))
	added := event.ParticipantAdded{Participant: event.RefOf(admitted), Roster: event.RosterRefs(roster)}
	s.router.BroadcastExcept(ctx, s.stamped(actor, added), actor)
	return nil
}

// Reject drops a pending applicant and tells it so.
func (s *SessionService) Reject(ctx context.Context, actor, target domain.ParticipantID) error {
	rejected, recipient, err := s.registry.Reject(actor, target)
	if err != nil {
		return err
	}
	s.log.Info("Participant rejected", "participant_id", target)
	reject := event.JoinReject{Target: lo.ToPtr(event.RefOf(rejected))}
	return s.router.Deliver(ctx, s.stamped(actor, reject), recipient.Sink)
}

// Kick announces the removal to every admitted participant but the owner,
// the kicked participant included, and only then removes it.
func (s *SessionService) Kick(ctx context.Context, actor, target domain.ParticipantID) error {
	kicked, err := s.registry.CheckKick(actor, target)
	if err != nil {
		return err
	}
	s.log.Info("Participant kicked", "participant_id", target)
	s.router.BroadcastExcept(ctx, s.stamped(actor, event.Kick{Target: lo.ToPtr(event.RefOf(kicked))}), actor)
	s.registry.Remove(target)
	return nil
}

// Relay forwards a drawing, chat or clear record verbatim to every other
// admitted participant, stamped with the sender's identity.
func (s *SessionService) Relay(ctx context.Context, sender domain.ParticipantID, record event.Record) error {
	if event.IsServerOnly(record.Action()) {
		return fmt.Errorf("%s: %w", record.Action(), errors.ErrServerOnlyAction)
	}
	origin, ok := s.registry.Admitted(sender)
	if !ok {
		return fmt.Errorf("participant %d: %w", sender, errors.ErrNotAdmitted)
	}
	s.router.BroadcastExcept(ctx, record.WithOrigin(origin), sender)
	return nil
}

// LoadImage is directed when the image names a target, broadcast otherwise.
// The image itself is relayed as received.
func (s *SessionService) LoadImage(ctx context.Context, sender domain.ParticipantID, record event.Record) error {
	image, ok := record.Payload.(event.LoadImage)
	if !ok {
		return fmt.Errorf("%s is not an image: %w", record.Action(), errors.ErrMalformedEvent)
	}
	origin, ok := s.registry.Admitted(sender)
	if !ok {
		return fmt.Errorf("participant %d: %w", sender, errors.ErrNotAdmitted)
	}
	record = record.WithOrigin(origin)
	if image.Target == nil {
		s.router.BroadcastExcept(ctx, record, sender)
		return nil
	}
	if !s.registry.IsAdmitted(image.Target.ID) {
		return fmt.Errorf("image target %d: %w", image.Target.ID, errors.ErrNotAdmitted)
	}
	return s.router.SendDirect(ctx, record, image.Target.ID)
}

// Leave handles an exit, explicit or not. The owner leaving ends the session:
// every other admitted participant is force-quit and every applicant still
// waiting is rejected. Leaving twice is harmless.
func (s *SessionService) Leave(ctx context.Context, id domain.ParticipantID) error {
	if s.registry.IsOwner(id) {
		return s.endSession(ctx, id)
	}

	departure, err := s.registry.Depart(id)
	if err != nil {
		return err
	}
	switch departure.From {
	case runtime.Admitted:
		s.log.Info("Participant left", "participant_id", id, "roster", len(departure.Roster))
		refresh := event.RosterRefresh{
			Departed: event.RefOf(departure.Participant),
			Roster:   event.RosterRefs(departure.Roster),
		}
		s.router.BroadcastExcept(ctx, event.NewRecord(nil, refresh), id)
	case runtime.Pending:
		s.log.Info("Applicant left", "participant_id", id)
	}
	return nil
}

func (s *SessionService) endSession(ctx context.Context, owner domain.ParticipantID) error {
	s.log.Info("Owner left, ending session", "participant_id", owner)
	forceQuit := s.stamped(owner, event.ForceQuit{})
	delivery := s.router.BroadcastExcept(ctx, forceQuit, owner)

	waiting := s.registry.EndSession()
	for _, applicant := range waiting {
		reject := event.JoinReject{Target: &event.ParticipantRef{ID: applicant.ID}, Reason: reasonOwnerLeft}
		if err := s.router.Deliver(ctx, event.NewRecord(nil, reject), applicant.Sink); err != nil {
			s.log.Warn("Unable to notify applicant", "participant_id", applicant.ID, "error", err)
		}
	}
	s.log.Info("Session ended",
		"force_quit", len(delivery.Delivered), "failed", len(delivery.Failed), "rejected", len(waiting))
	return nil
}

// stamped builds a record originating from an admitted participant.
// The origin is left empty when the participant is already gone.
func (s *SessionService) stamped(id domain.ParticipantID, payload event.Payload) event.Record {
	record := event.NewRecord(nil, payload)
	if origin, ok := s.registry.Admitted(id); ok {
		return record.WithOrigin(origin)
	}
	return record
}
