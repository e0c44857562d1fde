package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/domain/event"
	"whiteboard/errors"
)

var _ contract.IRouter = (*Router)(nil)

// Router serializes a record once and writes it to the sinks the registry
// hands out. A failing sink never prevents delivery to the others and is not
// evicted here: the connection handler owning it notices the broken stream
// and cleans up on its own.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
}

func NewRouter(log *slog.Logger, registry contract.IRegistry) *Router {
	return &Router{log: log, registry: registry}
}

// BroadcastExcept sends the record to every admitted participant but one.
// Recipients are snapshotted before any write so that no registry lock is
// held while blocking on the network.
func (r *Router) BroadcastExcept(ctx context.Context, record event.Record, excluded domain.ParticipantID) contract.Delivery {
	var delivery contract.Delivery
	line, err := event.Marshal(record)
	if err != nil {
		r.log.Error("Unable to encode broadcast", "action", record.Action(), "error", err)
		return delivery
	}

	for _, recipient := range r.registry.Recipients(excluded) {
		if err := recipient.Sink.Send(ctx, line); err != nil {
			r.log.Warn("Broadcast delivery failed",
				"action", record.Action(), "participant", recipient.ID, "error", err)
			delivery.Failed = append(delivery.Failed, recipient.ID)
			continue
		}
		delivery.Delivered = append(delivery.Delivered, recipient.ID)
	}
	return delivery
}

// SendDirect writes the record to one participant, admitted or pending.
func (r *Router) SendDirect(ctx context.Context, record event.Record, target domain.ParticipantID) error {
	recipient, ok := r.registry.Lookup(target)
	if !ok {
		return fmt.Errorf("participant %d: %w", target, errors.ErrUnknownParticipant)
	}
	return r.Deliver(ctx, record, recipient.Sink)
}

// Deliver writes the record to a sink the registry may no longer know about,
// such as a rejected applicant or a connection turned away.
func (r *Router) Deliver(ctx context.Context, record event.Record, sink contract.Sink) error {
	line, err := event.Marshal(record)
	if err != nil {
		return err
	}
	if err := sink.Send(ctx, line); err != nil {
		return fmt.Errorf("deliver %s: %w", record.Action(), err)
	}
	return nil
}
