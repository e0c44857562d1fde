//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"whiteboard/domain"
	"whiteboard/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is the outbound side of one participant connection.
// Implementations serialize concurrent Send calls.
type Sink interface {
	Send(ctx context.Context, record []byte) error
	Close() error
}

// Recipient pairs a participant with the sink its events are written to.
type Recipient struct {
	ID   domain.ParticipantID
	Sink Sink
}

type IRegistry interface {
	Recipients(except domain.ParticipantID) []Recipient
	Lookup(id domain.ParticipantID) (Recipient, bool)
}

// Delivery reports the outcome of one broadcast.
type Delivery struct {
	Delivered []domain.ParticipantID
	Failed    []domain.ParticipantID
}

type IRouter interface {
	BroadcastExcept(ctx context.Context, record event.Record, excluded domain.ParticipantID) Delivery
	SendDirect(ctx context.Context, record event.Record, target domain.ParticipantID) error
	Deliver(ctx context.Context, record event.Record, sink Sink) error
}

type StatsProvider interface {
	Stats() domain.SessionStats
}
