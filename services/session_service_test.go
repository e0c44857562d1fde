package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"whiteboard/contract"
	"whiteboard/domain"
	"whiteboard/domain/event"
	"whiteboard/errors"
	"whiteboard/mocks"
	"whiteboard/runtime"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	alice domain.ParticipantID = 100001
	bob   domain.ParticipantID = 100002
	carol domain.ParticipantID = 100003
	dave  domain.ParticipantID = 100004
	erin  domain.ParticipantID = 100005
)

type recordingSink struct {
	mu      sync.Mutex
	records []event.Record
	lines   []string
}

func (s *recordingSink) Send(_ context.Context, line []byte) error {
	record, err := event.Unmarshal(line)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	s.lines = append(s.lines, string(line))
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) received() []event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Record(nil), s.records...)
}

func (s *recordingSink) receivedLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.lines = nil
}

type session struct {
	service  *SessionService
	registry *runtime.Registry
	sinks    map[domain.ParticipantID]*recordingSink
}

func newSession(t *testing.T) *session {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	return &session{
		service:  NewSessionService(log, registry, runtime.NewRouter(log, registry)),
		registry: registry,
		sinks:    make(map[domain.ParticipantID]*recordingSink),
	}
}

func (s *session) join(t *testing.T, id domain.ParticipantID, name string) {
	t.Helper()
	sink := &recordingSink{}
	s.sinks[id] = sink
	require.NoError(t, s.service.Join(context.Background(), id, name, sink))
}

// admit joins the owner A then accepts every other participant, leaving
// every sink empty.
func (s *session) admit(t *testing.T, ids ...domain.ParticipantID) {
	t.Helper()
	s.join(t, alice, "A")
	for _, id := range ids {
		s.join(t, id, string(rune('A'+int(id-alice))))
		require.NoError(t, s.service.Accept(context.Background(), alice, id))
	}
	for _, sink := range s.sinks {
		sink.reset()
	}
}

func TestSessionService_First_Join_Gets_Owner_Assign(t *testing.T) {
	req := require.New(t)
	s := newSession(t)

	// When the first participant joins
	s.join(t, alice, "A")

	// Then it receives its owner assignment with a singleton roster
	received := s.sinks[alice].received()
	req.Len(received, 1)
	assign, ok := received[0].Payload.(event.OwnerAssign)
	req.True(ok)
	req.Equal(alice, assign.Owner.ID)
	req.Equal(domain.RoleOwner, assign.Owner.Role)
	req.Len(assign.Roster, 1)
}

func TestSessionService_Chat_Reaches_Everyone_But_Sender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)

	// When A chats
	chat := event.NewRecord(nil, event.Chat{Text: "hi"})
	req.NoError(s.service.Relay(ctx, alice, chat))

	// Then B and C get exactly one chat from A, and A gets nothing
	for _, id := range []domain.ParticipantID{bob, carol} {
		received := s.sinks[id].received()
		req.Len(received, 1)
		req.Equal(event.Chat{Text: "hi"}, received[0].Payload)
		req.NotNil(received[0].From)
		req.Equal(alice, received[0].From.ID)
	}
	req.Empty(s.sinks[alice].received())
}

func TestSessionService_Relay_Keeps_Payload_Verbatim(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{
			"draw with a field the server does not know",
			`{"action":"DRAW","from":{"id":1,"name":"mallory"},"data":{"tool":"PENCIL","start":{"x":1,"y":2},"end":{"x":3,"y":4},"strokeWidth":7}}`,
			`{"action":"DRAW","from":{"id":100002,"name":"B","role":"guest"},"data":{"tool":"PENCIL","start":{"x":1,"y":2},"end":{"x":3,"y":4},"strokeWidth":7}}`,
		},
		{
			"draw with an unknown tool",
			`{"action":"DRAW","data":{"tool":"SPRAY","start":{"x":5,"y":5}}}`,
			`{"action":"DRAW","from":{"id":100002,"name":"B","role":"guest"},"data":{"tool":"SPRAY","start":{"x":5,"y":5}}}`,
		},
		{
			"empty chat",
			`{"action":"CHAT","data":{"text":""}}`,
			`{"action":"CHAT","from":{"id":100002,"name":"B","role":"guest"},"data":{"text":""}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			s := newSession(t)
			s.admit(t, bob, carol)

			// Given a record exactly as B's client wrote it
			record, err := event.Unmarshal([]byte(tc.line))
			req.NoError(err)

			// When it is relayed
			req.NoError(s.service.Relay(context.Background(), bob, record))

			// Then A and C get the same payload, only the originator is rewritten
			for _, id := range []domain.ParticipantID{alice, carol} {
				lines := s.sinks[id].receivedLines()
				req.Len(lines, 1)
				req.JSONEq(tc.want, lines[0])
			}
			req.Empty(s.sinks[bob].received())
		})
	}
}

func TestSessionService_Join_Accept_Announces_Full_Roster(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)

	// When D asks to join
	s.join(t, dave, "D")

	// Then only the owner hears about it
	received := s.sinks[alice].received()
	req.Len(received, 1)
	request, ok := received[0].Payload.(event.JoinRequest)
	req.True(ok)
	req.Equal("D", request.Name)
	req.Equal(dave, request.Applicant.ID)
	req.Empty(s.sinks[bob].received())
	req.Empty(s.sinks[carol].received())
	req.Empty(s.sinks[dave].received())

	// When the owner accepts D
	s.sinks[alice].reset()
	req.NoError(s.service.Accept(ctx, alice, dave))

	// Then B, C and D receive the roster of four, A receives nothing
	for _, id := range []domain.ParticipantID{bob, carol, dave} {
		received := s.sinks[id].received()
		req.Len(received, 1)
		added, ok := received[0].Payload.(event.ParticipantAdded)
		req.True(ok)
		req.Equal(dave, added.Participant.ID)
		req.Len(added.Roster, 4)
	}
	req.Empty(s.sinks[alice].received())
}

func TestSessionService_Pending_Never_Receives_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob)
	s.join(t, erin, "E")
	s.sinks[alice].reset()

	req.NoError(s.service.Relay(ctx, alice, event.NewRecord(nil, event.Clear{})))
	req.NoError(s.service.Relay(ctx, bob, event.NewRecord(nil, event.Draw{Tool: event.ToolPencil})))

	req.Empty(s.sinks[erin].received())
	req.Len(s.sinks[alice].received(), 1)
	req.Len(s.sinks[bob].received(), 1)
}

func TestSessionService_Relay_Requires_Admission(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t)
	s.join(t, erin, "E")

	err := s.service.Relay(ctx, erin, event.NewRecord(nil, event.Chat{Text: "let me in"}))
	req.ErrorIs(err, errors.ErrNotAdmitted)

	err = s.service.Relay(ctx, alice, event.NewRecord(nil, event.ForceQuit{}))
	req.ErrorIs(err, errors.ErrServerOnlyAction)
}

func TestSessionService_Reject(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob)
	s.join(t, erin, "E")

	// A guest cannot decide
	req.ErrorIs(s.service.Reject(ctx, bob, erin), errors.ErrNotOwner)

	// When the owner rejects E
	req.NoError(s.service.Reject(ctx, alice, erin))

	// Then E is told and forgotten
	received := s.sinks[erin].received()
	req.Len(received, 1)
	reject, ok := received[0].Payload.(event.JoinReject)
	req.True(ok)
	req.Equal(erin, reject.Target.ID)
	req.Equal(runtime.NotRegistered, s.registry.Membership(erin))
	req.Empty(s.sinks[bob].received())
}

func TestSessionService_Kick_Broadcasts_Before_Removal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	router := mocks.NewMockIRouter(ctrl)
	service := NewSessionService(log, registry, router)

	// Given A owning the session with B and C admitted
	router.EXPECT().SendDirect(gomock.Any(), gomock.Any(), alice).Return(nil)
	router.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	router.EXPECT().BroadcastExcept(gomock.Any(), gomock.Any(), alice).Return(contract.Delivery{}).Times(2)
	req.NoError(service.Join(ctx, alice, "A", &recordingSink{}))
	for _, id := range []domain.ParticipantID{bob, carol} {
		req.NoError(service.Join(ctx, id, "guest", &recordingSink{}))
		req.NoError(service.Accept(ctx, alice, id))
	}

	// Then the kick is broadcast to everyone but the owner while C is still admitted
	router.EXPECT().
		BroadcastExcept(gomock.Any(), gomock.Any(), alice).
		DoAndReturn(func(_ context.Context, record event.Record, _ domain.ParticipantID) contract.Delivery {
			kick, ok := record.Payload.(event.Kick)
			req.True(ok)
			req.Equal(carol, kick.Target.ID)
			req.True(registry.IsAdmitted(carol))
			return contract.Delivery{Delivered: []domain.ParticipantID{bob, carol}}
		})

	// When A kicks C
	req.NoError(service.Kick(ctx, alice, carol))

	// And C is removed afterwards
	req.False(registry.IsAdmitted(carol))
	req.True(registry.IsAdmitted(bob))
}

func TestSessionService_Kick_Reaches_Target_And_Guests(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)

	req.ErrorIs(s.service.Kick(ctx, bob, carol), errors.ErrNotOwner)
	req.ErrorIs(s.service.Kick(ctx, alice, alice), errors.ErrCannotKickOwner)

	req.NoError(s.service.Kick(ctx, alice, carol))

	for _, id := range []domain.ParticipantID{bob, carol} {
		received := s.sinks[id].received()
		req.Len(received, 1)
		req.Equal(event.ActionKick, received[0].Action())
	}
	req.Empty(s.sinks[alice].received())
	req.Equal(domain.Roster{{ID: alice, Name: "A", Role: domain.RoleOwner}, {ID: bob, Name: "B", Role: domain.RoleGuest}},
		s.registry.Roster())
}

func TestSessionService_Owner_Exit_Ends_Session(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)
	s.join(t, erin, "E")

	// When the owner leaves
	req.NoError(s.service.Leave(ctx, alice))

	// Then every guest gets exactly one force-quit
	for _, id := range []domain.ParticipantID{bob, carol} {
		received := s.sinks[id].received()
		req.Len(received, 1)
		req.Equal(event.ActionForceQuit, received[0].Action())
	}
	// And the applicant is turned away
	received := s.sinks[erin].received()
	req.Len(received, 1)
	req.Equal(event.ActionJoinReject, received[0].Action())
	// And nobody is left
	stats := s.registry.Stats()
	req.True(stats.Ended)
	req.Zero(stats.Admitted)
	req.Zero(stats.Pending)

	// When the guests' exits arrive afterwards nothing more is sent
	req.NoError(s.service.Leave(ctx, bob))
	req.NoError(s.service.Leave(ctx, carol))
	req.NoError(s.service.Leave(ctx, alice))
	req.Len(s.sinks[bob].received(), 1)
	req.Len(s.sinks[carol].received(), 1)

	// And a late joiner is rejected
	s.join(t, dave, "D")
	received = s.sinks[dave].received()
	req.Len(received, 1)
	reject, ok := received[0].Payload.(event.JoinReject)
	req.True(ok)
	req.Equal(dave, reject.Target.ID)
}

func TestSessionService_Guest_Exit_Refreshes_Roster(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)

	req.NoError(s.service.Leave(ctx, bob))

	for _, id := range []domain.ParticipantID{alice, carol} {
		received := s.sinks[id].received()
		req.Len(received, 1)
		refresh, ok := received[0].Payload.(event.RosterRefresh)
		req.True(ok)
		req.Equal(bob, refresh.Departed.ID)
		req.Len(refresh.Roster, 2)
	}
	req.Empty(s.sinks[bob].received())
}

func TestSessionService_Applicant_Exit_Is_Silent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob)
	s.join(t, erin, "E")
	s.sinks[alice].reset()

	req.NoError(s.service.Leave(ctx, erin))

	req.Empty(s.sinks[alice].received())
	req.Empty(s.sinks[bob].received())
	req.Equal(runtime.NotRegistered, s.registry.Membership(erin))
}

func TestSessionService_LoadImage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSession(t)
	s.admit(t, bob, carol)
	image := "aGVsbG8="
	load := func(target *event.ParticipantRef) event.Record {
		return event.NewRecord(nil, event.LoadImage{Image: image, Target: target})
	}

	// Directed to one participant
	req.NoError(s.service.LoadImage(ctx, alice, load(&event.ParticipantRef{ID: carol})))
	req.Empty(s.sinks[bob].received())
	req.Len(s.sinks[carol].received(), 1)

	// Broadcast without a target
	req.NoError(s.service.LoadImage(ctx, alice, load(nil)))
	req.Len(s.sinks[bob].received(), 1)
	req.Len(s.sinks[carol].received(), 2)
	req.Empty(s.sinks[alice].received())

	// Unknown target
	err := s.service.LoadImage(ctx, alice, load(&event.ParticipantRef{ID: erin}))
	req.ErrorIs(err, errors.ErrNotAdmitted)

	// Any image content is relayed untouched
	record, err := event.Unmarshal([]byte(`{"action":"LOAD_IMAGE","data":{"image":"not base64 at all","scale":2}}`))
	req.NoError(err)
	req.NoError(s.service.LoadImage(ctx, alice, record))
	lines := s.sinks[bob].receivedLines()
	req.Len(lines, 2)
	req.JSONEq(`{"action":"LOAD_IMAGE","from":{"id":100001,"name":"A","role":"owner"},"data":{"image":"not base64 at all","scale":2}}`, lines[1])
}

func TestSessionService_Duplicate_Join_Is_Refused(t *testing.T) {
	req := require.New(t)
	s := newSession(t)
	s.join(t, alice, "A")

	err := s.service.Join(context.Background(), alice, "A", s.sinks[alice])

	req.ErrorIs(err, errors.ErrAlreadyJoined)
	req.Len(s.sinks[alice].received(), 1)
}
