package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Codec
	ErrMalformedEvent = fmt.Errorf("malformed event record")
	ErrUnknownAction  = fmt.Errorf("unknown action")
	ErrRecordTooLarge = fmt.Errorf("event record exceeds maximum size")

	// Session
	ErrAlreadyJoined      = fmt.Errorf("connection already joined the session")
	ErrSessionEnded       = fmt.Errorf("session has ended")
	ErrNotOwner           = fmt.Errorf("action reserved to the session owner")
	ErrNotPending         = fmt.Errorf("participant is not awaiting approval")
	ErrNotAdmitted        = fmt.Errorf("participant is not admitted")
	ErrCannotKickOwner    = fmt.Errorf("owner cannot be removed from the session")
	ErrUnknownParticipant = fmt.Errorf("unknown participant")
	ErrServerOnlyAction   = fmt.Errorf("action can only be emitted by the server")

	// Transport
	ErrSinkClosed     = fmt.Errorf("connection sink closed")
	ErrSessionLeft    = fmt.Errorf("left the session")
	ErrConnectionLost = fmt.Errorf("connection to server lost")

	// Startup
	ErrInvalidPort = fmt.Errorf("invalid port")
	ErrInvalidHost = fmt.Errorf("invalid hostname")
)
