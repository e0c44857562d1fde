package event

type Tool string

const (
	ToolPencil    Tool = "PENCIL"
	ToolEraser    Tool = "ERASER"
	ToolLine      Tool = "LINE"
	ToolCircle    Tool = "CIRCLE"
	ToolRectangle Tool = "RECTANGLE"
	ToolTriangle  Tool = "TRIANGLE"
	ToolText      Tool = "TEXT"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Draw carries one completed drawing operation. The server never interprets
// it, the tool set is only what the bundled client knows about.
type Draw struct {
	Tool  Tool    `json:"tool"`
	Start Point   `json:"start"`
	End   *Point  `json:"end,omitempty"`
	Drag  *Point  `json:"drag,omitempty"`
	Color *Color  `json:"color,omitempty"`
	Text  *string `json:"text,omitempty"`
}

type Chat struct {
	Text string `json:"text"`
}

// SystemChat is a chat line rendered as a system notice by clients.
type SystemChat struct {
	Text string `json:"text"`
}

// JoinRequest is sent by a client as its first record. When relayed to the
// owner, Applicant names the connection waiting for approval.
type JoinRequest struct {
	Name      string          `json:"name" validate:"required,max=64"`
	Applicant *ParticipantRef `json:"applicant,omitempty"`
}

type JoinAccept struct {
	Target *ParticipantRef `json:"target" validate:"required"`
}

type JoinReject struct {
	Target *ParticipantRef `json:"target" validate:"required"`
	Reason string          `json:"reason,omitempty"`
}

type Kick struct {
	Target *ParticipantRef `json:"target" validate:"required"`
}

type OwnerAssign struct {
	Owner  ParticipantRef   `json:"owner"`
	Roster []ParticipantRef `json:"roster"`
}

type ParticipantAdded struct {
	Participant ParticipantRef   `json:"participant"`
	Roster      []ParticipantRef `json:"roster"`
}

type RosterRefresh struct {
	Departed ParticipantRef   `json:"departed"`
	Roster   []ParticipantRef `json:"roster"`
}

// LoadImage carries a base64 encoded image. Without a target it replaces
// every participant's board, with one it syncs a freshly admitted participant.
type LoadImage struct {
	Image  string          `json:"image"`
	Target *ParticipantRef `json:"target,omitempty"`
}

type Clear struct{}

type Exit struct{}

type ForceQuit struct{}

func (Draw) Action() Action             { return ActionDraw }
func (Chat) Action() Action             { return ActionChat }
func (SystemChat) Action() Action       { return ActionSystemChat }
func (JoinRequest) Action() Action      { return ActionJoinRequest }
func (JoinAccept) Action() Action       { return ActionJoinAccept }
func (JoinReject) Action() Action       { return ActionJoinReject }
func (Kick) Action() Action             { return ActionKick }
func (OwnerAssign) Action() Action      { return ActionOwnerAssign }
func (ParticipantAdded) Action() Action { return ActionParticipantAdded }
func (RosterRefresh) Action() Action    { return ActionRosterRefresh }
func (LoadImage) Action() Action        { return ActionLoadImage }
func (Clear) Action() Action            { return ActionClear }
func (Exit) Action() Action             { return ActionExit }
func (ForceQuit) Action() Action        { return ActionForceQuit }
