package client

import (
	"fmt"
	"io"
	"strconv"

	"whiteboard/domain/event"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// Renderer prints received records as one line each.
type Renderer struct {
	out     io.Writer
	colours bool
}

func NewRenderer(out io.Writer, colours bool) *Renderer {
	return &Renderer{out: out, colours: colours}
}

func (r *Renderer) paint(s string, opts ...color.Color) string {
	if !r.colours {
		return s
	}
	return color.New(opts...).Render(s)
}

func (r *Renderer) Notice(format string, args ...any) {
	fmt.Fprintln(r.out, r.paint("* "+fmt.Sprintf(format, args...), color.FgYellow))
}

func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.out, r.paint("! "+fmt.Sprintf(format, args...), color.FgRed))
}

// Record prints a record received from the server.
func (r *Renderer) Record(record event.Record) {
	from := "server"
	if record.From != nil {
		from = describe(*record.From)
	}
	author := r.paint(from, color.FgCyan)

	switch p := record.Payload.(type) {
	case event.Chat:
		fmt.Fprintf(r.out, "%s: %s\n", author, p.Text)
	case event.SystemChat:
		r.Notice("%s %s", from, p.Text)
	case event.Draw:
		fmt.Fprintf(r.out, "%s %s\n", author, r.paint(describeDraw(p), color.FgMagenta))
	case event.Clear:
		r.Notice("%s cleared the board", from)
	case event.LoadImage:
		r.Notice("%s loaded an image (%d bytes encoded)", from, len(p.Image))
	case event.JoinRequest:
		id := lo.FromPtr(p.Applicant).ID
		r.Notice("%s asks to join: /accept %d or /reject %d", describeApplicant(p), id, id)
	case event.ParticipantAdded:
		r.Notice("%s joined, %d participants", describe(p.Participant), len(p.Roster))
	case event.RosterRefresh:
		r.Notice("%s left, %d participants", describe(p.Departed), len(p.Roster))
	case event.OwnerAssign:
		r.Notice("you own the session as %s", describe(p.Owner))
	case event.Kick:
		r.Notice("%s was removed by %s", describe(*p.Target), from)
	case event.JoinReject:
		reason := p.Reason
		if reason == "" {
			reason = "rejected by the owner"
		}
		r.Error("join refused: %s", reason)
	case event.ForceQuit:
		r.Error("the owner left, the session is over")
	default:
		r.Notice("%s sent %s", from, record.Action())
	}
}

// Roster prints the participants as a table.
func (r *Renderer) Roster(roster []event.ParticipantRef, self *event.ParticipantRef) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"ID", "Name", "Role", ""})
	for _, p := range roster {
		me := ""
		if self != nil && self.ID == p.ID {
			me = "you"
		}
		table.Append([]string{strconv.FormatInt(int64(p.ID), 10), p.Name, string(p.Role), me})
	}
	table.Render()
}

func describe(p event.ParticipantRef) string {
	if p.Name == "" {
		return fmt.Sprintf("#%d", p.ID)
	}
	return fmt.Sprintf("%s#%d", p.Name, p.ID)
}

func describeApplicant(p event.JoinRequest) string {
	if p.Applicant == nil {
		return p.Name
	}
	return describe(lo.FromPtr(p.Applicant))
}

func describeDraw(d event.Draw) string {
	switch {
	case d.Text != nil:
		return fmt.Sprintf("wrote %q at (%d,%d)", *d.Text, d.Start.X, d.Start.Y)
	case d.End != nil:
		return fmt.Sprintf("drew %s (%d,%d)-(%d,%d)", d.Tool, d.Start.X, d.Start.Y, d.End.X, d.End.Y)
	default:
		return fmt.Sprintf("drew %s at (%d,%d)", d.Tool, d.Start.X, d.Start.Y)
	}
}
