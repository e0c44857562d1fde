package client

import (
	"testing"

	"whiteboard/domain"
	"whiteboard/domain/event"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		description string
		line        string
		want        Command
		wantErr     bool
	}{
		{"Should send plain text as chat", "hello there", Command{Payload: event.Chat{Text: "hello there"}}, false},
		{"Should quit", "/quit", Command{Local: LocalQuit}, false},
		{"Should list participants", "/who", Command{Local: LocalWho}, false},
		{"Should clear the board", "/clear", Command{Payload: event.Clear{}}, false},
		{"Should send a notice", "/notice brb", Command{Payload: event.SystemChat{Text: "brb"}}, false},
		{"Should load a file", "/load board.png", Command{Local: LocalLoad, Path: "board.png"}, false},
		{
			"Should accept an applicant",
			"/accept 100002",
			Command{Payload: event.JoinAccept{Target: &event.ParticipantRef{ID: domain.ParticipantID(100002)}}},
			false,
		},
		{
			"Should kick a participant",
			"/kick 100003",
			Command{Payload: event.Kick{Target: &event.ParticipantRef{ID: domain.ParticipantID(100003)}}},
			false,
		},
		{
			"Should draw a line",
			"/draw line 1 2 3 4",
			Command{Payload: event.Draw{Tool: event.ToolLine, Start: event.Point{X: 1, Y: 2}, End: &event.Point{X: 3, Y: 4}}},
			false,
		},
		{
			"Should draw a coloured triangle",
			"/draw TRIANGLE 0 0 10 0 5 8 #ff8000",
			Command{Payload: event.Draw{
				Tool:  event.ToolTriangle,
				Start: event.Point{},
				End:   &event.Point{X: 10},
				Drag:  &event.Point{X: 5, Y: 8},
				Color: &event.Color{R: 255, G: 128, B: 0, A: 255},
			}},
			false,
		},
		{
			"Should write text",
			"/text 5 6 hello board",
			Command{Payload: event.Draw{Tool: event.ToolText, Start: event.Point{X: 5, Y: 6}, Text: lo.ToPtr("hello board")}},
			false,
		},
		{"Should refuse an empty line", "   ", Command{}, true},
		{"Should refuse an unknown command", "/dance", Command{}, true},
		{"Should refuse an unknown tool", "/draw spray 1 2 3 4", Command{}, true},
		{"Should refuse missing points", "/draw line 1 2", Command{}, true},
		{"Should refuse a bad colour", "/draw line 1 2 3 4 #zz", Command{}, true},
		{"Should refuse a bad id", "/reject bob", Command{}, true},
		{"Should refuse an empty notice", "/notice", Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}
