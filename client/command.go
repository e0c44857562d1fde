package client

import (
	"fmt"
	"strconv"
	"strings"

	"whiteboard/domain"
	"whiteboard/domain/event"
)

// Local is a command handled by the client without talking to the server.
type Local int

const (
	LocalNone Local = iota
	LocalQuit
	LocalWho
	LocalHelp
	LocalLoad
)

// Command is one parsed input line. Either Payload is set and must be sent,
// or Local names what the client does by itself.
type Command struct {
	Payload event.Payload
	Local   Local
	Path    string
}

const Help = `commands:
  <text>                               chat
  /notice <text>                       system notice
  /draw TOOL x1 y1 x2 y2 [x3 y3] [#rrggbb]
  /text x y <words>                    text on the board
  /clear                               clear the board
  /load <png file>                     replace the board with an image
  /accept <id> | /reject <id>          decide on a join request (owner)
  /kick <id>                           remove a participant (owner)
  /who                                 show participants
  /quit                                leave the session`

// ParseCommand turns a line typed by the user into a Command.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Payload: event.Chat{Text: line}}, nil
	}

	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "/quit", "/exit":
		return Command{Local: LocalQuit}, nil
	case "/who":
		return Command{Local: LocalWho}, nil
	case "/help":
		return Command{Local: LocalHelp}, nil
	case "/clear":
		return Command{Payload: event.Clear{}}, nil
	case "/notice":
		text := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if text == "" {
			return Command{}, fmt.Errorf("usage: /notice <text>")
		}
		return Command{Payload: event.SystemChat{Text: text}}, nil
	case "/load":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: /load <png file>")
		}
		return Command{Local: LocalLoad, Path: args[0]}, nil
	case "/accept", "/reject", "/kick":
		return parseTargeted(name, args)
	case "/draw":
		return parseDraw(args)
	case "/text":
		return parseText(args)
	default:
		return Command{}, fmt.Errorf("unknown command %s, try /help", fields[0])
	}
}

func parseTargeted(name string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, fmt.Errorf("usage: %s <id>", name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		return Command{}, fmt.Errorf("%s: invalid participant id %q", name, args[0])
	}
	target := &event.ParticipantRef{ID: domain.ParticipantID(id)}
	switch name {
	case "/accept":
		return Command{Payload: event.JoinAccept{Target: target}}, nil
	case "/reject":
		return Command{Payload: event.JoinReject{Target: target}}, nil
	default:
		return Command{Payload: event.Kick{Target: target}}, nil
	}
}

func parseDraw(args []string) (Command, error) {
	const usage = "usage: /draw TOOL x1 y1 x2 y2 [x3 y3] [#rrggbb]"
	if len(args) < 5 {
		return Command{}, fmt.Errorf(usage)
	}
	tool := event.Tool(strings.ToUpper(args[0]))
	switch tool {
	case event.ToolPencil, event.ToolEraser, event.ToolLine, event.ToolCircle, event.ToolRectangle, event.ToolTriangle:
	default:
		return Command{}, fmt.Errorf("unknown tool %s", args[0])
	}

	rest := args[1:]
	var color *event.Color
	if last := rest[len(rest)-1]; strings.HasPrefix(last, "#") {
		c, err := parseColor(last)
		if err != nil {
			return Command{}, err
		}
		color = &c
		rest = rest[:len(rest)-1]
	}
	if len(rest) != 4 && len(rest) != 6 {
		return Command{}, fmt.Errorf(usage)
	}
	points, err := parsePoints(rest)
	if err != nil {
		return Command{}, err
	}

	draw := event.Draw{Tool: tool, Start: points[0], End: &points[1], Color: color}
	if len(points) == 3 {
		draw.Drag = &points[2]
	}
	return Command{Payload: draw}, nil
}

func parseText(args []string) (Command, error) {
	if len(args) < 3 {
		return Command{}, fmt.Errorf("usage: /text x y <words>")
	}
	points, err := parsePoints(args[:2])
	if err != nil {
		return Command{}, err
	}
	text := strings.Join(args[2:], " ")
	return Command{Payload: event.Draw{Tool: event.ToolText, Start: points[0], Text: &text}}, nil
}

func parsePoints(coords []string) ([]event.Point, error) {
	points := make([]event.Point, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		x, errX := strconv.Atoi(coords[i])
		y, errY := strconv.Atoi(coords[i+1])
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("invalid point %s %s", coords[i], coords[i+1])
		}
		points = append(points, event.Point{X: x, Y: y})
	}
	return points, nil
}

func parseColor(hex string) (event.Color, error) {
	raw := strings.TrimPrefix(hex, "#")
	if len(raw) != 6 {
		return event.Color{}, fmt.Errorf("invalid colour %s, expected #rrggbb", hex)
	}
	v, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		return event.Color{}, fmt.Errorf("invalid colour %s, expected #rrggbb", hex)
	}
	return event.Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
