package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/canvashub/canvashub/pkg/canvas"
)

// Type discriminates the wire envelope. The set is closed; Decode rejects
// anything else with ErrUnknownType.
type Type string

const (
	// TypeInit is the full snapshot sent once to a newly connected client.
	TypeInit Type = "init"

	// TypeDraw is a client's whole-state replacement request.
	TypeDraw Type = "draw"

	// TypeUpdate carries the new authoritative state to the other clients
	// after a draw is applied.
	TypeUpdate Type = "update"

	// TypeClear is the reset signal, both client→server and the server's
	// confirmation broadcast to all clients.
	TypeClear Type = "clear"

	// TypeModeChange is a client's informational tool-mode change.
	TypeModeChange Type = "mode_change"

	// TypeModeUpdate is the server's mode broadcast to all clients.
	TypeModeUpdate Type = "mode_update"
)

// ErrUnknownType is returned by Decode for an envelope whose type tag is not
// in the catalogue. Unknown types must fail loudly, not coerce.
var ErrUnknownType = errors.New("protocol: unknown message type")

// envelope is the two-field wire frame: {"type": ..., "data": ...}.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StatePayload is the data shape for init, update, and clear.
type StatePayload struct {
	Drawings    []canvas.Item `json:"drawings"`
	Background  string        `json:"background"`
	CurrentMode string        `json:"current_mode"`
}

// DrawPayload is the data shape for draw: the complete replacement drawings
// sequence and background.
type DrawPayload struct {
	Drawings   []canvas.Item `json:"drawings"`
	Background string        `json:"background"`
}

// ModePayload is the data shape for mode_change and mode_update.
type ModePayload struct {
	Mode string `json:"mode"`
}

// Message is the decoded discriminated union. Exactly one payload field is
// non-nil, determined by Type: State for init/update/clear, Draw for draw,
// Mode for mode_change/mode_update.
type Message struct {
	Type  Type
	State *StatePayload
	Draw  *DrawPayload
	Mode  *ModePayload
}

// Wire structs with pointer fields so Decode can tell a missing required
// field from a present-but-empty one.
type (
	stateWire struct {
		Drawings    *[]canvas.Item `json:"drawings"`
		Background  *string        `json:"background"`
		CurrentMode string         `json:"current_mode"`
	}
	drawWire struct {
		Drawings   *[]canvas.Item `json:"drawings"`
		Background *string        `json:"background"`
	}
	modeWire struct {
		Mode *string `json:"mode"`
	}
)

// Decode parses one wire frame into a typed Message. It fails on malformed
// JSON, on an unknown type tag, on a missing required field, and on drawing
// items that do not validate. A clear frame's data is informational and
// tolerated in any shape, including absent.
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	switch env.Type {
	case TypeInit, TypeUpdate:
		var w stateWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("protocol: decode %s data: %w", env.Type, err)
		}
		if w.Drawings == nil {
			return nil, missingField(env.Type, "drawings")
		}
		if w.Background == nil {
			return nil, missingField(env.Type, "background")
		}
		if err := validateItems(*w.Drawings); err != nil {
			return nil, fmt.Errorf("protocol: %s message: %w", env.Type, err)
		}
		return &Message{Type: env.Type, State: &StatePayload{
			Drawings:    *w.Drawings,
			Background:  *w.Background,
			CurrentMode: w.CurrentMode,
		}}, nil

	case TypeClear:
		var w stateWire
		if len(env.Data) > 0 {
			// Best effort; the receiver resets to defaults regardless.
			json.Unmarshal(env.Data, &w) //nolint:errcheck
		}
		p := &StatePayload{Background: canvas.DefaultBackground, CurrentMode: canvas.DefaultMode}
		if w.Drawings != nil {
			p.Drawings = *w.Drawings
		}
		if w.Background != nil {
			p.Background = *w.Background
		}
		if w.CurrentMode != "" {
			p.CurrentMode = w.CurrentMode
		}
		return &Message{Type: TypeClear, State: p}, nil

	case TypeDraw:
		var w drawWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("protocol: decode draw data: %w", err)
		}
		if w.Drawings == nil {
			return nil, missingField(TypeDraw, "drawings")
		}
		if w.Background == nil {
			return nil, missingField(TypeDraw, "background")
		}
		if err := validateItems(*w.Drawings); err != nil {
			return nil, fmt.Errorf("protocol: draw message: %w", err)
		}
		return &Message{Type: TypeDraw, Draw: &DrawPayload{
			Drawings:   *w.Drawings,
			Background: *w.Background,
		}}, nil

	case TypeModeChange, TypeModeUpdate:
		var w modeWire
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, fmt.Errorf("protocol: decode %s data: %w", env.Type, err)
		}
		if w.Mode == nil {
			return nil, missingField(env.Type, "mode")
		}
		return &Message{Type: env.Type, Mode: &ModePayload{Mode: *w.Mode}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(env.Type))
	}
}

func missingField(t Type, field string) error {
	return fmt.Errorf("protocol: %s message missing %q field", t, field)
}

func validateItems(items []canvas.Item) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// --- encoding ---------------------------------------------------------------

func encode(t Type, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s data: %w", t, err)
	}
	out, err := json.Marshal(envelope{Type: t, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s envelope: %w", t, err)
	}
	return out, nil
}

func statePayload(st canvas.State) StatePayload {
	drawings := st.Drawings
	if drawings == nil {
		drawings = []canvas.Item{}
	}
	return StatePayload{
		Drawings:    drawings,
		Background:  st.Background,
		CurrentMode: st.CurrentMode,
	}
}

// EncodeInit frames the full snapshot sent once on connect.
func EncodeInit(st canvas.State) ([]byte, error) {
	return encode(TypeInit, statePayload(st))
}

// EncodeUpdate frames the authoritative state broadcast after a draw.
func EncodeUpdate(st canvas.State) ([]byte, error) {
	return encode(TypeUpdate, statePayload(st))
}

// EncodeClear frames the reset confirmation broadcast to all clients.
func EncodeClear(st canvas.State) ([]byte, error) {
	return encode(TypeClear, statePayload(st))
}

// EncodeModeUpdate frames the mode broadcast; the payload is just the mode.
func EncodeModeUpdate(mode string) ([]byte, error) {
	return encode(TypeModeUpdate, ModePayload{Mode: mode})
}

// EncodeDraw frames a client's whole-state replacement request.
func EncodeDraw(drawings []canvas.Item, background string) ([]byte, error) {
	if drawings == nil {
		drawings = []canvas.Item{}
	}
	return encode(TypeDraw, DrawPayload{Drawings: drawings, Background: background})
}

// EncodeClearRequest frames a client's reset request. The data carries the
// canonical reset values for symmetry with the server's confirmation.
func EncodeClearRequest() ([]byte, error) {
	return encode(TypeClear, StatePayload{
		Drawings:    []canvas.Item{},
		Background:  canvas.DefaultBackground,
		CurrentMode: canvas.DefaultMode,
	})
}

// EncodeModeChange frames a client's informational tool-mode change.
func EncodeModeChange(mode string) ([]byte, error) {
	return encode(TypeModeChange, ModePayload{Mode: mode})
}
