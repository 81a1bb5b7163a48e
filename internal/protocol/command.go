package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CommandKind enumerates the supported control actions.
type CommandKind string

const (
	KindMouseClick    CommandKind = "mouse_click"
	KindMouseMove     CommandKind = "mouse_move"
	KindKeyboardType  CommandKind = "keyboard_type"
	KindKeyboardPress CommandKind = "keyboard_press"
	KindOpenURL       CommandKind = "open_url"
	KindOpenApp       CommandKind = "open_app"
	KindScroll        CommandKind = "scroll"
)

// Kinds lists every supported command kind.
func Kinds() []CommandKind {
	return []CommandKind{
		KindMouseClick, KindMouseMove, KindKeyboardType,
		KindKeyboardPress, KindOpenURL, KindOpenApp, KindScroll,
	}
}

var (
	// ErrUnknownKind marks commands whose type is not a supported kind.
	ErrUnknownKind = errors.New("unknown command type")
	// ErrInvalidParams marks commands with missing or mistyped parameters.
	ErrInvalidParams = errors.New("invalid command parameters")
)

// Command is the wire form of one control action: a kind plus its
// parameter object. Params stays raw until Decode validates it.
type Command struct {
	Type   CommandKind     `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Action is a command whose parameters have been validated for its kind.
// The concrete types below are the only implementations.
type Action interface {
	Kind() CommandKind
}

// MouseClick clicks the pointer at absolute screen coordinates.
type MouseClick struct{ X, Y int }

// MouseMove moves the pointer to absolute screen coordinates.
type MouseMove struct{ X, Y int }

// KeyboardType types a literal string.
type KeyboardType struct{ Text string }

// KeyboardPress presses a single named key.
type KeyboardPress struct{ Key string }

// OpenURL opens a URL in the platform default browser.
type OpenURL struct{ URL string }

// OpenApp launches an application by name.
type OpenApp struct{ App string }

// Scroll scrolls the pointer wheel by a signed amount.
type Scroll struct{ Amount int }

func (MouseClick) Kind() CommandKind    { return KindMouseClick }
func (MouseMove) Kind() CommandKind     { return KindMouseMove }
func (KeyboardType) Kind() CommandKind  { return KindKeyboardType }
func (KeyboardPress) Kind() CommandKind { return KindKeyboardPress }
func (OpenURL) Kind() CommandKind       { return KindOpenURL }
func (OpenApp) Kind() CommandKind       { return KindOpenApp }
func (Scroll) Kind() CommandKind        { return KindScroll }

// Decode validates the command's parameters against its declared kind and
// returns the typed action. Missing or mistyped parameters yield an error
// wrapping ErrInvalidParams; an unrecognized kind yields ErrUnknownKind.
func (c Command) Decode() (Action, error) {
	switch c.Type {
	case KindMouseClick:
		x, y, err := c.pointParams()
		if err != nil {
			return nil, err
		}
		return MouseClick{X: x, Y: y}, nil
	case KindMouseMove:
		x, y, err := c.pointParams()
		if err != nil {
			return nil, err
		}
		return MouseMove{X: x, Y: y}, nil
	case KindKeyboardType:
		text, err := c.stringParam("text")
		if err != nil {
			return nil, err
		}
		return KeyboardType{Text: text}, nil
	case KindKeyboardPress:
		key, err := c.stringParam("key")
		if err != nil {
			return nil, err
		}
		return KeyboardPress{Key: key}, nil
	case KindOpenURL:
		url, err := c.stringParam("url")
		if err != nil {
			return nil, err
		}
		return OpenURL{URL: url}, nil
	case KindOpenApp:
		app, err := c.stringParam("app")
		if err != nil {
			return nil, err
		}
		return OpenApp{App: app}, nil
	case KindScroll:
		var p struct {
			Amount *int `json:"amount"`
		}
		if err := c.unmarshalParams(&p); err != nil {
			return nil, err
		}
		if p.Amount == nil {
			return nil, c.missingParam("amount")
		}
		return Scroll{Amount: *p.Amount}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(c.Type))
}

func (c Command) pointParams() (int, int, error) {
	var p struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := c.unmarshalParams(&p); err != nil {
		return 0, 0, err
	}
	if p.X == nil {
		return 0, 0, c.missingParam("x")
	}
	if p.Y == nil {
		return 0, 0, c.missingParam("y")
	}
	return *p.X, *p.Y, nil
}

func (c Command) stringParam(name string) (string, error) {
	var params map[string]json.RawMessage
	if err := c.unmarshalParams(&params); err != nil {
		return "", err
	}
	raw, ok := params[name]
	if !ok {
		return "", c.missingParam(name)
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: %s: parameter %q must be a string", ErrInvalidParams, c.Type, name)
	}
	return v, nil
}

func (c Command) unmarshalParams(v any) error {
	if len(c.Params) == 0 {
		return fmt.Errorf("%w: %s: missing params object", ErrInvalidParams, c.Type)
	}
	if err := json.Unmarshal(c.Params, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, c.Type, err)
	}
	return nil
}

func (c Command) missingParam(name string) error {
	return fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidParams, c.Type, name)
}
