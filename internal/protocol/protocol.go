// Package protocol defines the message envelopes exchanged between the
// controller, the relay server, and the desktop agent.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope type discriminators.
const (
	TypeCommand       = "command"
	TypeScreenFrame   = "screen_frame"
	TypeCommandResult = "command_result"
	TypeSetFPS        = "set_fps"
)

// Role identifies which side of a pairing a connection belongs to.
type Role string

const (
	// RoleController is the web client issuing commands and consuming frames.
	RoleController Role = "web"
	// RoleAgent is the desktop agent executing commands and producing frames.
	RoleAgent Role = "agent"
)

// ParseRole validates a client-supplied role tag.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleController, RoleAgent:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Peer returns the opposite role of a pairing.
func (r Role) Peer() Role {
	if r == RoleController {
		return RoleAgent
	}
	return RoleController
}

// Envelope is the generic inbound message shape. Only the fields relevant to
// the declared Type are populated; unknown types are ignored by receivers.
type Envelope struct {
	Type    string          `json:"type"`
	Command json.RawMessage `json:"command,omitempty"`
	FPS     int             `json:"fps,omitempty"`
}

// CommandEnvelope wraps a Command for controller -> agent delivery.
type CommandEnvelope struct {
	Type    string  `json:"type"`
	Command Command `json:"command"`
}

// NewCommandEnvelope wraps a command for transmission.
func NewCommandEnvelope(cmd Command) CommandEnvelope {
	return CommandEnvelope{Type: TypeCommand, Command: cmd}
}

// FrameEnvelope carries one encoded screen frame, agent -> controller.
// Data is the base64-encoded JPEG; Timestamp is seconds since the Unix epoch.
type FrameEnvelope struct {
	Type      string  `json:"type"`
	Data      string  `json:"data"`
	Timestamp float64 `json:"timestamp"`
}

// NewFrameEnvelope wraps encoded image bytes captured at the given time.
func NewFrameEnvelope(jpeg []byte, at time.Time) FrameEnvelope {
	return FrameEnvelope{
		Type:      TypeScreenFrame,
		Data:      base64.StdEncoding.EncodeToString(jpeg),
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
	}
}

// ResultEnvelope reports the outcome of one executed command.
type ResultEnvelope struct {
	Type   string `json:"type"`
	Result Result `json:"result"`
}

// NewResultEnvelope wraps a command result for transmission.
func NewResultEnvelope(res Result) ResultEnvelope {
	return ResultEnvelope{Type: TypeCommandResult, Result: res}
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the structured outcome of a single command execution.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SuccessResult builds a success result with a formatted message.
func SuccessResult(format string, args ...any) Result {
	return Result{Status: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// ErrorResult builds an error result with a formatted message.
func ErrorResult(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}
