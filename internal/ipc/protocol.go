// Package ipc carries session commands between a voiceink invocation and the
// process that currently owns the recording session. The transport is a unix
// socket with one JSON object per line in each direction; a client may issue
// several commands over one connection.
package ipc

// Command is a verb the session owner serves.
type Command string

const (
	// CommandStatus reports where the owner's session currently is.
	CommandStatus Command = "status"
	// CommandToggle finishes the active recording; it is the second half of
	// the press-again-to-stop flow.
	CommandToggle Command = "toggle"
	// CommandStop finishes recording and lets the session run to delivery.
	CommandStop Command = "stop"
	// CommandCancel abandons the session at the next phase boundary.
	CommandCancel Command = "cancel"
)

// Known reports whether the command is one the protocol defines. The server
// refuses unknown commands before they reach the handler.
func (c Command) Known() bool {
	switch c {
	case CommandStatus, CommandToggle, CommandStop, CommandCancel:
		return true
	}
	return false
}

// Request is one command addressed to the session owner.
type Request struct {
	Command Command `json:"command"`
}

// Response reports the outcome of one command alongside the owner's state.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Accepted builds a success response for the given session state.
func Accepted(state string, message string) Response {
	return Response{OK: true, State: state, Message: message}
}

// Rejected builds a failure response for the given session state.
func Rejected(state string, reason string) Response {
	return Response{OK: false, State: state, Error: reason}
}
