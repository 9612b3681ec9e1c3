// Package ipc carries commands between secondary meetnotes invocations and
// the recording owner process over a unix socket, one JSON line each way.
package ipc

// Commands accepted by the owner process.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandPause  = "pause"
	CommandResume = "resume"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Elapsed   string `json:"elapsed,omitempty"`
	Paused    bool   `json:"paused,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
