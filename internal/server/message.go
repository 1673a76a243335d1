package server

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies an event pushed to /events subscribers.
type MessageType string

const (
	// MessageTypeSessionStatus is sent once to every new subscriber.
	MessageTypeSessionStatus MessageType = "session.status"
	// MessageTypeInvocationStarted is sent when the agent is launched.
	MessageTypeInvocationStarted MessageType = "invocation.started"
	// MessageTypeInvocationFinished is sent when the agent exits or is killed.
	MessageTypeInvocationFinished MessageType = "invocation.finished"
	// MessageTypeFileReverted is sent after a successful revert.
	MessageTypeFileReverted MessageType = "file.reverted"
)

// Message is the envelope of every event.
type Message struct {
	// Type identifies what kind of message this is.
	Type MessageType `json:"type"`

	// ID is unique per message so clients can de-duplicate.
	ID string `json:"id"`

	// Time is when the event happened, in Unix milliseconds.
	Time int64 `json:"time"`

	// Payload contains the message-specific data.
	Payload interface{} `json:"payload"`
}

// SessionStatusPayload tells a new subscriber whether diffs are worth polling.
type SessionStatusPayload struct {
	Dirty      bool  `json:"dirty"`
	DirtySince int64 `json:"dirty_since,omitempty"`
}

// InvocationStartedPayload describes a launched agent run.
type InvocationStartedPayload struct {
	InvocationID string `json:"invocation_id"`
	// Prompt is shortened to keep events small.
	Prompt    string `json:"prompt"`
	FocusPath string `json:"focus_path,omitempty"`
}

// InvocationFinishedPayload describes how an agent run ended.
type InvocationFinishedPayload struct {
	InvocationID string `json:"invocation_id"`
	Success      bool   `json:"success"`
	Code         int    `json:"code"`
	TimedOut     bool   `json:"timed_out"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// FileRevertedPayload names the file that was restored.
type FileRevertedPayload struct {
	Filename string `json:"filename"`
}

func newMessage(t MessageType, payload interface{}) Message {
	return Message{
		Type:    t,
		ID:      uuid.NewString(),
		Time:    time.Now().UnixMilli(),
		Payload: payload,
	}
}

// NewSessionStatusMessage reports the change-tracking flag.
func NewSessionStatusMessage(dirty bool, since time.Time) Message {
	p := SessionStatusPayload{Dirty: dirty}
	if !since.IsZero() {
		p.DirtySince = since.UnixMilli()
	}
	return newMessage(MessageTypeSessionStatus, p)
}

// NewInvocationStartedMessage announces a launched agent run.
func NewInvocationStartedMessage(id, prompt, focusPath string) Message {
	return newMessage(MessageTypeInvocationStarted, InvocationStartedPayload{
		InvocationID: id,
		Prompt:       prompt,
		FocusPath:    focusPath,
	})
}

// NewInvocationFinishedMessage announces the end of an agent run.
func NewInvocationFinishedMessage(p InvocationFinishedPayload) Message {
	return newMessage(MessageTypeInvocationFinished, p)
}

// NewFileRevertedMessage announces a restored file.
func NewFileRevertedMessage(filename string) Message {
	return newMessage(MessageTypeFileReverted, FileRevertedPayload{Filename: filename})
}
