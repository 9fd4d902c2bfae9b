// Package dto carries the wire-level event structures exchanged with
// WebSocket clients.
package dto

// ClientEvent is an inbound frame from a connection. Type is one of
// "join", "leave" or "message"; Room is always the 8-char room code.
type ClientEvent struct {
	Type    string `json:"type" binding:"required,oneof=join leave message"`
	Room    string `json:"room"`
	Message string `json:"message,omitempty"`
}

// MessageEvent is the outbound frame fanned out to every member of a room
// after a message has been persisted.
type MessageEvent struct {
	Type             string `json:"type"` // always "message"
	Message          string `json:"message"`
	Username         string `json:"username"`
	VerificationCode string `json:"verification_code"`
	Timestamp        string `json:"timestamp"` // HH:MM, server-local
}

// StatusEvent is a join/leave notice broadcast to a room's membership,
// including the acting connection.
type StatusEvent struct {
	Type      string `json:"type"` // always "status"
	Msg       string `json:"msg"`
	Timestamp string `json:"timestamp"`
}

// ErrorEvent reports a failed operation back to the originating connection
// only. Other members never see it.
type ErrorEvent struct {
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}
