// Package model defines the core domain types for the chat server.
package model

// Kind identifies the type of a wire message.
type Kind string

const (
	KindAuth               Kind = "AUTH"
	KindAuthSuccess        Kind = "AUTH_SUCCESS"
	KindAuthFail           Kind = "AUTH_FAIL"
	KindChat               Kind = "CHAT"
	KindTyping             Kind = "TYPING"
	KindServerNotification Kind = "SERVER_NOTIFICATION"
	KindJoin               Kind = "JOIN"
	KindLeave              Kind = "LEAVE"
	KindHeartbeat          Kind = "HEARTBEAT"
)

// Known reports whether k is one of the defined message kinds.
// Unknown kinds decode without error but are dropped by the dispatcher.
func (k Kind) Known() bool {
	switch k {
	case KindAuth, KindAuthSuccess, KindAuthFail, KindChat, KindTyping,
		KindServerNotification, KindJoin, KindLeave, KindHeartbeat:
		return true
	}
	return false
}

// ServerSender is the sender name used on server-originated messages.
const ServerSender = "SERVER"

// Message is one wire message. Registration is only meaningful on AUTH
// frames, where it distinguishes account creation from login.
type Message struct {
	Kind         Kind
	Sender       string
	Content      string
	Registration bool
}
