package domain

import "context"

// Event is a closed set of transport payload variants. Only types in this
// package implement it.
type Event interface {
	isEvent()
}

// MessageEvent is a plain chat message.
type MessageEvent struct {
	Message IncomingMessage
}

// MentionEvent is a message that addresses the bot directly.
type MentionEvent struct {
	Message IncomingMessage
}

// UnknownEvent is any payload the bot does not react to.
type UnknownEvent struct {
	Kind string
}

func (MessageEvent) isEvent() {}
func (MentionEvent) isEvent() {}
func (UnknownEvent) isEvent() {}

// EventKind returns a short label for metrics and logs.
func EventKind(e Event) string {
	switch e.(type) {
	case MessageEvent:
		return "message"
	case MentionEvent:
		return "mention"
	default:
		return "unknown"
	}
}

// EventHandler receives events from a transport. Replies go back through sender.
type EventHandler interface {
	Dispatch(ctx context.Context, sender ReplySender, event Event)
}
