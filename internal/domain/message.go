package domain

import "context"

// UserIdentity is the author of a chat message as resolved by the transport.
type UserIdentity struct {
	ID          string
	Name        string
	DisplayName string
}

// Label returns the friendliest available name for the user.
func (u UserIdentity) Label() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}

// IncomingMessage is one chat message handed to the processors. Read-only.
type IncomingMessage struct {
	Platform      string
	Channel       string
	ChannelName   string // human-readable, optional
	Author        UserIdentity
	Text          string
	Timestamp     string // opaque ordering token, e.g. Slack ts or Telegram message ID
	ThreadContext string // empty when the message is not inside a thread
}

// ReplyTarget returns where a reply to this message should be threaded.
// Replies thread off the original message if no thread exists yet.
func (m IncomingMessage) ReplyTarget() string {
	if m.ThreadContext != "" {
		return m.ThreadContext
	}
	return m.Timestamp
}

// ChannelLabel is how replies refer to the channel.
func (m IncomingMessage) ChannelLabel() string {
	if m.ChannelName != "" {
		return "#" + m.ChannelName
	}
	return m.Channel
}

// Reply is composed text to be delivered by the originating transport.
type Reply struct {
	Channel      string
	TargetThread string
	Text         string
}

// Processor reacts to a chat message. A nil reply means nothing to say.
type Processor interface {
	Process(ctx context.Context, msg IncomingMessage) (*Reply, error)
}

// ReplySender delivers a reply through a chat transport.
type ReplySender interface {
	SendReply(ctx context.Context, reply Reply) error
}
