// Package slack connects the bot to Slack over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const platform = "slack"

var errConnectionClosed = errors.New("socket mode connection closed")

// API is the subset of the Slack Web API the transport uses.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Socket is the Socket Mode connection.
type Socket interface {
	RunContext(ctx context.Context) error
	Ack(req socketmode.Request, payload ...any)
}

type Options struct {
	// Channels restricts processing to these channel IDs. Empty allows all.
	Channels       []string
	ReconnectDelay time.Duration
	// MaxPending bounds events whose user and channel lookups are still in
	// flight. When full, the receive loop waits. Defaults to 64.
	MaxPending     int64
	Clock          clockwork.Clock
}

// Transport receives Slack events and posts replies.
type Transport struct {
	api    API
	socket Socket
	events <-chan socketmode.Event

	allowed        map[string]struct{}
	reconnectDelay time.Duration
	clock          clockwork.Clock
	limiter        *rate.Limiter

	users    *directory[domain.UserIdentity]
	channels *directory[string]

	pending  *semaphore.Weighted
	inflight sync.WaitGroup

	mu        sync.RWMutex
	botUserID string
}

var _ domain.ReplySender = (*Transport)(nil)

// NewFromTokens builds a Socket Mode transport from an app-level token
// (xapp-) and a bot token (xoxb-).
func NewFromTokens(appToken, botToken string, opts Options) *Transport {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	client := socketmode.New(api)
	return New(api, client, client.Events, opts)
}

func New(api API, socket Socket, events <-chan socketmode.Event, opts Options) *Transport {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = 64
	}

	t := &Transport{
		api:            api,
		socket:         socket,
		events:         events,
		reconnectDelay: opts.ReconnectDelay,
		clock:          opts.Clock,
		limiter:        rate.NewLimiter(rate.Limit(1), 3),
		pending:        semaphore.NewWeighted(opts.MaxPending),
	}
	if len(opts.Channels) > 0 {
		t.allowed = make(map[string]struct{}, len(opts.Channels))
		for _, id := range opts.Channels {
			t.allowed[id] = struct{}{}
		}
	}
	t.users = newDirectory(t.fetchUser)
	t.channels = newDirectory(t.fetchChannelName)
	return t
}

// Run authenticates, then keeps the Socket Mode connection open until ctx is
// done, reconnecting after ReconnectDelay whenever it drops.
func (t *Transport) Run(ctx context.Context, handler domain.EventHandler) error {
	auth, err := retry.Do(ctx, retry.Policy{
		MaxAttempts:      5,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		RateLimitBackoff: 30 * time.Second,
		Clock:            t.clock,
	}, classify, t.api.AuthTestContext)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	t.setBotUserID(auth.UserID)
	slog.Info("Slack authenticated", "team", auth.Team, "bot_user_id", auth.UserID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.consume(ctx, handler)
	}()

	err = retry.DoVoid(ctx, retry.Policy{
		InitialBackoff: t.reconnectDelay,
		MaxBackoff:     t.reconnectDelay,
		Clock:          t.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Slack connection lost, reconnecting", "attempt", attempt, "delay", backoff, "error", err)
		},
	}, func(error) retry.Action { return retry.Retry }, func(ctx context.Context) error {
		err := t.socket.RunContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errConnectionClosed
		}
		return err
	})

	wg.Wait()
	t.inflight.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("slack socket mode: %w", err)
	}
	return nil
}

func (t *Transport) consume(ctx context.Context, handler domain.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-t.events:
			if !ok {
				return
			}
			t.handle(ctx, handler, evt)
		}
	}
}

func (t *Transport) handle(ctx context.Context, handler domain.EventHandler, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Debug("Connecting to Slack with Socket Mode")
	case socketmode.EventTypeConnected:
		slog.Info("Connected to Slack with Socket Mode")
	case socketmode.EventTypeConnectionError:
		slog.Warn("Slack connection failed, retrying later")
	case socketmode.EventTypeEventsAPI:
		payload, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			slog.Debug("Ignoring malformed events API payload")
			return
		}
		if evt.Request != nil {
			t.socket.Ack(*evt.Request)
		}
		t.dispatchAsync(ctx, handler, payload)
	default:
		if evt.Request != nil {
			t.socket.Ack(*evt.Request)
		}
	}
}

// dispatchAsync resolves identities and dispatches off the receive loop, so
// a slow users.info call never delays the events behind it. Events may
// therefore reach the handler out of arrival order.
func (t *Transport) dispatchAsync(ctx context.Context, handler domain.EventHandler, payload slackevents.EventsAPIEvent) {
	if err := t.pending.Acquire(ctx, 1); err != nil {
		return
	}
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		defer t.pending.Release(1)
		handler.Dispatch(ctx, t, t.translate(ctx, payload))
	}()
}

// translate maps a Slack callback onto the closed domain event set.
func (t *Transport) translate(ctx context.Context, payload slackevents.EventsAPIEvent) domain.Event {
	if payload.Type != slackevents.CallbackEvent {
		return domain.UnknownEvent{Kind: payload.Type}
	}

	switch ev := payload.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if !t.isAllowed(ev.Channel) {
			return domain.UnknownEvent{Kind: "app_mention_filtered"}
		}
		return domain.MentionEvent{Message: t.message(ctx, ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp)}
	case *slackevents.MessageEvent:
		switch {
		case ev.SubType != "":
			return domain.UnknownEvent{Kind: "message_" + ev.SubType}
		case ev.BotID != "" || ev.User == "" || ev.User == t.getBotUserID():
			return domain.UnknownEvent{Kind: "message_bot"}
		case !t.isAllowed(ev.Channel):
			return domain.UnknownEvent{Kind: "message_filtered"}
		}
		return domain.MessageEvent{Message: t.message(ctx, ev.Channel, ev.User, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp)}
	default:
		return domain.UnknownEvent{Kind: payload.InnerEvent.Type}
	}
}

func (t *Transport) message(ctx context.Context, channel, user, text, ts, threadTS string) domain.IncomingMessage {
	author, err := t.users.lookup(ctx, user)
	if err != nil {
		slog.WarnContext(ctx, "GetUserInfo failed", "user", user, "error", err)
		author = domain.UserIdentity{ID: user}
	}

	name, err := t.channels.lookup(ctx, channel)
	if err != nil {
		slog.WarnContext(ctx, "GetConversationInfo failed", "channel", channel, "error", err)
	}

	return domain.IncomingMessage{
		Platform:      platform,
		Channel:       channel,
		ChannelName:   name,
		Author:        author,
		Text:          text,
		Timestamp:     ts,
		ThreadContext: threadTS,
	}
}

func (t *Transport) fetchUser(ctx context.Context, id string) (domain.UserIdentity, error) {
	u, err := t.api.GetUserInfoContext(ctx, id)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	display := u.Profile.DisplayName
	if display == "" {
		display = u.RealName
	}
	return domain.UserIdentity{ID: u.ID, Name: u.Name, DisplayName: display}, nil
}

func (t *Transport) fetchChannelName(ctx context.Context, id string) (string, error) {
	ch, err := t.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		return "", err
	}
	return ch.Name, nil
}

// SendReply posts reply.Text in the reply's thread. Posts are rate limited to
// stay under Slack's per-channel posting limit.
func (t *Transport) SendReply(ctx context.Context, reply domain.Reply) error {
	opts := []slack.MsgOption{slack.MsgOptionText(reply.Text, false)}
	if reply.TargetThread != "" {
		opts = append(opts, slack.MsgOptionTS(reply.TargetThread))
	}

	err := retry.DoVoid(ctx, retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 5 * time.Second,
		Clock:            t.clock,
	}, classify, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		_, _, err := t.api.PostMessageContext(ctx, reply.Channel, opts...)
		return err
	})
	if err != nil {
		return fmt.Errorf("post message to %s: %w", reply.Channel, err)
	}
	return nil
}

func (t *Transport) isAllowed(channel string) bool {
	if t.allowed == nil {
		return true
	}
	_, ok := t.allowed[channel]
	return ok
}

func (t *Transport) setBotUserID(id string) {
	t.mu.Lock()
	t.botUserID = id
	t.mu.Unlock()
}

func (t *Transport) getBotUserID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.botUserID
}
