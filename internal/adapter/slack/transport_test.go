package slack

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeAPI struct {
	authTestFn  func(ctx context.Context) (*slack.AuthTestResponse, error)
	userInfoFn  func(ctx context.Context, user string) (*slack.User, error)
	channelFn   func(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	postFn      func(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	userLookups atomic.Int32
}

func (f *fakeAPI) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if f.authTestFn != nil {
		return f.authTestFn(ctx)
	}
	return &slack.AuthTestResponse{UserID: "UBOT", Team: "tag1"}, nil
}

func (f *fakeAPI) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	f.userLookups.Add(1)
	if f.userInfoFn != nil {
		return f.userInfoFn(ctx, user)
	}
	u := &slack.User{ID: user, Name: "jeremy", RealName: "Jeremy Andrews"}
	u.Profile.DisplayName = "Jeremy"
	return u, nil
}

func (f *fakeAPI) GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	if f.channelFn != nil {
		return f.channelFn(ctx, input)
	}
	ch := &slack.Channel{}
	ch.ID = input.ChannelID
	ch.Name = "general"
	return ch, nil
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.postFn != nil {
		return f.postFn(ctx, channelID, options...)
	}
	return channelID, "1700000000.000200", nil
}

type fakeSocket struct {
	runFn func(ctx context.Context) error
	runs  atomic.Int32

	mu   sync.Mutex
	acks []string
}

func (f *fakeSocket) RunContext(ctx context.Context) error {
	f.runs.Add(1)
	if f.runFn != nil {
		return f.runFn(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSocket) Ack(req socketmode.Request, _ ...any) {
	f.mu.Lock()
	f.acks = append(f.acks, req.EnvelopeID)
	f.mu.Unlock()
}

func (f *fakeSocket) acked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acks...)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.Event
	got    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan struct{}, 16)}
}

func (h *recordingHandler) Dispatch(_ context.Context, _ domain.ReplySender, event domain.Event) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	h.got <- struct{}{}
}

func (h *recordingHandler) wait(t *testing.T, n int) []domain.Event {
	t.Helper()
	for range n {
		select {
		case <-h.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Event(nil), h.events...)
}

func callback(envelope string, inner any, innerType string) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Type: innerType, Data: inner},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

// --- Tests ---

func TestTranslate_Message(t *testing.T) {
	tr := New(&fakeAPI{}, &fakeSocket{}, nil, Options{})

	ev := tr.translate(context.Background(), slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{Type: "message", Data: &slackevents.MessageEvent{
			Channel:         "C1",
			User:            "U123",
			Text:            "rust++",
			TimeStamp:       "1700000000.000100",
			ThreadTimeStamp: "1699999999.000001",
		}},
	})

	require.IsType(t, domain.MessageEvent{}, ev)
	assert.Equal(t, domain.IncomingMessage{
		Platform:      "slack",
		Channel:       "C1",
		ChannelName:   "general",
		Author:        domain.UserIdentity{ID: "U123", Name: "jeremy", DisplayName: "Jeremy"},
		Text:          "rust++",
		Timestamp:     "1700000000.000100",
		ThreadContext: "1699999999.000001",
	}, ev.(domain.MessageEvent).Message)
}

func TestTranslate_Mention(t *testing.T) {
	tr := New(&fakeAPI{}, &fakeSocket{}, nil, Options{})

	ev := tr.translate(context.Background(), slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{Type: "app_mention", Data: &slackevents.AppMentionEvent{
			Channel:   "C1",
			User:      "U123",
			Text:      "<@UBOT> hi",
			TimeStamp: "1700000000.000100",
		}},
	})

	require.IsType(t, domain.MentionEvent{}, ev)
	assert.Equal(t, "1700000000.000100", ev.(domain.MentionEvent).Message.ReplyTarget())
}

func TestTranslate_Ignored(t *testing.T) {
	tr := New(&fakeAPI{}, &fakeSocket{}, nil, Options{Channels: []string{"C1"}})
	tr.setBotUserID("UBOT")

	tests := []struct {
		name  string
		inner any
		kind  string
	}{
		{"edited message", &slackevents.MessageEvent{Channel: "C1", User: "U1", SubType: "message_changed"}, "message_message_changed"},
		{"bot message", &slackevents.MessageEvent{Channel: "C1", User: "U1", BotID: "B1"}, "message_bot"},
		{"own message", &slackevents.MessageEvent{Channel: "C1", User: "UBOT"}, "message_bot"},
		{"channel not allowed", &slackevents.MessageEvent{Channel: "C2", User: "U1"}, "message_filtered"},
		{"mention not allowed", &slackevents.AppMentionEvent{Channel: "C2", User: "U1"}, "app_mention_filtered"},
		{"other callback", &slackevents.ReactionAddedEvent{}, "reaction_added"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tr.translate(context.Background(), slackevents.EventsAPIEvent{
				Type:       slackevents.CallbackEvent,
				InnerEvent: slackevents.EventsAPIInnerEvent{Type: "reaction_added", Data: tt.inner},
			})
			assert.Equal(t, domain.UnknownEvent{Kind: tt.kind}, ev)
		})
	}
}

func TestTranslate_UserLookupFailureFallsBackToID(t *testing.T) {
	api := &fakeAPI{userInfoFn: func(context.Context, string) (*slack.User, error) {
		return nil, errors.New("user_not_found")
	}}
	tr := New(api, &fakeSocket{}, nil, Options{})

	msg := tr.message(context.Background(), "C1", "U404", "hi", "1.0", "")
	assert.Equal(t, domain.UserIdentity{ID: "U404"}, msg.Author)
}

func TestTranslate_UserLookupsAreCached(t *testing.T) {
	api := &fakeAPI{}
	tr := New(api, &fakeSocket{}, nil, Options{})

	for range 5 {
		tr.message(context.Background(), "C1", "U123", "hi", "1.0", "")
	}
	assert.Equal(t, int32(1), api.userLookups.Load())
}

func TestRun_DispatchesAndAcks(t *testing.T) {
	events := make(chan socketmode.Event, 4)
	socket := &fakeSocket{}
	tr := New(&fakeAPI{}, socket, events, Options{})
	handler := newRecordingHandler()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, handler) }()

	events <- socketmode.Event{Type: socketmode.EventTypeConnected}
	events <- callback("env-1", &slackevents.MessageEvent{Channel: "C1", User: "U123", Text: "foo++", TimeStamp: "1.0"}, "message")
	events <- callback("env-2", &slackevents.AppMentionEvent{Channel: "C1", User: "U123", Text: "<@UBOT>", TimeStamp: "2.0"}, "app_mention")

	got := handler.wait(t, 2)
	var texts []string
	for _, ev := range got {
		switch ev := ev.(type) {
		case domain.MessageEvent:
			texts = append(texts, "message:"+ev.Message.Text)
		case domain.MentionEvent:
			texts = append(texts, "mention:"+ev.Message.Text)
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	assert.ElementsMatch(t, []string{"message:foo++", "mention:<@UBOT>"}, texts)
	assert.Equal(t, []string{"env-1", "env-2"}, socket.acked())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_SlowLookupDoesNotBlockLaterEvents(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{userInfoFn: func(ctx context.Context, user string) (*slack.User, error) {
		if user == "USLOW" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &slack.User{ID: user, Name: user}, nil
	}}
	events := make(chan socketmode.Event, 4)
	socket := &fakeSocket{}
	tr := New(api, socket, events, Options{})
	handler := newRecordingHandler()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, handler) }()

	events <- callback("env-1", &slackevents.MessageEvent{Channel: "C1", User: "USLOW", Text: "slow++", TimeStamp: "1.0"}, "message")
	events <- callback("env-2", &slackevents.MessageEvent{Channel: "C1", User: "UFAST", Text: "fast++", TimeStamp: "2.0"}, "message")

	got := handler.wait(t, 1)
	require.IsType(t, domain.MessageEvent{}, got[0])
	assert.Equal(t, "fast++", got[0].(domain.MessageEvent).Message.Text)
	assert.Equal(t, []string{"env-1", "env-2"}, socket.acked())

	close(release)
	got = handler.wait(t, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "USLOW", got[1].(domain.MessageEvent).Message.Author.ID)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ReconnectsAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	socket := &fakeSocket{}
	socket.runFn = func(ctx context.Context) error {
		if socket.runs.Load() < 3 {
			return errors.New("websocket: close 1006")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	tr := New(&fakeAPI{}, socket, make(chan socketmode.Event), Options{ReconnectDelay: 5 * time.Second, Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, newRecordingHandler()) }()

	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(5 * time.Second)
	}
	require.Eventually(t, func() bool { return socket.runs.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_InvalidAuthIsFatal(t *testing.T) {
	api := &fakeAPI{authTestFn: func(context.Context) (*slack.AuthTestResponse, error) {
		return nil, slack.SlackErrorResponse{Err: "invalid_auth"}
	}}
	socket := &fakeSocket{}
	tr := New(api, socket, nil, Options{})

	err := tr.Run(context.Background(), newRecordingHandler())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
	assert.Equal(t, int32(0), socket.runs.Load())
}

func TestSendReply_ThreadsReply(t *testing.T) {
	var (
		channel string
		values  map[string][]string
	)
	api := &fakeAPI{postFn: func(_ context.Context, ch string, options ...slack.MsgOption) (string, string, error) {
		channel = ch
		_, v, err := slack.UnsafeApplyMsgOptions("xoxb-test", ch, "https://slack.com/api/", options...)
		require.NoError(t, err)
		values = v
		return ch, "1.1", nil
	}}
	tr := New(api, &fakeSocket{}, nil, Options{})

	err := tr.SendReply(context.Background(), domain.Reply{Channel: "C1", TargetThread: "1700000000.000100", Text: "`foo` now has `1` karma."})
	require.NoError(t, err)

	assert.Equal(t, "C1", channel)
	assert.Equal(t, []string{"`foo` now has `1` karma."}, values["text"])
	assert.Equal(t, []string{"1700000000.000100"}, values["thread_ts"])
}

func TestSendReply_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	api := &fakeAPI{postFn: func(context.Context, string, ...slack.MsgOption) (string, string, error) {
		calls.Add(1)
		return "", "", slack.SlackErrorResponse{Err: "channel_not_found"}
	}}
	tr := New(api, &fakeSocket{}, nil, Options{})

	err := tr.SendReply(context.Background(), domain.Reply{Channel: "CGONE", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "after", actionName(classify(&slack.RateLimitedError{RetryAfter: time.Second})))
	assert.Equal(t, "stop", actionName(classify(slack.SlackErrorResponse{Err: "not_authed"})))
	assert.Equal(t, "retry", actionName(classify(slack.SlackErrorResponse{Err: "internal_error"})))
	assert.Equal(t, "retry", actionName(classify(errors.New("EOF"))))
}
