// Package telegram connects the bot to Telegram using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const platform = "telegram"

// Bot is the subset of tgbotapi.BotAPI the transport uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type botWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *botWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *botWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *botWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory connects to the Bot API. It is retried until it succeeds or
// fails permanently.
type BotFactory func() (Bot, error)

type Options struct {
	PollTimeout time.Duration
	Clock       clockwork.Clock
}

// Transport receives Telegram updates and sends replies.
type Transport struct {
	factory     BotFactory
	pollTimeout time.Duration
	clock       clockwork.Clock
	limiter     *rate.Limiter

	bot  Bot
	self tgbotapi.User
}

var _ domain.ReplySender = (*Transport)(nil)

// NewFromToken builds a transport backed by the real Bot API.
func NewFromToken(token string, opts Options) *Transport {
	return New(func() (Bot, error) {
		bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: time.Minute})
		if err != nil {
			return nil, err
		}
		return &botWrapper{bot: bot}, nil
	}, opts)
}

func New(factory BotFactory, opts Options) *Transport {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	return &Transport{
		factory:     factory,
		pollTimeout: opts.PollTimeout,
		clock:       opts.Clock,
		limiter:     rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Run connects and delivers updates to handler until ctx is done. The
// library's poller retries failed getUpdates calls on its own.
func (t *Transport) Run(ctx context.Context, handler domain.EventHandler) error {
	bot, err := retry.Do(ctx, retry.Policy{
		MaxAttempts:      5,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		RateLimitBackoff: 30 * time.Second,
		Clock:            t.clock,
	}, classify, func(context.Context) (Bot, error) { return t.factory() })
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	t.bot = bot
	t.self = bot.GetSelf()
	slog.Info("Telegram authorized", "username", t.self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(t.pollTimeout / time.Second)
	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			for _, ev := range t.translate(update) {
				handler.Dispatch(ctx, t, ev)
			}
		}
	}
}

// translate maps one update onto domain events. A message that addresses the
// bot yields both a MessageEvent and a MentionEvent.
func (t *Transport) translate(update tgbotapi.Update) []domain.Event {
	m := update.Message
	switch {
	case m == nil:
		return []domain.Event{domain.UnknownEvent{Kind: "update"}}
	case m.Chat == nil:
		return []domain.Event{domain.UnknownEvent{Kind: "message_no_chat"}}
	case m.From == nil || m.From.IsBot:
		return []domain.Event{domain.UnknownEvent{Kind: "message_bot"}}
	case m.Text == "":
		return []domain.Event{domain.UnknownEvent{Kind: "message_non_text"}}
	}

	msg := t.message(m)
	events := []domain.Event{domain.MessageEvent{Message: msg}}
	if t.mentionsBot(m) {
		events = append(events, domain.MentionEvent{Message: msg})
	}
	return events
}

func (t *Transport) message(m *tgbotapi.Message) domain.IncomingMessage {
	display := strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)

	return domain.IncomingMessage{
		Platform:    platform,
		Channel:     strconv.FormatInt(m.Chat.ID, 10),
		ChannelName: m.Chat.Title,
		Author: domain.UserIdentity{
			ID:          strconv.FormatInt(m.From.ID, 10),
			Name:        m.From.UserName,
			DisplayName: display,
		},
		Text:      m.Text,
		Timestamp: strconv.Itoa(m.MessageID),
	}
}

func (t *Transport) mentionsBot(m *tgbotapi.Message) bool {
	if m.ReplyToMessage != nil && m.ReplyToMessage.From != nil && m.ReplyToMessage.From.ID == t.self.ID {
		return true
	}
	if t.self.UserName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(m.Text), "@"+strings.ToLower(t.self.UserName))
}

// SendReply sends reply.Text as a reply to the message in TargetThread.
func (t *Transport) SendReply(ctx context.Context, reply domain.Reply) error {
	if t.bot == nil {
		return errors.New("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(reply.Channel, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", reply.Channel, err)
	}

	out := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.TargetThread != "" {
		id, err := strconv.Atoi(reply.TargetThread)
		if err != nil {
			return fmt.Errorf("invalid message id %q: %w", reply.TargetThread, err)
		}
		out.ReplyToMessageID = id
	}

	err = retry.DoVoid(ctx, retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 5 * time.Second,
		Clock:            t.clock,
	}, classify, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		_, err := t.bot.Send(out)
		return err
	})
	if err != nil {
		return fmt.Errorf("send telegram message to %s: %w", reply.Channel, err)
	}
	return nil
}

func classify(err error) retry.Action {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return retry.Retry
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return retry.After
	case apiErr.Code == http.StatusBadRequest, apiErr.Code == http.StatusUnauthorized,
		apiErr.Code == http.StatusForbidden, apiErr.Code == http.StatusNotFound:
		return retry.Stop
	default:
		return retry.Retry
	}
}
