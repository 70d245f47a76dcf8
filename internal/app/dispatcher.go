package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
	"github.com/jeremyandrews/tag1bot/internal/domain"
	"github.com/jeremyandrews/tag1bot/internal/platform/correlation"
	"golang.org/x/sync/semaphore"
)

// Dispatcher fans chat events out to processors. Every event runs on its own
// goroutine so a slow store never blocks the transport's receive loop.
type Dispatcher struct {
	processors []domain.Processor
	greeter    domain.Processor
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
	metrics    *metrics.DispatchMetrics
}

// NewDispatcher creates a dispatcher. Message events go to every processor in
// order; mention events go to greeter. greeter and m may be nil.
func NewDispatcher(processors []domain.Processor, greeter domain.Processor, maxInFlight int64, m *metrics.DispatchMetrics) *Dispatcher {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Dispatcher{
		processors: processors,
		greeter:    greeter,
		sem:        semaphore.NewWeighted(maxInFlight),
		metrics:    m,
	}
}

// Dispatch schedules event for processing and returns. It blocks only while
// the in-flight limit is reached; if ctx ends first the event is dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, sender domain.ReplySender, event domain.Event) {
	kind := domain.EventKind(event)
	if d.metrics != nil {
		d.metrics.EventsTotal.WithLabelValues(kind).Inc()
	}

	var processors []domain.Processor
	var msg domain.IncomingMessage
	switch e := event.(type) {
	case domain.MessageEvent:
		processors, msg = d.processors, e.Message
	case domain.MentionEvent:
		if d.greeter == nil {
			return
		}
		processors, msg = []domain.Processor{d.greeter}, e.Message
	case domain.UnknownEvent:
		slog.Debug("Ignoring event", "kind", e.Kind)
		return
	default:
		return
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("Dropping event, dispatcher is shutting down", "kind", kind, "error", err)
		return
	}

	// Processing runs to completion even if the transport context ends.
	runCtx := correlation.WithScope(context.WithoutCancel(ctx), correlation.Scope{
		ID:       correlation.NewID(),
		Platform: msg.Platform,
		Channel:  msg.Channel,
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		d.run(runCtx, sender, processors, msg)
	}()
}

// Wait blocks until every dispatched event has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, sender domain.ReplySender, processors []domain.Processor, msg domain.IncomingMessage) {
	start := time.Now()
	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer func() {
			d.metrics.InFlight.Dec()
			d.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
		}()
	}

	for _, p := range processors {
		d.runProcessor(ctx, sender, p, msg)
	}
}

// runProcessor isolates one processor so a panic or error cannot affect the
// others or later messages.
func (d *Dispatcher) runProcessor(ctx context.Context, sender domain.ReplySender, p domain.Processor, msg domain.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Processor panicked", "channel", msg.Channel, "panic", r)
		}
	}()

	reply, err := p.Process(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "Processor failed", "channel", msg.Channel, "author", msg.Author.ID, "error", err)
	}
	if reply == nil {
		return
	}

	result := "sent"
	if err := sender.SendReply(ctx, *reply); err != nil {
		result = "error"
		slog.ErrorContext(ctx, "SendReply failed", "channel", reply.Channel, "thread", reply.TargetThread, "error", err)
	}
	if d.metrics != nil {
		d.metrics.RepliesTotal.WithLabelValues(result).Inc()
	}
}
