package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// Route tells which branch an inbound message took.
type Route string

const (
	// RouteCritical means the emergency referral was scheduled.
	RouteCritical Route = "critical"
	// RouteReply means the reply pipeline was scheduled.
	RouteReply Route = "reply"
)

// Processor handles one non-critical message.
type Processor interface {
	Process(ctx context.Context, phone string, message string)
}

// Dispatcher triages inbound messages and schedules exactly one reply for each.
type Dispatcher struct {
	processor Processor
	notifier  Notifier
	tasks     *TaskGroup
	keywords  []string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCriticalKeywords replaces the default critical phrase list.
func WithCriticalKeywords(keywords []string) DispatcherOption {
	return func(d *Dispatcher) {
		d.keywords = keywords
	}
}

// NewDispatcher creates a Dispatcher that runs work on tasks.
func NewDispatcher(processor Processor, notifier Notifier, tasks *TaskGroup, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		processor: processor,
		notifier:  notifier,
		tasks:     tasks,
		keywords:  DefaultCriticalKeywords,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch schedules the reply to one inbound message and returns without waiting for it.
// The scheduled work outlives ctx's cancellation but keeps its values.
func (d *Dispatcher) Dispatch(ctx context.Context, from string, body string) (Route, error) {
	if from == "" {
		return "", models.ErrEmptyPhone
	}
	message := strings.TrimSpace(body)
	taskCtx := context.WithoutCancel(ctx)

	if IsCritical(message, d.keywords) {
		slog.Warn("Dispatcher.Dispatch: critical keyword detected, sending emergency referral", "from", from)
		// Unkeyed so it never waits behind an earlier reply for the same sender.
		_, err := d.tasks.Go(taskCtx, "", "critical-reply", func(ctx context.Context) {
			if err := d.notifier.Send(ctx, from, CriticalResponseMessage); err != nil {
				slog.Error("Dispatcher: emergency referral not delivered", "from", from, "error", err)
			}
		})
		if err != nil {
			return "", err
		}
		return RouteCritical, nil
	}

	slog.Info("Dispatcher.Dispatch: scheduling reply", "from", from, "length", len(message))
	_, err := d.tasks.Go(taskCtx, from, "reply", func(ctx context.Context) {
		d.processor.Process(ctx, from, message)
	})
	if err != nil {
		return "", err
	}
	return RouteReply, nil
}

// HandleInbound dispatches a message received from a push transport, logging failures.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg models.InboundMessage) {
	route, err := d.Dispatch(ctx, msg.From, msg.Body)
	if err != nil {
		slog.Error("Dispatcher.HandleInbound: message dropped", "from", msg.From, "error", err)
		return
	}
	slog.Debug("Dispatcher.HandleInbound: dispatched", "from", msg.From, "route", route)
}
