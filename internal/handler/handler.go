package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/yourusername/jolt/internal/actuator"
	"github.com/yourusername/jolt/internal/commands"
	"github.com/yourusername/jolt/internal/config"
	"github.com/yourusername/jolt/internal/database"
	"github.com/yourusername/jolt/internal/errors"
	"github.com/yourusername/jolt/internal/metrics"
	"github.com/yourusername/jolt/internal/output"
	"github.com/yourusername/jolt/internal/ratelimit"
	"github.com/yourusername/jolt/internal/trigger"
)

// eventWriteTimeout bounds the audit write after the request context is done
const eventWriteTimeout = 5 * time.Second

// InboundMessage is one chat message addressed to a channel we are in or to us
type InboundMessage struct {
	Nick     string
	Hostmask string // user@host
	Channel  string // empty for private messages
	Text     string
	Mentions []string // lower-cased nicks
}

// IsPM reports whether the message was sent to us directly
func (m InboundMessage) IsPM() bool {
	return m.Channel == ""
}

// ReplyTarget is the channel for channel messages and the sender for PMs
func (m InboundMessage) ReplyTarget() string {
	if m.IsPM() {
		return m.Nick
	}
	return m.Channel
}

// Replier delivers a line of text to a channel or nick
type Replier interface {
	Reply(ctx context.Context, target, text string) error
}

// EventRecorder stores audit events; *database.DB implements it
type EventRecorder interface {
	RecordFireEvent(ctx context.Context, event *database.FireEvent) error
}

// MessageHandler turns chat messages into command replies and device firings
type MessageHandler struct {
	dispatcher      *commands.Dispatcher
	evaluator       *trigger.Evaluator
	tracker         *ratelimit.CooldownTracker
	actuator        actuator.Actuator
	notifier        Replier
	events          EventRecorder
	metrics         *metrics.Collectors
	logger          output.Logger
	errorHandler    *errors.ErrorHandler
	clock           clockwork.Clock
	keyBy           string
	intensity       int
	duration        time.Duration
	notifyOnFailure bool
}

// MessageHandlerConfig contains the message handler's collaborators.
// Dispatcher, Events and Metrics are optional.
type MessageHandlerConfig struct {
	Dispatcher      *commands.Dispatcher
	Evaluator       *trigger.Evaluator
	Tracker         *ratelimit.CooldownTracker
	Actuator        actuator.Actuator
	Notifier        Replier
	Events          EventRecorder
	Metrics         *metrics.Collectors
	Logger          output.Logger
	ErrorHandler    *errors.ErrorHandler
	Clock           clockwork.Clock
	KeyBy           string // config.KeyByNick or config.KeyByHostmask
	Intensity       int
	Duration        time.Duration
	NotifyOnFailure bool
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(cfg *MessageHandlerConfig) *MessageHandler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MessageHandler{
		dispatcher:      cfg.Dispatcher,
		evaluator:       cfg.Evaluator,
		tracker:         cfg.Tracker,
		actuator:        cfg.Actuator,
		notifier:        cfg.Notifier,
		events:          cfg.Events,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		errorHandler:    cfg.ErrorHandler,
		clock:           clock,
		keyBy:           cfg.KeyBy,
		intensity:       cfg.Intensity,
		duration:        cfg.Duration,
		notifyOnFailure: cfg.NotifyOnFailure,
	}
}

// UserKey is the cooldown table key for a sender
func (h *MessageHandler) UserKey(nick, hostmask string) string {
	if h.keyBy == config.KeyByHostmask && hostmask != "" {
		return strings.ToLower(hostmask)
	}
	return strings.ToLower(nick)
}

// HandleMessage processes one inbound message.
// The returned error is only for replies that could not be queued.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg InboundMessage) error {
	h.logMessage(msg)

	if h.dispatcher != nil && h.dispatcher.IsCommand(msg.Text) {
		if handled, err := h.handleCommand(ctx, msg); handled {
			return err
		}
	}

	decision := h.evaluator.Evaluate(trigger.Message{
		Text:             msg.Text,
		AuthorID:         trigger.FoldASCII(msg.Nick),
		MentionedUserIDs: msg.Mentions,
	})
	h.metrics.ObserveEvaluation(string(decision.Reason))

	if !decision.Fire {
		h.logger.Debug("No fire for %s: tokens=%v mentions=%v", msg.Nick, decision.Tokens, msg.Mentions)
		return nil
	}
	h.logger.Debug("Fire request from %s (%s: %q)", msg.Nick, decision.Reason, decision.Match)

	userKey := h.UserKey(msg.Nick, msg.Hostmask)
	admission := h.tracker.TryFire(userKey, h.clock.Now())
	h.metrics.ObserveAdmission(admission.Allowed)
	h.metrics.SetTrackedUsers(h.tracker.Len())

	event := &database.FireEvent{
		UserKey: userKey,
		Nick:    msg.Nick,
		Channel: msg.Channel,
		Reason:  string(decision.Reason),
	}

	if !admission.Allowed {
		event.Outcome = database.OutcomeDenied
		event.SecondsRemaining = admission.SecondsRemaining
		h.recordEvent(ctx, event)

		h.logger.Info("Denied %s: %d seconds remaining", userKey, admission.SecondsRemaining)
		return h.reply(ctx, msg, fmt.Sprintf("Wait %d seconds...", admission.SecondsRemaining))
	}

	return h.fire(ctx, msg, event)
}

// fire calls the actuator for an admitted request. The admission is never
// rolled back, so a failed call still uses up one of the user's fires.
func (h *MessageHandler) fire(ctx context.Context, msg InboundMessage, event *database.FireEvent) error {
	requestID := uuid.New().String()
	event.RequestID = requestID

	err := h.actuator.Fire(actuator.WithRequestID(ctx, requestID), h.intensity, h.duration)
	if err == nil {
		event.Outcome = database.OutcomeFired
		h.metrics.ObserveFire(string(database.OutcomeFired))
		h.recordEvent(ctx, event)
		h.logger.Success("Fired for %s [%s] (%s)", event.UserKey, requestID, event.Reason)
		return nil
	}

	event.Outcome = database.OutcomeFailed
	event.Error = err.Error()
	h.metrics.ObserveFire(string(database.OutcomeFailed))
	h.recordEvent(ctx, event)

	userMessage := h.errorHandler.Handle(errors.NewActuatorError(event.UserKey, requestID, err))
	if !h.notifyOnFailure {
		return nil
	}
	return h.reply(ctx, msg, userMessage)
}

func (h *MessageHandler) handleCommand(ctx context.Context, msg InboundMessage) (bool, error) {
	command, _ := h.dispatcher.ParseCommand(msg.Text)

	resp, handled, err := h.dispatcher.Dispatch(ctx, commands.Invocation{
		Message:  msg.Text,
		Nick:     msg.Nick,
		Hostmask: msg.Hostmask,
		Channel:  msg.Channel,
		UserKey:  h.UserKey(msg.Nick, msg.Hostmask),
	})
	if !handled {
		return false, nil
	}
	h.metrics.ObserveCommand(command)

	if err != nil {
		return true, h.reply(ctx, msg, h.errorHandler.HandleWithContext(err, "command "+command))
	}
	if resp == nil || resp.Message == "" {
		return true, nil
	}

	target := msg.ReplyTarget()
	if resp.SendAsPM {
		target = msg.Nick
	}
	if err := h.notifier.Reply(ctx, target, resp.Message); err != nil {
		h.errorHandler.LogError(errors.NewNotifierError(target, err), "command reply")
		return true, err
	}
	return true, nil
}

// reply answers msg, prefixed with the sender's nick in channels
func (h *MessageHandler) reply(ctx context.Context, msg InboundMessage, text string) error {
	if !msg.IsPM() {
		text = msg.Nick + ": " + text
	}

	target := msg.ReplyTarget()
	if err := h.notifier.Reply(ctx, target, text); err != nil {
		h.errorHandler.LogError(errors.NewNotifierError(target, err), "reply")
		return err
	}
	return nil
}

// recordEvent writes the audit event. Failures are logged and never affect the decision.
func (h *MessageHandler) recordEvent(ctx context.Context, event *database.FireEvent) {
	if h.events == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
	defer cancel()

	event.CreatedAt = h.clock.Now()
	if err := h.events.RecordFireEvent(writeCtx, event); err != nil {
		h.errorHandler.LogError(errors.NewDatabaseError("record fire event", err), "fire event")
	}
}

func (h *MessageHandler) logMessage(msg InboundMessage) {
	text := msg.Text
	if h.dispatcher != nil {
		if command, _ := h.dispatcher.ParseCommand(text); command == "verify" {
			text = h.dispatcher.GetCommandPrefix() + "verify [redacted]"
		}
	}

	if msg.IsPM() {
		h.logger.PrivateMessage(msg.Nick, text)
	} else {
		h.logger.ChannelMessage(msg.Channel, msg.Nick, text)
	}
}
