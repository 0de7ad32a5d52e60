// Package notify runs the side effects of a delivered message: an audible cue
// on every send and, for staff replies, a desktop notification when the user
// has allowed them. Failures are logged and never returned to the sender.
package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/normalize"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/observability"
)

// ExcerptLen caps the message preview shown in a desktop notification.
const ExcerptLen = 100

// Cue plays a short confirmation sound.
type Cue interface {
	Play(ctx context.Context) error
}

// Notifier shows an OS-level notification.
type Notifier interface {
	Show(ctx context.Context, title, body string) error
}

// BeepCue plays a synthesized tone through beeep.
type BeepCue struct {
	Freq     float64 // Hz
	Duration int     // milliseconds
}

func (c BeepCue) Play(ctx context.Context) error {
	freq, dur := c.Freq, c.Duration
	if freq <= 0 {
		freq = beeep.DefaultFreq
	}
	if dur <= 0 {
		dur = 120
	}
	return beeep.Beep(freq, dur)
}

// DesktopNotifier raises notifications through the OS notification service.
type DesktopNotifier struct {
	Icon string
}

func (n DesktopNotifier) Show(ctx context.Context, title, body string) error {
	return beeep.Notify(title, body, n.Icon)
}

// NopCue and NopNotifier are used on headless hosts.
type NopCue struct{}

func (NopCue) Play(context.Context) error { return nil }

type NopNotifier struct{}

func (NopNotifier) Show(context.Context, string, string) error { return nil }

// Dispatcher runs the per-message side effects.
type Dispatcher struct {
	cue        Cue
	notifier   Notifier
	permission *Permission
	logger     *zap.Logger
}

// NewDispatcher wires the side effects. permission may be nil, in which case
// visual notifications are never shown.
func NewDispatcher(cue Cue, notifier Notifier, permission *Permission, logger *zap.Logger) *Dispatcher {
	if cue == nil {
		cue = NopCue{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{cue: cue, notifier: notifier, permission: permission, logger: logger}
}

// Dispatch runs once per appended message. It never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, msg data.Message) {
	d.play(ctx, msg)

	// only replies directed at the customer raise a visual notification
	if msg.Sender == data.RoleCustomer {
		return
	}
	if d.permission == nil || !d.permission.Granted(ctx) {
		observability.NotificationsTotal.WithLabelValues("visual", "not_permitted").Inc()
		return
	}

	title, body := Render(msg)
	if err := d.show(ctx, title, body); err != nil {
		d.logger.Warn("desktop notification failed",
			zap.String("chat_id", msg.ChatID), zap.String("message_id", msg.ID), zap.Error(err))
		observability.NotificationsTotal.WithLabelValues("visual", "error").Inc()
		return
	}
	observability.NotificationsTotal.WithLabelValues("visual", "ok").Inc()
}

func (d *Dispatcher) play(ctx context.Context, msg data.Message) {
	if err := d.safely(func() error { return d.cue.Play(ctx) }); err != nil {
		d.logger.Debug("audible cue failed", zap.String("message_id", msg.ID), zap.Error(err))
		observability.NotificationsTotal.WithLabelValues("cue", "error").Inc()
		return
	}
	observability.NotificationsTotal.WithLabelValues("cue", "ok").Inc()
}

func (d *Dispatcher) show(ctx context.Context, title, body string) error {
	return d.safely(func() error { return d.notifier.Show(ctx, title, body) })
}

// safely turns a panic in a platform backend into an error.
func (d *Dispatcher) safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification backend panicked: %v", r)
		}
	}()
	return fn()
}

// Render builds the notification title and body for msg.
func Render(msg data.Message) (title, body string) {
	title = msg.Category.Title() + " support"
	body = msg.SenderName + ": " + normalize.Excerpt(msg.Content, ExcerptLen)
	return title, body
}
