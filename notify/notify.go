// Package notify delivers alert and summary messages. Delivery is best
// effort: the dispatcher logs failures and never lets them reach the scan.
package notify

import (
	"context"
	"fmt"

	"travel-monitor/models"
	"travel-monitor/utils"
)

// Message is a notification payload built by the monitor.
type Message struct {
	Subject string
	// Short is the one-line form used by desktop notifications.
	Short string
	Text  string
	HTML  string
	// Signals are the buy signals the message reports.
	Signals []models.Signal
	// Urgent messages also raise a desktop notification.
	Urgent bool
}

// Notifier delivers one message.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to every notifier.
type Dispatcher struct {
	notifiers []Notifier
	logger    *utils.Logger
}

// NewDispatcher builds a dispatcher. Nil notifiers are skipped.
func NewDispatcher(logger *utils.Logger, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// Notify sends msg through every notifier. Failures are logged and
// swallowed, so the returned error is always nil.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	for _, n := range d.notifiers {
		if err := safeNotify(ctx, n, msg); err != nil {
			d.logger.Warn("  [%s] %v", n.Name(), err)
		}
	}
	return nil
}

func safeNotify(ctx context.Context, n Notifier, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.Notify(ctx, msg)
}
