// Package notify delivers signal events to operators. Delivery is
// best-effort: a failed notification is logged and never rolls back the
// persisted signal.
package notify

import (
	"context"
	"fmt"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// LogNotifier writes each signal to the structured log. Always enabled;
// it is the delivery of last resort when no channel is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, sig contracts.Signal) error {
	n.logger.WithFields(map[string]interface{}{
		"instrument_id": sig.InstrumentID,
		"date":          sig.Date.Format("2006-01-02"),
		"strategy":      sig.Strategy,
		"kind":          string(sig.Kind),
		"strength":      sig.Strength,
		"reason":        sig.Reason,
	}).Info("Signal generated")
	return nil
}

// Multi fans one signal out to several channels. Each channel gets its
// own attempt; the first error is returned after all channels ran.
type Multi struct {
	notifiers []contracts.Notifier
	logger    *logger.Logger
}

// NewMulti creates a fan-out notifier.
func NewMulti(log *logger.Logger, notifiers ...contracts.Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: log.WithField("component", "notifier")}
}

func (m *Multi) Notify(ctx context.Context, sig contracts.Signal) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, sig); err != nil {
			m.logger.WithError(err).WithField("signal", sig.UniqueKey()).Warn("Notification channel failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FormatSignal renders a signal as a short human-readable message shared
// by the Telegram and websocket channels.
func FormatSignal(sig contracts.Signal, instrument contracts.Instrument) string {
	return fmt.Sprintf("[%s] %s %s @ %s\n%s (strength %.2f)",
		sig.Kind, instrument.Key(), sig.Date.Format("2006-01-02"),
		sig.TriggerPrice.String(), sig.Reason, sig.Strength)
}
