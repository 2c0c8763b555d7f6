package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/notifier/telegram"
	"github.com/newthinker/tradesim/internal/notifier/webhook"
)

// NewNotifiers builds and initializes the alert channels listed in cfgs.
func NewNotifiers(cfgs []notifier.Config) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for i, c := range cfgs {
		var n notifier.Notifier
		switch c.Type {
		case "webhook":
			n = webhook.New("", nil)
		case "telegram":
			n = telegram.New("", "")
		default:
			return nil, fmt.Errorf("alerts[%d]: unknown type %q", i, c.Type)
		}
		if err := n.Init(c); err != nil {
			return nil, fmt.Errorf("alerts[%d]: %w", i, err)
		}
		if err := reg.Register(n); err != nil {
			return nil, fmt.Errorf("alerts[%d]: %w", i, err)
		}
	}
	return reg, nil
}

// Notify delivers alerts as one batch to every channel. Delivery failures
// are logged and returned as a count; they never stop the caller.
func Notify(ctx context.Context, reg *notifier.Registry, alerts []notifier.Alert, logger *zap.Logger) int {
	if reg == nil || reg.Len() == 0 || len(alerts) == 0 {
		return 0
	}
	errs := reg.NotifyAllBatch(ctx, alerts)
	for name, err := range errs {
		logger.Warn("alert delivery failed", zap.String("notifier", name), zap.Error(err))
	}
	if len(errs) == 0 {
		logger.Info("alerts sent", zap.Int("alerts", len(alerts)), zap.Strings("notifiers", reg.Names()))
	}
	return len(errs)
}
