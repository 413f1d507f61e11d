package cart

import (
	"context"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"go.uber.org/zap"
)

// AuthFailedBadge is shown after a login page or token-less capture.
const AuthFailedBadge = "✗"

// BadgeNotifier keeps the badge current with capture events.
type BadgeNotifier struct {
	Store *Store
}

func (n BadgeNotifier) DataCaptured(credential.Record, bool) {
	if err := n.Store.RefreshBadge(context.Background()); err != nil {
		n.Store.logger.Warn("Failed to refresh badge", zap.Error(err))
	}
}

// Disconnected clears the connected mark.
func (n BadgeNotifier) Disconnected() {
	n.DataCaptured(credential.Record{}, false)
}

func (n BadgeNotifier) AuthFailed(string) {
	if n.Store.badge != nil {
		n.Store.badge.SetBadge(AuthFailedBadge)
	}
}

// LogBadge writes badge changes to the log.
type LogBadge struct {
	Logger *zap.Logger
}

func (b LogBadge) SetBadge(text string) {
	b.Logger.Debug("Badge updated", zap.String("badge", text))
}
