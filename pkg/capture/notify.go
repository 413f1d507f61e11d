package capture

import (
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"go.uber.org/zap"
)

type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) DataCaptured(rec credential.Record, show bool) {
	if show {
		n.logger.Info("Emoji data captured", zap.String("workspace", rec.Workspace))
	}
}

func (n *LogNotifier) AuthFailed(workspace string) {
	n.logger.Warn("Login page detected, sign in to Slack to capture credentials", zap.String("workspace", workspace))
}

func (n *LogNotifier) Disconnected() {}

// Notifiers fans events out in order.
type Notifiers []Notifier

func (ns Notifiers) DataCaptured(rec credential.Record, show bool) {
	for _, n := range ns {
		n.DataCaptured(rec, show)
	}
}

func (ns Notifiers) AuthFailed(workspace string) {
	for _, n := range ns {
		n.AuthFailed(workspace)
	}
}

func (ns Notifiers) Disconnected() {
	for _, n := range ns {
		n.Disconnected()
	}
}
