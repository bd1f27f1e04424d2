package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/opsledger/workflow-engine/internal/application/port"
)

// LogSink records notifications as structured log lines. It stands in for an
// outbound delivery channel (chat, email) without coupling the engine to one.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging notification sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify logs the notification. It never fails the caller.
func (s *LogSink) Notify(ctx context.Context, n port.Notification) {
	s.logger.Info("Workflow notification",
		zap.String("record_id", n.RecordID),
		zap.String("kind", n.RecordKind.String()),
		zap.String("actor_id", n.ActorID),
		zap.String("from_status", n.FromStatus),
		zap.String("to_status", n.ToStatus),
	)
}

// Verify interface compliance
var _ port.NotificationSink = (*LogSink)(nil)
