// Package notify carries user-facing side effects out of the payment path.
package notify

import (
	"context"
	"log/slog"

	"github.com/marketloop/order-engine/internal/application"
)

// LogSink is the default NotificationSink. It records every notification as a
// structured log line; a delivery backend can replace it without touching any
// service. Fire-and-forget by contract, so nothing here ever returns an error.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyOrderEvent(ctx context.Context, userID, orderID, event string) {
	s.logger.Info("notification",
		"user_id", userID,
		"order_id", orderID,
		"event", event,
	)
}

func (s *LogSink) PostSystemMessage(ctx context.Context, conversationID, body string) {
	s.logger.Info("system message",
		"conversation_id", conversationID,
		"body", body,
	)
}

var _ application.NotificationSink = (*LogSink)(nil)
