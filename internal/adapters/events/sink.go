// Package events provides EventSink implementations for lifecycle
// notifications.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
)

// LogSink emits lifecycle events as structured log lines. It is the
// default sink for deployments whose collaborators tail the event log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs the event.
func (s *LogSink) Emit(_ context.Context, ev core.Event) {
	s.logger.Info("Lifecycle event",
		zap.String("event", ev.Name),
		zap.String("entity_id", ev.EntityID.String()),
		zap.Time("at", ev.At))
}

// ChannelSink buffers events on a channel. Used by tests and by
// collaborators that consume events in-process.
type ChannelSink struct {
	Events chan core.Event
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{Events: make(chan core.Event, buffer)}
}

// Emit enqueues the event, dropping it if the buffer is full rather
// than blocking the pipeline.
func (s *ChannelSink) Emit(_ context.Context, ev core.Event) {
	select {
	case s.Events <- ev:
	default:
	}
}
