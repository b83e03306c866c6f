package eventlog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	switch {
	case event.Transaction != nil:
		attrs = append(attrs,
			slog.Uint64("tx", event.Transaction.Seq),
			slog.String("phase", event.Transaction.Phase.String()),
		)
		if len(event.Transaction.Changes) > 0 {
			attrs = append(attrs, slog.Any("changes", event.Transaction.Changes))
		}
		if event.Transaction.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Transaction.Duration))
		}
		if event.Transaction.Error != "" {
			attrs = append(attrs, slog.String("error", event.Transaction.Error))
		}
	case event.Resource != nil:
		attrs = append(attrs,
			slog.String("resource", event.Resource.Kind.String()),
			slog.String("action", event.Resource.Action.String()),
		)
		if event.Resource.HandleID != "" {
			attrs = append(attrs, slog.String("handle_id", event.Resource.HandleID))
		}
		if event.Resource.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Resource.Reason))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Capture != nil:
		attrs = append(attrs,
			slog.String("capture_id", event.Capture.CaptureID),
			slog.String("phase", event.Capture.Phase.String()),
		)
		if event.Capture.Latency > 0 {
			attrs = append(attrs, slog.Duration("latency", event.Capture.Latency))
		}
		if event.Capture.Error != "" {
			attrs = append(attrs, slog.String("error", event.Capture.Error))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("op", event.Error.Op),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "lifecycle", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
