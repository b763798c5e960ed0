package saver

import "log/slog"

// LogTelemetry is a Telemetry sink that writes events to a structured
// logger. It never returns an error.
type LogTelemetry struct {
	log *slog.Logger
}

// NewLogTelemetry creates a log-backed telemetry sink.
func NewLogTelemetry(log *slog.Logger) *LogTelemetry {
	if log == nil {
		log = slog.Default()
	}
	return &LogTelemetry{log: log}
}

// Report logs one save lifecycle event with its metadata.
func (t *LogTelemetry) Report(event string, metadata map[string]any) error {
	attrs := make([]any, 0, len(metadata)*2+2)
	attrs = append(attrs, slog.String("event", event))
	for k, v := range metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	t.log.Debug("telemetry", attrs...)
	return nil
}
