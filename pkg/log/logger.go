package log

import (
	"io"
	"log/slog"
	"os"
)

// New constructs the process-wide JSON slog.Logger. Every record carries
// the service identity so aggregated observatory logs stay attributable
func New(service, env, version string, lvl slog.Level) *slog.Logger {
	return NewWriter(os.Stdout, service, env, version, lvl)
}

// NewWriter is New with an explicit destination
func NewWriter(
	w io.Writer, service, env, version string, lvl slog.Level,
) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}
