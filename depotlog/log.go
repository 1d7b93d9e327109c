// Package depotlog provides the structured logging wrapper used by
// depot's scheduler, app, and asset layers. Adapted from
// r3e-network-service_layer's infrastructure/logging.Logger -- same
// shape (a small struct embedding the underlying logger, tagged with a
// component name, constructed via New/NewFromEnv) -- rebuilt on
// zerolog instead of logrus, since zerolog is the logging dependency
// carried in depot's go.mod.
package depotlog

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger, tagging every entry with a component
// name. The zero value is unusable; construct with New or Nop.
type Logger struct {
	log zerolog.Logger
}

// New builds a Logger that writes JSON lines to stderr at the given
// level, tagged with component.
func New(component string, level zerolog.Level) Logger {
	zl := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", component).Logger()
	return Logger{log: zl}
}

// NewFromEnv builds a Logger using the DEPOT_LOG_LEVEL environment
// variable (parsed with zerolog.ParseLevel, defaulting to info when
// unset or unrecognized).
func NewFromEnv(component string) Logger {
	level := zerolog.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("DEPOT_LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	return New(component, level)
}

// Nop returns a Logger that discards everything, the default given to
// systems and plugins that never configure one explicitly.
func Nop() Logger {
	return Logger{log: zerolog.Nop()}
}

// With returns a child Logger with an additional structured field,
// mirroring zerolog's own fluent-context idiom.
func (l Logger) With(key string, value any) Logger {
	return Logger{log: l.log.With().Interface(key, value).Logger()}
}

// Info logs at info level.
func (l Logger) Info(msg string, kv ...any) { l.event(l.log.Info(), msg, kv) }

// Warn logs at warn level.
func (l Logger) Warn(msg string, kv ...any) { l.event(l.log.Warn(), msg, kv) }

// Error logs at error level.
func (l Logger) Error(msg string, kv ...any) { l.event(l.log.Error(), msg, kv) }

// Debug logs at debug level.
func (l Logger) Debug(msg string, kv ...any) { l.event(l.log.Debug(), msg, kv) }

// event applies kv as alternating key/value pairs before emitting msg.
// A trailing unpaired key is logged under "extra".
func (l Logger) event(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	if len(kv)%2 == 1 {
		ev = ev.Interface("extra", kv[len(kv)-1])
	}
	ev.Msg(msg)
}
