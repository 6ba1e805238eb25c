package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

type zlHandler struct {
	zl   *zerolog.Logger
	attr []slog.Attr
}

// NewSlog exposes zl through the standard slog API so packages only depend on *slog.Logger.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zlHandler{zl: zl})
}

func (h *zlHandler) Enabled(_ context.Context, l slog.Level) bool {
	return toZerolog(l) >= h.zl.GetLevel()
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	base := FromContext(ctx, h.zl)
	ev := base.WithLevel(toZerolog(r.Level))

	for _, a := range h.attr {
		ev = addAttr(ev, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = addAttr(ev, a)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attr = append(append([]slog.Attr(nil), h.attr...), attrs...)
	return &cp
}

func (h *zlHandler) WithGroup(_ string) slog.Handler { return h }

func toZerolog(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func addAttr(ev *zerolog.Event, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		return ev.Str(a.Key, a.Value.String())
	case slog.KindInt64:
		return ev.Int64(a.Key, a.Value.Int64())
	case slog.KindUint64:
		return ev.Uint64(a.Key, a.Value.Uint64())
	case slog.KindFloat64:
		return ev.Float64(a.Key, a.Value.Float64())
	case slog.KindBool:
		return ev.Bool(a.Key, a.Value.Bool())
	case slog.KindDuration:
		return ev.Dur(a.Key, a.Value.Duration())
	case slog.KindTime:
		return ev.Time(a.Key, a.Value.Time().UTC().Truncate(time.Microsecond))
	default:
		if err, ok := a.Value.Any().(error); ok {
			return ev.AnErr(a.Key, err)
		}
		return ev.Interface(a.Key, a.Value.Any())
	}
}
