package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const actionContextKey = contextKey("action")

// actionSlot is filled in by the handler once the envelope is decoded.
type actionSlot struct {
	name string
}

// SetAction records the RPC action name for the request log line. It is a
// no-op outside RequestLogger.
func SetAction(ctx context.Context, name string) {
	if slot, ok := ctx.Value(actionContextKey).(*actionSlot); ok {
		slot.name = name
	}
}

// RequestLogger logs every request once it completes.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			slot := &actionSlot{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), actionContextKey, slot)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Debug()
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			if slot.name != "" {
				ev = ev.Str("action", slot.name)
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.RequestURI()).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Str("request_id", chimw.GetReqID(r.Context())).
				Dur("took", time.Since(start)).
				Msgf("%s %s", r.Method, r.URL.Path)
		})
	}
}
