package middleware

import (
	"net/http"

	wrap "github.com/nomadcore/triphail/pkg/logger/wrapper"
	"github.com/nomadcore/triphail/pkg/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID stamps every request with an id (reusing an inbound one if the
// caller already supplied it) and threads it through the logging context so
// every log line for this request can be correlated.
func (a *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, reqID)
		ctx := wrap.WithLogCtx(r.Context(), wrap.LogCtx{RequestID: reqID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
