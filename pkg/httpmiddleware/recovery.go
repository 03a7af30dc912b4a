package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/chat_console/pkg/logger"
)

const recoveryResponse = `{"error":"Internal server error","code":"INTERNAL_ERROR"}`

// Recovery returns a middleware that recovers from panics, logs them with the
// stack trace and answers 500. http.ErrAbortHandler is re-raised.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel is compared as a panic value
					panic(rec)
				}

				log.Error("HTTP request panic recovered",
					logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
					logger.StringField("http_method", r.Method),
					logger.StringField("http_path", r.URL.Path),
					logger.CorrelationIDField(r.Header.Get(logger.CorrelationIDHeader)),
					logger.StringField("stack_trace", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(recoveryResponse))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
