package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/unrolled/secure"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	handler := CORS(DefaultCORSConfig())(noContent)

	t.Run("preflight for GET is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/metrics", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.NotEmpty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight for POST is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/metrics", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurity(t *testing.T) {
	t.Run("ops defaults", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		Security(nil)(noContent).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
		assert.Equal(t, "default-src 'none'", recorder.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "no-referrer", recorder.Header().Get("Referrer-Policy"))
	})

	t.Run("custom options", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		Security(&secure.Options{ContentTypeNosniff: true})(noContent).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
		assert.Empty(t, recorder.Header().Get("X-Frame-Options"))
	})
}
