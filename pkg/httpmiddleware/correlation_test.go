package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_console/pkg/logger"
)

func TestCorrelationID(t *testing.T) {
	var headerID, contextID string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerID = r.Header.Get(logger.CorrelationIDHeader)
		contextID = logger.GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		client string
	}{
		{name: "no header"},
		{name: "valid client id is replaced", client: uuid.New().String()},
		{name: "invalid client id is replaced", client: "not-a-uuid"},
		{name: "nil uuid is replaced", client: "00000000-0000-0000-0000-000000000000"},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.client != "" {
				req.Header.Set(logger.CorrelationIDHeader, tt.client)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			_, err := uuid.Parse(headerID)
			require.NoError(t, err)
			assert.NotEqual(t, tt.client, headerID)
			assert.Equal(t, headerID, contextID)
			assert.Equal(t, headerID, recorder.Header().Get(logger.CorrelationIDHeader))
			assert.False(t, seen[headerID], "ids are unique per request")
			seen[headerID] = true
		})
	}
}
