package paste

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Hastebin publishes to a single-document store speaking the hastebin
// protocol: POST /documents returns {"key": "..."}.
type Hastebin struct {
	baseURL string
	client  *http.Client
}

// NewHastebin creates a hastebin publisher. A nil client uses a default with DefaultTimeout.
func NewHastebin(baseURL string, client *http.Client) *Hastebin {
	return &Hastebin{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(client),
	}
}

func (h *Hastebin) Name() string { return "hastebin" }

type hastebinResponse struct {
	Key string `json:"key"`
}

func (h *Hastebin) Publish(ctx context.Context, doc Document) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/documents", strings.NewReader(Flatten(doc)))
	if err != nil {
		return "", &PublishError{Backend: h.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &PublishError{Backend: h.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &PublishError{Backend: h.Name(), Err: readFailure(resp)}
	}

	var out hastebinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &PublishError{Backend: h.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Key == "" {
		return "", &PublishError{Backend: h.Name(), Err: errors.New("response carried no document key")}
	}
	return h.baseURL + "/" + out.Key, nil
}
