package paste

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultGistAPI is the public GitHub API root.
const DefaultGistAPI = "https://api.github.com"

// Gist publishes multi-file documents as GitHub gists.
type Gist struct {
	apiURL string
	token  string
	public bool
	client *http.Client
}

// GistConfig configures the gist publisher.
type GistConfig struct {
	APIURL string
	Token  string
	Public bool
	Client *http.Client
}

// NewGist creates a gist publisher.
func NewGist(cfg GistConfig) *Gist {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultGistAPI
	}
	return &Gist{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  cfg.Token,
		public: cfg.Public,
		client: newHTTPClient(cfg.Client),
	}
}

func (g *Gist) Name() string { return "gist" }

type gistFile struct {
	Content string `json:"content"`
}

type gistRequest struct {
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

type gistResponse struct {
	HTMLURL string `json:"html_url"`
}

func (g *Gist) Publish(ctx context.Context, doc Document) (string, error) {
	payload := gistRequest{
		Description: doc.Description,
		Public:      g.public,
		Files:       make(map[string]gistFile, len(doc.Files)),
	}
	for _, f := range doc.Files {
		content := f.Content
		if content == "" {
			// gists reject empty files
			content = " "
		}
		payload.Files[f.Name] = gistFile{Content: content}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &PublishError{Backend: g.Name(), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/gists", bytes.NewReader(body))
	if err != nil {
		return "", &PublishError{Backend: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &PublishError{Backend: g.Name(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &PublishError{Backend: g.Name(), Err: readFailure(resp)}
	}

	var out gistResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &PublishError{Backend: g.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.HTMLURL == "" {
		return "", &PublishError{Backend: g.Name(), Err: errors.New("response carried no html_url")}
	}
	return out.HTMLURL, nil
}
