// Package paste publishes oversized console output to an external paste
// service and returns a shareable link.
package paste

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single publish request.
const DefaultTimeout = 15 * time.Second

// File is one named document in a paste.
type File struct {
	Name    string
	Content string
}

// Document is an ordered set of files published together.
type Document struct {
	Description string
	Files       []File
}

// Publisher uploads a document and returns its URL.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc Document) (string, error)
}

// PublishError reports that a paste service could not store a document or
// returned no usable reference.
type PublishError struct {
	Backend string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Backend, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Flatten joins the files of a document into a single text, each preceded by
// a header line naming it. A single-file document is returned verbatim.
func Flatten(doc Document) string {
	if len(doc.Files) == 1 {
		return doc.Files[0].Content
	}
	var b strings.Builder
	for i, f := range doc.Files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- %s ---\n", f.Name)
		b.WriteString(f.Content)
	}
	return b.String()
}

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// readFailure builds an error from a non-2xx response, keeping a short body excerpt.
func readFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
