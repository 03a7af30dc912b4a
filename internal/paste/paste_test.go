package paste

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testDoc = Document{
	Description: "eval output",
	Files: []File{
		{Name: "in.lua", Content: "return 1"},
		{Name: "out.lua", Content: "1"},
	},
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "only", Flatten(Document{Files: []File{{Name: "a", Content: "only"}}}))
	assert.Equal(t, "--- in.lua ---\nreturn 1\n\n--- out.lua ---\n1", Flatten(testDoc))
}

func TestHastebinPublish(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/documents", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{"key":"abcdef"}`))
	}))
	defer srv.Close()

	url, err := NewHastebin(srv.URL+"/", nil).Publish(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/abcdef", url)
	assert.Contains(t, gotBody, "--- out.lua ---")
}

func TestHastebinFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}},
		{"missing key", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHastebin(srv.URL, nil).Publish(context.Background(), testDoc)
			var pubErr *PublishError
			require.True(t, errors.As(err, &pubErr), "got %v", err)
			assert.Equal(t, "hastebin", pubErr.Backend)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		_, err := NewHastebin(srv.URL, nil).Publish(context.Background(), testDoc)
		var pubErr *PublishError
		assert.True(t, errors.As(err, &pubErr))
	})
}

func TestGistPublish(t *testing.T) {
	var got gistRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gists", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"html_url":"https://gist.example/1"}`))
	}))
	defer srv.Close()

	doc := testDoc
	doc.Files = append(doc.Files, File{Name: "err.lua", Content: ""})
	url, err := NewGist(GistConfig{APIURL: srv.URL, Token: "secret"}).Publish(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "https://gist.example/1", url)
	assert.Equal(t, "eval output", got.Description)
	assert.False(t, got.Public)
	assert.Equal(t, "return 1", got.Files["in.lua"].Content)
	assert.Equal(t, "1", got.Files["out.lua"].Content)
	assert.Equal(t, " ", got.Files["err.lua"].Content)
}

func TestGistFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	_, err := NewGist(GistConfig{APIURL: srv.URL}).Publish(context.Background(), testDoc)
	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Contains(t, pubErr.Error(), "html_url")
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(*params.Key)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func (m *mockS3) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	args := m.Called(*params.Key)
	req, _ := args.Get(0).(*v4.PresignedHTTPRequest)
	return req, args.Error(1)
}

func TestS3Publish(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "console/paste-") && strings.HasSuffix(key, "/in.lua")
	})).Return(nil).Once()
	client.On("PutObject", mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, "/out.lua")
	})).Return(nil).Once()
	client.On("PresignGetObject", mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, "/out.lua")
	})).Return(&v4.PresignedHTTPRequest{URL: "https://bucket.example/out.lua?sig"}, nil)

	pub, err := NewS3(S3Config{Bucket: "b", Prefix: "/console/", Client: client, Presigner: client})
	require.NoError(t, err)

	url, err := pub.Publish(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/out.lua?sig", url)
	client.AssertExpectations(t)
}

func TestS3PublishFailure(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything).Return(errors.New("access denied"))

	pub, err := NewS3(S3Config{Bucket: "b", Client: client, Presigner: client})
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), testDoc)
	var pubErr *PublishError
	require.True(t, errors.As(err, &pubErr))
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Validation(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.Error(t, err)

	_, err = NewS3(S3Config{Bucket: "b", Client: &mockS3{}})
	assert.Error(t, err, "non-SDK client needs an explicit presigner")
}
