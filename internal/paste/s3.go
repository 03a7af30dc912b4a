package paste

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lewisedginton/chat_console/pkg/prefixed_uuid"
)

// S3PutAPI is the subset of the S3 client used for uploads.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PresignAPI is the subset of the presign client used to share uploads.
type S3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config configures the S3 publisher.
type S3Config struct {
	Bucket    string
	Prefix    string
	Expiry    time.Duration
	Client    S3PutAPI
	Presigner S3PresignAPI
}

// S3 stores every file of a document under a common key prefix and links a
// presigned URL to the last file, which holds the output.
type S3 struct {
	cfg S3Config
}

// NewS3 creates an S3 publisher. Presigner defaults to s3.NewPresignClient
// when Client is a *s3.Client.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 paste bucket is required")
	}
	if cfg.Client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Presigner == nil {
		client, ok := cfg.Client.(*s3.Client)
		if !ok {
			return nil, errors.New("s3 presigner is required")
		}
		cfg.Presigner = s3.NewPresignClient(client)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &S3{cfg: cfg}, nil
}

func (p *S3) Name() string { return "s3" }

func (p *S3) Publish(ctx context.Context, doc Document) (string, error) {
	if len(doc.Files) == 0 {
		return "", &PublishError{Backend: p.Name(), Err: errors.New("document has no files")}
	}

	id := prefixed_uuid.New("paste").String()
	var lastKey string
	for _, f := range doc.Files {
		key := path.Join(strings.Trim(p.cfg.Prefix, "/"), id, f.Name)
		_, err := p.cfg.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.Bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(f.Content),
			ContentType: aws.String("text/plain; charset=utf-8"),
		})
		if err != nil {
			return "", &PublishError{Backend: p.Name(), Err: fmt.Errorf("put %s: %w", key, err)}
		}
		lastKey = key
	}

	signed, err := p.cfg.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(lastKey),
	}, s3.WithPresignExpires(p.cfg.Expiry))
	if err != nil {
		return "", &PublishError{Backend: p.Name(), Err: fmt.Errorf("presign %s: %w", lastKey, err)}
	}
	if signed == nil || signed.URL == "" {
		return "", &PublishError{Backend: p.Name(), Err: errors.New("presign returned no URL")}
	}
	return signed.URL, nil
}
