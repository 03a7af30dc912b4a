package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Paste backends
const (
	PasteHastebin = "hastebin"
	PasteGist     = "gist"
	PasteS3       = "s3"
)

// PasteConfig selects and configures the service used for oversized output.
type PasteConfig struct {
	Backend string        `env:"PASTE_BACKEND" yaml:"backend" default:"hastebin"` // "hastebin", "gist" or "s3"
	Timeout time.Duration `env:"PASTE_TIMEOUT" yaml:"timeout" default:"15s"`

	HastebinURL string `env:"PASTE_HASTEBIN_URL" yaml:"hastebin_url" default:"https://hastebin.com"`

	GistAPIURL string `env:"PASTE_GIST_API_URL" yaml:"gist_api_url" default:"https://api.github.com"`
	GistToken  string `env:"PASTE_GIST_TOKEN" yaml:"gist_token"`
	GistPublic bool   `env:"PASTE_GIST_PUBLIC" yaml:"gist_public"`

	S3Bucket  string        `env:"PASTE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix  string        `env:"PASTE_S3_PREFIX" yaml:"s3_prefix" default:"console"`
	S3Region  string        `env:"PASTE_S3_REGION" yaml:"s3_region"`
	S3Profile string        `env:"PASTE_S3_PROFILE" yaml:"s3_profile"`
	S3Expiry  time.Duration `env:"PASTE_S3_EXPIRY" yaml:"s3_expiry" default:"24h"`
}

// Validate checks that the selected backend has what it needs
func (c PasteConfig) Validate() error {
	var result error
	switch c.Backend {
	case PasteHastebin:
		if c.HastebinURL == "" {
			result = multierror.Append(result, fmt.Errorf("paste hastebin_url is required for the hastebin backend"))
		}
	case PasteGist:
		if c.GistToken == "" {
			result = multierror.Append(result, fmt.Errorf("paste gist_token is required for the gist backend"))
		}
	case PasteS3:
		if c.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("paste s3_bucket is required for the s3 backend"))
		}
		if c.S3Expiry <= 0 {
			result = multierror.Append(result, fmt.Errorf("paste s3_expiry must be greater than 0"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported paste backend %q (must be hastebin, gist or s3)", c.Backend))
	}
	if c.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("paste timeout must be greater than 0"))
	}
	return result
}
