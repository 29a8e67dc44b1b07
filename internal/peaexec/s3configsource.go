package peaexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oriys/peapod/internal/pea"
)

// S3ConfigSource resolves s3://bucket/key `uses` sources, wiring
// aws-sdk-go-v2 (already a direct dependency for generic AWS config
// loading) into its first concrete use in this module: fetching an
// Executor spec document from object storage.
type S3ConfigSource struct {
	client *s3.Client
}

// NewS3ConfigSource loads the default AWS credential chain the same
// way any other AWS-SDK-backed collaborator in this tree would
// (environment, shared config, IMDS).
func NewS3ConfigSource(ctx context.Context) (*S3ConfigSource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ConfigSource{client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3ConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uses, "s3://")
	if !ok {
		return nil, fmt.Errorf("%w: not an s3:// source", pea.ErrConfigSourceBad)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: malformed s3 uri %q", pea.ErrConfigSourceBad, uses)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get s3://%s/%s: %v", pea.ErrConfigSourceBad, bucket, key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}
	return buf.Bytes(), nil
}
