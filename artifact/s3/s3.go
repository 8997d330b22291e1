// Package s3 provides a durable artifact.Store backed by AWS S3 (or any
// S3-compatible API). Attachments are laid out as <prefix>/<conversation>/<id>.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Kochanac/pi-mono/artifact"
)

// Options configures the S3 store. Bucket is required; Prefix namespaces all
// keys and may be empty.
type Options struct {
	Bucket string
	Prefix string
}

// Store implements artifact.Store on top of an S3 bucket.
type Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	opts       Options
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, optFns ...func(o *Options)) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewFromClient(s3.NewFromConfig(cfg), optFns...)
}

// NewFromClient creates a Store from an existing S3 client (useful for
// S3-compatible endpoints and tests).
func NewFromClient(client *s3.Client, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	return &Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		opts:       opts,
	}, nil
}

func (s *Store) key(conversationID, artifactID string) string {
	return path.Join(s.opts.Prefix, conversationID, artifactID)
}

// Save uploads the attachment bytes.
func (s *Store) Save(ctx context.Context, conversationID, artifactID string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.key(conversationID, artifactID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// Get downloads the attachment bytes or returns artifact.ErrNotFound.
func (s *Store) Get(ctx context.Context, conversationID, artifactID string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.key(conversationID, artifactID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, artifact.ErrNotFound
		}
		return nil, fmt.Errorf("s3 download: %w", err)
	}
	return buf.Bytes(), nil
}

// List returns the attachment ids stored under the conversation prefix.
func (s *Store) List(ctx context.Context, conversationID string) ([]string, error) {
	prefix := s.key(conversationID, "") + "/"
	prefix = strings.TrimPrefix(prefix, "/")

	ids := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			ids = append(ids, path.Base(aws.ToString(obj.Key)))
		}
	}
	return ids, nil
}

// Delete removes the attachment. Deleting a missing object is not an error in
// S3; ErrNotFound is therefore never returned here.
func (s *Store) Delete(ctx context.Context, conversationID, artifactID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.key(conversationID, artifactID)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}
	return nil
}
