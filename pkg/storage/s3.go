package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the part of [s3.Client] used by S3Store.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3ClientConfig holds the connection settings for NewS3Client.
type S3ClientConfig struct {
	Region    string // defaults to us-east-1
	Endpoint  string // custom endpoint for S3-compatible stores; enables path-style addressing
	AccessKey string
	SecretKey string
}

// NewS3Client builds an [s3.Client] with static credentials. Without keys
// the client sends anonymous requests.
func NewS3Client(cfg S3ClientConfig) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{Region: region}
	if cfg.AccessKey != "" {
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
				Source:          "voxprint",
			}, nil
		})
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// S3Store is a FileStore over an S3 bucket. Paths become object keys under
// an optional prefix, and objects carry the ContentType of their extension.
type S3Store struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 returns an S3Store for bucket. An empty prefix stores paths as keys.
func NewS3(client S3Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Store) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *S3Store) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if notFound(err) {
		return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return out.Body, nil
}

// Write buffers the object in memory and uploads it with a single PutObject
// when the writer is closed. Chunk artifacts are small enough for this.
func (s *S3Store) Write(ctx context.Context, p string) (io.WriteCloser, error) {
	return &objectWriter{ctx: ctx, store: s, path: p}, nil
}

func (s *S3Store) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil && !notFound(err) {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	switch {
	case notFound(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("storage: stat %s: %w", p, err)
	}
	return true, nil
}

type objectWriter struct {
	ctx    context.Context
	store  *S3Store
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(b []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("storage: write %s: %w", w.path, os.ErrClosed)
	}
	return w.buf.Write(b)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	s := w.store
	_, err := s.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(w.path)),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
		ContentType:   aws.String(ContentType(w.path)),
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", w.path, err)
	}
	return nil
}

// notFound reports whether err is a missing-object API error.
func notFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "NotFound" || code == "NoSuchKey"
}

var _ FileStore = (*S3Store)(nil)
