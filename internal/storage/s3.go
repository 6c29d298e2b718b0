package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Params are the per-user connection parameters for an S3-compatible
// backend. Endpoint is optional and selects a non-AWS service (MinIO, R2).
type S3Params struct {
	Bucket          string `mapstructure:"bucket" validate:"required"`
	Region          string `mapstructure:"region" validate:"required"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	Prefix          string `mapstructure:"prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// s3API is the subset of *s3.Client the provider uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Provider stores blobs as objects in a single bucket under an optional prefix.
type S3Provider struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Provider builds an S3 client from p. Static credentials are used when
// supplied; otherwise the default AWS credential chain applies.
func NewS3Provider(ctx context.Context, p S3Params) (*S3Provider, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(p.Region)}
	if p.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AccessKeyID, p.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrInvalidConfig, err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = p.ForcePathStyle
		if p.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.Endpoint)
		}
	})
	return newS3ProviderWithClient(client, p.Bucket, p.Prefix), nil
}

func newS3ProviderWithClient(client s3API, bucket, prefix string) *S3Provider {
	return &S3Provider{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (p *S3Provider) Backend() string { return BackendS3 }

func (p *S3Provider) objectKey(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if p.prefix == "" {
		return key, nil
	}
	return path.Join(p.prefix, key), nil
}

// Upload puts the object and returns its s3:// URI.
func (p *S3Provider) Upload(ctx context.Context, key string, data []byte, contentType string) (loc string, err error) {
	defer func() { observe(BackendS3, "upload", err) }()
	objKey, err := p.objectKey(key)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageFailure, objKey, err)
	}
	return "s3://" + p.bucket + "/" + objKey, nil
}

func (p *S3Provider) Download(ctx context.Context, key string) (data []byte, err error) {
	defer func() { observe(BackendS3, "download", err) }()
	objKey, err := p.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objKey)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageFailure, objKey, err)
	}
	defer out.Body.Close()
	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageFailure, objKey, err)
	}
	return data, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (p *S3Provider) Delete(ctx context.Context, key string) (err error) {
	defer func() { observe(BackendS3, "delete", err) }()
	objKey, err := p.objectKey(key)
	if err != nil {
		return err
	}
	_, err = p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isMissingObject(err) {
		return fmt.Errorf("%w: delete %s: %v", ErrStorageFailure, objKey, err)
	}
	return nil
}

func isMissingObject(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
