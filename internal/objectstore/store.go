// Package objectstore provides typed operations over an S3-compatible
// remote (spec §4.4): R2, S3, or any compatible endpoint, selected purely
// by BaseEndpoint, matching how the teacher's R2 client configures
// aws-sdk-go-v2.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectMeta is returned by HeadMeta: size, modification time, and custom
// metadata tags (e.g. x-original-path).
type ObjectMeta struct {
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// ListEntry is one row of a List result.
type ListEntry struct {
	Key  string
	Size int64
}

// Store is the capability set spec §4.4 requires. The adapter itself never
// retries; callers decide retry policy.
type Store interface {
	Head(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
	List(ctx context.Context, prefix string) ([]ListEntry, error)
	HeadMeta(ctx context.Context, key string) (*ObjectMeta, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) (int, error)
	PublicURL(key string) string
	PresignPut(ctx context.Context, key, contentType string, maxSizeBytes int64) (string, error)
	MoveObject(ctx context.Context, srcKey, dstKey string) error
}

// S3Store implements Store against any S3-compatible endpoint.
type S3Store struct {
	client     *s3.Client
	bucketName string
	publicURL  string
	accountID  string
}

// Config holds the credentials and endpoint needed to construct an S3Store.
type Config struct {
	Endpoint   string // full https URL; derived from AccountID by the caller if empty
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// NewS3Store builds a Store from Config.
func NewS3Store(cfg Config) (*S3Store, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.BucketName == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("missing object store configuration")
	}

	client := s3.New(s3.Options{
		Region:       "auto",
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	})

	return &S3Store{
		client:     client,
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
		accountID:  cfg.AccountID,
	}, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, must-revalidate"),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}
	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// List transparently paginates over continuation tokens and returns every
// object under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ListEntry, error) {
	var entries []ListEntry
	var token *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucketName),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range out.Contents {
			entries = append(entries, ListEntry{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	return entries, nil
}

func (s *S3Store) HeadMeta(ctx context.Context, key string) (*ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object: %w", err)
	}

	meta := &ObjectMeta{
		Size:     aws.ToInt64(out.ContentLength),
		Metadata: out.Metadata,
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// DeleteMany batches deletes at 1,000 keys per call, the S3 API limit, and
// returns the total number successfully deleted.
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	const batchSize = 1000

	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[i:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for j, k := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(k)}
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucketName),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete objects batch: %w", err)
		}
		deleted += len(out.Deleted)
	}

	return deleted, nil
}

func (s *S3Store) PublicURL(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key)
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s/%s", s.accountID, s.bucketName, key)
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, maxSizeBytes int64) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if maxSizeBytes > 0 {
		input.ContentLength = aws.Int64(maxSizeBytes)
	}

	request, err := presignClient.PresignPutObject(ctx, input, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign put object: %w", err)
	}
	return request.URL, nil
}

func (s *S3Store) MoveObject(ctx context.Context, srcKey, dstKey string) error {
	copySource := fmt.Sprintf("%s/%s", s.bucketName, srcKey)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucketName),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource),
	})
	if err != nil {
		return fmt.Errorf("copy object: %w", err)
	}
	if err := s.Delete(ctx, srcKey); err != nil {
		return fmt.Errorf("delete original after copy: %w", err)
	}
	return nil
}
