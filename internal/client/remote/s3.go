package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config locates the bucket used by S3Store.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
}

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps each document as a JSON object at <collection>/<key>.json.
// Merges are read-modify-write guarded by the object's ETag, so two writers
// cannot silently overwrite each other. Server timestamps come from the
// store's clock since S3 has no field-level server time.
type S3Store struct {
	client s3API
	bucket string
	now    func() time.Time
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client for cfg. BaseEndpoint may point at MinIO.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

func objectKey(collection, key string) string {
	return path.Join(collection, key+".json")
}

func (s *S3Store) Close() error { return nil }

func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return mapS3Error("ping", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, collection, key string) (map[string]any, error) {
	doc, _, err := s.read(ctx, collection, key)
	if err != nil {
		return nil, mapS3Error("get", err)
	}
	return doc, nil
}

func (s *S3Store) Upsert(ctx context.Context, collection, key string, fields map[string]any, serverTimestampFields ...string) error {
	doc, etag, err := s.read(ctx, collection, key)
	if err != nil {
		return mapS3Error("upsert", err)
	}
	if doc == nil {
		doc = make(map[string]any, len(fields)+len(serverTimestampFields))
	}
	for k, v := range fields {
		doc[k] = v
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)
	for _, f := range serverTimestampFields {
		doc[f] = ts
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return terminal("upsert", err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(collection, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}
	if etag != "" {
		in.IfMatch = aws.String(etag)
	} else {
		in.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return mapS3Error("upsert", err)
	}
	return nil
}

// read returns (nil, "", nil) when the object does not exist.
func (s *S3Store) read(ctx context.Context, collection, key string) (map[string]any, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(collection, key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	doc := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", objectKey(collection, key), err)
		}
	}
	return doc, aws.ToString(out.ETag), nil
}

// mapS3Error classifies an S3 failure. Errors without an API error code are
// transport problems and therefore retryable.
func mapS3Error(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return terminal(op, err)
		}
		return unavailable(op, err)
	}
	switch apiErr.ErrorCode() {
	case "SlowDown", "RequestTimeout", "ServiceUnavailable", "InternalError",
		"PreconditionFailed", "ConditionalRequestConflict":
		return unavailable(op, err)
	default:
		return terminal(op, err)
	}
}
