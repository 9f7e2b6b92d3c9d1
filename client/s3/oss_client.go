package s3

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

var ErrStorageNotConfigured = errors.New("object storage not configured")

var (
	CoverBucket *oss.Bucket

	GetObjectFunc    = GetObject
	PutObjectFunc    = PutObject
	DeleteObjectFunc = DeleteObject
)

// Bootstrap connects the cover bucket, it is a no-op when OSS_ENDPOINT is not set.
func Bootstrap() error {
	if os.Getenv("OSS_ENDPOINT") == "" {
		return nil
	}
	bucket, err := BuildBucketFromEnv()
	if err != nil {
		return err
	}
	CoverBucket = bucket
	return nil
}

func BuildBucketFromEnv() (*oss.Bucket, error) {
	endpoint := os.ExpandEnv(os.Getenv("OSS_ENDPOINT"))
	accessKey := os.Getenv("OSS_ACCESS_KEY")
	secretKey := os.Getenv("OSS_SECRET_KEY")
	bucket := os.Getenv("OSS_BUCKET")
	if bucket == "" {
		bucket = "mangaapi"
	}
	return BuildBucket(endpoint, accessKey, secretKey, bucket)
}

func BuildBucket(endpoint, accesskey, secretKey, bucketName string) (*oss.Bucket, error) {
	// endpoint http://oss-cn-hangzhou.aliyuncs.com
	cli, err := oss.New(endpoint, accesskey, secretKey, oss.HTTPClient(nil))
	if err != nil {
		return nil, err
	}
	return cli.Bucket(bucketName)
}

// IsNoSuchKey reports whether err is the missing object error of the storage.
func IsNoSuchKey(err error) bool {
	var serErr oss.ServiceError
	if errors.As(err, &serErr) {
		return serErr.Code == "NoSuchKey"
	}
	return false
}

func GetObject(ctx context.Context, key string, opts ...oss.Option) (io.ReadCloser, error) {
	if CoverBucket == nil {
		return nil, ErrStorageNotConfigured
	}
	span := startSpan(ctx, "get-object", key)
	if span != nil {
		defer span.Finish()
	}
	r, err := CoverBucket.GetObject(key, opts...)
	if span != nil {
		ext.Error.Set(span, err != nil)
	}
	return r, err
}

func PutObject(ctx context.Context, key string, r io.Reader, opts ...oss.Option) error {
	if CoverBucket == nil {
		return ErrStorageNotConfigured
	}
	span := startSpan(ctx, "put-object", key)
	if span != nil {
		defer span.Finish()
	}
	err := CoverBucket.PutObject(key, r, opts...)
	if span != nil {
		ext.Error.Set(span, err != nil)
	}
	return err
}

func DeleteObject(ctx context.Context, key string) error {
	if CoverBucket == nil {
		return ErrStorageNotConfigured
	}
	span := startSpan(ctx, "delete-object", key)
	if span != nil {
		defer span.Finish()
	}
	err := CoverBucket.DeleteObject(key)
	if span != nil {
		ext.Error.Set(span, err != nil)
	}
	return err
}

func startSpan(ctx context.Context, operation, key string) opentracing.Span {
	if ctx == nil {
		return nil
	}
	parentSpan := opentracing.SpanFromContext(ctx)
	if parentSpan == nil {
		return nil
	}
	sp := parentSpan.Tracer().StartSpan(operation, opentracing.ChildOf(parentSpan.Context()))
	sp.SetTag("object-key", key)
	return sp
}
