package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSBucket stores objects in an Aliyun OSS bucket
type OSSBucket struct {
	bucket     *oss.Bucket
	name       string
	endpoint   string
	publicBase string
}

// NewOSSBucket connects to OSS. publicBase, when set, replaces the default
// https://<bucket>.<endpoint> prefix of public URLs (e.g. a CDN domain).
func NewOSSBucket(endpoint, accessKey, secretKey, bucketName, publicBase string) (*OSSBucket, error) {
	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	b, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSS bucket: %w", err)
	}
	return &OSSBucket{bucket: b, name: bucketName, endpoint: endpoint, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (b *OSSBucket) Upload(ctx context.Context, key string, r io.Reader, opts UploadOptions) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	options := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	}
	if !opts.Upsert {
		options = append(options, oss.ForbidOverWrite(true))
	}
	err := b.bucket.PutObject(key, r, options...)
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) && svcErr.Code == "FileAlreadyExists" {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	return err
}

func (b *OSSBucket) Delete(ctx context.Context, key string) error {
	return b.bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (b *OSSBucket) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	if b.publicBase != "" {
		return b.publicBase + "/" + key
	}
	end := strings.TrimPrefix(strings.TrimPrefix(b.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", b.name, end, key)
}
