package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"ustp_things/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// 商品图片允许的扩展名
var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

type AliyunOSSUploader struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

func NewAliyunOSSUploader(cfg config.OSSConfig) (*AliyunOSSUploader, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}

	return &AliyunOSSUploader{
		bucket: bucket,
		config: cfg,
	}, nil
}

// ObjectKey 生成对象名: products/YYYYMMDD/uuid.ext
func ObjectKey(filename string, now time.Time) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedExt[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return fmt.Sprintf("products/%s/%s%s", now.Format("20060102"), uuid.New().String(), ext), contentType, nil
}

func (u *AliyunOSSUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	objectKey, contentType, err := ObjectKey(filename, time.Now())
	if err != nil {
		return "", err
	}

	if err := u.bucket.PutObject(objectKey, r, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	// bucket 为 public-read (或挂 CDN)，直接拼公开地址
	return fmt.Sprintf("https://%s.%s/%s", u.config.BucketName, u.config.Endpoint, objectKey), nil
}
