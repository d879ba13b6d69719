// Package s3 хранит аудиофайлы и обложки в S3-совместимом хранилище
package s3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Config содержит настройки для S3
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type objectUploader interface {
	UploadWithContext(ctx context.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObjectWithContext(ctx context.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
}

// Uploader загружает и удаляет объекты в бакетах хранилища
type Uploader struct {
	s3Uploader objectUploader
	s3Client   objectDeleter
	config     *Config
}

var whitespace = regexp.MustCompile(`\s+`)

// NewUploader создает новый S3 uploader
func NewUploader(config *Config) (*Uploader, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
	}

	// Если указан endpoint, добавляем его
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AWS сессии: %w", err)
	}

	return &Uploader{
		s3Uploader: s3manager.NewUploader(sess),
		s3Client:   s3.New(sess),
		config:     config,
	}, nil
}

// UploadFile загружает объект и возвращает его публичный URL
func (u *Uploader) UploadFile(ctx context.Context, reader io.Reader, bucket, key string) (string, error) {
	input := &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.s3Uploader.UploadWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("ошибка загрузки: %w", err)
	}

	return u.PublicURL(bucket, key), nil
}

// DeleteFile удаляет объект из бакета
func (u *Uploader) DeleteFile(ctx context.Context, bucket, key string) error {
	_, err := u.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления файла из S3: %w", err)
	}
	return nil
}

// PublicURL формирует адрес объекта вида endpoint/bucket/key
func (u *Uploader) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(u.config.Endpoint, "/"), bucket, key)
}

// KeyFromURL извлекает ключ объекта из публичного URL. Второе значение
// ложно, если URL не относится к бакету.
func (u *Uploader) KeyFromURL(bucket, url string) (string, bool) {
	prefix := u.PublicURL(bucket, "")
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// ObjectKey строит ключ объекта из метки времени в миллисекундах и имени файла
func ObjectKey(name string, t time.Time) string {
	return fmt.Sprintf("%d_%s", t.UnixMilli(), whitespace.ReplaceAllString(name, "_"))
}
