// Package storage はイベント画像のオブジェクトストレージを提供する。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ImageStore は画像オブジェクトの保存・削除・参照URL発行のインターフェース。
type ImageStore interface {
	// Put はkeyにbodyを保存する。
	Put(ctx context.Context, key, contentType string, body []byte) error
	// Delete はkeyのオブジェクトを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
	// URL はkeyのオブジェクトを期限付きで参照できるURLを返す。
	URL(ctx context.Context, key string) (string, error)
}

// S3Config はS3（または互換API）への接続設定。
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // MinIO等の互換APIを使う場合のみ指定する
	UsePathStyle    bool
	AccessKeyID     string // 空の場合はAWSのデフォルト認証情報チェーンを使う
	SecretAccessKey string
	URLTTL          time.Duration
}

// NewS3Client はS3Configから*s3.Clientを生成する。
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Store はS3に画像を保存するImageStore実装。
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	bucket    string
	urlTTL    time.Duration
}

// NewS3Store はS3Storeを生成する。urlTTLが0以下の場合は15分とする。
func NewS3Store(client *s3.Client, bucket string, urlTTL time.Duration) *S3Store {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		urlTTL:    urlTTL,
	}
}

// Put はkeyにbodyをprivateで保存する。
func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Delete はkeyのオブジェクトを削除する。
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// URL はkeyのオブジェクトの署名付きGET URLを返す。
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlTTL
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

var _ ImageStore = (*S3Store)(nil)
