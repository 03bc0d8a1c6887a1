package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"course_engine_backend/internal/config"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// PresignedUpload tells the client where to upload a file directly. The
// engine itself never receives the bytes.
type PresignedUpload struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Fields    map[string]string `json:"fields,omitempty"`
	ObjectKey string            `json:"objectKey"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// StorageProvider 定义对象存储的预签名上传与删除接口
type StorageProvider interface {
	PresignUpload(ctx context.Context, objectKey, contentType string, maxBytes int64, expiry time.Duration) (*PresignedUpload, error)
	Delete(ctx context.Context, objectKey string) error
}

var errPresignUnsupported = errors.New("local storage does not issue presigned uploads")

// LocalStorageProvider serves files from disk and cannot presign uploads.
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) PresignUpload(ctx context.Context, objectKey, contentType string, maxBytes int64, expiry time.Duration) (*PresignedUpload, error) {
	return nil, errPresignUnsupported
}

func (p *LocalStorageProvider) Delete(ctx context.Context, objectKey string) error {
	err := os.Remove(filepath.Join(p.Config.LocalPath, filepath.FromSlash(objectKey)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MinioStorageProvider MinIO 存储，使用 POST policy 预签名
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) PresignUpload(ctx context.Context, objectKey, contentType string, maxBytes int64, expiry time.Duration) (*PresignedUpload, error) {
	expiresAt := time.Now().UTC().Add(expiry)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(p.Config.MinioBucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(objectKey); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, err
	}
	if contentType != "" {
		if err := policy.SetContentType(contentType); err != nil {
			return nil, err
		}
	}
	if err := policy.SetContentLengthRange(1, maxBytes); err != nil {
		return nil, err
	}

	u, fields, err := p.Client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{
		UploadURL: u.String(),
		Method:    "POST",
		Fields:    fields,
		ObjectKey: objectKey,
		ExpiresAt: expiresAt,
	}, nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, objectKey string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, objectKey, minio.RemoveObjectOptions{})
}

// OSSStorageProvider 阿里云 OSS，使用签名 PUT URL
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) PresignUpload(ctx context.Context, objectKey, contentType string, maxBytes int64, expiry time.Duration) (*PresignedUpload, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return nil, err
	}
	var opts []oss.Option
	fields := map[string]string{}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
		fields["Content-Type"] = contentType
	}
	signed, err := bucket.SignURL(objectKey, oss.HTTPPut, int64(expiry.Seconds()), opts...)
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{
		UploadURL: signed,
		Method:    "PUT",
		Fields:    fields,
		ObjectKey: objectKey,
		ExpiresAt: time.Now().UTC().Add(expiry),
	}, nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, objectKey string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(objectKey)
}

// StorageService 存储服务
type StorageService struct {
	Provider       StorageProvider
	Expiry         time.Duration
	MaxUploadBytes int64
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("MinIO storage init failed, falling back to local", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("OSS storage init failed, falling back to local", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	expiry := time.Duration(cfg.Storage.PresignExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &StorageService{
		Provider:       provider,
		Expiry:         expiry,
		MaxUploadBytes: cfg.Storage.MaxUploadMB << 20,
	}
}

// SubmissionObjectKey builds a collision-free object key for a learner upload.
func SubmissionObjectKey(activityID, learnerID uint, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("submissions/%d/%d/%s%s", activityID, learnerID, uuid.NewString(), ext)
}

func (s *StorageService) PresignUpload(ctx context.Context, objectKey, contentType string) (*PresignedUpload, error) {
	return s.Provider.PresignUpload(ctx, objectKey, contentType, s.MaxUploadBytes, s.Expiry)
}

func (s *StorageService) Delete(ctx context.Context, objectKey string) error {
	return s.Provider.Delete(ctx, objectKey)
}
