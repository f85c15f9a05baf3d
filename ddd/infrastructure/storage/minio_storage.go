package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/logger"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStorage 使用 MinIO 资源创建存储实例
func NewMinioStorage(minioResource *resource.MinioResource) gateway.StorageGateway {
	return NewMinioStorageWith(minioResource.GetClient(), minioResource.GetBucketName())
}

// NewMinioStorageWith 使用现有客户端创建存储实例
func NewMinioStorageWith(client *minio.Client, bucketName string) *MinioStorage {
	return &MinioStorage{client: client, bucketName: bucketName}
}

// UploadFile 上传本地文件
func (s *MinioStorage) UploadFile(ctx context.Context, localPath, objectKey, contentType string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		logger.Error("Failed to open local file", map[string]interface{}{
			"local_path": localPath,
			"error":      err.Error(),
		})
		return 0, fmt.Errorf("open local file failed: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("get file info failed: %w", err)
	}
	if contentType == "" {
		contentType = ContentTypeFor(objectKey)
	}

	size, err := s.UploadStream(ctx, file, fileInfo.Size(), objectKey, contentType)
	if err != nil {
		return 0, err
	}
	logger.Info("File uploaded", map[string]interface{}{
		"local_path": localPath,
		"object_key": objectKey,
		"size":       size,
	})
	return size, nil
}

// UploadStream 上传数据流
func (s *MinioStorage) UploadStream(ctx context.Context, r io.Reader, size int64, objectKey, contentType string) (int64, error) {
	if contentType == "" {
		contentType = ContentTypeFor(objectKey)
	}
	info, err := s.client.PutObject(ctx, s.bucketName, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("Failed to upload object to MinIO", map[string]interface{}{
			"object_key": objectKey,
			"error":      err.Error(),
		})
		return 0, fmt.Errorf("upload object to minio failed: %w", err)
	}
	return info.Size, nil
}

// DownloadFile 从MinIO下载文件到本地路径
func (s *MinioStorage) DownloadFile(ctx context.Context, objectKey, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory failed: %w", err)
	}

	// FGetObject 先写临时文件再重命名
	if err := s.client.FGetObject(ctx, s.bucketName, objectKey, localPath, minio.GetObjectOptions{}); err != nil {
		logger.Error("Failed to download file from MinIO", map[string]interface{}{
			"object_key": objectKey,
			"local_path": localPath,
			"error":      err.Error(),
		})
		return fmt.Errorf("download file from minio failed: %w", err)
	}

	logger.Debugf("File downloaded object_key=%s local_path=%s", objectKey, localPath)
	return nil
}

// PresignGet 生成带下载文件名的限时链接
func (s *MinioStorage) PresignGet(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ContentTypeFor 根据文件扩展名获取内容类型
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".srt":
		return "application/x-subrip"
	case ".vtt":
		return "text/vtt"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
