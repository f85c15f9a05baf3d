package service

import (
	"context"
	"fmt"
	"time"

	"media-pipeline-service/ddd/domain/entity"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/port"
)

// maxPresignTTL S3 预签名链接的最长有效期
const maxPresignTTL = 7 * 24 * time.Hour

// ArtifactService 为已存储文件签发限时下载链接
type ArtifactService interface {
	Issue(ctx context.Context, obj port.StoredObject, kind string) (entity.Artifact, error)
	TTL() time.Duration
}

type artifactServiceImpl struct {
	storage gateway.StorageGateway
	ttl     time.Duration
	now     func() time.Time
}

// NewArtifactService 创建产物服务，ttl 超出上限时截断
func NewArtifactService(storage gateway.StorageGateway, ttl time.Duration) ArtifactService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if ttl > maxPresignTTL {
		ttl = maxPresignTTL
	}
	return &artifactServiceImpl{storage: storage, ttl: ttl, now: time.Now}
}

func (s *artifactServiceImpl) Issue(ctx context.Context, obj port.StoredObject, kind string) (entity.Artifact, error) {
	issuedAt := s.now().UTC()
	url, err := s.storage.PresignGet(ctx, obj.ObjectKey, obj.Filename, s.ttl)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("presign %s: %w", obj.ObjectKey, err)
	}
	return entity.Artifact{
		Kind:        kind,
		ObjectKey:   obj.ObjectKey,
		URL:         url,
		ExpiresAt:   issuedAt.Add(s.ttl),
		SizeBytes:   obj.SizeBytes,
		Filename:    obj.Filename,
		ContentType: obj.ContentType,
	}, nil
}

func (s *artifactServiceImpl) TTL() time.Duration {
	return s.ttl
}
