package storage

import (
	"sync"

	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/assert"
)

var (
	storageOnce      sync.Once
	singletonStorage gateway.StorageGateway
)

// DefaultStorage 基于 MinIO 资源的存储单例
func DefaultStorage() gateway.StorageGateway {
	assert.NotCircular()
	storageOnce.Do(func() {
		singletonStorage = NewMinioStorage(resource.DefaultMinioResource())
	})
	assert.NotNil(singletonStorage)
	return singletonStorage
}
