package app

import (
	"context"
	"sync"

	"media-pipeline-service/ddd/application/cqe"
	"media-pipeline-service/ddd/application/dto"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/errno"
)

// FormatApp 来源格式查询
type FormatApp interface {
	ResolveFormats(ctx context.Context, req *cqe.ResolveFormatsReq) (*dto.FormatCatalogDTO, error)
}

type formatAppImpl struct {
	formats service.FormatService
}

var (
	formatAppOnce      sync.Once
	singletonFormatApp FormatApp
)

// DefaultFormatApp 格式查询应用服务单例
func DefaultFormatApp() FormatApp {
	assert.NotCircular()
	formatAppOnce.Do(func() {
		singletonFormatApp = NewFormatAppWith(DefaultFormatService())
	})
	assert.NotNil(singletonFormatApp)
	return singletonFormatApp
}

// NewFormatAppWith 使用指定格式服务创建
func NewFormatAppWith(formats service.FormatService) FormatApp {
	return &formatAppImpl{formats: formats}
}

func (a *formatAppImpl) ResolveFormats(ctx context.Context, req *cqe.ResolveFormatsReq) (*dto.FormatCatalogDTO, error) {
	if req == nil {
		return nil, errno.Newf(errno.ErrValidation, "source is required")
	}
	catalog, err := a.formats.Resolve(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	return dto.NewFormatCatalogDTO(catalog), nil
}
