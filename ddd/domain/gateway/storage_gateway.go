package gateway

import (
	"context"
	"io"
	"time"
)

// StorageGateway 对象存储网关
type StorageGateway interface {
	// UploadFile 上传本地文件，返回对象大小
	UploadFile(ctx context.Context, localPath, objectKey, contentType string) (int64, error)
	// UploadStream 上传数据流，size 未知时传 -1
	UploadStream(ctx context.Context, r io.Reader, size int64, objectKey, contentType string) (int64, error)
	// DownloadFile 下载对象到本地路径
	DownloadFile(ctx context.Context, objectKey, localPath string) error
	// PresignGet 生成限时下载链接
	PresignGet(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}
