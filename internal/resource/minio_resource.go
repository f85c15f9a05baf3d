package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
)

const artifactRuleID = "expire-job-artifacts"

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource 产物对象存储（MinIO 或其他 S3 兼容服务）
type MinioResource struct {
	client     *minio.Client
	bucketName string
}

// DefaultMinioResource 获取产物存储资源单例
func DefaultMinioResource() *MinioResource {
	assert.NotCircular()
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	assert.NotNil(singletonMinioResource)
	return singletonMinioResource
}

// MustOpen 连接存储并准备产物桶，桶不可用时启动失败
func (r *MinioResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	if cfg.Minio.Endpoint == "" {
		panic("minio endpoint is required for artifact storage")
	}

	client, err := NewMinioClient(cfg.Minio)
	if err != nil {
		panic(fmt.Sprintf("failed to create minio client: %v", err))
	}
	r.client = client
	r.bucketName = cfg.Minio.BucketName

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.prepareBucket(ctx, cfg.Artifact); err != nil {
		panic(err.Error())
	}

	logger.Info("Artifact storage ready", map[string]interface{}{
		"endpoint":       cfg.Minio.Endpoint,
		"bucket":         r.bucketName,
		"url_ttl":        cfg.Artifact.URLTTL.String(),
		"retention_days": cfg.Artifact.RetentionDays,
	})
}

// NewMinioClient 按配置创建客户端，预签名链接使用同一 endpoint
func NewMinioClient(cfg config.MinioConfig) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
}

func (r *MinioResource) prepareBucket(ctx context.Context, artifact config.ArtifactConfig) error {
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return fmt.Errorf("check artifact bucket %s: %w", r.bucketName, err)
	}
	if !exists {
		if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create artifact bucket %s: %w", r.bucketName, err)
		}
		logger.Infof("Artifact bucket created bucket=%s", r.bucketName)
	}
	if artifact.RetentionDays <= 0 {
		return nil
	}
	// 部分 S3 兼容服务不支持生命周期规则，只告警
	if err := r.client.SetBucketLifecycle(ctx, r.bucketName, ArtifactLifecycle(artifact)); err != nil {
		logger.Warnf("set artifact lifecycle failed bucket=%s error=%v", r.bucketName, err)
	}
	return nil
}

// ArtifactLifecycle 产物前缀下的对象在 RetentionDays 天后过期
func ArtifactLifecycle(artifact config.ArtifactConfig) *lifecycle.Configuration {
	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:         artifactRuleID,
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: strings.Trim(artifact.KeyPrefix, "/") + "/"},
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(artifact.RetentionDays)},
	}}
	return rules
}

// Ping 检查产物桶可访问
func (r *MinioResource) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("artifact storage not opened")
	}
	ok, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("artifact bucket %s missing", r.bucketName)
	}
	return nil
}

// GetClient 获取客户端
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// GetBucketName 产物桶名称
func (r *MinioResource) GetBucketName() string {
	return r.bucketName
}

// Close minio-go 基于 http.Client，无需关闭
func (r *MinioResource) Close() {}

// MinioResourcePlugin 产物存储插件
type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string {
	return "minioResource"
}

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMinioResource()
}
