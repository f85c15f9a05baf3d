package resource

import (
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/registry"
)

var (
	etcdResourceOnce      sync.Once
	singletonEtcdResource *EtcdResource
)

// EtcdResource 服务注册与转换服务发现共用的 etcd 客户端
type EtcdResource struct {
	client    *clientv3.Client
	discovery *registry.ServiceDiscovery
}

// DefaultEtcdResource 获取 etcd 资源单例
func DefaultEtcdResource() *EtcdResource {
	assert.NotCircular()
	etcdResourceOnce.Do(func() {
		singletonEtcdResource = &EtcdResource{}
	})
	assert.NotNil(singletonEtcdResource)
	return singletonEtcdResource
}

// MustOpen 未配置 endpoints 时跳过；连接失败只告警，注册与发现随之关闭
func (r *EtcdResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before EtcdResource")
	}
	if len(cfg.Etcd.Endpoints) == 0 {
		return
	}
	client, err := registry.NewClient(cfg.Etcd)
	if err != nil {
		logger.Warnf("etcd unavailable endpoints=%v error=%v", cfg.Etcd.Endpoints, err)
		return
	}
	r.client = client
	r.discovery = registry.NewServiceDiscovery(client)
	logger.Infof("Etcd resource initialized endpoints=%v", cfg.Etcd.Endpoints)
}

// Client 返回 etcd 客户端，未启用时为 nil
func (r *EtcdResource) Client() *clientv3.Client {
	return r.client
}

// Discovery 返回服务发现，未启用时为 nil
func (r *EtcdResource) Discovery() *registry.ServiceDiscovery {
	return r.discovery
}

func (r *EtcdResource) Close() {
	if r.discovery != nil {
		r.discovery.Close()
	}
	if r.client != nil {
		_ = r.client.Close()
	}
}

// EtcdResourcePlugin etcd 资源插件
type EtcdResourcePlugin struct{}

func (p *EtcdResourcePlugin) Name() string {
	return "etcd"
}

func (p *EtcdResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultEtcdResource()
}
