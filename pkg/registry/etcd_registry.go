package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// ServiceRegistry 以租约把本实例的 gRPC 地址注册到 etcd，租约丢失后自动重新注册
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	serviceID   string
	serviceAddr string
	ttl         int64
	retry       time.Duration

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewClient 按配置连接 etcd
func NewClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return client, nil
}

// NewServiceRegistry etcd 客户端由调用方持有
func NewServiceRegistry(client *clientv3.Client, cfg config.ServiceRegistryConfig, serviceAddr string) *ServiceRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	serviceID := cfg.ServiceID
	if serviceID == "" {
		serviceID = serviceAddr
	}
	ttl := int64(cfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 10
	}
	retry := cfg.RefreshInterval
	if retry <= 0 {
		retry = 5 * time.Second
	}
	return &ServiceRegistry{
		client:      client,
		serviceName: cfg.ServiceName,
		serviceID:   serviceID,
		serviceAddr: serviceAddr,
		ttl:         ttl,
		retry:       retry,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// ServiceKey 某服务全部实例的 key 前缀，转换服务以同样的方式注册
func ServiceKey(serviceName string) string {
	return fmt.Sprintf("/services/%s/", serviceName)
}

func (r *ServiceRegistry) instanceKey() string {
	return ServiceKey(r.serviceName) + r.serviceID
}

// Register 首次注册失败直接返回错误，之后的租约维护在后台进行
func (r *ServiceRegistry) Register() error {
	if err := r.grantAndPut(); err != nil {
		return err
	}
	go r.keepAlive()
	logger.Infof("Service registered key=%s addr=%s ttl=%ds", r.instanceKey(), r.serviceAddr, r.ttl)
	return nil
}

func (r *ServiceRegistry) grantAndPut() error {
	lease, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	if _, err := r.client.Put(r.ctx, r.instanceKey(), r.serviceAddr, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put %s: %w", r.instanceKey(), err)
	}
	r.mu.Lock()
	r.leaseID = lease.ID
	r.mu.Unlock()
	return nil
}

func (r *ServiceRegistry) currentLease() clientv3.LeaseID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaseID
}

func (r *ServiceRegistry) keepAlive() {
	defer close(r.done)
	for {
		if ch, err := r.client.KeepAlive(r.ctx, r.currentLease()); err == nil {
			for range ch {
			}
		}
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(r.retry):
		}
		logger.Warnf("Registry lease lost, re-registering key=%s", r.instanceKey())
		if err := r.grantAndPut(); err != nil {
			logger.Warnf("Re-register failed key=%s error=%v", r.instanceKey(), err)
		}
	}
}

// Deregister 撤销租约，etcd 立即删除实例 key
func (r *ServiceRegistry) Deregister() {
	r.cancel()
	lease := r.currentLease()
	if lease == 0 {
		return
	}
	<-r.done
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := r.client.Revoke(ctx, lease); err != nil {
		logger.Warnf("Failed to revoke lease error=%v", err)
	}
	logger.Infof("Service deregistered id=%s", r.serviceID)
}
