package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"media-pipeline-service/pkg/logger"
)

// DefaultEjectCooldown 连接失败的实例暂停分配的时长
const DefaultEjectCooldown = 30 * time.Second

// backendPool 某个转换服务的实例列表与被暂时剔除的实例
type backendPool struct {
	addrs   []string
	ejected map[string]time.Time
	next    int
}

// pick 轮询选择未被剔除的实例，全部被剔除时仍按轮询返回
func (p *backendPool) pick(now time.Time) string {
	n := len(p.addrs)
	for i := 0; i < n; i++ {
		addr := p.addrs[(p.next+i)%n]
		if until, ok := p.ejected[addr]; ok && now.Before(until) {
			continue
		}
		p.next = (p.next + i + 1) % n
		return addr
	}
	addr := p.addrs[p.next%n]
	p.next = (p.next + 1) % n
	return addr
}

// ServiceDiscovery 从 etcd 解析转换服务实例，供远程步骤执行器选址
type ServiceDiscovery struct {
	client   *clientv3.Client
	pools    map[string]*backendPool
	watching map[string]bool
	cooldown time.Duration
	now      func() time.Time
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServiceDiscovery etcd 客户端由调用方持有
func NewServiceDiscovery(client *clientv3.Client) *ServiceDiscovery {
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceDiscovery{
		client:   client,
		pools:    make(map[string]*backendPool),
		watching: make(map[string]bool),
		cooldown: DefaultEjectCooldown,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// DiscoverService 从 etcd 拉取实例并替换缓存，已剔除的实例保留剔除状态
func (sd *ServiceDiscovery) DiscoverService(ctx context.Context, serviceName string) ([]string, error) {
	resp, err := sd.client.Get(ctx, ServiceKey(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list %s instances: %w", serviceName, err)
	}
	addrs := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addrs = append(addrs, string(kv.Value))
	}
	sd.setInstances(serviceName, addrs)
	return addrs, nil
}

func (sd *ServiceDiscovery) setInstances(serviceName string, addrs []string) {
	sd.mutex.Lock()
	defer sd.mutex.Unlock()
	pool, ok := sd.pools[serviceName]
	if !ok {
		pool = &backendPool{ejected: make(map[string]time.Time)}
		sd.pools[serviceName] = pool
	}
	pool.addrs = addrs
	live := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		live[a] = true
	}
	for a := range pool.ejected {
		if !live[a] {
			delete(pool.ejected, a)
		}
	}
}

// GetService 返回缓存的实例
func (sd *ServiceDiscovery) GetService(serviceName string) []string {
	sd.mutex.Lock()
	defer sd.mutex.Unlock()
	if pool, ok := sd.pools[serviceName]; ok {
		return append([]string(nil), pool.addrs...)
	}
	return nil
}

// WatchService 实例变化时刷新缓存，重复调用无副作用
func (sd *ServiceDiscovery) WatchService(serviceName string) {
	sd.mutex.Lock()
	if sd.watching[serviceName] {
		sd.mutex.Unlock()
		return
	}
	sd.watching[serviceName] = true
	sd.mutex.Unlock()

	watchCh := sd.client.Watch(sd.ctx, ServiceKey(serviceName), clientv3.WithPrefix())
	go func() {
		for {
			select {
			case <-sd.ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					return
				}
				for _, event := range resp.Events {
					logger.Infof("Transform backend %s service=%s key=%s", event.Type, serviceName, string(event.Kv.Key))
				}
				if _, err := sd.DiscoverService(sd.ctx, serviceName); err != nil {
					logger.Warnf("refresh transform backends failed service=%s error=%v", serviceName, err)
				}
			}
		}
	}()
}

// GetServiceAddress 轮询返回一个可用实例，首次访问时拉取并开始监听
func (sd *ServiceDiscovery) GetServiceAddress(ctx context.Context, serviceName string) (string, error) {
	if len(sd.GetService(serviceName)) == 0 {
		addrs, err := sd.DiscoverService(ctx, serviceName)
		if err != nil {
			return "", err
		}
		if len(addrs) == 0 {
			return "", fmt.Errorf("no available instances for service %s", serviceName)
		}
		sd.WatchService(serviceName)
	}
	sd.mutex.Lock()
	defer sd.mutex.Unlock()
	pool := sd.pools[serviceName]
	if pool == nil || len(pool.addrs) == 0 {
		return "", fmt.Errorf("no available instances for service %s", serviceName)
	}
	return pool.pick(sd.now()), nil
}

// Eject 实例连接失败后在冷却期内不再分配
func (sd *ServiceDiscovery) Eject(serviceName, addr string) {
	sd.mutex.Lock()
	defer sd.mutex.Unlock()
	pool, ok := sd.pools[serviceName]
	if !ok {
		return
	}
	pool.ejected[addr] = sd.now().Add(sd.cooldown)
	logger.Warnf("Transform backend ejected service=%s addr=%s cooldown=%s", serviceName, addr, sd.cooldown)
}

// Close 停止监听
func (sd *ServiceDiscovery) Close() {
	sd.cancel()
}
