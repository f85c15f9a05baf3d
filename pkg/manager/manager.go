package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// Resource 外部资源（数据库、缓存、对象存储、消息队列）
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin 资源插件
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 后台组件（worker、消费者）
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin 组件插件
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller HTTP 控制器
type Controller interface {
	RegisterRoutes(group *gin.RouterGroup)
}

// ControllerPlugin 控制器插件
type ControllerPlugin interface {
	Name() string
	MustCreateController() Controller
}

// Dependencies 启动时注入组件的依赖，应用服务使用 interface{} 避免循环引用
type Dependencies struct {
	DB               *gorm.DB
	Config           *config.Config
	JobAppService    interface{}
	FormatAppService interface{}
	PipelineService  interface{}
}

var (
	mu                sync.Mutex
	resourcePlugins   []ResourcePlugin
	componentPlugins  []ComponentPlugin
	controllerPlugins []ControllerPlugin

	openedResources []namedResource
	components      []Component
)

type namedResource struct {
	name     string
	resource Resource
}

func RegisterResourcePlugin(p ResourcePlugin) {
	mu.Lock()
	defer mu.Unlock()
	resourcePlugins = append(resourcePlugins, p)
}

func RegisterComponentPlugin(p ComponentPlugin) {
	mu.Lock()
	defer mu.Unlock()
	componentPlugins = append(componentPlugins, p)
}

func RegisterControllerPlugin(p ControllerPlugin) {
	mu.Lock()
	defer mu.Unlock()
	controllerPlugins = append(controllerPlugins, p)
}

// MustInitResources 按注册顺序打开所有资源，失败直接 panic
func MustInitResources() {
	mu.Lock()
	plugins := append([]ResourcePlugin(nil), resourcePlugins...)
	mu.Unlock()

	for _, p := range plugins {
		r := p.MustCreateResource()
		if r == nil {
			panic(fmt.Sprintf("resource plugin %s returned nil", p.Name()))
		}
		r.MustOpen()
		mu.Lock()
		openedResources = append(openedResources, namedResource{name: p.Name(), resource: r})
		mu.Unlock()
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources 逆序关闭资源
func CloseResources() {
	mu.Lock()
	opened := openedResources
	openedResources = nil
	mu.Unlock()

	for i := len(opened) - 1; i >= 0; i-- {
		opened[i].resource.Close()
		logger.Infof("Resource closed name=%s", opened[i].name)
	}
}

// MustInitComponents 创建并启动所有组件
func MustInitComponents(deps *Dependencies) {
	mu.Lock()
	plugins := append([]ComponentPlugin(nil), componentPlugins...)
	mu.Unlock()

	for _, p := range plugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("failed to start component %s: %v", p.Name(), err))
		}
		mu.Lock()
		components = append(components, c)
		mu.Unlock()
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes 将所有控制器挂到 /api/v1 下
func RegisterAllRoutes(engine *gin.Engine) {
	mu.Lock()
	plugins := append([]ControllerPlugin(nil), controllerPlugins...)
	mu.Unlock()

	group := engine.Group("/api/v1")
	for _, p := range plugins {
		p.MustCreateController().RegisterRoutes(group)
		logger.Debugf("Controller registered name=%s", p.Name())
	}
}

// Shutdown 逆序停止组件
func Shutdown() {
	mu.Lock()
	started := components
	components = nil
	mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", started[i].GetName(), err)
		}
	}
}
