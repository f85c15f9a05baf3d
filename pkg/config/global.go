package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// LoadDotEnv 加载 .env 文件中的环境变量，文件不存在时忽略
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Watch 监听配置文件变化，重新解析后替换全局配置并回调
func Watch(onChange func(cfg *Config, err error)) {
	v := loadedViper
	if v == nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err == nil {
			SetGlobalConfig(cfg)
		}
		if onChange != nil {
			onChange(cfg, err)
		}
	})
	v.WatchConfig()
}
