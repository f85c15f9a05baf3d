package observability

import (
	"os"

	"github.com/grafana/pyroscope-go"

	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// StartProfiling 启用持续性能剖析，未开启时返回 nil
func StartProfiling(cfg config.ProfilingConfig) *pyroscope.Profiler {
	if !cfg.Enabled || cfg.ServerAddress == "" {
		return nil
	}
	hostname, _ := os.Hostname()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("Pyroscope start failed server=%s error=%v", cfg.ServerAddress, err)
		return nil
	}
	logger.Infof("Pyroscope profiling enabled app=%s server=%s", cfg.ApplicationName, cfg.ServerAddress)
	return profiler
}
