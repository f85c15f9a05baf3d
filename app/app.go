package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	pipelineGrpc "media-pipeline-service/ddd/adapter/grpc"
	app "media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/middleware"
	"media-pipeline-service/pkg/observability"
	"media-pipeline-service/pkg/registry"
	"media-pipeline-service/pkg/rpccodec"
	"media-pipeline-service/pkg/task"

	_ "media-pipeline-service/ddd/adapter/component"
	_ "media-pipeline-service/ddd/adapter/http"
	_ "media-pipeline-service/ddd/infrastructure/worker"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

const serviceName = "media-pipeline-service"

// Bootstrap 加载配置并初始化日志，返回后全局配置可用
func Bootstrap(cfgPath string) (*config.Config, *logger.Service, error) {
	config.LoadDotEnv()
	if cfgPath == "" {
		cfgPath = ResolveConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config (%s): %w", cfgPath, err)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"config": cfgPath,
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})
	return cfg, logService, nil
}

// Run 启动 HTTP、gRPC 与后台 worker，直到收到退出信号
func Run(cfgPath string) error {
	fmt.Println("[STARTUP] Starting media pipeline service...")

	cfg, logService, err := Bootstrap(cfgPath)
	if err != nil {
		return err
	}
	defer logService.Close()

	logger.Infof("Media pipeline service starting version=%s", Version)
	checkBinaries(cfg)

	profiler := observability.StartProfiling(cfg.Profiling)
	if profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	// 资源管理器初始化
	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()
	defer manager.CloseResources()
	logger.Infof("Resource manager initialized")

	jobApp := app.DefaultJobApp()
	formatApp := app.DefaultFormatApp()
	quotaService := app.DefaultQuotaService()

	// 创建依赖注入容器
	deps := &manager.Dependencies{
		DB:               resource.DefaultDatabaseResource().MainDB(),
		Config:           cfg,
		JobAppService:    jobApp,
		FormatAppService: formatApp,
		PipelineService:  app.DefaultPipelineService(),
	}

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)
	logger.Infof("All components initialized")

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()
	if err := task.StartAll(taskCtx); err != nil {
		return fmt.Errorf("start background tasks: %w", err)
	}

	// 配置热更新只调整配额上限，其余配置需要重启
	config.Watch(func(newCfg *config.Config, err error) {
		if err != nil {
			logger.Warnf("config reload failed error=%v", err)
			return
		}
		policy, err := service.NewQuotaPolicy(newCfg.Quota)
		if err != nil {
			logger.Warnf("quota policy reload rejected error=%v", err)
			return
		}
		quotaService.UpdatePolicy(policy)
		logger.Info("Quota policy reloaded", map[string]interface{}{
			"guest_daily_limit":         policy.GuestLimit,
			"authenticated_daily_limit": policy.AuthenticatedLimit,
			"plans":                     len(policy.Plans),
		})
	})

	var grpcServer *grpc.Server
	var serviceRegistry *registry.ServiceRegistry
	if cfg.GRPCServer.Enabled {
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPCServer.Host, cfg.GRPCServer.Port)
		grpcListener, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("listen on gRPC port %s: %w", grpcAddr, err)
		}
		grpcServer = grpc.NewServer()
		pipelineGrpc.RegisterMediaPipelineServer(grpcServer,
			pipelineGrpc.NewMediaPipelineGrpcServer(jobApp, formatApp, app.DefaultIdentityVerifier()))

		go func() {
			logger.Infof("gRPC server started address=%s service=%s codec=%s", grpcAddr, pipelineGrpc.ServiceName, rpccodec.Name)
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Errorf("gRPC server encountered an error error=%v", err)
			}
		}()

		serviceRegistry = registerService(cfg)
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestContextMiddleware())
	router.Use(middleware.IdentityMiddleware(app.DefaultIdentityVerifier()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   serviceName,
			"version":   Version,
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		report := resource.CheckReadiness(ctx, resource.DefaultPingers())
		status := http.StatusOK
		if !report.Ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	manager.RegisterAllRoutes(router)
	logger.Infof("Routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Infof("HTTP server started addr=%s health_url=%s", server.Addr, fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Infof("Received shutdown signal, shutting down server...")
	case err := <-serverErr:
		logger.Errorf("HTTP server failed error=%v", err)
	}

	if serviceRegistry != nil {
		serviceRegistry.Deregister()
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warnf("Server forced to close error=%v", err)
	}

	// 先停后台任务，让执行中的作业在宽限期内完成
	task.StopAll()
	manager.Shutdown()
	logger.Infof("Components closed")

	fmt.Println("[SHUTDOWN] Media pipeline service exited safely")
	return nil
}

func registerService(cfg *config.Config) *registry.ServiceRegistry {
	if !cfg.ServiceRegistry.Enabled {
		return nil
	}
	client := resource.DefaultEtcdResource().Client()
	if client == nil {
		logger.Warnf("Service registry enabled but etcd is unavailable, skipping registration")
		return nil
	}
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host = cfg.GRPCServer.Host
	}
	r := registry.NewServiceRegistry(client, cfg.ServiceRegistry, fmt.Sprintf("%s:%d", host, cfg.GRPCServer.Port))
	if err := r.Register(); err != nil {
		logger.Warnf("Service registration failed error=%v", err)
		return nil
	}
	return r
}

// checkBinaries 只在本实例执行作业时检查外部工具
func checkBinaries(cfg *config.Config) {
	if !cfg.Worker.Enabled {
		return
	}
	for _, bin := range []string{cfg.Pipeline.YtDlp.BinaryPath, cfg.Pipeline.FFmpeg.BinaryPath} {
		if strings.TrimSpace(bin) == "" {
			continue
		}
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("Required binary not found, install it or fix pipeline config binary=%s error=%s", bin, err.Error()))
		}
	}
}

// ResolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func ResolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
