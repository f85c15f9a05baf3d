package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"media-pipeline-service/ddd/infrastructure/database/po"
	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
)

var (
	databaseResourceOnce      sync.Once
	singletonDatabaseResource *DatabaseResource
)

// DatabaseResource 主库连接，按 database.driver 选择 mysql/postgres/sqlite
type DatabaseResource struct {
	mainDB *gorm.DB
}

// DefaultDatabaseResource 获取数据库资源单例
func DefaultDatabaseResource() *DatabaseResource {
	assert.NotCircular()
	databaseResourceOnce.Do(func() {
		singletonDatabaseResource = &DatabaseResource{}
	})
	assert.NotNil(singletonDatabaseResource)
	return singletonDatabaseResource
}

// MustOpen 打开数据库连接，driver=memory 时跳过
func (r *DatabaseResource) MustOpen() {
	if r.mainDB != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before DatabaseResource")
	}
	dbCfg := cfg.Database
	driver := strings.ToLower(dbCfg.Driver)
	if driver == "memory" {
		logger.Infof("Database driver is memory, skip connection")
		return
	}

	dialector, err := Dialector(dbCfg)
	if err != nil {
		panic(err.Error())
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect database: %v", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(fmt.Sprintf("failed to get sql.DB: %v", err))
	}
	if dbCfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	}
	if dbCfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if dbCfg.AutoMigrate {
		if err := db.AutoMigrate(po.AllModels()...); err != nil {
			panic(fmt.Sprintf("failed to migrate database: %v", err))
		}
	}

	r.mainDB = db
	logger.Info("Database resource initialized", map[string]interface{}{
		"driver":   driver,
		"host":     dbCfg.Host,
		"database": dbCfg.Database,
	})
}

// Dialector 根据配置构造 gorm 方言
func Dialector(dbCfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(dbCfg.Driver) {
	case "", "mysql":
		return mysql.Open(dbCfg.GetDSN()), nil
	case "postgres", "postgresql":
		return postgres.Open(dbCfg.GetDSN()), nil
	case "sqlite":
		return sqlite.Open(dbCfg.Database), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbCfg.Driver)
	}
}

// MainDB 主库连接，未打开时为 nil
func (r *DatabaseResource) MainDB() *gorm.DB {
	return r.mainDB
}

// Ping 未连接数据库（memory 驱动）时视为可用
func (r *DatabaseResource) Ping(ctx context.Context) error {
	if r.mainDB == nil {
		return nil
	}
	sqlDB, err := r.mainDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接池
func (r *DatabaseResource) Close() {
	if r.mainDB == nil {
		return
	}
	if sqlDB, err := r.mainDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// DatabaseResourcePlugin 数据库资源插件
type DatabaseResourcePlugin struct{}

func (p *DatabaseResourcePlugin) Name() string {
	return "database"
}

func (p *DatabaseResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultDatabaseResource()
}
