package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"media-pipeline-service/pkg/config"
)

// Service 日志服务，包装 logrus 与滚动文件输出
type Service struct {
	entry  *logrus.Logger
	roller *lumberjack.Logger
}

var (
	globalMu     sync.RWMutex
	globalLogger *Service
)

// NewLogger 根据配置创建日志服务
func NewLogger(cfg *config.Config) *Service {
	l := logrus.New()
	s := &Service{entry: l}
	if cfg == nil {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return s
	}
	logCfg := cfg.Log

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(logCfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(logCfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	var writers []io.Writer
	output := strings.ToLower(strings.TrimSpace(logCfg.Output))
	if output == "" || output == "stdout" || output == "both" {
		writers = append(writers, os.Stdout)
	}
	if (output == "file" || output == "both") && logCfg.Filename != "" {
		if dir := filepath.Dir(logCfg.Filename); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		s.roller = &lumberjack.Logger{
			Filename:   logCfg.Filename,
			MaxSize:    logCfg.MaxSize,
			MaxAge:     logCfg.MaxAge,
			MaxBackups: logCfg.MaxBackups,
			Compress:   logCfg.Compress,
		}
		writers = append(writers, s.roller)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.SetOutput(io.MultiWriter(writers...))
	return s
}

// Close 关闭滚动文件
func (s *Service) Close() {
	if s != nil && s.roller != nil {
		_ = s.roller.Close()
	}
}

// Logrus 暴露底层 logrus 实例
func (s *Service) Logrus() *logrus.Logger {
	return s.entry
}

// SetGlobalLogger 设置全局日志服务
func SetGlobalLogger(s *Service) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = s
}

func current() *logrus.Logger {
	globalMu.RLock()
	s := globalLogger
	globalMu.RUnlock()
	if s == nil || s.entry == nil {
		return logrus.StandardLogger()
	}
	return s.entry
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(current())
	for _, f := range fields {
		if len(f) > 0 {
			entry = entry.WithFields(logrus.Fields(f))
		}
	}
	return entry
}

func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }
func Info(msg string, fields ...map[string]interface{}) { withFields(fields).Info(msg) }
func Warn(msg string, fields ...map[string]interface{}) { withFields(fields).Warn(msg) }
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{}) { current().Infof(format, args...) }
func Warnf(format string, args ...interface{}) { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Fatal 记录日志后退出进程
func Fatal(msg string, fields ...map[string]interface{}) {
	withFields(fields).Fatal(msg)
}

// Fatalf 格式化记录日志后退出进程
func Fatalf(format string, args ...interface{}) {
	Fatal(fmt.Sprintf(format, args...))
}
