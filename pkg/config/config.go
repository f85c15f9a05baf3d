package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	RabbitMQ        RabbitMQConfig        `mapstructure:"rabbitmq"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Artifact        ArtifactConfig        `mapstructure:"artifact"`
	Pipeline        PipelineConfig        `mapstructure:"pipeline"`
	Transform       TransformConfig       `mapstructure:"transform"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Queue           QueueConfig           `mapstructure:"queue"`
	Quota           QuotaConfig           `mapstructure:"quota"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers    []string          `mapstructure:"bootstrap_servers"`
	ClientID            string            `mapstructure:"client_id"`
	GroupID             string            `mapstructure:"group_id"`
	Enabled             bool              `mapstructure:"enabled"`
	Topics              KafkaTopicsConfig `mapstructure:"topics"`
	CommitOnDecodeError bool              `mapstructure:"commit_on_decode_error"`
	TopicPartitions     int               `mapstructure:"topic_partitions"`
	ReplicationFactor   int               `mapstructure:"replication_factor"`
	StartFromOldest     bool              `mapstructure:"start_from_oldest"` // 新消费组从最早的消息开始
}

type KafkaTopicsConfig struct {
	JobSubmissions string `mapstructure:"job_submissions"`
	JobEvents      string `mapstructure:"job_events"`
}

// RabbitMQConfig RabbitMQ派发队列配置
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	Queue      string `mapstructure:"queue"`
	Prefetch   int    `mapstructure:"prefetch"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// ArtifactConfig 产物下载链接配置
type ArtifactConfig struct {
	URLTTL    time.Duration `mapstructure:"url_ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	// RetentionDays 桶生命周期规则，过期对象由存储端删除，0 表示永久保留
	RetentionDays int `mapstructure:"retention_days"`
}

// PipelineConfig 流水线执行配置
// 进度落库节流：累计变化达到 ProgressMinDelta 或距上次落库超过 ProgressFlushInterval
type PipelineConfig struct {
	TempDir               string                   `mapstructure:"temp_dir"`
	DefaultStepTimeout    time.Duration            `mapstructure:"default_step_timeout"`
	StepTimeouts          map[string]time.Duration `mapstructure:"step_timeouts"`
	ProgressMinDelta      int                      `mapstructure:"progress_min_delta"`
	ProgressFlushInterval time.Duration            `mapstructure:"progress_flush_interval"`
	YtDlp                 YtDlpConfig              `mapstructure:"ytdlp"`
	FFmpeg                FFmpegConfig             `mapstructure:"ffmpeg"`
}

// YtDlpConfig yt-dlp 相关配置
type YtDlpConfig struct {
	BinaryPath   string        `mapstructure:"binary_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	ExtraArgs    []string      `mapstructure:"extra_args"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath        string `mapstructure:"binary_path"`
	FFprobePath       string `mapstructure:"ffprobe_path"`
	VideoCodec        string `mapstructure:"video_codec"`
	VideoPreset       string `mapstructure:"video_preset"`
	AudioBitrate      string `mapstructure:"audio_bitrate"`
	VideoAudioBitrate string `mapstructure:"video_audio_bitrate"`
	SampleRate        int    `mapstructure:"sample_rate"`
	Threads           int    `mapstructure:"threads"`
}

// TransformConfig 外部转换服务配置
type TransformConfig struct {
	Timeout  time.Duration                     `mapstructure:"timeout"`
	Backends map[string]TransformBackendConfig `mapstructure:"backends"`
}

// TransformBackendConfig 单个转换服务地址，ServiceName 非空时通过 etcd 发现
type TransformBackendConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Path        string `mapstructure:"path"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	WorkerID            string        `mapstructure:"worker_id"`
	MaxConcurrentTasks  int           `mapstructure:"max_concurrent_tasks"`
	QueueCapacity       int           `mapstructure:"queue_capacity"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
	RecoveryInterval    time.Duration `mapstructure:"recovery_interval"`
	RequeueAfter        time.Duration `mapstructure:"requeue_after"`
}

// QueueConfig 派发队列配置
type QueueConfig struct {
	Backend string `mapstructure:"backend"`
}

// QuotaConfig 每日配额配置
type QuotaConfig struct {
	Store                   string         `mapstructure:"store"`
	Timezone                string         `mapstructure:"timezone"`
	GuestDailyLimit         int            `mapstructure:"guest_daily_limit"`
	AuthenticatedDailyLimit int            `mapstructure:"authenticated_daily_limit"`
	Plans                   map[string]int `mapstructure:"plans"`
	Retention               time.Duration  `mapstructure:"retention"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// EtcdConfig etcd client configuration.
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// ProfilingConfig continuous profiling configuration.
type ProfilingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

var loadedViper *viper.Viper

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// 设置环境变量前缀
	v.SetEnvPrefix("GO_MEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	loadedViper = v
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.normalize()
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8083)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client_id", "media-pipeline-service")
	v.SetDefault("kafka.group_id", "media-pipeline-service-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.job_submissions", "media.jobs.submit")
	v.SetDefault("kafka.topics.job_events", "media.jobs.events")
	v.SetDefault("kafka.commit_on_decode_error", true)
	v.SetDefault("worker.enabled", true)
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("quota.store", "redis")
	v.SetDefault("quota.timezone", "UTC")
	v.SetDefault("quota.guest_daily_limit", 1)
	v.SetDefault("quota.authenticated_daily_limit", 10)
	v.SetDefault("grpc_server.enabled", true)
	v.SetDefault("service_registry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "media-artifacts"
	}

	if c.Artifact.URLTTL <= 0 {
		c.Artifact.URLTTL = 24 * time.Hour
	}
	// S3 预签名链接最长7天
	if c.Artifact.URLTTL > 7*24*time.Hour {
		c.Artifact.URLTTL = 7 * 24 * time.Hour
	}
	if c.Artifact.KeyPrefix == "" {
		c.Artifact.KeyPrefix = "jobs"
	}

	// Worker相关默认值
	if c.Worker.MaxConcurrentTasks <= 0 {
		c.Worker.MaxConcurrentTasks = 2
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = c.Worker.MaxConcurrentTasks * 50
	}
	if c.Worker.ShutdownGracePeriod == 0 {
		c.Worker.ShutdownGracePeriod = 10 * time.Second
	}
	if c.Worker.RecoveryInterval <= 0 {
		c.Worker.RecoveryInterval = 30 * time.Second
	}
	if c.Worker.RequeueAfter <= 0 {
		c.Worker.RequeueAfter = 2 * time.Minute
	}
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "media-worker"
	}

	// 流水线默认值
	if c.Pipeline.TempDir == "" {
		c.Pipeline.TempDir = "/tmp/media-pipeline"
	}
	if c.Pipeline.ProgressMinDelta <= 0 {
		c.Pipeline.ProgressMinDelta = 5
	}
	if c.Pipeline.ProgressFlushInterval <= 0 {
		c.Pipeline.ProgressFlushInterval = 2 * time.Second
	}
	if c.Pipeline.DefaultStepTimeout <= 0 {
		c.Pipeline.DefaultStepTimeout = 30 * time.Minute
	}
	if c.Pipeline.YtDlp.BinaryPath == "" {
		c.Pipeline.YtDlp.BinaryPath = "yt-dlp"
	}
	if c.Pipeline.YtDlp.ProbeTimeout <= 0 {
		c.Pipeline.YtDlp.ProbeTimeout = 45 * time.Second
	}
	if c.Pipeline.FFmpeg.BinaryPath == "" {
		c.Pipeline.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Pipeline.FFmpeg.FFprobePath == "" {
		c.Pipeline.FFmpeg.FFprobePath = "ffprobe"
	}
	if c.Pipeline.FFmpeg.VideoCodec == "" {
		c.Pipeline.FFmpeg.VideoCodec = "libx264"
	}
	if c.Pipeline.FFmpeg.VideoPreset == "" {
		c.Pipeline.FFmpeg.VideoPreset = "medium"
	}
	if c.Pipeline.FFmpeg.AudioBitrate == "" {
		c.Pipeline.FFmpeg.AudioBitrate = "192k"
	}
	if c.Pipeline.FFmpeg.VideoAudioBitrate == "" {
		c.Pipeline.FFmpeg.VideoAudioBitrate = "128k"
	}
	if c.Pipeline.FFmpeg.SampleRate <= 0 {
		c.Pipeline.FFmpeg.SampleRate = 44100
	}
	if c.Transform.Timeout <= 0 {
		c.Transform.Timeout = 10 * time.Minute
	}

	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "UTC"
	}
	if c.Quota.Retention <= 0 {
		c.Quota.Retention = 48 * time.Hour
	}
	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "media.jobs"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "job.dispatch"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "media.jobs.dispatch"
	}
	if c.RabbitMQ.Prefetch <= 0 {
		c.RabbitMQ.Prefetch = c.Worker.MaxConcurrentTasks
	}

	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9092
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "media-pipeline-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "media-pipeline-service"
	}
	if c.Kafka.TopicPartitions <= 0 {
		c.Kafka.TopicPartitions = 3
	}
	if c.Kafka.ReplicationFactor <= 0 {
		c.Kafka.ReplicationFactor = 1
	}
	if c.Profiling.ApplicationName == "" {
		c.Profiling.ApplicationName = "media-pipeline-service"
	}
}

// StepTimeout 返回某类步骤的超时时间
func (c *PipelineConfig) StepTimeout(kind string) time.Duration {
	if d, ok := c.StepTimeouts[strings.ToLower(kind)]; ok && d > 0 {
		return d
	}
	return c.DefaultStepTimeout
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if strings.EqualFold(c.Driver, "postgres") || strings.EqualFold(c.Driver, "postgresql") {
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
