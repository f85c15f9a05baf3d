package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadAppliesDefaults verifies an almost empty file is normalized into a usable config.
func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Quota.GuestDailyLimit != 1 || cfg.Quota.AuthenticatedDailyLimit != 10 || cfg.Quota.Timezone != "UTC" {
		t.Fatalf("quota defaults = %+v", cfg.Quota)
	}
	if cfg.Artifact.URLTTL != 24*time.Hour || cfg.Artifact.KeyPrefix != "jobs" {
		t.Fatalf("artifact defaults = %+v", cfg.Artifact)
	}
	if cfg.Worker.MaxConcurrentTasks != 2 || cfg.Worker.QueueCapacity != 100 {
		t.Fatalf("worker defaults = %+v", cfg.Worker)
	}
	if cfg.Queue.Backend != "memory" || cfg.RabbitMQ.Prefetch != 2 {
		t.Fatalf("queue defaults = %+v %+v", cfg.Queue, cfg.RabbitMQ)
	}
	if cfg.Kafka.TopicPartitions != 3 || cfg.Kafka.ReplicationFactor != 1 {
		t.Fatalf("kafka topic defaults = %d/%d, want 3/1", cfg.Kafka.TopicPartitions, cfg.Kafka.ReplicationFactor)
	}
	if cfg.Pipeline.ProgressMinDelta != 5 || cfg.Pipeline.ProgressFlushInterval != 2*time.Second {
		t.Fatalf("progress throttle = %d/%s, want 5/2s", cfg.Pipeline.ProgressMinDelta, cfg.Pipeline.ProgressFlushInterval)
	}
}

// TestLoadCapsArtifactTTL verifies presigned links never exceed seven days.
func TestLoadCapsArtifactTTL(t *testing.T) {
	cfg, err := Load(writeConfig(t, "artifact:\n  url_ttl: 720h\n"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Artifact.URLTTL != 7*24*time.Hour {
		t.Fatalf("url_ttl = %s, want 168h", cfg.Artifact.URLTTL)
	}
}

// TestStepTimeout verifies per-kind overrides fall back to the default.
func TestStepTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, "pipeline:\n  default_step_timeout: 20m\n  step_timeouts:\n    fetch: 1h\n"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if got := cfg.Pipeline.StepTimeout("fetch"); got != time.Hour {
		t.Fatalf("fetch timeout = %s, want 1h", got)
	}
	if got := cfg.Pipeline.StepTimeout("transcode"); got != 20*time.Minute {
		t.Fatalf("transcode timeout = %s, want 20m", got)
	}
}

// TestEnvOverride verifies GO_MEDIA_ variables win over the file.
func TestEnvOverride(t *testing.T) {
	t.Setenv("GO_MEDIA_QUOTA_GUEST_DAILY_LIMIT", "3")
	cfg, err := Load(writeConfig(t, "quota:\n  guest_daily_limit: 1\n"))
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Quota.GuestDailyLimit != 3 {
		t.Fatalf("guest_daily_limit = %d, want 3", cfg.Quota.GuestDailyLimit)
	}
}

// TestGetDSN verifies DSNs for the supported drivers.
func TestGetDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgresql", Host: "db", Port: 5432, Username: "u", Password: "p", Database: "media"}
	if got, want := pg.GetDSN(), "host=db port=5432 user=u password=p dbname=media sslmode=disable"; got != want {
		t.Fatalf("postgres dsn = %q, want %q", got, want)
	}
	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, Username: "u", Password: "p", Database: "media", Charset: "utf8mb4"}
	if got := my.GetDSN(); got == "" || got == pg.GetDSN() {
		t.Fatalf("mysql dsn = %q", got)
	}
}
