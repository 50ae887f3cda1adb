package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/obe-backend/internal/clients/redis"
	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/jobs/worker"
	"github.com/yungbote/obe-backend/internal/observability"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
	"github.com/yungbote/obe-backend/internal/temporalx"
	"github.com/yungbote/obe-backend/internal/utils"
)

// ConfigFileEnv names an optional YAML file laid under the environment.
// Precedence is environment, then file, then built-in defaults.
const ConfigFileEnv = "OBE_CONFIG_FILE"

type RecalcConfig struct {
	Mode        string        `yaml:"mode" validate:"oneof=sync async"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	Parallelism int           `yaml:"parallelism" validate:"gte=1,lte=64"`
}

type Config struct {
	LogMode         string        `yaml:"log_mode"`
	HTTPAddr        string        `yaml:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	QueueSample     time.Duration `yaml:"queue_sample_interval"`

	DB       db.Config                   `yaml:"db"`
	Redis    redis.Config                `yaml:"redis"`
	Temporal temporalx.Config            `yaml:"temporal"`
	Worker   worker.Config               `yaml:"worker"`
	Recalc   RecalcConfig                `yaml:"recalc"`
	Tracing  observability.TracingConfig `yaml:"tracing"`
}

func defaultConfig() Config {
	return Config{
		LogMode:         "development",
		HTTPAddr:        ":8080",
		ShutdownTimeout: 15 * time.Second,
		MetricsEnabled:  true,
		QueueSample:     15 * time.Second,
		DB: db.Config{
			Driver: db.DriverPostgres,
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			Name:   "obe",
		},
		Redis: redis.Config{Channel: "obe.jobs"},
		Recalc: RecalcConfig{
			Mode:        services.RecalcModeAsync,
			Timeout:     2 * time.Minute,
			Parallelism: 8,
		},
		Tracing: observability.TracingConfig{
			ServiceName: "obe-backend",
			SampleRatio: 1,
		},
	}
}

// LoadConfig never logs secrets; the logger redacts password-like keys and
// env values go out at debug level only.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg, log)

	cfg.Recalc.Mode = strings.ToLower(strings.TrimSpace(cfg.Recalc.Mode))
	cfg.Temporal = cfg.Temporal.WithDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, log *logger.Logger) {
	cfg.LogMode = utils.GetEnv("LOG_MODE", cfg.LogMode, log)
	cfg.HTTPAddr = httpAddr(cfg.HTTPAddr, log)
	cfg.ShutdownTimeout = utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, log)
	cfg.CORSOrigins = splitList(utils.GetEnv("CORS_ORIGINS", strings.Join(cfg.CORSOrigins, ","), log))
	cfg.MetricsEnabled = utils.GetEnvAsBool("METRICS_ENABLED", cfg.MetricsEnabled, log)
	cfg.QueueSample = utils.GetEnvAsDuration("METRICS_QUEUE_SAMPLE_INTERVAL", cfg.QueueSample, log)

	// Database
	cfg.DB.Driver = utils.GetEnv("DB_DRIVER", cfg.DB.Driver, log)
	cfg.DB.Host = utils.GetEnv("POSTGRES_HOST", cfg.DB.Host, log)
	cfg.DB.Port = utils.GetEnv("POSTGRES_PORT", cfg.DB.Port, log)
	cfg.DB.User = utils.GetEnv("POSTGRES_USER", cfg.DB.User, log)
	cfg.DB.Password = utils.GetEnv("POSTGRES_PASSWORD", cfg.DB.Password, nil)
	cfg.DB.Name = utils.GetEnv("POSTGRES_NAME", cfg.DB.Name, log)
	cfg.DB.SQLitePath = utils.GetEnv("SQLITE_PATH", cfg.DB.SQLitePath, log)
	cfg.DB.MaxConns = utils.GetEnvAsInt("DB_MAX_CONNS", cfg.DB.MaxConns, log)

	// Redis
	cfg.Redis.Addr = utils.GetEnv("REDIS_ADDR", cfg.Redis.Addr, log)
	cfg.Redis.Password = utils.GetEnv("REDIS_PASSWORD", cfg.Redis.Password, nil)
	cfg.Redis.DB = utils.GetEnvAsInt("REDIS_DB", cfg.Redis.DB, log)
	cfg.Redis.Channel = utils.GetEnv("REDIS_CHANNEL", cfg.Redis.Channel, log)

	// Temporal
	t := &cfg.Temporal
	t.Address = utils.GetEnv("TEMPORAL_ADDRESS", t.Address, log)
	t.Namespace = utils.GetEnv("TEMPORAL_NAMESPACE", t.Namespace, log)
	t.TaskQueue = utils.GetEnv("TEMPORAL_TASK_QUEUE", t.TaskQueue, log)
	t.ClientCertPath = utils.GetEnv("TEMPORAL_CLIENT_CERT", t.ClientCertPath, log)
	t.ClientKeyPath = utils.GetEnv("TEMPORAL_CLIENT_KEY", t.ClientKeyPath, log)
	t.ClientCAPath = utils.GetEnv("TEMPORAL_CLIENT_CA", t.ClientCAPath, log)
	t.AutoRegisterNamespace = utils.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", t.AutoRegisterNamespace, log)
	t.NamespaceRetentionDays = utils.GetEnvAsInt("TEMPORAL_NAMESPACE_RETENTION_DAYS", t.NamespaceRetentionDays, log)
	t.WorkerConcurrency = utils.GetEnvAsInt("TEMPORAL_WORKER_CONCURRENCY", t.WorkerConcurrency, log)

	// Local worker pool
	w := &cfg.Worker
	w.Concurrency = utils.GetEnvAsInt("WORKER_CONCURRENCY", w.Concurrency, log)
	w.PollInterval = utils.GetEnvAsDuration("WORKER_POLL_INTERVAL", w.PollInterval, log)
	w.MaxAttempts = utils.GetEnvAsInt("JOB_MAX_ATTEMPTS", w.MaxAttempts, log)
	w.RetryDelay = utils.GetEnvAsDuration("JOB_RETRY_DELAY", w.RetryDelay, log)
	w.StaleRunning = utils.GetEnvAsDuration("JOB_STALE_RUNNING", w.StaleRunning, log)
	w.HeartbeatEvery = utils.GetEnvAsDuration("JOB_HEARTBEAT_EVERY", w.HeartbeatEvery, log)

	// Cascade
	cfg.Recalc.Mode = utils.GetEnv("RECALC_MODE", cfg.Recalc.Mode, log)
	cfg.Recalc.Timeout = utils.GetEnvAsDuration("CASCADE_TIMEOUT", cfg.Recalc.Timeout, log)
	cfg.Recalc.Parallelism = utils.GetEnvAsInt("CASCADE_PARALLELISM", cfg.Recalc.Parallelism, log)

	// Tracing
	tr := &cfg.Tracing
	tr.Enabled = utils.GetEnvAsBool("OTEL_ENABLED", tr.Enabled, log)
	tr.ServiceName = utils.GetEnv("OTEL_SERVICE_NAME", tr.ServiceName, log)
	tr.Environment = utils.GetEnv("OTEL_ENVIRONMENT", tr.Environment, log)
	tr.Version = utils.GetEnv("OTEL_SERVICE_VERSION", tr.Version, log)
	tr.Endpoint = utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", tr.Endpoint, log)
	tr.Insecure = utils.GetEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", tr.Insecure, log)
	if raw := utils.GetEnv("OTEL_EXPORTER_OTLP_HEADERS", "", nil); raw != "" {
		tr.Headers = observability.ParseHeaders(raw)
	}
	tr.SampleRatio = utils.GetEnvAsFloat("OTEL_SAMPLE_RATIO", tr.SampleRatio, log)
}

// httpAddr accepts HTTP_ADDR as given or PORT as a bare port number.
func httpAddr(current string, log *logger.Logger) string {
	if addr := utils.GetEnv("HTTP_ADDR", "", log); addr != "" {
		return addr
	}
	if port := utils.GetEnv("PORT", "", log); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return current
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
