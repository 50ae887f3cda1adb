package temporalx

import (
	"strings"
	"time"
)

// Config is empty-address safe: Enabled reports false and the app falls back
// to the in-process worker pool.
type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace  bool `yaml:"auto_register_namespace"`
	NamespaceRetentionDays int  `yaml:"namespace_retention_days" validate:"gte=0,lte=365"`

	DialTimeout    time.Duration `yaml:"dial_timeout"`
	DialMaxWait    time.Duration `yaml:"dial_max_wait"`
	DialBackoff    time.Duration `yaml:"dial_backoff"`
	DialBackoffMax time.Duration `yaml:"dial_backoff_max"`

	WorkerConcurrency int `yaml:"worker_concurrency" validate:"gte=0,lte=256"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(c.Namespace, "obe")
	c.TaskQueue = stringsOr(c.TaskQueue, "obe")
	if c.NamespaceRetentionDays < 1 {
		c.NamespaceRetentionDays = 7
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	} else if c.DialMaxWait == 0 {
		c.DialMaxWait = 60 * time.Second
	}
	if c.DialBackoff <= 0 {
		c.DialBackoff = 250 * time.Millisecond
	}
	if c.DialBackoffMax <= 0 {
		c.DialBackoffMax = 5 * time.Second
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 4
	}
	return c
}

func (c Config) usesTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
