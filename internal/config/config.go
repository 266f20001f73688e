package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wwwzy/medfleet/internal/fleet"
	"github.com/wwwzy/medfleet/internal/logging"
	"github.com/wwwzy/medfleet/internal/retention"
	"github.com/wwwzy/medfleet/internal/storage"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// MetricsConfig 控制 GetByDevice 的默认条数与上限。
type MetricsConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

type Config struct {
	Log       logging.Config   `mapstructure:"log"`
	Storage   storage.Config   `mapstructure:"storage"`
	Server    ServerConfig     `mapstructure:"server"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Retention retention.Config `mapstructure:"retention"`
}

func Load(cfgFile string) (*Config, error) {
	// 1. 初始化 Viper
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.medfleet")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MEDFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal 只会解码 viper "知道"的 key（配置文件、默认值或显式 Bind），
	// 因此所有 key 都必须在 setDefaults 里登记，环境变量才能生效。
	setDefaults(v)

	// 2. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	// 3. 反序列化 (文件/环境变量 覆盖 默认值)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 4. 验证关键配置
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (or set MEDFLEET_JWT_SECRET env var)")
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return errors.New("storage.path is required unless storage.in_memory is set")
	}
	if c.Metrics.DefaultLimit <= 0 || c.Metrics.MaxLimit <= 0 {
		return errors.New("metrics.default_limit and metrics.max_limit must be positive")
	}
	if c.Metrics.MaxLimit > storage.MaxQueryLimit {
		return fmt.Errorf("metrics.max_limit (%d) exceeds the storage query cap (%d)", c.Metrics.MaxLimit, storage.MaxQueryLimit)
	}
	if c.Metrics.DefaultLimit > c.Metrics.MaxLimit {
		return fmt.Errorf("metrics.default_limit (%d) exceeds metrics.max_limit (%d)", c.Metrics.DefaultLimit, c.Metrics.MaxLimit)
	}
	if c.Retention.KeepDays < 0 || c.Retention.KeepLatest < 0 {
		return errors.New("retention.keep_days and retention.keep_latest must be >= 0")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// -------------------------------------------------------------------------
	// Log Defaults (日志默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	// -------------------------------------------------------------------------
	// Storage Defaults (存储默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.in_memory", d.Storage.InMemory)
	v.SetDefault("storage.enable_wal", d.Storage.EnableWAL)
	v.SetDefault("storage.busy_timeout", d.Storage.BusyTimeout)
	v.SetDefault("storage.max_open_conns", d.Storage.MaxOpenConns)
	v.SetDefault("storage.max_idle_conns", d.Storage.MaxIdleConns)
	v.SetDefault("storage.conn_max_lifetime", d.Storage.ConnMaxLifetime)

	// -------------------------------------------------------------------------
	// Server Defaults (HTTP 服务默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	// -------------------------------------------------------------------------
	// Auth Defaults (鉴权默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	_ = v.BindEnv("auth.jwt_secret", "MEDFLEET_AUTH_JWT_SECRET", "MEDFLEET_JWT_SECRET")

	// -------------------------------------------------------------------------
	// Metrics Defaults (采样查询默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("metrics.default_limit", d.Metrics.DefaultLimit)
	v.SetDefault("metrics.max_limit", d.Metrics.MaxLimit)

	// -------------------------------------------------------------------------
	// Retention Defaults (审计清理默认值)
	// -------------------------------------------------------------------------
	v.SetDefault("retention.enabled", d.Retention.Enabled)
	v.SetDefault("retention.interval", d.Retention.Interval)
	v.SetDefault("retention.workers", d.Retention.Workers)
	v.SetDefault("retention.keep_days", d.Retention.KeepDays)
	v.SetDefault("retention.keep_latest", d.Retention.KeepLatest)
	v.SetDefault("retention.batch_rows", d.Retention.BatchRows)
	v.SetDefault("retention.idle_sleep", d.Retention.IdleSleep)
}

func DefaultConfig() Config {
	return Config{
		Log: logging.Config{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Storage: storage.Config{
			Path:        "medfleet.db",
			EnableWAL:   true,
			BusyTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:   "medfleet",
			TokenTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			DefaultLimit: fleet.DefaultSampleLimit,
			MaxLimit:     fleet.MaxSampleLimit,
		},
		Retention: retention.DefaultConfig(),
	}
}
