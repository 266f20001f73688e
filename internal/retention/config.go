package retention

import (
	"time"
)

type ErrorHandler func(err error)

// Config 控制审计记录的清理策略。设备、采样与告警不会被清理。
type Config struct {
	// Enabled 控制清理任务是否启用。
	Enabled bool `mapstructure:"enabled"`

	// Interval 为清理周期；启动时会先执行一次。
	Interval time.Duration `mapstructure:"interval"`
	// Workers 为并发执行清理任务的 worker 数量。SQLite 下写操作会串行化，通常保持 1。
	Workers int `mapstructure:"workers"`

	// KeepDays 删除早于 N 天的审计记录；<=0 表示不按时间清理。
	KeepDays int `mapstructure:"keep_days"`
	// KeepLatest 只保留最新的 N 条审计记录；<=0 表示不按条数清理。
	KeepLatest int `mapstructure:"keep_latest"`

	// BatchRows 为单次删除的最大行数，避免长时间持有写锁。
	BatchRows int `mapstructure:"batch_rows"`
	// IdleSleep 为两批删除之间的停顿。
	IdleSleep time.Duration `mapstructure:"idle_sleep"`

	// OnError 为异步错误回调；默认丢弃。
	OnError ErrorHandler `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Interval:   time.Hour,
		Workers:    1,
		KeepDays:   90,
		KeepLatest: 0,
		BatchRows:  500,
		IdleSleep:  50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchRows <= 0 {
		c.BatchRows = 500
	}
	if c.IdleSleep < 0 {
		c.IdleSleep = 0
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}
