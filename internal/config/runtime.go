package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RuntimeConfig holds the knobs operators may change without a restart:
// conversation keyword tables, delivery worker tuning, and retention.
type RuntimeConfig struct {
	Flow      FlowConfig      `mapstructure:"flow"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Retention RetentionConfig `mapstructure:"retention"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
}

type FlowConfig struct {
	HandoffKeywords  []string `mapstructure:"handoffKeywords"`
	ResetKeywords    []string `mapstructure:"resetKeywords"`
	BookingKeywords  []string `mapstructure:"bookingKeywords"`
	TodayKeywords    []string `mapstructure:"todayKeywords"`
	TomorrowKeywords []string `mapstructure:"tomorrowKeywords"`
	YesKeywords      []string `mapstructure:"yesKeywords"`
	NoKeywords       []string `mapstructure:"noKeywords"`
	MaxAttempts      int      `mapstructure:"maxAttempts"`
	CandidateDays    int      `mapstructure:"candidateDays"`
	SlotStartHour    int      `mapstructure:"slotStartHour"`
	SlotEndHour      int      `mapstructure:"slotEndHour"`
}

type QueueConfig struct {
	MaxAttempts  int           `mapstructure:"maxAttempts"`
	BackoffBase  time.Duration `mapstructure:"backoffBase"`
	BackoffMax   time.Duration `mapstructure:"backoffMax"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	BatchSize    int           `mapstructure:"batchSize"`
	Concurrency  int           `mapstructure:"concurrency"`
	ClaimLease   time.Duration `mapstructure:"claimLease"`
}

type RetentionConfig struct {
	Success       time.Duration `mapstructure:"success"`
	Failure       time.Duration `mapstructure:"failure"`
	CleanInterval time.Duration `mapstructure:"cleanInterval"`
}

type ReminderConfig struct {
	Horizon      time.Duration `mapstructure:"horizon"`
	ScanInterval time.Duration `mapstructure:"scanInterval"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Flow: FlowConfig{
			HandoffKeywords:  []string{"atendente", "humano", "ajuda"},
			ResetKeywords:    []string{"cancelar", "menu", "voltar"},
			BookingKeywords:  []string{"agendar", "marcar", "horario", "agenda"},
			TodayKeywords:    []string{"hoje"},
			TomorrowKeywords: []string{"amanha"},
			YesKeywords:      []string{"sim", "s", "confirmar", "confirmo", "ok", "pode ser"},
			NoKeywords:       []string{"nao", "n"},
			MaxAttempts:      3,
			CandidateDays:    7,
			SlotStartHour:    9,
			SlotEndHour:      18,
		},
		Queue: QueueConfig{
			MaxAttempts:  5,
			BackoffBase:  30 * time.Second,
			BackoffMax:   time.Hour,
			PollInterval: 2 * time.Second,
			BatchSize:    10,
			Concurrency:  4,
			ClaimLease:   5 * time.Minute,
		},
		Retention: RetentionConfig{
			Success:       time.Hour,
			Failure:       7 * 24 * time.Hour,
			CleanInterval: 10 * time.Minute,
		},
		Reminder: ReminderConfig{
			Horizon:      24 * time.Hour,
			ScanInterval: 5 * time.Minute,
		},
	}
}

// RuntimeConfigHolder exposes the current runtime config snapshot and
// refreshes it when the config file changes on disk.
type RuntimeConfigHolder struct {
	current atomic.Value // holds RuntimeConfig
}

func NewRuntimeConfigHolder() (*RuntimeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("zapflow")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/zapflow/config") // Volume-mounted config
	v.AddConfigPath("/etc/zapflow")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("ZAPFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRuntimeConfig()
	setRuntimeDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RuntimeConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RuntimeConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[runtime-config] reload failed: %v", err)
			return
		}
		if err := validateRuntimeConfig(updated); err != nil {
			log.Printf("[runtime-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[runtime-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RuntimeConfigHolder) Get() RuntimeConfig {
	return h.current.Load().(RuntimeConfig)
}

func setRuntimeDefaults(v *viper.Viper, d RuntimeConfig) {
	v.SetDefault("flow.handoffKeywords", d.Flow.HandoffKeywords)
	v.SetDefault("flow.resetKeywords", d.Flow.ResetKeywords)
	v.SetDefault("flow.bookingKeywords", d.Flow.BookingKeywords)
	v.SetDefault("flow.todayKeywords", d.Flow.TodayKeywords)
	v.SetDefault("flow.tomorrowKeywords", d.Flow.TomorrowKeywords)
	v.SetDefault("flow.yesKeywords", d.Flow.YesKeywords)
	v.SetDefault("flow.noKeywords", d.Flow.NoKeywords)
	v.SetDefault("flow.maxAttempts", d.Flow.MaxAttempts)
	v.SetDefault("flow.candidateDays", d.Flow.CandidateDays)
	v.SetDefault("flow.slotStartHour", d.Flow.SlotStartHour)
	v.SetDefault("flow.slotEndHour", d.Flow.SlotEndHour)
	v.SetDefault("queue.maxAttempts", d.Queue.MaxAttempts)
	v.SetDefault("queue.backoffBase", d.Queue.BackoffBase)
	v.SetDefault("queue.backoffMax", d.Queue.BackoffMax)
	v.SetDefault("queue.pollInterval", d.Queue.PollInterval)
	v.SetDefault("queue.batchSize", d.Queue.BatchSize)
	v.SetDefault("queue.concurrency", d.Queue.Concurrency)
	v.SetDefault("queue.claimLease", d.Queue.ClaimLease)
	v.SetDefault("retention.success", d.Retention.Success)
	v.SetDefault("retention.failure", d.Retention.Failure)
	v.SetDefault("retention.cleanInterval", d.Retention.CleanInterval)
	v.SetDefault("reminder.horizon", d.Reminder.Horizon)
	v.SetDefault("reminder.scanInterval", d.Reminder.ScanInterval)
}

func validateRuntimeConfig(cfg RuntimeConfig) error {
	if len(cfg.Flow.HandoffKeywords) == 0 {
		return errors.New("flow.handoffKeywords cannot be empty")
	}
	if len(cfg.Flow.ResetKeywords) == 0 {
		return errors.New("flow.resetKeywords cannot be empty")
	}
	if cfg.Flow.MaxAttempts < 1 {
		return errors.New("flow.maxAttempts must be at least 1")
	}
	if cfg.Flow.CandidateDays < 1 {
		return errors.New("flow.candidateDays must be at least 1")
	}
	if cfg.Flow.SlotStartHour < 0 || cfg.Flow.SlotEndHour > 23 || cfg.Flow.SlotStartHour >= cfg.Flow.SlotEndHour {
		return errors.New("flow slot hours out of range")
	}
	if cfg.Queue.MaxAttempts < 1 {
		return errors.New("queue.maxAttempts must be at least 1")
	}
	if cfg.Queue.BackoffBase <= 0 {
		return errors.New("queue.backoffBase must be positive")
	}
	if cfg.Queue.Concurrency < 1 {
		return errors.New("queue.concurrency must be at least 1")
	}
	if cfg.Queue.ClaimLease <= 0 {
		return errors.New("queue.claimLease must be positive")
	}
	return nil
}
