package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jask/wastewatch/internal/detection"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig   `mapstructure:"database"`
	Log       LogConfig        `mapstructure:"log"`
	Server    ServerConfig     `mapstructure:"server"`
	Cron      CronConfig       `mapstructure:"cron"`
	Retention RetentionConfig  `mapstructure:"retention"`
	Detection detection.Config `mapstructure:"detection"`
	Receipts  ReceiptConfig    `mapstructure:"receipts"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

// CronConfig schedules background work when serving. Specs include a seconds field.
type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Detection string `mapstructure:"detection"`
	Prune     string `mapstructure:"prune"`
}

// RetentionConfig controls pruning of closed alerts.
type RetentionConfig struct {
	AlertDays int `mapstructure:"alert_days"`
}

// ReceiptConfig tunes the receipt to transaction matcher.
type ReceiptConfig struct {
	DateWindowDays        int     `mapstructure:"date_window_days"`
	MinSimilarity         float64 `mapstructure:"min_similarity"`
	AutoConfirmSimilarity float64 `mapstructure:"auto_confirm_similarity"`
}

// Path returns the config file location: $WASTEWATCH_CONFIG or ~/.config/wastewatch/config.toml.
func Path() string {
	if p := os.Getenv("WASTEWATCH_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "wastewatch", "config.toml")
}

// SetDefaults registers every key so env overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "wastewatch", "wastewatch.db"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.detection", "0 0 6 * * *")
	v.SetDefault("cron.prune", "0 30 3 * * 0")
	v.SetDefault("retention.alert_days", 180)
	v.SetDefault("receipts.date_window_days", 3)
	v.SetDefault("receipts.min_similarity", 0.6)
	v.SetDefault("receipts.auto_confirm_similarity", 0.9)

	d := detection.DefaultConfig()
	v.SetDefault("detection.group_across_accounts", d.GroupAcrossAccounts)
	v.SetDefault("detection.run_after_import", true)
	v.SetDefault("detection.zombie.weekly_days", d.Zombie.WeeklyDays)
	v.SetDefault("detection.zombie.monthly_days", d.Zombie.MonthlyDays)
	v.SetDefault("detection.zombie.yearly_days", d.Zombie.YearlyDays)
	v.SetDefault("detection.auto_cancel.multiplier", d.AutoCancel.Multiplier)
	v.SetDefault("detection.price_increase.min_delta_cents", d.PriceIncrease.MinDeltaCents)
	v.SetDefault("detection.price_increase.min_ratio", d.PriceIncrease.MinRatio)
	v.SetDefault("detection.duplicate.categories", []string{})
	v.SetDefault("detection.anomaly.baseline_months", d.Anomaly.BaselineMonths)
	v.SetDefault("detection.anomaly.min_baseline_months", d.Anomaly.MinBaselineMonths)
	v.SetDefault("detection.anomaly.threshold_pct", d.Anomaly.ThresholdPct)
	v.SetDefault("detection.anomaly.min_delta_cents", d.Anomaly.MinDeltaCents)
	v.SetDefault("detection.anomaly.decrease_after_day", d.Anomaly.DecreaseAfterDay)
	v.SetDefault("detection.tip.ceiling", d.Tip.Ceiling)
}

// Load reads configuration from file and env. Env var overrides use prefix WASTEWATCH_.
func Load() (Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("WASTEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Retention.AlertDays < 0 {
		return fmt.Errorf("retention.alert_days must not be negative, got %d", c.Retention.AlertDays)
	}
	if c.Receipts.MinSimilarity > c.Receipts.AutoConfirmSimilarity {
		return fmt.Errorf("receipts.min_similarity (%.2f) exceeds auto_confirm_similarity (%.2f)",
			c.Receipts.MinSimilarity, c.Receipts.AutoConfirmSimilarity)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	return nil
}
