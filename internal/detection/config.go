package detection

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jask/wastewatch/internal/database/repository"
)

// Config holds detector thresholds. Zero values are replaced by DefaultConfig.
type Config struct {
	GroupAcrossAccounts bool `mapstructure:"group_across_accounts"`
	RunAfterImport      bool `mapstructure:"run_after_import"`

	Zombie        ZombieConfig        `mapstructure:"zombie"`
	AutoCancel    AutoCancelConfig    `mapstructure:"auto_cancel"`
	PriceIncrease PriceIncreaseConfig `mapstructure:"price_increase"`
	Duplicate     DuplicateConfig     `mapstructure:"duplicate"`
	Anomaly       AnomalyConfig       `mapstructure:"anomaly"`
	Tip           TipConfig           `mapstructure:"tip"`
}

type ZombieConfig struct {
	WeeklyDays  int `mapstructure:"weekly_days"`
	MonthlyDays int `mapstructure:"monthly_days"`
	YearlyDays  int `mapstructure:"yearly_days"`
}

type AutoCancelConfig struct {
	Multiplier int `mapstructure:"multiplier"`
}

type PriceIncreaseConfig struct {
	MinDeltaCents int64   `mapstructure:"min_delta_cents"`
	MinRatio      float64 `mapstructure:"min_ratio"`
}

// DuplicateConfig restricts duplicate detection to the listed categories; empty means all.
type DuplicateConfig struct {
	Categories []string `mapstructure:"categories"`
}

type AnomalyConfig struct {
	BaselineMonths    int     `mapstructure:"baseline_months"`
	MinBaselineMonths int     `mapstructure:"min_baseline_months"`
	ThresholdPct      float64 `mapstructure:"threshold_pct"`
	MinDeltaCents     int64   `mapstructure:"min_delta_cents"`
	DecreaseAfterDay  int     `mapstructure:"decrease_after_day"`
}

type TipConfig struct {
	Ceiling float64 `mapstructure:"ceiling"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Zombie:        ZombieConfig{WeeklyDays: 14, MonthlyDays: 45, YearlyDays: 400},
		AutoCancel:    AutoCancelConfig{Multiplier: 2},
		PriceIncrease: PriceIncreaseConfig{MinDeltaCents: 50, MinRatio: 0.02},
		Anomaly: AnomalyConfig{
			BaselineMonths: 3, MinBaselineMonths: 2, ThresholdPct: 40,
			MinDeltaCents: 5000, DecreaseAfterDay: 25,
		},
		Tip: TipConfig{Ceiling: 0.25},
	}
}

// withDefaults fills unset thresholds from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Zombie.WeeklyDays <= 0 {
		c.Zombie.WeeklyDays = d.Zombie.WeeklyDays
	}
	if c.Zombie.MonthlyDays <= 0 {
		c.Zombie.MonthlyDays = d.Zombie.MonthlyDays
	}
	if c.Zombie.YearlyDays <= 0 {
		c.Zombie.YearlyDays = d.Zombie.YearlyDays
	}
	if c.AutoCancel.Multiplier <= 0 {
		c.AutoCancel.Multiplier = d.AutoCancel.Multiplier
	}
	if c.PriceIncrease.MinDeltaCents <= 0 {
		c.PriceIncrease.MinDeltaCents = d.PriceIncrease.MinDeltaCents
	}
	if c.PriceIncrease.MinRatio <= 0 {
		c.PriceIncrease.MinRatio = d.PriceIncrease.MinRatio
	}
	if c.Anomaly.BaselineMonths <= 0 {
		c.Anomaly.BaselineMonths = d.Anomaly.BaselineMonths
	}
	if c.Anomaly.MinBaselineMonths <= 0 {
		c.Anomaly.MinBaselineMonths = d.Anomaly.MinBaselineMonths
	}
	if c.Anomaly.ThresholdPct <= 0 {
		c.Anomaly.ThresholdPct = d.Anomaly.ThresholdPct
	}
	if c.Anomaly.MinDeltaCents <= 0 {
		c.Anomaly.MinDeltaCents = d.Anomaly.MinDeltaCents
	}
	if c.Anomaly.DecreaseAfterDay <= 0 {
		c.Anomaly.DecreaseAfterDay = d.Anomaly.DecreaseAfterDay
	}
	if c.Tip.Ceiling <= 0 {
		c.Tip.Ceiling = d.Tip.Ceiling
	}
	return c
}

// Validate rejects thresholds that would make detectors contradict each other.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.AutoCancel.Multiplier < 2 {
		return fmt.Errorf("auto_cancel.multiplier must be at least 2, got %d", c.AutoCancel.Multiplier)
	}
	if c.Anomaly.MinBaselineMonths > c.Anomaly.BaselineMonths {
		return fmt.Errorf("anomaly.min_baseline_months (%d) exceeds baseline_months (%d)",
			c.Anomaly.MinBaselineMonths, c.Anomaly.BaselineMonths)
	}
	if c.Anomaly.DecreaseAfterDay > 31 {
		return fmt.Errorf("anomaly.decrease_after_day must be within a month, got %d", c.Anomaly.DecreaseAfterDay)
	}
	return nil
}

// ZombieThreshold is the silence, in days, after which a series counts as lapsed.
func (c Config) ZombieThreshold(f repository.Frequency) int {
	switch f {
	case repository.FrequencyWeekly:
		return c.Zombie.WeeklyDays
	case repository.FrequencyMonthly:
		return c.Zombie.MonthlyDays
	case repository.FrequencyYearly:
		return c.Zombie.YearlyDays
	}
	return 0
}

// AutoCancelThreshold is the silence after which a series is treated as cancelled.
func (c Config) AutoCancelThreshold(f repository.Frequency) int {
	return c.AutoCancel.Multiplier * c.ZombieThreshold(f)
}

func (c Config) priceMinRatio() decimal.Decimal { return decimal.NewFromFloat(c.PriceIncrease.MinRatio) }
func (c Config) anomalyPct() decimal.Decimal    { return decimal.NewFromFloat(c.Anomaly.ThresholdPct) }
func (c Config) tipCeiling() decimal.Decimal    { return decimal.NewFromFloat(c.Tip.Ceiling) }
