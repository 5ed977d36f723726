package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingConfig tunes the budget computations that are not fixed business rules.
type PricingConfig struct {
	DefaultMargins   []float64 `mapstructure:"defaultMargins"`
	FallbackLeadDays int       `mapstructure:"fallbackLeadDays"`
}

const (
	defaultFallbackLeadDays = 42
	maxFallbackLeadDays     = 3650
	pricingTierCount        = 3
)

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		DefaultMargins:   []float64{10, 15, 20},
		FallbackLeadDays: defaultFallbackLeadDays,
	}
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingConfigHolder returns a holder that never reloads.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(withPricingDefaults(cfg))
	return holder
}

func NewPricingConfigHolder(appCfg Config, log *zap.Logger) (*PricingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v := viper.New()
	if appCfg.PricingConfigPath != "" {
		v.SetConfigFile(appCfg.PricingConfigPath)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/costbook")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COSTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read pricing config: %w", err)
		}
		loaded = false
	}

	cfg, err := decodePricingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	if !loaded {
		log.Info("pricing config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricingConfig(v)
		if err != nil {
			log.Warn("pricing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	if h == nil {
		return DefaultPricingConfig()
	}
	cfg, ok := h.current.Load().(PricingConfig)
	if !ok {
		return DefaultPricingConfig()
	}
	return cfg
}

func decodePricingConfig(v *viper.Viper) (PricingConfig, error) {
	var cfg PricingConfig
	if v.IsSet("pricing") {
		if err := v.UnmarshalKey("pricing", &cfg); err != nil {
			return PricingConfig{}, fmt.Errorf("decode pricing config: %w", err)
		}
	}
	cfg = withPricingDefaults(cfg)
	if err := validatePricingConfig(cfg); err != nil {
		return PricingConfig{}, err
	}
	return cfg, nil
}

func withPricingDefaults(cfg PricingConfig) PricingConfig {
	defaults := DefaultPricingConfig()
	if len(cfg.DefaultMargins) == 0 {
		cfg.DefaultMargins = defaults.DefaultMargins
	}
	if cfg.FallbackLeadDays == 0 {
		cfg.FallbackLeadDays = defaults.FallbackLeadDays
	}
	return cfg
}

func validatePricingConfig(cfg PricingConfig) error {
	if len(cfg.DefaultMargins) != pricingTierCount {
		return fmt.Errorf("pricing.defaultMargins must have exactly %d entries", pricingTierCount)
	}
	for _, m := range cfg.DefaultMargins {
		if m < 0 {
			return errors.New("pricing.defaultMargins cannot be negative")
		}
	}
	if cfg.FallbackLeadDays < 0 {
		return errors.New("pricing.fallbackLeadDays cannot be negative")
	}
	if cfg.FallbackLeadDays > maxFallbackLeadDays {
		return fmt.Errorf("pricing.fallbackLeadDays cannot exceed %d", maxFallbackLeadDays)
	}
	return nil
}
