package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the billing policy read from billing.yml.
type BillingConfig struct {
	TuitionItemCode string      `mapstructure:"tuition_item_code"`
	Exemptions      []Exemption `mapstructure:"exemptions"`
}

// Exemption lists catalog item codes that are not billed in a calendar month.
// An empty Items list exempts the tuition item only.
type Exemption struct {
	Month int      `mapstructure:"month"`
	Items []string `mapstructure:"items"`
}

const DefaultTuitionItemCode = "tuition"

// DefaultBillingConfig exempts tuition during the March and August breaks.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		TuitionItemCode: DefaultTuitionItemCode,
		Exemptions: []Exemption{
			{Month: int(time.March)},
			{Month: int(time.August)},
		},
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed policy without watching a file.
func NewStaticBillingConfigHolder(cfg BillingConfig) (*BillingConfigHolder, error) {
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))
	return holder, nil
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing.config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	if dir := strings.TrimSpace(os.Getenv("BILLING_CONFIG_DIR")); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("/etc/tuitionledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TUITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
		defaults := DefaultBillingConfig()
		v.SetDefault("billing.tuition_item_code", defaults.TuitionItemCode)
		v.SetDefault("billing.exemptions", defaults.Exemptions)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(normalizeBillingConfig(cfg))

	if !fileLoaded {
		log.Info("billing config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Warn("billing config reload failed", zap.Error(err))
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Warn("invalid billing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(normalizeBillingConfig(updated))
		log.Info("billing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

// ExemptItemCodes returns the catalog codes that must not be billed for p.
func (h *BillingConfigHolder) ExemptItemCodes(p period.Period) map[string]struct{} {
	out := map[string]struct{}{}
	for _, ex := range h.Get().Exemptions {
		if time.Month(ex.Month) != p.Month {
			continue
		}
		for _, code := range ex.Items {
			out[code] = struct{}{}
		}
	}
	return out
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.TrimSpace(cfg.TuitionItemCode) == "" {
		return errors.New("billing.tuition_item_code cannot be empty")
	}
	for _, ex := range cfg.Exemptions {
		if ex.Month < 1 || ex.Month > 12 {
			return fmt.Errorf("billing.exemptions: invalid month %d", ex.Month)
		}
	}
	return nil
}

func normalizeBillingConfig(cfg BillingConfig) BillingConfig {
	out := BillingConfig{
		TuitionItemCode: strings.ToLower(strings.TrimSpace(cfg.TuitionItemCode)),
		Exemptions:      make([]Exemption, 0, len(cfg.Exemptions)),
	}
	for _, ex := range cfg.Exemptions {
		items := make([]string, 0, len(ex.Items))
		for _, code := range ex.Items {
			code = strings.ToLower(strings.TrimSpace(code))
			if code != "" {
				items = append(items, code)
			}
		}
		if len(items) == 0 {
			items = append(items, out.TuitionItemCode)
		}
		out.Exemptions = append(out.Exemptions, Exemption{Month: ex.Month, Items: items})
	}
	return out
}
