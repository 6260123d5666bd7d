package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vikasavnish/curlrun/pkg/decoder"
)

// Config holds the resolved settings for a run.
type Config struct {
	LogLevel     string
	LogFormat    string
	DisplayLimit int
	Timeout      time.Duration
	Concurrency  int
	Curl         string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("display_limit", decoder.DefaultDisplayLimit)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("concurrency", 4)
	v.SetDefault("curl", "")
}

// bindFlags maps persistent flags onto config keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"log.level":     "log-level",
		"log.format":    "log-format",
		"display_limit": "display-limit",
		"timeout":       "timeout",
		"concurrency":   "concurrency",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// loadConfig reads the optional config file and environment into v.
// An explicit file must exist; the default ./curlrun.yaml may be absent.
func loadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	v.SetEnvPrefix("CURLRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("curlrun")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:     v.GetString("log.level"),
		LogFormat:    v.GetString("log.format"),
		DisplayLimit: v.GetInt("display_limit"),
		Timeout:      v.GetDuration("timeout"),
		Concurrency:  v.GetInt("concurrency"),
		Curl:         v.GetString("curl"),
	}
	if cfg.DisplayLimit <= 0 {
		return nil, fmt.Errorf("display_limit must be positive, got %d", cfg.DisplayLimit)
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	return cfg, nil
}
