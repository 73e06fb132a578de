package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Script              string
	Out                 string
	PgDSN               string
	Checkpoint          string
	MinLockedShares     uint64
	FeeBps              uint64
	FlashFeeBps         uint64
	MaxFlashFractionBps uint64
	LogLevel            string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("out", "./data/pool_events.jsonl")
	v.SetDefault("min-locked-shares", uint64(1000))
	v.SetDefault("fee-bps", uint64(30))
	v.SetDefault("flash-fee-bps", uint64(5))
	v.SetDefault("max-flash-fraction-bps", uint64(1000))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Script:              v.GetString("script"),
		Out:                 v.GetString("out"),
		PgDSN:               v.GetString("pg-dsn"),
		Checkpoint:          v.GetString("checkpoint"),
		MinLockedShares:     v.GetUint64("min-locked-shares"),
		FeeBps:              v.GetUint64("fee-bps"),
		FlashFeeBps:         v.GetUint64("flash-fee-bps"),
		MaxFlashFractionBps: v.GetUint64("max-flash-fraction-bps"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}
