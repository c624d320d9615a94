// Package config provides configuration management for AvatarSync
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Animation AnimationConfig `mapstructure:"animation"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Idle      IdleConfig      `mapstructure:"idle"`
	Window    WindowConfig    `mapstructure:"window"`
}

// AnimationConfig configures the producer-side animation engine
type AnimationConfig struct {
	TargetFrameRate int     `mapstructure:"target_frame_rate"`
	Lookahead       int     `mapstructure:"lookahead"`
	QualityFloor    float64 `mapstructure:"quality_floor"`
}

// BridgeConfig configures the producer/consumer bridge
type BridgeConfig struct {
	UpdateThreshold float64       `mapstructure:"update_threshold"`
	MaxQueueDepth   int           `mapstructure:"max_queue_depth"`
	SyncTimeout     time.Duration `mapstructure:"sync_timeout"`
	EndpointURL     string        `mapstructure:"endpoint_url"` // empty = in-process loopback
}

// IdleConfig configures breathing and blinking
type IdleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Intensity   float64       `mapstructure:"intensity"`
	BlinkGapMin time.Duration `mapstructure:"blink_gap_min"`
	BlinkGapMax time.Duration `mapstructure:"blink_gap_max"`
}

// WindowConfig configures the render window
type WindowConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Mesh   string `mapstructure:"mesh"` // glTF path; empty = placeholder sphere
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Animation: AnimationConfig{
			TargetFrameRate: 60,
			Lookahead:       3,
			QualityFloor:    0.5,
		},
		Bridge: BridgeConfig{
			UpdateThreshold: 0.001,
			MaxQueueDepth:   10,
			SyncTimeout:     time.Second / 60,
		},
		Idle: IdleConfig{
			Enabled:     true,
			Intensity:   1.0,
			BlinkGapMin: 2 * time.Second,
			BlinkGapMax: 6 * time.Second,
		},
		Window: WindowConfig{
			Title:  "AvatarSync",
			Width:  800,
			Height: 800,
		},
	}
}

// FrameInterval returns the producer tick period for the configured rate.
func (c *Config) FrameInterval() time.Duration {
	rate := c.Animation.TargetFrameRate
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := Dir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("AVATARSYNC")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	configDir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("animation", cfg.Animation)
	viper.Set("bridge", cfg.Bridge)
	viper.Set("idle", cfg.Idle)
	viper.Set("window", cfg.Window)

	configPath := filepath.Join(configDir, "config.yaml")
	return viper.WriteConfigAs(configPath)
}

// Dir returns the configuration directory path
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".avatarsync"), nil
}

// Watch reloads the config file on change and calls onChange with the fresh
// settings. Frame rate, thresholds, queue depth and sync timeout adjust at
// runtime this way. Returns a stop function.
func Watch(log zerolog.Logger, onChange func(*Config)) (func(), error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", configDir, err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != "config.yaml" {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg := DefaultConfig()
				if err := viper.ReadInConfig(); err != nil {
					log.Warn().Err(err).Msg("config reload failed")
					continue
				}
				if err := viper.Unmarshal(cfg); err != nil {
					log.Warn().Err(err).Msg("config reload failed")
					continue
				}
				log.Info().Msg("config reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
