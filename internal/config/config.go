package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
	// 连接池参数。镜像库写入不重，默认值偏保守
	MaxOpenConns  int `mapstructure:"max_open_conns"`
	MaxIdleConns  int `mapstructure:"max_idle_conns"`
	BusyTimeoutMs int `mapstructure:"busy_timeout_ms"`
}

// Auth0Config 身份提供方配置。Mock 为 true 时使用内存版提供方，便于本地调试。
type Auth0Config struct {
	Domain       string `mapstructure:"domain"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
	Audience     string `mapstructure:"audience"`
	Mock         bool   `mapstructure:"mock"`
}

type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	Issuer            string `mapstructure:"issuer"`
	AccessExpireMin   int    `mapstructure:"access_expire_minutes"`
	RefreshExpireDays int    `mapstructure:"refresh_expire_days"`
}

type AppSubConfig struct {
	PageSize              int `mapstructure:"page_size"`
	VerifyCooldownSeconds int `mapstructure:"verify_cooldown_seconds"`
	StaleUnverifiedSecs   int `mapstructure:"stale_unverified_seconds"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth0    Auth0Config    `mapstructure:"auth0"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	App      AppSubConfig   `mapstructure:"app"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. WC_SERVER_PORT=9000
		v.SetEnvPrefix("WC") // wisdom campus
		v.AutomaticEnv()

		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("read config: %w", err)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		applyDefaults(&c)
		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

func applyDefaults(c *Config) {
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.BusyTimeoutMs <= 0 {
		c.Database.BusyTimeoutMs = 5000
	}
	if c.JWT.AccessExpireMin <= 0 {
		c.JWT.AccessExpireMin = 60
	}
	if c.JWT.RefreshExpireDays <= 0 {
		c.JWT.RefreshExpireDays = 30
	}
	if c.App.PageSize <= 0 {
		c.App.PageSize = 20
	}
	if c.App.VerifyCooldownSeconds <= 0 {
		c.App.VerifyCooldownSeconds = 60
	}
	if c.App.StaleUnverifiedSecs <= 0 {
		c.App.StaleUnverifiedSecs = 60
	}
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
