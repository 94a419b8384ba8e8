package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Alijeyrad/medcenter_backend/pkg/constants"
	"github.com/spf13/viper"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	viper.SetConfigName(constants.ConfigName)
	viper.SetConfigType(constants.ConfigFormat)
	viper.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. MEDCENTER_DATABASE_HOST overrides database.host
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read the config file (optional in Docker environments)
	if err := viper.ReadInConfig(); err != nil {
		// If config file not found but we have env vars, continue with defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Only fail if it's not a "file not found" error
			if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
				return nil, fmt.Errorf("error reading config file: %v", err)
			}
		}
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.cookie.path", "/")
	viper.SetDefault("server.rate_limit.requests_per_minute", 120)
	viper.SetDefault("authentication.session_ttl_minutes", 60*24*7)
	viper.SetDefault("authentication.max_failed_logins", 5)
	viper.SetDefault("authentication.lockout_minutes", 15)
	viper.SetDefault("authentication.default_password_length", 12)
	viper.SetDefault("authorization.casbin_model_path", "config/casbin_model.conf")
	viper.SetDefault("authorization.superadmin_bypass", true)
	viper.SetDefault("authorization.enable_audit", true)
	viper.SetDefault("authorization.policy_sync_enabled", true)
	viper.SetDefault("authorization.health_check_enabled", true)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output.stdout", true)
	viper.SetDefault("billing.currency", "IRR")
	viper.SetDefault("rules.cache_ttl_seconds", 300)
	viper.SetDefault("phone.default_region", "IR")
	viper.SetDefault("s3.presign_ttl_sec", 900)
}
