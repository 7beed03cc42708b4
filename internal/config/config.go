package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	APIVersion  string `mapstructure:"API_VERSION"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DataFile    string `mapstructure:"DATA_FILE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory underneath it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "4001")
	v.SetDefault("ENV", "development")
	v.SetDefault("API_VERSION", "v1.0.0-alpha")
	v.SetDefault("STORE_DRIVER", StoreDriverFile)
	v.SetDefault("DATA_FILE", "./patient-data.json")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("API_VERSION")
	v.BindEnv("STORE_DRIVER")
	v.BindEnv("DATA_FILE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the selected store driver has what it needs.
func (c *Config) Validate() error {
	if c.APIVersion == "" {
		return fmt.Errorf("API_VERSION must not be empty")
	}
	switch c.StoreDriver {
	case StoreDriverFile:
		if c.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required when STORE_DRIVER is %q", StoreDriverFile)
		}
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverFile, StoreDriverPostgres, c.StoreDriver)
	}
	return nil
}
