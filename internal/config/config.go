// Package config holds the process configuration. Every field is read from
// the environment (optionally seeded from a .env file) and falls back to the
// value in its default tag.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type GlobalConfig struct {
	Storage Storage `mapstructure:",squash"`
	Blob    Blob    `mapstructure:",squash"`
	Codec   Codec   `mapstructure:",squash"`
	Log     Log     `mapstructure:",squash"`
	Metrics Metrics `mapstructure:",squash"`
	Rules   Rules   `mapstructure:",squash"`
}

var config = &GlobalConfig{}

func init() {
	if err := defaults.Set(config); err != nil {
		fmt.Printf("set default err: %+v", err)
		os.Exit(1)
	}
}

func Global() *GlobalConfig {
	return config
}

// Load reads the given .env files (./.env when none are named), then the
// process environment, and replaces the global config with the result.
func Load(envFiles ...string) (*GlobalConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found - using environment variables")
	}

	conf := &GlobalConfig{}
	if err := defaults.Set(conf); err != nil {
		return nil, fmt.Errorf("set config defaults: %w", err)
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.AutomaticEnv()
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	config = conf
	return conf, nil
}

// Validate rejects combinations the drivers cannot start with.
func (c *GlobalConfig) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("SPECIMEN_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown SPECIMEN_STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("SPECIMEN_BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown SPECIMEN_BLOB_DRIVER %q", c.Blob.Driver)
	}
	if c.Codec.Secret == "" {
		return fmt.Errorf("SPECIMEN_ID_SECRET must not be empty")
	}
	return nil
}
