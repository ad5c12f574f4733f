package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application. Values are read by
// viper from an app.env file or environment variables.
type Config struct {
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	MySQLDSN        string        `mapstructure:"MYSQL_DSN"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	WorkerCount     int           `mapstructure:"WORKER_COUNT"`
	EventQueueSize  int           `mapstructure:"EVENT_QUEUE_SIZE"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("WORKER_COUNT", 4)
	viper.SetDefault("EVENT_QUEUE_SIZE", 1024)
	viper.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and env vars cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
