package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lameck50/backend-kami/internal/api/http"
	"github.com/lameck50/backend-kami/internal/auth"
	"github.com/lameck50/backend-kami/internal/db"
	"github.com/lameck50/backend-kami/internal/eventbus"
	grpcserver "github.com/lameck50/backend-kami/internal/grpc/server"
	"github.com/lameck50/backend-kami/internal/notify"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Log      LogConfig            `mapstructure:"log"`
	Http     http.Config          `mapstructure:"http"`
	Grpc     GrpcConfig           `mapstructure:"grpc"`
	DB       db.Config            `mapstructure:"db"`
	Storage  StorageConfig        `mapstructure:"storage"`
	JWT      auth.Config          `mapstructure:"jwt"`
	Tracking TrackingConfig       `mapstructure:"tracking"`
	Redis    eventbus.RedisConfig `mapstructure:"redis"`
	NATS     notify.NATSConfig    `mapstructure:"nats"`
	Webhook  WebhookConfig        `mapstructure:"webhook"`
	Metrics  MetricsConfig        `mapstructure:"metrics"`

	Enrollment EnrollmentConfig `mapstructure:"enrollment"`
}

type GrpcConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	Port    int                  `mapstructure:"port"`
	TLS     grpcserver.TLSConfig `mapstructure:"tls"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type TrackingConfig struct {
	InactivityInterval  time.Duration `mapstructure:"inactivity_interval"`
	InactivityThreshold time.Duration `mapstructure:"inactivity_threshold"`
	EvaluatorWorkers    int           `mapstructure:"evaluator_workers"`
	EvaluatorQueueSize  int           `mapstructure:"evaluator_queue_size"`
	SessionBuffer       int           `mapstructure:"session_buffer"`
}

type EnrollmentConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CodeTTL         time.Duration `mapstructure:"code_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/kami-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("db.url", "DATABASE_URL")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	initLogger(config.Log)

	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		redacted := config
		redacted.JWT.Secret = "***"
		configJSON, err := json.MarshalIndent(redacted, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
