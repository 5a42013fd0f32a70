package http

type Config struct {
	Port          uint     `mapstructure:"port"`
	AllowOrigins  []string `mapstructure:"allow_origins"`
	MetricsAPIKey string   `mapstructure:"metrics_api_key"`
}
