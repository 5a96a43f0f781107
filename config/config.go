package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration, shared by the API server
// and the worker.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Concurrency int           `mapstructure:"concurrency"`
	MaxRetries  int           `mapstructure:"max_retries"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// ProviderConfig selects and configures the LLM provider variant.
type ProviderConfig struct {
	Kind        string  `mapstructure:"kind"` // "hosted" or "local"
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	LocalModel  string  `mapstructure:"local_model"`
	MaxImages   int     `mapstructure:"max_images"`
	Temperature float32 `mapstructure:"temperature"`
}

type StorageConfig struct {
	Type       string `mapstructure:"type"` // "minio" or "s3"
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	UploadDir  string `mapstructure:"upload_dir"`
}

type PipelineConfig struct {
	MaxPDFPages    int           `mapstructure:"max_pdf_pages"`
	DPIScale       float64       `mapstructure:"dpi_scale"`
	DefaultTaxRate float64       `mapstructure:"default_tax_rate"`
	LocalTimeout   time.Duration `mapstructure:"local_timeout"`
}

type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	MaxPerUser  int           `mapstructure:"max_per_user"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type UploadConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	BatchLimit   int      `mapstructure:"batch_limit"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads configuration from config.yaml (optional) and environment
// variables, .env included.
func Load() (*Config, error) {
	// .env is optional, used for local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("invoice")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.task_timeout", 3*time.Minute)

	v.SetDefault("provider.kind", "hosted")
	v.SetDefault("provider.model", "gpt-4o-mini")
	v.SetDefault("provider.base_url", "http://localhost:1234/v1")
	v.SetDefault("provider.local_model", "qwen/qwen3-vl-4b")
	v.SetDefault("provider.max_images", 3)
	v.SetDefault("provider.temperature", 0.1)

	v.SetDefault("storage.type", "minio")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "invoices")
	v.SetDefault("storage.upload_dir", "uploads")

	v.SetDefault("pipeline.max_pdf_pages", 10)
	v.SetDefault("pipeline.dpi_scale", 1.5)
	v.SetDefault("pipeline.default_tax_rate", 18.0)
	v.SetDefault("pipeline.local_timeout", 180*time.Second)

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.max_per_user", 5)

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("upload.max_file_size", int64(50*1024*1024))
	v.SetDefault("upload.allowed_types", []string{".pdf", ".jpg", ".jpeg", ".png", ".txt"})
	v.SetDefault("upload.batch_limit", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout", "logs/app.log"})
}

func (c *Config) validate() error {
	switch c.Provider.Kind {
	case "hosted", "local":
	default:
		return fmt.Errorf("unsupported provider kind: %s", c.Provider.Kind)
	}
	switch c.Storage.Type {
	case "minio", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	return nil
}
