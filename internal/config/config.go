package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseDSN string        `yaml:"database_dsn" env:"DATABASE_URL" env-required:"true"`
	HTTPServer  HTTPServer    `yaml:"http_server"`
	App         AppConfig     `yaml:"app"`
	Storage     StorageConfig `yaml:"storage"`
	S3          S3Config      `yaml:"s3"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8083"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type AppConfig struct {
	// BaseURL is the externally reachable prefix baked into capability
	// URLs; the transfer endpoints live under it.
	BaseURL string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8083"`
}

type StorageConfig struct {
	// Backend selects the provider: "fs" or "s3". Anything else refuses
	// to start.
	Backend      string        `yaml:"backend" env:"STORAGE_BACKEND" env-default:"fs"`
	Root         string        `yaml:"root" env:"STORAGE_ROOT" env-default:"./data/images"`
	Secret       string        `yaml:"-" env:"STORAGE_SECRET" env-required:"true"`
	UploadTTL    time.Duration `yaml:"upload_ttl" env-default:"5m"`
	DownloadTTL  time.Duration `yaml:"download_ttl" env-default:"1h"`
	MaxImageSize int64         `yaml:"max_image_size" env-default:"10485760"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"-" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"S3_SECRET_KEY"`
}

// MustLoad reads the yaml at CONFIG_PATH when set, environment variables
// otherwise. The HMAC secret is required either way: a process without it
// must never come up.
func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}
		return &cfg
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
