package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Reports  ReportsConfig  `json:"reports" yaml:"reports"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           string   `json:"port" yaml:"port"`
	UploadsDir     string   `json:"uploads_dir" yaml:"uploads_dir"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
	MaxUploadMB    int64    `json:"max_upload_mb" yaml:"max_upload_mb"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	File   string `json:"file" yaml:"file"`
}

type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

type RabbitMQConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
}

// AuthConfig enables operator auth on the review routes when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
}

type ReportsConfig struct {
	FallbackImageURL  string   `json:"fallback_image_url" yaml:"fallback_image_url"`
	StrictCoordinates bool     `json:"strict_coordinates" yaml:"strict_coordinates"`
	CustomStatuses    []string `json:"custom_statuses" yaml:"custom_statuses"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "3000",
			UploadsDir:     "uploads",
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    10,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			File:   filepath.Join("data", "reports.json"),
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			DBName: "wastewatch",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: "5672",
			User: "guest",
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads a JSON or YAML file (chosen by extension) over the
// defaults and then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigOrDefault is LoadConfig, except that a missing file yields the
// defaults plus environment overrides.
func LoadConfigOrDefault(path string) (*Config, bool, error) {
	config, err := LoadConfig(path)
	if err == nil {
		return config, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	config = Default()
	if err := config.applyEnv(); err != nil {
		return nil, false, err
	}
	if err := config.Validate(); err != nil {
		return nil, false, err
	}
	return config, false, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString("PORT", &c.Server.Port)
	setString("UPLOADS_DIR", &c.Server.UploadsDir)
	setString("STORAGE_DRIVER", &c.Storage.Driver)
	setString("REPORTS_FILE", &c.Storage.File)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("RABBITMQ_HOST", &c.RabbitMQ.Host)

	if v := strings.TrimSpace(os.Getenv("RABBITMQ_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RABBITMQ_ENABLED: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.File == "" {
			return errors.New("storage.file is required for the file driver")
		}
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}
