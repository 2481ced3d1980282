package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`

	UsersFile    string `yaml:"users_file"`
	MessagesFile string `yaml:"messages_file"`
	UploadDir    string `yaml:"upload_dir"`
	Storage      string `yaml:"storage"`
	SQLitePath   string `yaml:"sqlite_path"`

	SessionTTL        time.Duration `yaml:"session_ttl"`
	ChatRatePerMinute int           `yaml:"chat_rate_per_minute"`
	MaxUploadMB       int64         `yaml:"max_upload_mb"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Defaults() Config {
	return Config{
		Addr:              ":8080",
		DataDir:           "data",
		Storage:           "json",
		SessionTTL:        7 * 24 * time.Hour,
		ChatRatePerMinute: 30,
		MaxUploadMB:       32,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the optional config file at path (YAML or JSON) and finally
// TASKDESK_* environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillPaths()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = getEnv("TASKDESK_ADDR", c.Addr)
	c.DataDir = getEnv("TASKDESK_DATA_DIR", c.DataDir)
	c.UsersFile = getEnv("TASKDESK_USERS_FILE", c.UsersFile)
	c.MessagesFile = getEnv("TASKDESK_MESSAGES_FILE", c.MessagesFile)
	c.UploadDir = getEnv("TASKDESK_UPLOAD_DIR", c.UploadDir)
	c.Storage = strings.ToLower(getEnv("TASKDESK_STORAGE", c.Storage))
	c.SQLitePath = getEnv("TASKDESK_SQLITE_PATH", c.SQLitePath)
	c.LogLevel = getEnv("TASKDESK_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("TASKDESK_LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("TASKDESK_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TASKDESK_SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	if v := os.Getenv("TASKDESK_CHAT_RATE_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TASKDESK_CHAT_RATE_PER_MINUTE: %w", err)
		}
		c.ChatRatePerMinute = n
	}
	if v := os.Getenv("TASKDESK_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TASKDESK_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	return nil
}

// fillPaths derives unset file locations from DataDir.
func (c *Config) fillPaths() {
	if c.UsersFile == "" {
		c.UsersFile = filepath.Join(c.DataDir, "users.json")
	}
	if c.MessagesFile == "" {
		c.MessagesFile = filepath.Join(c.DataDir, "messages.json")
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.DataDir, "taskdesk.db")
	}
}

// MaxUploadBytes is the attachment size cap; 0 disables it.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
