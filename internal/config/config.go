package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
	BaseURL       string `mapstructure:"base_url"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ApprovalConfig holds approval panel and reminder settings
type ApprovalConfig struct {
	LabelStyle        string        `mapstructure:"label_style"`
	ReminderEnabled   bool          `mapstructure:"reminder_enabled"`
	ReminderAfter     time.Duration `mapstructure:"reminder_after"`
	ReminderInterval  time.Duration `mapstructure:"reminder_interval"`
	ReminderBatchSize int           `mapstructure:"reminder_batch_size"`
}

// ExportConfig holds workbook archive settings
type ExportConfig struct {
	ArchiveDir        string `mapstructure:"archive_dir"`
	ArchiveOnDecision bool   `mapstructure:"archive_on_decision"`
}

// envPrefix namespaces automatic env overrides, e.g. REQUISITION_SERVER_PORT
const envPrefix = "REQUISITION"

// LoadDotEnv reads KEY=VALUE files into the process environment. Missing
// files are skipped and variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := gotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configPath (optional) and environment overrides into a validated Config
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/requisitions.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.base_url", "")
	v.SetDefault("lark.receive_id_type", "user_id")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("approval.label_style", "default")
	v.SetDefault("approval.reminder_enabled", true)
	v.SetDefault("approval.reminder_after", 24*time.Hour)
	v.SetDefault("approval.reminder_interval", 15*time.Minute)
	v.SetDefault("approval.reminder_batch_size", 50)

	v.SetDefault("export.archive_dir", "data/archive")
	v.SetDefault("export.archive_on_decision", false)
}

// bindEnvVars binds the conventional unprefixed names for credentials
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", envPrefix+"_LARK_APP_ID", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", envPrefix+"_LARK_APP_SECRET", "LARK_APP_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	switch c.Approval.LabelStyle {
	case "default", "compact":
	default:
		return fmt.Errorf("approval.label_style must be default or compact, got %q", c.Approval.LabelStyle)
	}
	if c.Approval.ReminderEnabled {
		if c.Approval.ReminderAfter <= 0 {
			return fmt.Errorf("approval.reminder_after must be positive")
		}
		if c.Approval.ReminderInterval <= 0 {
			return fmt.Errorf("approval.reminder_interval must be positive")
		}
	}

	if c.Export.ArchiveOnDecision && c.Export.ArchiveDir == "" {
		return fmt.Errorf("export.archive_dir is required when archive_on_decision is set")
	}

	return nil
}

// fileExists reports whether path names an existing file
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultPath returns configs/config.yaml when it exists, otherwise an empty
// path so that Load runs on defaults and environment alone
func DefaultPath() string {
	const p = "configs/config.yaml"
	if fileExists(p) {
		return p
	}
	return ""
}
