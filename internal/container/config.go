// Package container provides dependency injection and lifecycle management
// for the requisition approval service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Approval ApprovalConfig
	Export   ExportConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings. When Enabled is false notifications
// are only logged.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveIDType string
	BaseURL       string
}

// ApprovalConfig holds approval panel and reminder settings.
type ApprovalConfig struct {
	LabelStyle string

	ReminderEnabled   bool
	ReminderAfter     time.Duration
	ReminderInterval  time.Duration
	ReminderBatchSize int
}

// ExportConfig holds workbook archive settings.
type ExportConfig struct {
	ArchiveDir        string
	ArchiveOnDecision bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/requisitions.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
		},
		Lark: LarkConfig{
			ReceiveIDType: "user_id",
		},
		Approval: ApprovalConfig{
			LabelStyle:        "default",
			ReminderEnabled:   true,
			ReminderAfter:     24 * time.Hour,
			ReminderInterval:  15 * time.Minute,
			ReminderBatchSize: 50,
		},
		Export: ExportConfig{
			ArchiveDir: "data/archive",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
	}
	if c.Export.ArchiveOnDecision && c.Export.ArchiveDir == "" {
		return fmt.Errorf("export.archive_dir is required")
	}
	return nil
}
