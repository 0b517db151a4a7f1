package config

import (
	"github.com/hotelops/requisition-approval/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveIDType: c.Lark.ReceiveIDType,
			BaseURL:       c.Lark.BaseURL,
		},
		Approval: container.ApprovalConfig{
			LabelStyle:        c.Approval.LabelStyle,
			ReminderEnabled:   c.Approval.ReminderEnabled,
			ReminderAfter:     c.Approval.ReminderAfter,
			ReminderInterval:  c.Approval.ReminderInterval,
			ReminderBatchSize: c.Approval.ReminderBatchSize,
		},
		Export: container.ExportConfig{
			ArchiveDir:        c.Export.ArchiveDir,
			ArchiveOnDecision: c.Export.ArchiveOnDecision,
		},
	}
}
