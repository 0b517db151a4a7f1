package container

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/domain/event"
	"github.com/hotelops/requisition-approval/internal/metrics"
	"github.com/hotelops/requisition-approval/pkg/database"
)

func memoryConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.Path = database.MemoryPath
	cfg.Approval.ReminderEnabled = false
	cfg.Export.ArchiveDir = t.TempDir()
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "lark.app_id")

	cfg = DefaultConfig()
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "database.path")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	require.NotNil(t, c.Services())
	assert.NotNil(t, c.Services().Requisition)
	assert.NotNil(t, c.Services().Approval)
	assert.NotNil(t, c.Services().Notification)
	assert.NotNil(t, c.Services().Export)
	assert.NotNil(t, c.Repositories().Step)
	assert.NotNil(t, c.WorkflowEngine())
	assert.NotNil(t, c.Notifier())
	assert.NotNil(t, c.DB())

	health := c.Health()
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["workers"].Healthy)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_HandlersFollowConfig(t *testing.T) {
	cfg := memoryConfig(t)
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	handlers := c.Dispatcher().Handlers(event.TypeRequisitionApproved)
	assert.Contains(t, handlers, "notify-requester")
	assert.NotContains(t, handlers, "archive-workbook")
	assert.Equal(t, 0, c.Workers().Count())

	cfg = memoryConfig(t)
	cfg.Export.ArchiveOnDecision = true
	cfg.Approval.ReminderEnabled = true
	m := metrics.New()

	c2, err := NewContainer(cfg, zap.NewNop(), WithMetrics(m))
	require.NoError(t, err)
	require.NoError(t, c2.Start(context.Background()))
	t.Cleanup(func() { _ = c2.Close() })

	handlers = c2.Dispatcher().Handlers(event.TypeRequisitionApproved)
	assert.Contains(t, handlers, "archive-workbook")
	assert.Contains(t, handlers, "metrics")
	assert.Equal(t, 1, c2.Workers().Count())
	assert.True(t, c2.Workers().IsRunning())

	// database stats are exported once the pool is registered
	n, err := testutil.GatherAndCount(m.Registry(), "go_sql_open_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
