package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/application/workflow"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
	"github.com/hotelops/requisition-approval/internal/infrastructure/worker"
	"github.com/hotelops/requisition-approval/internal/metrics"
	"github.com/hotelops/requisition-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	rawDB        *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	notifier port.Notifier
	export   *ExportBundle

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.Engine
	services   *ServiceBundle
	metrics    *metrics.Metrics

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Requisition port.RequisitionRepository
	Item        port.ItemRepository
	Step        port.StepRepository
	History     port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requisition  service.RequisitionService
	Approval     service.ApprovalService
	Notification service.NotificationService
	Export       service.ExportService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures a Container.
type Option func(*Container)

// WithMetrics makes the container feed m with database stats and events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Container) {
		c.metrics = m
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Notifier (Lark or log-only)
// 3. Export writer and archive storage
// 4. Event dispatcher, workflow engine and services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternal(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started", zap.Int("count", c.workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// waits for in-flight async handlers before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.rawDB != nil {
		if err := c.rawDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.rawDB != nil {
		if err := c.rawDB.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check workers. An empty manager is healthy when reminders are disabled.
	if c.workers != nil {
		healthy := c.workers.Count() == 0 || c.workers.IsRunning()
		status.Components["workers"] = ComponentHealth{
			Healthy: healthy,
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
		if !healthy {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check repositories
	if c.repositories != nil {
		status.Components["repositories"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["repositories"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.rawDB = dbBundle.Raw
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos

	if c.metrics != nil {
		if err := c.metrics.RegisterDB(c.rawDB.DB, "requisitions"); err != nil {
			c.logger.Warn("Failed to register database metrics", zap.Error(err))
		}
	}
	return nil
}

func (c *Container) closeDatabase() {
	if c.rawDB != nil {
		_ = c.rawDB.Close()
		c.rawDB = nil
	}
}

// initExternal initializes the notifier and the export writer using providers.
func (c *Container) initExternal() error {
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger.Named("lark"))
	if err != nil {
		return err
	}
	c.notifier = notifier

	exp, err := ProvideExport(&c.config.Export, c.logger.Named("export"))
	if err != nil {
		return err
	}
	c.export = exp
	return nil
}

// initServices initializes the dispatcher, the workflow engine and all
// application services using providers.
func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, engine, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Notifier:   c.notifier,
		Export:     c.export,
		Metrics:    c.metrics,
		Approval:   &c.config.Approval,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	c.workflow = engine
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Repos:    c.repositories,
		Services: c.services,
		Approval: &c.config.Approval,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if c.workers.Count() == 0 {
		return nil
	}
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Notifier returns the active notifier.
func (c *Container) Notifier() port.Notifier {
	return c.notifier
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
