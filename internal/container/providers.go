package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hotelops/requisition-approval/internal/application/dispatcher"
	"github.com/hotelops/requisition-approval/internal/application/port"
	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/application/workflow"
	"github.com/hotelops/requisition-approval/internal/domain/approval"
	"github.com/hotelops/requisition-approval/internal/infrastructure/export"
	infraLark "github.com/hotelops/requisition-approval/internal/infrastructure/external/lark"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/repository"
	"github.com/hotelops/requisition-approval/internal/infrastructure/persistence/sqlite"
	"github.com/hotelops/requisition-approval/internal/infrastructure/storage"
	"github.com/hotelops/requisition-approval/internal/infrastructure/worker"
	"github.com/hotelops/requisition-approval/internal/metrics"
	"github.com/hotelops/requisition-approval/pkg/database"
	"github.com/hotelops/requisition-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// ExportBundle holds the workbook writer and its archive storage.
type ExportBundle struct {
	Exporter port.Exporter

	// Storage is nil unless archiving on decision is enabled
	Storage port.FileStorage
}

// ProvideDatabase opens the database and runs the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(raw, logger).Run(database.Migrations()); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqlite.NewDB(raw.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requisition: repository.NewRequisitionRepository(db, logger),
		Item:        repository.NewItemRepository(db, logger),
		Step:        repository.NewStepRepository(db, logger),
		History:     repository.NewHistoryRepository(db, logger),
	}, nil
}

// ProvideNotifier returns the Lark messenger, or a log-only notifier when
// Lark is disabled.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications will only be logged")
		return infraLark.NewLogNotifier(logger), nil
	}

	sdk, err := infraLark.NewSDKClient(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		BaseURL:       cfg.BaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark client: %w", err)
	}
	return infraLark.NewMessenger(sdk, logger), nil
}

// ProvideExport creates the workbook writer and, when archiving is on, its storage.
func ProvideExport(cfg *ExportConfig, logger *zap.Logger) (*ExportBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("export config is required")
	}

	bundle := &ExportBundle{Exporter: export.NewWorkbookWriter(logger)}
	if cfg.ArchiveOnDecision {
		bundle.Storage = storage.NewLocalFileStorage(cfg.ArchiveDir, logger)
	}
	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Export     *ExportBundle
	Metrics    *metrics.Metrics
	Approval   *ApprovalConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes their
// event handlers on the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, workflow.Engine, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Export == nil || deps.Approval == nil {
		return nil, nil, fmt.Errorf("export and approval config are required")
	}
	if deps.Logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos

	engine := workflow.NewEngine(repos.Requisition, repos.History, deps.TxManager)

	reqs := service.NewRequisitionService(
		repos.Requisition,
		repos.Item,
		repos.Step,
		repos.History,
		deps.TxManager,
		engine,
		serviceLogger,
		service.WithEvents(deps.Dispatcher),
		service.WithLabels(approval.LabelsByName(deps.Approval.LabelStyle)),
	)

	approvals := service.NewApprovalService(
		repos.Requisition,
		repos.Item,
		repos.Step,
		repos.History,
		deps.TxManager,
		engine,
		reqs,
		deps.Dispatcher,
		serviceLogger,
	)

	notifications := service.NewNotificationService(repos.Requisition, deps.Notifier, serviceLogger)
	notifications.Register(deps.Dispatcher)

	exports := service.NewExportService(reqs, deps.Export.Exporter, deps.Export.Storage, serviceLogger)
	if deps.Export.Storage != nil {
		exports.RegisterArchiver(deps.Dispatcher)
	}

	if deps.Metrics != nil {
		deps.Metrics.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		Requisition:  reqs,
		Approval:     approvals,
		Notification: notifications,
		Export:       exports,
	}, engine, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos    *RepositoryBundle
	Services *ServiceBundle
	Approval *ApprovalConfig
	Logger   *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns a manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil || deps.Services == nil || deps.Approval == nil {
		return nil, fmt.Errorf("worker dependencies are incomplete")
	}

	manager := worker.NewManager(deps.Logger)

	if deps.Approval.ReminderEnabled {
		manager.Register(worker.NewReminderWorker(
			deps.Repos.Step,
			deps.Services.Notification,
			worker.ReminderConfig{
				After:     deps.Approval.ReminderAfter,
				Interval:  deps.Approval.ReminderInterval,
				BatchSize: deps.Approval.ReminderBatchSize,
			},
			deps.Logger.Named("reminder"),
		))
	}

	return manager, nil
}
