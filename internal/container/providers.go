package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/rules"
	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/application/tracker"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/expense-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqldb.DB
}

// ProvideDatabase opens the configured database and wraps it in a transaction manager.
// Pending migrations are applied when AutoMigrate is set.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	raw, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.NewMigrator(raw, logger).Run(ctx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqldb.New(raw, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		User:    repository.NewUserRepository(db, logger),
		Expense: repository.NewExpenseRepository(db, logger),
		Rule:    repository.NewApprovalRuleRepository(db, logger),
		Step:    repository.NewApprovalStepRepository(db, logger),
		History: repository.NewHistoryRepository(db, logger),
	}, nil
}

// ProvideConditionCache creates the parsed-condition cache.
// A zero size returns nil and the evaluator parses on every call.
func ProvideConditionCache(cfg *RulesConfig) (*rules.ConditionCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rules config is required")
	}
	if cfg.CacheSize == 0 {
		return nil, nil
	}
	return rules.NewConditionCache(cfg.CacheSize)
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager *sqldb.DB
	Logger    *zap.Logger
}

// ProvideServices creates the admin and query services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &LoggerAdapter{logger: deps.Logger}

	return &ServiceBundle{
		User: service.NewUserService(
			deps.Repos.User,
			deps.Repos.Step,
			deps.TxManager,
			serviceLogger,
		),
		Rule: service.NewRuleService(
			deps.Repos.Rule,
			serviceLogger,
		),
		Expense: service.NewExpenseService(
			deps.Repos.Expense,
			deps.Repos.Step,
			deps.Repos.History,
			deps.TxManager,
			serviceLogger,
		),
	}, nil
}

// ProvideDispatcher creates the event dispatcher with the audit log subscribed to every event type.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dispatcherLogger := &LoggerAdapter{logger: logger}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
	)
	d.SubscribeAll("audit_log", dispatcher.NewAuditHandler(&LoggerAdapter{logger: logger.Named("audit")}))

	return d, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  *sqldb.DB
	Cache      *rules.ConditionCache
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the step tracker, rule evaluator and workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	stepTracker := tracker.New(deps.Repos.Step, deps.Logger)
	evaluator := rules.NewEvaluator(deps.Repos.Rule, deps.Cache, deps.Logger)

	return workflow.NewEngine(
		deps.Repos.User,
		deps.Repos.Expense,
		deps.Repos.History,
		stepTracker,
		evaluator,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(deps.Logger.Named("workflow")),
	), nil
}
