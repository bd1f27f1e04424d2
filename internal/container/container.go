// Package container wires application dependencies with ordered
// initialization and reverse-order teardown.
package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/application/service"
	"github.com/opsledger/workflow-engine/internal/config"
	"github.com/opsledger/workflow-engine/internal/infrastructure/identity"
	"github.com/opsledger/workflow-engine/internal/infrastructure/notify"
	"github.com/opsledger/workflow-engine/internal/infrastructure/persistence/repository"
	"github.com/opsledger/workflow-engine/internal/infrastructure/persistence/sqlite"
	"github.com/opsledger/workflow-engine/pkg/database"
)

// ServiceBundle groups all application services for convenient access
type ServiceBundle struct {
	Records     service.RecordService
	Transitions service.TransitionService
	Bulk        service.BulkService
	Undo        service.UndoService
	Audit       service.AuditService
	Insights    service.InsightService
}

// Container manages application dependencies and lifecycle
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db         *database.DB
	txDB       *sqlite.DB
	recordRepo port.RecordRepository
	auditRepo  port.AuditRepository
	identity   port.IdentityProvider
	sink       port.NotificationSink

	// Application
	services *ServiceBundle
}

// New builds the full dependency graph: database, migrations, repositories,
// identity, then services.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		config: cfg,
		logger: logger,
	}

	if err := c.initDatabase(); err != nil {
		return nil, err
	}
	if err := c.initIdentity(); err != nil {
		_ = c.db.Close()
		return nil, err
	}
	c.initServices()

	return c, nil
}

func (c *Container) initDatabase() error {
	db, err := database.Open(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.Run(c.config.Database.MigrationsDir); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.db = db
	c.txDB = sqlite.NewDB(db.DB, c.logger)
	c.recordRepo = repository.NewRecordRepository(c.txDB, c.logger)
	c.auditRepo = repository.NewAuditRepository(c.txDB, c.logger)
	return nil
}

func (c *Container) initIdentity() error {
	provider, err := identity.NewRosterProvider(c.config.Identity.Roster)
	if err != nil {
		return fmt.Errorf("failed to build actor roster: %w", err)
	}
	c.identity = provider
	c.sink = notify.NewLogSink(c.logger)
	return nil
}

func (c *Container) initServices() {
	svcLogger := &zapLoggerAdapter{logger: c.logger}

	transitions := service.NewTransitionService(
		c.recordRepo, c.auditRepo, c.txDB, svcLogger,
		service.WithNotificationSink(c.sink),
	)

	c.services = &ServiceBundle{
		Records:     service.NewRecordService(c.recordRepo, c.auditRepo, c.txDB, svcLogger),
		Transitions: transitions,
		Bulk:        service.NewBulkService(c.recordRepo, transitions, svcLogger),
		Undo: service.NewUndoService(c.auditRepo, transitions, svcLogger,
			service.WithGraceWindow(c.config.Workflow.UndoGrace)),
		Audit:    service.NewAuditService(c.auditRepo, svcLogger),
		Insights: service.NewInsightService(c.recordRepo, svcLogger),
	}
}

// Close releases container resources
func (c *Container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Identity returns the identity provider
func (c *Container) Identity() port.IdentityProvider {
	return c.identity
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// LoggerAdapter returns the zap logger behind the keysAndValues interface
// the service and HTTP layers expect
func (c *Container) LoggerAdapter() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
