package bootstrap

import (
	"context"
	"fmt"

	"mailer-server/internal/blob"
	"mailer-server/internal/clients/mail"
	"mailer-server/internal/config"
	emailHandler "mailer-server/internal/email/handler"
	"mailer-server/internal/email/processor"
	"mailer-server/internal/email/reconciler"
	"mailer-server/internal/events"
	eventsHandler "mailer-server/internal/events/handler"
	"mailer-server/internal/jobs"
	"mailer-server/internal/observability"
	"mailer-server/internal/settings"
	"mailer-server/internal/store"
	"mailer-server/internal/templates"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Services
	EmailProcessor *processor.EmailProcessor
	Reconciler     *reconciler.Reconciler
	Settings       *settings.Service
	EventService   *events.Service

	// Handlers
	EmailHandler *emailHandler.Handler
	EventHandler *eventsHandler.Handler

	// Job client (for cleanup)
	JobClient *jobs.Client
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize job client
	deps.JobClient = jobs.NewClient(cfg.Redis.Addr, cfg.Redis.Password, logger)

	// Initialize mail provider client
	mailClient, err := mail.NewResendClient(cfg.Mail.ResendAPIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}

	// Initialize template renderer and blob storage
	renderer := templates.NewDirRenderer(cfg.Storage.TemplatesDir)
	blobStore, err := blob.NewFileStore(cfg.Storage.BlobDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	// Initialize settings service
	deps.Settings = settings.New(&deps.Store, logger)

	// Initialize email processor and reconciler
	deps.EmailProcessor = processor.New(
		&deps.Store,
		blobStore,
		renderer,
		mailClient,
		deps.JobClient,
		deps.Settings,
		cfg.Mail,
		cfg.Site,
		logger,
	)
	deps.Reconciler = reconciler.New(&deps.Store, deps.JobClient, logger)
	deps.EmailHandler = emailHandler.New(deps.EmailProcessor, deps.Reconciler, &deps.Store, logger)

	// Initialize event service and handler
	deps.EventService = events.New(&deps.Store, logger)
	deps.EventHandler = eventsHandler.New(deps.EventService, cfg.Events.WebhookSecret, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if d.JobClient != nil {
		d.JobClient.Close()
	}
}
