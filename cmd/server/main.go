// OrdenApp - field service work orders: lifecycle, field execution and service reports
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/joho/godotenv/autoload"

	"ordenapp/internal/config"
	"ordenapp/internal/domain"
	"ordenapp/internal/domain/notifications"
	"ordenapp/internal/events"
	"ordenapp/internal/infrastructure/awscfg"
	"ordenapp/internal/render"
	"ordenapp/internal/repository/dynamo"
	"ordenapp/internal/repository/sqlite"
	"ordenapp/internal/server"
	"ordenapp/internal/storage"
	"ordenapp/internal/usecase"
	"ordenapp/internal/usecase/interfaces"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	log.Println("🛠️ Starting OrdenApp...")
	log.Printf("📋 Debug mode: %v", cfg.Debug)

	// Initialize database
	db, err := sqlite.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}
	log.Println("✅ Database initialized")

	repos := sqlite.NewRepositories(db)

	if os.Getenv("SEED_DATA") == "true" {
		seedSampleData(ctx, db)
	}

	// AWS is only needed by the s3 object store and the dynamodb catalog
	var awsCfg aws.Config
	if cfg.Storage.Backend == "s3" || cfg.Catalog.Backend == "dynamodb" {
		awsCfg, err = awscfg.Load(ctx, cfg.AWS)
		if err != nil {
			log.Fatalf("❌ Failed to load AWS configuration: %v", err)
		}
		log.Printf("✅ AWS configured (region %s)", awsCfg.Region)
	}

	if cfg.Catalog.Backend == "dynamodb" {
		repos.Catalog = dynamo.NewCatalogRepo(dynamodb.NewFromConfig(awsCfg), cfg.Catalog.ServiceTypesTable, cfg.Catalog.ActivitiesTable)
		log.Printf("✅ Catalog served from DynamoDB (%s, %s)", cfg.Catalog.ServiceTypesTable, cfg.Catalog.ActivitiesTable)
	}

	// Object store
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = cfg.PublicBaseURL
	}
	store, err := storage.FromConfig(cfg.Storage, awsCfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize object store: %v", err)
	}
	var filesDir string
	if local, ok := store.(*storage.LocalStore); ok {
		filesDir = local.Dir()
	}
	log.Printf("✅ Object store: %s", cfg.Storage.Backend)

	// Report renderer
	tmpl, err := render.NewManager(render.DefaultTemplates(), cfg.Debug)
	if err != nil {
		log.Fatalf("❌ Failed to initialize templates: %v", err)
	}
	htmlRenderer := render.NewHTMLRenderer(tmpl)
	var renderer interfaces.IDocumentRenderer = htmlRenderer
	if cfg.Renderer.Backend == "remote" {
		renderer = render.NewRemoteRenderer(htmlRenderer, cfg.Renderer.RemoteURL)
	}
	log.Printf("✅ Templates loaded (renderer %s)", cfg.Renderer.Backend)

	// Email
	var emailProvider notifications.EmailProvider = &notifications.LogEmailProvider{}
	if cfg.Notifications.Enabled {
		emailProvider = notifications.NewSMTPProvider(notifications.SMTPConfig{
			Host:     cfg.Notifications.Host,
			Port:     cfg.Notifications.Port,
			Username: cfg.Notifications.Username,
			Password: cfg.Notifications.Password,
			From:     cfg.Notifications.From,
		})
	}
	notifier := notifications.NewCompositeNotifier(emailProvider)

	// Events
	var publisher interface {
		interfaces.IEventPublisher
		Close() error
	} = events.LogPublisher{}
	if cfg.Events.Enabled {
		natsPublisher, err := events.NewNATSPublisher(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			log.Fatalf("❌ Failed to connect to NATS: %v", err)
		}
		publisher = natsPublisher
		log.Printf("✅ Publishing order events to %s", cfg.Events.URL)
	}
	defer publisher.Close()

	f := cfg.Finalization
	initialBackoff, maxBackoff := f.Backoff()
	finalizer := usecase.NewFinalizeUseCase(repos, renderer, store, notifier, publisher, usecase.FinalizerConfig{
		Render: usecase.RetryPolicy{
			Attempts:       f.RenderAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
			AttemptTimeout: time.Duration(f.RenderTimeoutSeconds) * time.Second,
		},
		Upload: usecase.RetryPolicy{
			Attempts:       f.UploadAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
			AttemptTimeout: time.Duration(f.UploadTimeoutSeconds) * time.Second,
		},
		NotifyTimeout:     time.Duration(f.NotifyTimeoutSeconds) * time.Second,
		DefaultTemplateID: cfg.Renderer.TemplateID,
		PublicBaseURL:     cfg.PublicBaseURL,
		SignedURLTTL:      cfg.SignedURLTTL(),
		Requirements:      domain.FinalizationRequirements{EvidencePhases: f.RequiredEvidencePhases},
	})

	// Create and run the server
	srv := server.New(cfg, server.UseCases{
		Orders:    usecase.NewOrderUseCase(repos, publisher),
		Collector: usecase.NewCollectorUseCase(repos, store),
		Finalizer: finalizer,
	}, filesDir)

	log.Printf("🌐 Server listening on http://%s", cfg.Address())

	if err := srv.Run(); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// seedSampleData loads the demo catalog, client and users into an empty database
func seedSampleData(ctx context.Context, db *sqlite.DB) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		log.Printf("⚠️ Could not check existing users: %v", err)
		return
	}
	if count > 0 {
		return
	}

	log.Println("🌱 Creating sample data...")
	data, err := sqlite.SeedSampleData(ctx, db)
	if err != nil {
		log.Printf("⚠️ Could not create sample data: %v", err)
		return
	}
	log.Printf("✅ Sample data created (admin %d, technician %d, client %d)", data.AdminID, data.TechnicianID, data.ClientID)
}
