package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"calibration-backend/internal/config"
	"calibration-backend/internal/jobstate"
	"calibration-backend/internal/notify"
	"calibration-backend/internal/queue"
	"calibration-backend/internal/records"
	"calibration-backend/internal/routing"
	"calibration-backend/internal/shared/server"
	"calibration-backend/internal/shared/storage/db"
	"calibration-backend/internal/shared/storage/object"
	localstore "calibration-backend/internal/shared/storage/object/local"
	s3store "calibration-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API process.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	Records    records.Repo
	JobStates  jobstate.Store
	Tracker    *jobstate.Tracker
	Sender     notify.Sender
	Dispatcher *routing.Dispatcher
	Handler    *routing.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	sender, err := buildSender(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Sender: sender,
	}

	if sqlDB != nil {
		app.Records = &records.PGRepo{DB: sqlDB}
		app.JobStates = &jobstate.PGStore{DB: sqlDB}
	} else {
		app.Records = records.NewMemoryRepo()
		app.JobStates = jobstate.NewMemoryStore()
	}
	app.Tracker = jobstate.NewTracker(app.JobStates)

	app.Dispatcher = &routing.Dispatcher{
		Records: app.Records,
		Tracker: app.Tracker,
		Sender:  app.Sender,
		Objects: app.Store,
		Queue:   app.Queue,
		Timeout: cfg.RouteTimeout,
	}
	app.Handler = &routing.Handler{
		Dispatcher: app.Dispatcher,
		Tracker:    app.Tracker,
		Records:    app.Records,
		Objects:    app.Store,
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		RoutingHandler: app.Handler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("CB_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildSender(ctx context.Context, cfg config.Config) (notify.Sender, error) {
	if cfg.NotifyProvider != "gmail" {
		return notify.LogSender{}, nil
	}
	if cfg.GmailClientID == "" || cfg.GmailClientSecret == "" || cfg.GmailRefreshToken == "" || cfg.SenderAddress == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: gmail credentials incomplete; using log sender")
			return notify.LogSender{}, nil
		}
		return nil, fmt.Errorf("NOTIFY_PROVIDER=gmail requires GMAIL_CLIENT_ID, GMAIL_CLIENT_SECRET, GMAIL_REFRESH_TOKEN and SENDER_ADDRESS")
	}
	return notify.NewGmailSender(ctx, cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken, cfg.SenderAddress)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
