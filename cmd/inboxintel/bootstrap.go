package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/inboxintel/internal/alert"
	"github.com/edgard/inboxintel/internal/classifier"
	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/guesty"
	"github.com/edgard/inboxintel/internal/logger"
	"github.com/edgard/inboxintel/internal/notify"
	"github.com/edgard/inboxintel/internal/worker"
)

// env holds the components shared by every command.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *sqlx.DB
	store database.Store
}

// bootstrap loads configuration, sets up logging and opens the store.
// The caller must call close.
func bootstrap() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return nil, err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON())
	log.Debug("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(database.Options{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return nil, err
	}

	return &env{cfg: cfg, log: log, db: db, store: database.NewStore(db, log)}, nil
}

func (e *env) close() {
	database.CloseDB(e.db)
}

func (e *env) guestyClient(ctx context.Context) (*guesty.Client, error) {
	c, err := guesty.NewClient(ctx, e.cfg.Guesty, e.log)
	if err != nil {
		e.log.Error("Failed to create Guesty client", "error", err)
		return nil, err
	}
	return c, nil
}

func (e *env) notifier() (*notify.Multi, error) {
	n, err := notify.FromConfig(e.cfg.Notify, e.log)
	if err != nil {
		e.log.Error("Failed to configure notifications", "error", err)
		return nil, err
	}
	return n, nil
}

// worker wires the classifier, the alert gate and the notifiers.
func (e *env) worker(ctx context.Context, n notify.Notifier) (*worker.Worker, error) {
	c, err := classifier.New(ctx, e.cfg.Classifier, e.log)
	if err != nil {
		e.log.Error("Failed to create classifier", "error", err)
		return nil, err
	}

	policy, err := alert.NewPolicy(e.cfg.Alert)
	if err != nil {
		return nil, fmt.Errorf("alert policy: %w", err)
	}
	renderer, err := alert.NewRenderer(e.cfg.Alert.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("alert templates: %w", err)
	}

	return worker.New(worker.Deps{
		Store:      e.store,
		Classifier: c,
		Policy:     policy,
		Renderer:   renderer,
		Notifier:   n,
		Limiter:    worker.NewLimiter(e.cfg.Classifier.RequestsPerSecond),
		Logger:     e.log,
	}), nil
}
