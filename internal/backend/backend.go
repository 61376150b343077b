// Package backend assembles the storage and event publishing selected by the
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"pmanager/internal/amqp"
	"pmanager/internal/config"
	applog "pmanager/internal/log"
	"pmanager/internal/services"
	"pmanager/internal/storage"
	"pmanager/internal/storage/memory"
)

type BackendType string

const (
	SQLiteBackend BackendType = config.BackendSQLite
	MemoryBackend BackendType = config.BackendMemory
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

type Config struct {
	Type         BackendType
	SQLiteDBPath string
	// AMQPURL may be empty, which disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	return nil
}

// CleanupFunc releases what the backend opened.
type CleanupFunc func() error

// BackendResult is a ready store plus the optional AMQP client. Publisher is
// nil whenever AMQP is nil.
type BackendResult struct {
	Store     storage.Store
	AMQP      *amqp.Client
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

type Factory struct {
	logger *applog.Logger
	dial   func(url, exchange, queue string) (*amqp.Client, error)
}

func NewFactory(logger *applog.Logger) *Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(applog.ComponentBackend), dial: amqp.NewClient}
}

// CreateBackend opens the store and, when configured, the AMQP client. A
// broker that cannot be reached is logged and leaves publishing disabled; the
// outbox keeps the events until the mirror sweep picks them up.
func (f *Factory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store storage.Store
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		store = repo
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		f.logger.Info("Initialized memory backend")
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	result := &BackendResult{Store: store}
	if cfg.AMQPURL != "" {
		client, err := f.dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without publishing", applog.FieldError, err)
		} else {
			client.SetLogger(f.logger)
			result.AMQP = client
			result.Publisher = client
			f.logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if result.AMQP != nil {
			errs = append(errs, result.AMQP.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return result, nil
}
