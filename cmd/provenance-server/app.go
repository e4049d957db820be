package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gorm.io/gorm"

	"github.com/fairtrace/provenance/pkg/api"
	"github.com/fairtrace/provenance/pkg/audit"
	"github.com/fairtrace/provenance/pkg/authz"
	"github.com/fairtrace/provenance/pkg/cache"
	"github.com/fairtrace/provenance/pkg/config"
	"github.com/fairtrace/provenance/pkg/events"
	"github.com/fairtrace/provenance/pkg/ledger"
	"github.com/fairtrace/provenance/pkg/ledger/sqlstore"
)

// app is everything the server runs, built from one configuration.
type app struct {
	handler   http.Handler
	ledger    *ledger.Ledger
	broker    *events.Broker
	retention *audit.RetentionWorker
	db        *gorm.DB
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{broker: events.NewBroker(cfg.Events.BufferSize)}

	var store ledger.Store
	switch cfg.Database.Type {
	case "memory":
		store = ledger.NewMemoryStore()
		logger.Warn("using in-memory ledger store, state is lost on restart")
	default:
		db, err := sqlstore.Open(cfg.Database.Type, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		s := sqlstore.New(db)
		if err := s.AutoMigrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		store = s
	}

	notifiers := ledger.MultiNotifier{a.broker}

	var auditStore *audit.Store
	auditCfg := audit.ConfigFromEnv(&audit.Config{
		Enabled:       cfg.Audit.Enabled,
		LogDenied:     cfg.Audit.LogDenied,
		RetentionDays: cfg.Audit.RetentionDays,
	})
	if a.db != nil && auditCfg.Enabled {
		auditStore = audit.NewStore(a.db)
		if err := auditStore.AutoMigrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		notifiers = append(notifiers, audit.NewSink(auditStore, logger))
		a.retention = audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)
	} else if auditCfg.Enabled {
		logger.Info("audit log disabled: it needs a database")
	}

	cacheManager := cache.NewManager(&cache.Config{
		Enabled: cfg.Cache.Enabled,
		TTL:     cfg.Cache.TTL,
		MaxSize: cfg.Cache.MaxSize,
	}, api.BasePath)
	if cacheManager != nil {
		notifiers = append(notifiers, cacheManager)
	}

	opts := []ledger.Option{ledger.WithNotifier(notifiers), ledger.WithLogger(logger)}
	if cfg.Handles == "sequenced" {
		opts = append(opts, ledger.WithHandleFunc(ledger.SequencedHandles))
	}
	l, err := ledger.New(ctx, store, ledger.Principal(cfg.Admin), opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.ledger = l

	identity, err := authz.Middleware(authz.Mode(cfg.Auth.Mode), authz.JWTConfig{
		PrincipalClaim: cfg.Auth.JWT.PrincipalClaim,
		PublicKeyPath:  cfg.Auth.JWT.PublicKeyPath,
		Issuer:         cfg.Auth.JWT.Issuer,
		Audience:       cfg.Auth.JWT.Audience,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	serverOpts := []api.ServerOption{
		api.WithIdentity(identity),
		api.WithAuthorizer(authz.NewCachedAuthorizer(&authz.LedgerAuthorizer{Ledger: l}, authz.DefaultCacheTTL)),
		api.WithBroker(a.broker, cfg.Events.Heartbeat),
		api.WithCache(cacheManager),
		api.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	}
	if a.db != nil {
		serverOpts = append(serverOpts, api.WithDB(a.db))
	}
	if auditStore != nil {
		serverOpts = append(serverOpts, api.WithAudit(auditStore, auditCfg))
	}
	a.handler = api.NewServer(l, logger, serverOpts...).Router()
	return a, nil
}

// Close releases the database connection.
func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
