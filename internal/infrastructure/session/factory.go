package session

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/etribe/portal/internal/infrastructure/config"
)

// NewFromConfig builds the configured session backend. The returned close
// func releases backend connections and is never nil.
func NewFromConfig(cfg *config.Config, log *zap.Logger) (Store, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	noop := func() error { return nil }

	switch cfg.Session.Backend {
	case "redis":
		store, err := NewRedisStore(RedisStoreConfig{
			Addr:      cfg.Redis.Addr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Session.KeyPrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		log.Info("using Redis session store", zap.String("addr", cfg.Redis.Addr()))
		return store, store.Close, nil

	case "sqlite":
		db, err := OpenSQLite(cfg.Session.SQLitePath, log, cfg.Log.Level)
		if err != nil {
			return nil, noop, err
		}
		store, err := NewSQLStore(db)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		log.Info("using SQLite session store", zap.String("path", cfg.Session.SQLitePath))
		return store, closeFn, nil

	case "memory", "":
		log.Info("using in-memory session store")
		return NewMemoryStore(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
