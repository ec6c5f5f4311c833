package kv

import (
	"context"
	"fmt"

	"github.com/sakif/recruiting-portal/internal/model"
	"github.com/sakif/recruiting-portal/internal/repository"
	"github.com/sakif/recruiting-portal/internal/store"
)

var _ repository.ConfigRepository = (*ConfigStore)(nil)

var configKey = store.Key{PK: "CONFIG#APP", SK: "CURRENT"}

// ConfigStore reads and writes the singleton config item.
type ConfigStore struct {
	db *DB
}

func (s *ConfigStore) Get(ctx context.Context) (*model.AppConfig, error) {
	item, err := s.db.table.Get(ctx, configKey)
	if err != nil {
		return nil, fmt.Errorf("kv: reading config: %w", err)
	}
	if item == nil {
		return nil, nil
	}

	var cfg model.AppConfig
	if err := decodeItem(item, &cfg); err != nil {
		return nil, err
	}
	if cfg.ConfigData == nil {
		cfg.ConfigData = map[string]string{}
	}
	return &cfg, nil
}

func (s *ConfigStore) Save(ctx context.Context, cfg *model.AppConfig) error {
	if cfg.ConfigData == nil {
		cfg.ConfigData = map[string]string{}
	}
	cfg.UpdatedAt = s.db.nowMillis()

	item, err := encodeItem(cfg, configKey)
	if err != nil {
		return err
	}
	if err := s.db.table.Put(ctx, item); err != nil {
		return fmt.Errorf("kv: saving config: %w", err)
	}
	return nil
}
