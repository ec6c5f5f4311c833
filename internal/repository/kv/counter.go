package kv

import (
	"context"
	"fmt"

	"github.com/sakif/recruiting-portal/internal/repository"
	"github.com/sakif/recruiting-portal/internal/store"
)

var _ repository.Counters = (*CounterStore)(nil)

// Counter and claim names used by the portal.
const (
	CounterPNMID  = "PNM_ID"
	ClaimPNMEmail = "PNM_EMAIL"
	counterValue  = "value"
	counterSK     = "GLOBAL"
	claimSK       = "CLAIM"
	attrClaimedAt = "createdAt"
	counterPKBase = "COUNTER#"
)

// CounterStore provides NextID and ClaimOnce. Both are single storage
// operations, so they hold under any number of concurrent callers.
type CounterStore struct {
	db *DB
}

// NextID adds one to COUNTER#<name> and returns the result. The first call
// on a fresh table returns 1.
func (s *CounterStore) NextID(ctx context.Context, name string) (int64, error) {
	key := store.Key{PK: counterPKBase + name, SK: counterSK}
	v, err := s.db.table.Add(ctx, key, counterValue, 1)
	if err != nil {
		return 0, fmt.Errorf("kv: next id %s: %w", name, err)
	}
	return v, nil
}

// ClaimOnce creates <namespace>#<key>/CLAIM if it does not exist yet.
func (s *CounterStore) ClaimOnce(ctx context.Context, namespace, key string) (bool, error) {
	won, err := s.db.table.PutIfAbsent(ctx, store.Item{
		store.AttrPK:  namespace + "#" + key,
		store.AttrSK:  claimSK,
		attrClaimedAt: s.db.nowMillis(),
	})
	if err != nil {
		return false, fmt.Errorf("kv: claiming %s#%s: %w", namespace, key, err)
	}
	return won, nil
}
