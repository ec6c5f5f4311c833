// Package kv implements the repository interfaces on a single-table item
// store (store.Table), either DynamoDB or SQLite.
//
// KEY LAYOUT:
//
//	entity    pk                  sk        gsi1pk       gsi1sk
//	user      USER#<userid>       PROFILE   USER#EMAIL   <email>
//	config    CONFIG#APP          CURRENT
//	counter   COUNTER#<name>      GLOBAL
//	claim     <namespace>#<key>   CLAIM
//
// The layout matches the items earlier versions of the portal already wrote,
// so an existing table can be pointed at this code unchanged.
//
// DECODING:
// Items come back as map[string]any with float64 numbers. mapstructure turns
// them into model structs using the same json tags that encoded them, with
// weak typing so an old record holding a number where a string is expected
// still loads.
package kv

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/sakif/recruiting-portal/internal/store"
)

// DB groups the repositories that share one table.
type DB struct {
	table store.Table
	now   func() time.Time
}

// New returns repositories backed by table.
func New(table store.Table) *DB {
	return &DB{table: table, now: time.Now}
}

// Users returns the user repository.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Config returns the config repository.
func (db *DB) Config() *ConfigStore { return &ConfigStore{db: db} }

// Counters returns the counter/claim primitives.
func (db *DB) Counters() *CounterStore { return &CounterStore{db: db} }

func (db *DB) nowMillis() int64 {
	return db.now().UnixMilli()
}

// decodeItem fills out (a pointer to a struct) from a stored item.
func decodeItem(item store.Item, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("kv: building decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(item)); err != nil {
		return fmt.Errorf("kv: decoding item: %w", err)
	}
	return nil
}

// encodeItem turns a struct into item attributes and adds the key attributes.
func encodeItem(v any, key store.Key) (store.Item, error) {
	n, err := store.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("kv: encoding item: %w", err)
	}
	attrs, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("kv: %T does not encode to a document", v)
	}
	item := store.Item(attrs)
	item[store.AttrPK] = key.PK
	item[store.AttrSK] = key.SK
	return item, nil
}
