// Package store defines the single-table item store every repository sits on.
//
// SINGLE-TABLE DESIGN:
// All entities (users, the config record, counters, claim markers) live in one
// table addressed by a composite key:
//
//	pk  partition key, derived from entity type + id  (e.g. "USER#<id>")
//	sk  sort discriminator, fixed per entity type     (e.g. "PROFILE")
//
// One secondary index (gsi1pk, gsi1sk) supports lookup by email.
//
// Two implementations exist: store/dynamo for production and store/sqlite for
// local development and tests. Both satisfy Table; repositories never know
// which one they are talking to.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Attribute names shared by every implementation.
const (
	AttrPK     = "pk"
	AttrSK     = "sk"
	AttrGSI1PK = "gsi1pk"
	AttrGSI1SK = "gsi1sk"
)

// Key addresses one item.
type Key struct {
	PK string
	SK string
}

// Item is one stored record. Numbers come back as float64, nested documents
// as map[string]any, lists as []any.
type Item map[string]any

// Key extracts the composite key from the item's pk/sk attributes.
func (it Item) Key() Key {
	pk, _ := it[AttrPK].(string)
	sk, _ := it[AttrSK].(string)
	return Key{PK: pk, SK: sk}
}

// IndexQuery selects items from the secondary index. SortValue is optional;
// when empty every item in the partition is returned. Limit <= 0 means all.
type IndexQuery struct {
	PartitionValue string
	SortValue      string
	Limit          int
}

// Table is the full set of item operations. Every method is always present;
// callers never probe for capabilities.
type Table interface {
	// Get returns the item, or (nil, nil) when it does not exist.
	Get(ctx context.Context, key Key) (Item, error)

	// Put overwrites the item unconditionally.
	Put(ctx context.Context, item Item) error

	// PutIfAbsent writes the item only if no item with its key exists.
	// It reports whether this call created it.
	PutIfAbsent(ctx context.Context, item Item) (bool, error)

	// Update sets each attribute path in sets. Paths may be dotted
	// ("userData.events") to reach into nested documents without replacing
	// siblings. Updating a missing key creates a partial item.
	Update(ctx context.Context, key Key, sets map[string]any) error

	// Add atomically adds delta to a numeric attribute (missing counts as 0)
	// and returns the new value.
	Add(ctx context.Context, key Key, attr string, delta int64) (int64, error)

	// Delete removes the item. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// QueryIndex reads from the gsi1 secondary index.
	QueryIndex(ctx context.Context, q IndexQuery) ([]Item, error)
}

// SplitPath splits a dotted attribute path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// SetPath assigns value at a dotted path inside doc, creating intermediate
// documents as needed. Existing siblings at every level are kept.
func SetPath(doc map[string]any, path string, value any) {
	segs := SplitPath(path)
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// Normalize turns a Go value (struct, typed map, slice) into the generic
// map/slice/float64 shape that Get returns, using the value's json tags.
// Both backends run update values through it so nested documents look the
// same no matter how they were written.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
