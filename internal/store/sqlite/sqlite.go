// Package sqlite implements store.Table on SQLite.
//
// WHY A SECOND BACKEND?
// Production runs on DynamoDB, but nobody wants an AWS account to run the
// portal on a laptop or to run the test suite. This package stores the same
// items in one SQLite table, so every repository test exercises the real
// single-table layout without a network.
//
// TABLE LAYOUT:
//
//	items(pk, sk, gsi1pk, gsi1sk, doc)
//
// pk/sk are the composite primary key. gsi1pk/gsi1sk are copied out of the
// document on every write so the email index can be queried with a plain
// SQL index. doc holds the whole item as JSON.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed to build or cross-compile.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/recruiting-portal/internal/store"

	_ "modernc.org/sqlite"
)

// compile-time check that *DB implements store.Table
var _ store.Table = (*DB)(nil)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and creates the items table.
//
// dbPath examples:
//   - "data/portal.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// ONE CONNECTION:
// Every ":memory:" connection is its own private database, so the pool is
// capped at one connection. The same cap serializes writers on a file
// database, which is what makes Update's read-modify-write safe.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			pk     TEXT NOT NULL,
			sk     TEXT NOT NULL,
			gsi1pk TEXT,
			gsi1sk TEXT,
			doc    TEXT NOT NULL,
			PRIMARY KEY (pk, sk)
		);
		CREATE INDEX IF NOT EXISTS idx_items_gsi1 ON items(gsi1pk, gsi1sk);
	`)
	if err != nil {
		return fmt.Errorf("creating items table: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const upsertSQL = `
	INSERT INTO items (pk, sk, gsi1pk, gsi1sk, doc) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(pk, sk) DO UPDATE SET
		gsi1pk = excluded.gsi1pk,
		gsi1sk = excluded.gsi1sk,
		doc    = excluded.doc`

// Get returns the item stored under key, or nil when there is none.
func (db *DB) Get(ctx context.Context, key store.Key) (store.Item, error) {
	item, err := getItem(ctx, db.conn, key)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting %s/%s: %w", key.PK, key.SK, err)
	}
	return item, nil
}

// Put overwrites the item.
func (db *DB) Put(ctx context.Context, item store.Item) error {
	key := item.Key()
	if err := writeItem(ctx, db.conn, upsertSQL, item); err != nil {
		return fmt.Errorf("sqlite: putting %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// PutIfAbsent inserts the item unless its key is taken.
//
// ON CONFLICT DO NOTHING makes the existence check and the insert one
// statement, so exactly one of any number of concurrent callers sees
// RowsAffected == 1.
func (db *DB) PutIfAbsent(ctx context.Context, item store.Item) (bool, error) {
	key := item.Key()
	doc, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("sqlite: encoding %s/%s: %w", key.PK, key.SK, err)
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO items (pk, sk, gsi1pk, gsi1sk, doc) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(pk, sk) DO NOTHING`,
		key.PK, key.SK, indexValue(item, store.AttrGSI1PK), indexValue(item, store.AttrGSI1SK), string(doc),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: conditional put %s/%s: %w", key.PK, key.SK, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: conditional put %s/%s: %w", key.PK, key.SK, err)
	}
	return n == 1, nil
}

// Update applies dotted-path sets inside one transaction.
func (db *DB) Update(ctx context.Context, key store.Key, sets map[string]any) error {
	if len(sets) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin update %s/%s: %w", key.PK, key.SK, err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, key)
	if err != nil {
		return fmt.Errorf("sqlite: reading %s/%s for update: %w", key.PK, key.SK, err)
	}
	if item == nil {
		item = store.Item{store.AttrPK: key.PK, store.AttrSK: key.SK}
	}

	for path, value := range sets {
		v, err := store.Normalize(value)
		if err != nil {
			return fmt.Errorf("sqlite: encoding %q: %w", path, err)
		}
		store.SetPath(item, path, v)
	}

	if err := writeItem(ctx, tx, upsertSQL, item); err != nil {
		return fmt.Errorf("sqlite: writing %s/%s: %w", key.PK, key.SK, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit update %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// Add increments a numeric attribute with a single upsert statement and
// returns the value it was left at.
func (db *DB) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	path := jsonPath(attr)

	var value int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO items (pk, sk, doc)
		 VALUES (?, ?, json_object('pk', ?, 'sk', ?, ?, ?))
		 ON CONFLICT(pk, sk) DO UPDATE SET
			doc = json_set(doc, ?, COALESCE(json_extract(doc, ?), 0) + ?)
		 RETURNING json_extract(doc, ?)`,
		key.PK, key.SK, key.PK, key.SK, attr, delta,
		path, path, delta,
		path,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sqlite: adding to %s/%s.%s: %w", key.PK, key.SK, attr, err)
	}
	return value, nil
}

// Delete removes the item. Missing keys are ignored.
func (db *DB) Delete(ctx context.Context, key store.Key) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM items WHERE pk = ? AND sk = ?`, key.PK, key.SK)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// QueryIndex reads items by gsi1pk (and gsi1sk when set), ordered by gsi1sk.
func (db *DB) QueryIndex(ctx context.Context, q store.IndexQuery) ([]store.Item, error) {
	query := `SELECT doc FROM items WHERE gsi1pk = ?`
	args := []any{q.PartitionValue}
	if q.SortValue != "" {
		query += ` AND gsi1sk = ?`
		args = append(args, q.SortValue)
	}
	query += ` ORDER BY gsi1sk`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying index %q: %w", q.PartitionValue, err)
	}
	defer rows.Close()

	items := []store.Item{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scanning index row: %w", err)
		}
		item, err := decode(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating index rows: %w", err)
	}
	return items, nil
}

func getItem(ctx context.Context, q querier, key store.Key) (store.Item, error) {
	var doc string
	err := q.QueryRowContext(ctx,
		`SELECT doc FROM items WHERE pk = ? AND sk = ?`, key.PK, key.SK,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

func writeItem(ctx context.Context, q querier, query string, item store.Item) error {
	key := item.Key()
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item: %w", err)
	}
	_, err = q.ExecContext(ctx, query,
		key.PK, key.SK, indexValue(item, store.AttrGSI1PK), indexValue(item, store.AttrGSI1SK), string(doc),
	)
	return err
}

func decode(doc string) (store.Item, error) {
	var item store.Item
	if err := json.Unmarshal([]byte(doc), &item); err != nil {
		return nil, fmt.Errorf("sqlite: decoding item: %w", err)
	}
	return item, nil
}

// indexValue returns the attribute as a nullable column value. Items without
// the attribute stay out of the index.
func indexValue(item store.Item, attr string) sql.NullString {
	s, ok := item[attr].(string)
	return sql.NullString{String: s, Valid: ok}
}

// jsonPath quotes a top-level attribute name for json_extract/json_set.
func jsonPath(attr string) string {
	return `$."` + strings.ReplaceAll(attr, `"`, `\"`) + `"`
}
