package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/neostore/internal/storage"
)

const (
	getEntrySQL = `SELECT value FROM kv_entries WHERE key = $1`

	putEntrySQL = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

var _ storage.KV = (*KVStore)(nil)

// KVStore keeps values in the kv_entries JSONB table. Values must be JSON.
type KVStore struct {
	pool *pgxpool.Pool
}

// NewKVStore returns a KVStore that uses the given pool.
func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getEntrySQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry %q: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, putEntrySQL, key, value); err != nil {
		return fmt.Errorf("putting entry %q: %w", key, err)
	}
	return nil
}

// Ping checks that a connection can be acquired.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
