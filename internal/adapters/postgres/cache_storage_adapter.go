package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"listing-edge-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCacheStorageAdapter - персистентный вариант реестра хранилищ
// для offline-шлюза: dynamic-кэш переживает рестарт сервиса, и "последний
// успешно закэшированный ответ" остается доступным офлайн.
type PostgresCacheStorageAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresCacheStorageAdapter(ctx context.Context, pool *pgxpool.Pool) (*PostgresCacheStorageAdapter, error) {
	a := &PostgresCacheStorageAdapter{pool: pool}
	if err := a.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("PostgresCacheStorageAdapter: failed to ensure schema: %w", err)
	}
	return a, nil
}

func (a *PostgresCacheStorageAdapter) ensureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS edge_cache_entries (
        store_name  TEXT        NOT NULL,
        cache_key   TEXT        NOT NULL,
        status      INT         NOT NULL,
        headers     JSONB       NOT NULL,
        body        BYTEA       NOT NULL,
        stored_at   TIMESTAMPTZ NOT NULL,
        PRIMARY KEY (store_name, cache_key)
    )`
	_, err := a.pool.Exec(ctx, query)
	return err
}

func (a *PostgresCacheStorageAdapter) Open(ctx context.Context, name string) (port.CacheStorePort, error) {
	// Хранилище создается фактом первой записи, отдельного create нет
	return &postgresCacheStore{pool: a.pool, name: name}, nil
}

func (a *PostgresCacheStorageAdapter) Names(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `SELECT DISTINCT store_name FROM edge_cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("PostgresCacheStorageAdapter: failed to query store names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("PostgresCacheStorageAdapter: failed to scan store name: %w", err)
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PostgresCacheStorageAdapter: error during names iteration: %w", err)
	}
	return names, nil
}

func (a *PostgresCacheStorageAdapter) Drop(ctx context.Context, name string) (bool, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM edge_cache_entries WHERE store_name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("PostgresCacheStorageAdapter: failed to drop store %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

type postgresCacheStore struct {
	pool *pgxpool.Pool
	name string
}

func (s *postgresCacheStore) Name() string { return s.name }

func (s *postgresCacheStore) Match(ctx context.Context, key string) (*port.CachedResponse, bool, error) {
	query := `SELECT status, headers, body, stored_at FROM edge_cache_entries
               WHERE store_name = $1 AND cache_key = $2`

	var (
		status      int
		headersJSON []byte
		body        []byte
		storedAt    time.Time
	)
	err := s.pool.QueryRow(ctx, query, s.name, key).Scan(&status, &headersJSON, &body, &storedAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgresCacheStore: failed to match key: %w", err)
	}

	var header http.Header
	if err := json.Unmarshal(headersJSON, &header); err != nil {
		return nil, false, fmt.Errorf("postgresCacheStore: failed to decode headers: %w", err)
	}

	return &port.CachedResponse{
		Status:   status,
		Header:   header,
		Body:     body,
		StoredAt: storedAt,
	}, true, nil
}

func (s *postgresCacheStore) Put(ctx context.Context, key string, resp *port.CachedResponse) error {
	headersJSON, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("postgresCacheStore: failed to encode headers: %w", err)
	}

	query := `INSERT INTO edge_cache_entries (store_name, cache_key, status, headers, body, stored_at)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (store_name, cache_key)
              DO UPDATE SET status = $3, headers = $4, body = $5, stored_at = $6`

	_, err = s.pool.Exec(ctx, query, s.name, key, resp.Status, headersJSON, resp.Body, resp.StoredAt)
	if err != nil {
		return fmt.Errorf("postgresCacheStore: failed to put key: %w", err)
	}
	return nil
}

func (s *postgresCacheStore) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM edge_cache_entries WHERE store_name = $1 AND cache_key = $2`, s.name, key)
	if err != nil {
		return false, fmt.Errorf("postgresCacheStore: failed to delete key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresCacheStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT cache_key FROM edge_cache_entries WHERE store_name = $1`, s.name)
	if err != nil {
		return nil, fmt.Errorf("postgresCacheStore: failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgresCacheStore: failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgresCacheStore: error during keys iteration: %w", err)
	}
	return keys, nil
}
