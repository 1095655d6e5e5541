package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	sq "github.com/Masterminds/squirrel"
)

// GetRaw returns the JSON stored under key. ok is false when the key is absent.
func (db *DB) GetRaw(ctx context.Context, key string) (value string, ok bool, err error) {
	query, args, err := sq.Select("value").From("kv").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, err
	}
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

// Get decodes the JSON stored under key into dst.
// It returns false without touching dst when the key is absent.
func (db *DB) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := db.GetRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	query, args, err := sq.Insert("kv").
		Columns("key", "value", "updated_at").
		Values(key, string(data), sq.Expr("datetime('now')")).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete("kv").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// Entries returns every stored row ordered by key.
func (db *DB) Entries(ctx context.Context) ([]Entry, error) {
	query, args, err := sq.Select("key", "value", "updated_at").From("kv").OrderBy("key").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetStats returns the number of stored keys and the database file size.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	query, args, err := sq.Select("COUNT(*)").From("kv").ToSql()
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&stats.Keys); err != nil {
		return nil, fmt.Errorf("counting keys: %w", err)
	}
	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}
