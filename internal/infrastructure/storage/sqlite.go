package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shiki2014/binan/internal/domain"
)

// SQLiteStore persists the bot state as JSON blobs plus the trade journal.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer at a time; the monitor and the scan job share the file
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			leverage INTEGER NOT NULL,
			stop_price REAL NOT NULL,
			is_add_on BOOLEAN NOT NULL DEFAULT 0,
			order_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);`,
		`CREATE TABLE IF NOT EXISTS stop_updates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			old_stop REAL NOT NULL,
			new_stop REAL NOT NULL,
			rule TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// StateStore Implementation

func (s *SQLiteStore) Load(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("failed to decode state %q: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	query := `INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
			  ON CONFLICT(key) DO UPDATE SET
			  value=excluded.value,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, key, string(raw), time.Now().UTC())
	return err
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *domain.TradeRecord) error {
	query := `INSERT INTO trades (symbol, side, quantity, price, leverage, stop_price, is_add_on, order_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		trade.Symbol, string(trade.Side), trade.Quantity, trade.Price, trade.Leverage,
		trade.StopPrice, trade.IsAddOn, trade.OrderID, trade.CreatedAt)
	if err != nil {
		return err
	}
	trade.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT id, symbol, side, quantity, price, leverage, stop_price, is_add_on, order_id, created_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.Leverage,
			&t.StopPrice, &t.IsAddOn, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveStopUpdate(ctx context.Context, update *domain.StopUpdate) error {
	query := `INSERT INTO stop_updates (symbol, side, old_stop, new_stop, rule, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		update.Symbol, string(update.Side), update.OldStop, update.NewStop, update.Rule, update.CreatedAt)
	if err != nil {
		return err
	}
	update.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListStopUpdates(ctx context.Context, limit int) ([]*domain.StopUpdate, error) {
	query := `SELECT id, symbol, side, old_stop, new_stop, rule, created_at
			  FROM stop_updates ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []*domain.StopUpdate
	for rows.Next() {
		var u domain.StopUpdate
		if err := rows.Scan(&u.ID, &u.Symbol, &u.Side, &u.OldStop, &u.NewStop, &u.Rule, &u.CreatedAt); err != nil {
			return nil, err
		}
		updates = append(updates, &u)
	}
	return updates, rows.Err()
}
