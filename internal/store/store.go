// Package store journals quest outcomes and mined receipts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	_ "modernc.org/sqlite"
)

var ErrNotOpen = errors.New("store not initialized")

// Store is an append-mostly journal: one row per wallet attempt, one per
// receipt keyed by network + tx hash.
type Store struct {
	db *sql.DB
}

// Attempt is the journal entry for one wallet
type Attempt struct {
	Quest    string
	Network  string
	Address  string
	TxHash   string
	Nonce    uint64
	Success  bool
	Stage    string
	Kind     string
	Error    string
	Tries    int
	Duration time.Duration
	At       time.Time
}

// Receipt is a stored transaction receipt
type Receipt struct {
	Network   string
	TxHash    string
	Status    uint64
	GasUsed   uint64
	Block     uint64
	RawJSON   string
	CreatedAt time.Time
}

// Open opens (or creates) the journal. Tests may pass ":memory:".
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// a :memory: database exists per connection
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	quest TEXT NOT NULL,
	network TEXT NOT NULL,
	address TEXT NOT NULL,
	tx_hash TEXT,
	nonce INTEGER,
	success INTEGER NOT NULL,
	stage TEXT,
	kind TEXT,
	error TEXT,
	tries INTEGER,
	duration_ms INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_address ON attempts (address);
CREATE TABLE IF NOT EXISTS receipts (
	network TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	status INTEGER,
	gas_used INTEGER,
	block INTEGER,
	raw_json TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (network, tx_hash)
);
`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordAttempt appends one attempt outcome
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if s == nil || s.db == nil {
		return ErrNotOpen
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO attempts (quest, network, address, tx_hash, nonce, success, stage, kind, error, tries, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, a.Quest, a.Network, a.Address, a.TxHash, a.Nonce, a.Success, a.Stage, a.Kind, a.Error, a.Tries, a.Duration.Milliseconds(), a.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("persist attempt: %w", err)
	}
	return nil
}

// Attempts lists attempts for address, newest first. An empty address lists all.
func (s *Store) Attempts(ctx context.Context, address string) ([]Attempt, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}

	query := `SELECT quest, network, address, COALESCE(tx_hash, ''), COALESCE(nonce, 0), success,
	COALESCE(stage, ''), COALESCE(kind, ''), COALESCE(error, ''), COALESCE(tries, 0), COALESCE(duration_ms, 0), created_at
FROM attempts`
	var args []any
	if address != "" {
		query += ` WHERE address = ?`
		args = append(args, address)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var ms, at int64
		if err := rows.Scan(&a.Quest, &a.Network, &a.Address, &a.TxHash, &a.Nonce, &a.Success,
			&a.Stage, &a.Kind, &a.Error, &a.Tries, &ms, &at); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		a.At = time.UnixMilli(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertReceipt stores a mined receipt
func (s *Store) UpsertReceipt(ctx context.Context, network string, receipt *types.Receipt) error {
	if s == nil || s.db == nil {
		return ErrNotOpen
	}
	if network == "" {
		return fmt.Errorf("network is required")
	}
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}

	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO receipts (network, tx_hash, status, gas_used, block, raw_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(network, tx_hash) DO UPDATE SET
	status=excluded.status,
	gas_used=excluded.gas_used,
	block=excluded.block,
	raw_json=excluded.raw_json
`, network, receipt.TxHash.Hex(), receipt.Status, receipt.GasUsed, block, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	return nil
}

// Receipt loads a stored receipt
func (s *Store) Receipt(ctx context.Context, network, txHash string) (*Receipt, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}
	if network == "" || txHash == "" {
		return nil, fmt.Errorf("network and tx hash are required")
	}

	var out Receipt
	var created int64
	row := s.db.QueryRowContext(ctx,
		`SELECT network, tx_hash, COALESCE(status, 0), COALESCE(gas_used, 0), COALESCE(block, 0), COALESCE(raw_json, ''), created_at FROM receipts WHERE network = ? AND tx_hash = ?`,
		network, txHash,
	)
	if err := row.Scan(&out.Network, &out.TxHash, &out.Status, &out.GasUsed, &out.Block, &out.RawJSON, &created); err != nil {
		return nil, err
	}
	out.CreatedAt = time.UnixMilli(created)
	return &out, nil
}
