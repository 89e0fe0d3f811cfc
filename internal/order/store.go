package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

// Record is the persisted terminal outcome of an attempt.
type Record struct {
	Attempt
	DestChainID int64  `json:"dest_chain_id,omitempty"`
	SellSymbol  string `json:"sell_symbol"`
	SellToken   string `json:"sell_token"`
	SellAmount  string `json:"sell_amount"`
	BuySymbol   string `json:"buy_symbol"`
	BuyToken    string `json:"buy_token"`
	BuyAmount   string `json:"buy_amount"`
}

type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create order store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create order lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open order sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS orders (
			attempt_id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			status TEXT NOT NULL,
			kind TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_orders_status_finished ON orders(status, finished_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init order schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, record Record) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("save order: missing attempt id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock order store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock order store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	finished := record.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (attempt_id, order_id, status, kind, chain_id, finished_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO UPDATE SET
			order_id=excluded.order_id,
			status=excluded.status,
			kind=excluded.kind,
			chain_id=excluded.chain_id,
			finished_at=excluded.finished_at,
			payload=excluded.payload
	`, record.ID, record.OrderID, string(record.Status), string(record.Kind), record.ChainID, finished.UTC().UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// Get finds a record by attempt id or order id.
func (s *Store) Get(ref string) (Record, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT payload FROM orders WHERE attempt_id = ? OR (order_id != '' AND order_id = ?) ORDER BY finished_at DESC LIMIT 1",
		ref, ref,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, clierr.New(clierr.CodeNotFound, fmt.Sprintf("order not found: %s", ref))
		}
		return Record{}, fmt.Errorf("read order: %w", err)
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("decode order payload: %w", err)
	}
	return record, nil
}

func (s *Store) List(status string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(status) == "" {
		rows, err = s.db.Query("SELECT payload FROM orders ORDER BY finished_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM orders WHERE status = ? ORDER BY finished_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode order row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return records, nil
}
