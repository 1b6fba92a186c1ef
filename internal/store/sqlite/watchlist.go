// Package sqlite persists the user's watchlist and dashboard settings.
// Saved symbols are re-subscribed automatically on every feed
// reconnect; settings are free-form key/value pairs owned by the UI.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the watchlist store.
type Config struct {
	DBPath string // path to the SQLite file, e.g. "data/fxpulse.db"
}

// Store is a single-connection SQLite store in WAL mode.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens (or creates) the database, enables WAL mode and applies the
// schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; the dashboard never needs concurrent connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist (
			symbol     TEXT    NOT NULL PRIMARY KEY,
			timeframe  TEXT    NOT NULL DEFAULT '1H',
			added_at   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT    NOT NULL PRIMARY KEY,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	return err
}

// Symbols returns the saved watchlist symbols in insertion order.
func (s *Store) Symbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT symbol FROM watchlist ORDER BY added_at, symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite watchlist query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Entries returns symbol → preferred timeframe for the whole watchlist.
func (s *Store) Entries() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT symbol, timeframe FROM watchlist`)
	if err != nil {
		return nil, fmt.Errorf("sqlite watchlist query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sym, tf string
		if err := rows.Scan(&sym, &tf); err != nil {
			return nil, err
		}
		out[sym] = tf
	}
	return out, rows.Err()
}

// Add upserts a symbol. Re-adding updates the preferred timeframe but
// keeps the original added_at ordering.
func (s *Store) Add(symbol, timeframe string) error {
	_, err := s.db.Exec(`
		INSERT INTO watchlist (symbol, timeframe, added_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET timeframe = excluded.timeframe
	`, symbol, timeframe, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite watchlist add: %w", err)
	}
	return nil
}

// Remove deletes a symbol from the watchlist. Removing an absent symbol
// is a no-op.
func (s *Store) Remove(symbol string) error {
	_, err := s.db.Exec(`DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("sqlite watchlist remove: %w", err)
	}
	return nil
}

// GetSetting returns the stored value for key, or def when absent.
func (s *Store) GetSetting(key, def string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite settings get: %w", err)
	}
	return val, nil
}

// SetSetting upserts a key/value pair.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite settings set: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
