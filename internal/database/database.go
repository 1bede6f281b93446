package database

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrUnavailable marks failures of the backing store itself, as opposed to
// normal empty results.
var ErrUnavailable = errors.New("storage unavailable")

// Store owns the sqlite handle. One Store is shared by the bot handlers and
// the alert checker; database/sql serializes access per connection.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	createAlertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT '',
		triggered INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_chat_id ON alerts (chat_id);`
	if _, err = db.Exec(createAlertsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create alerts table")
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL,
		label_key TEXT DEFAULT NULL,
		label_value TEXT DEFAULT NULL,
		metric_value REAL NOT NULL,
		PRIMARY KEY (metric_name, label_key, label_value)
	);`
	if _, err = db.Exec(createMetricsTable); err != nil {
		return nil, errors.Wrap(err, "failed to create metrics table")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
