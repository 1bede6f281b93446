package database

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"vigia-telegram-bot/internal/types"
)

// InsertAlert persists a new alert for a chat and returns its id. The target
// is stored as text, exactly as given, so the confirmed value never drifts.
func (s *Store) InsertAlert(chatID int64, symbol, name, value, currency string) (int64, error) {
	query := `
	INSERT INTO alerts (chat_id, symbol, name, value, currency)
	VALUES (?, ?, ?, ?, ?);`

	res, err := s.db.Exec(query, chatID, symbol, name, value, currency)
	if err != nil {
		return 0, errors.Wrapf(ErrUnavailable, "failed to insert alert: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrapf(ErrUnavailable, "failed to read alert id: %v", err)
	}

	log.Debugf("alert inserted: id=%d chat=%d symbol=%s value=%s", id, chatID, symbol, value)
	return id, nil
}

// AllAlerts returns every stored alert for the checker pass, plus the ids of
// rows whose stored target no longer parses to a positive number. Corrupt
// rows are reported instead of returned so the checker can drop them.
func (s *Store) AllAlerts() ([]types.Alert, []int64, error) {
	query := `SELECT id, chat_id, symbol, name, value, currency, triggered, created_at FROM alerts;`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrUnavailable, "failed to query alerts: %v", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	var corrupt []int64
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, nil, errors.Wrapf(ErrUnavailable, "failed to scan row: %v", err)
		}
		if alert.Target <= 0 {
			corrupt = append(corrupt, alert.ID)
			continue
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrapf(ErrUnavailable, "failed to read alerts: %v", err)
	}

	return alerts, corrupt, nil
}

// AlertsByChat returns the alerts owned by one chat.
func (s *Store) AlertsByChat(chatID int64) ([]types.Alert, error) {
	query := `SELECT id, chat_id, symbol, name, value, currency, triggered, created_at FROM alerts WHERE chat_id = ?;`

	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "failed to query alerts for chat %d: %v", chatID, err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "failed to scan row: %v", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "failed to read alerts: %v", err)
	}

	return alerts, nil
}

// DeleteAlert removes an alert only if the chat owns it. A missing or
// foreign id is a normal false return, not an error.
func (s *Store) DeleteAlert(id, chatID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM alerts WHERE id = ? AND chat_id = ?;`, id, chatID)
	if err != nil {
		return false, errors.Wrapf(ErrUnavailable, "failed to delete alert %d: %v", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(ErrUnavailable, "failed to delete alert %d: %v", id, err)
	}
	return n > 0, nil
}

// DeleteAlertByID removes an alert regardless of owner. Only the checker
// uses this, to drop corrupt rows.
func (s *Store) DeleteAlertByID(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM alerts WHERE id = ?;`, id); err != nil {
		return errors.Wrapf(ErrUnavailable, "failed to delete alert %d: %v", id, err)
	}
	return nil
}

// SetTriggered flips the trigger flag. Setting the value already in place
// affects no rows and is not an error.
func (s *Store) SetTriggered(id int64, triggered bool) error {
	if _, err := s.db.Exec(`UPDATE alerts SET triggered = ? WHERE id = ?;`, triggered, id); err != nil {
		return errors.Wrapf(ErrUnavailable, "failed to update alert %d: %v", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(rows rowScanner) (types.Alert, error) {
	var alert types.Alert
	var value string
	if err := rows.Scan(&alert.ID, &alert.ChatID, &alert.Symbol, &alert.Name, &value, &alert.Currency, &alert.Triggered, &alert.CreatedAt); err != nil {
		return types.Alert{}, err
	}

	// An unparsable or non-finite target surfaces as Target == 0, which
	// AllAlerts classifies as corrupt. ParseFloat accepts "nan" and "inf",
	// and neither can ever be evaluated against a real price.
	if target, err := strconv.ParseFloat(value, 64); err == nil &&
		!math.IsNaN(target) && !math.IsInf(target, 0) {
		alert.Target = target
	}
	return alert, nil
}
