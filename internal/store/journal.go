package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dispatchscan/internal/dispatch"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// JournalEntry is the local copy of one successful submission.
type JournalEntry struct {
	ID             int64
	SessionID      string
	Record         dispatch.ScanRecord
	ValidationMode dispatch.ValidationMode
	RecordedAt     time.Time
}

// AppendJournal stores a successful submission and returns the local row id.
func (s *Store) AppendJournal(ctx context.Context, entry JournalEntry) (int64, error) {
	if entry.Record.PlatformOrderID == "" {
		return 0, errors.New("journal entry requires platform order id")
	}
	recordedAt := entry.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	scannedAt := entry.Record.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = recordedAt
	}

	var recordID sql.NullInt64
	if entry.Record.ID != 0 {
		recordID = sql.NullInt64{Int64: entry.Record.ID, Valid: true}
	}

	res, err := s.exec(ctx,
		`INSERT INTO scan_journal (
			session_id, record_id, platform_order_id, platform_name, scan_action,
			validation_mode, scanned_by, awb_number, courier_partner, scanned_at, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		recordID,
		entry.Record.PlatformOrderID,
		entry.Record.PlatformName,
		string(entry.Record.ScanAction),
		string(entry.ValidationMode),
		nullableString(entry.Record.ScannedBy),
		nullableString(entry.Record.AWBNumber),
		nullableString(entry.Record.CourierPartner),
		scannedAt.UTC().Format(timeLayout),
		recordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("append journal: %w", err)
	}
	return res.LastInsertId()
}

// RecentJournal returns up to limit entries, newest first.
func (s *Store) RecentJournal(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, session_id, record_id, platform_order_id, platform_name, scan_action,
		        validation_mode, scanned_by, awb_number, courier_partner, scanned_at, recorded_at
		   FROM scan_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry                   JournalEntry
			recordID                sql.NullInt64
			action, mode            string
			scannedBy, awb, courier sql.NullString
			scannedAt, recordedAt   string
		)
		if err := rows.Scan(&entry.ID, &entry.SessionID, &recordID, &entry.Record.PlatformOrderID,
			&entry.Record.PlatformName, &action, &mode, &scannedBy, &awb, &courier, &scannedAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entry.Record.ID = recordID.Int64
		entry.Record.ScanAction = dispatch.ScanAction(action)
		entry.ValidationMode = dispatch.ValidationMode(mode)
		entry.Record.ScannedBy = scannedBy.String
		entry.Record.AWBNumber = awb.String
		entry.Record.CourierPartner = courier.String
		entry.Record.ScannedAt, _ = time.Parse(timeLayout, scannedAt)
		entry.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountSince counts journal entries scanned at or after since.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(*) FROM scan_journal WHERE scanned_at >= ?`,
		since.UTC().Format(timeLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return count, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
