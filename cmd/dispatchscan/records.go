package main

import (
	"strconv"
	"time"

	"dispatchscan/internal/dispatch"
	"dispatchscan/internal/store"
)

const clockLayout = "15:04:05"

func renderScanTable(records []dispatch.ScanRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			formatClock(rec.ScannedAt),
			rec.PlatformOrderID,
			rec.PlatformName,
			string(rec.ScanAction),
			dash(rec.AWBNumber),
			dash(rec.CourierPartner),
			dash(rec.ScannedBy),
		})
	}
	return renderTable(
		[]string{"Time", "Order", "Channel", "Action", "AWB", "Courier", "By"},
		rows,
		nil,
	)
}

func renderJournalTable(entries []store.JournalEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rec := entry.Record
		rows = append(rows, []string{
			entry.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			rec.PlatformOrderID,
			rec.PlatformName,
			string(rec.ScanAction),
			string(entry.ValidationMode),
			strconv.FormatInt(rec.ID, 10),
			shortID(entry.SessionID),
		})
	}
	return renderTable(
		[]string{"Recorded", "Order", "Channel", "Action", "Mode", "Record", "Session"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(clockLayout)
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return dash(id)
}
