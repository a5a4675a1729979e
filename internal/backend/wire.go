package backend

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"dispatchscan/internal/dispatch"
)

// wireRecord tolerates the timestamp layouts the backend emits, which may
// omit the zone offset.
type wireRecord struct {
	ID              int64               `json:"id"`
	PlatformOrderID string              `json:"platform_order_id"`
	PlatformName    string              `json:"platform_name"`
	ScannedAt       string              `json:"scanned_at"`
	ScannedBy       string              `json:"scanned_by"`
	AWBNumber       *string             `json:"awb_number"`
	CourierPartner  *string             `json:"courier_partner"`
	ScanAction      dispatch.ScanAction `json:"scan_action"`
}

func (w wireRecord) record() dispatch.ScanRecord {
	rec := dispatch.ScanRecord{
		ID:              w.ID,
		PlatformOrderID: w.PlatformOrderID,
		PlatformName:    w.PlatformName,
		ScannedAt:       parseTimestamp(w.ScannedAt),
		ScannedBy:       w.ScannedBy,
		ScanAction:      w.ScanAction,
	}
	if w.AWBNumber != nil {
		rec.AWBNumber = *w.AWBNumber
	}
	if w.CourierPartner != nil {
		rec.CourierPartner = *w.CourierPartner
	}
	return rec
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

type wireSummary struct {
	TodayCount   *int           `json:"today_count"`
	TodayScans   *int           `json:"today_scans"`
	TotalCount   int            `json:"total_count"`
	TotalScans   int            `json:"total_scans"`
	ByPlatform   map[string]int `json:"by_platform"`
	LastScanTime string         `json:"last_scan_time"`
}

func (w wireSummary) summary() dispatch.Summary {
	out := dispatch.Summary{ByPlatform: w.ByPlatform, TotalCount: w.TotalCount}
	switch {
	case w.TodayCount != nil:
		out.TodayCount = *w.TodayCount
	case w.TodayScans != nil:
		out.TodayCount = *w.TodayScans
	}
	if out.TotalCount == 0 {
		out.TotalCount = w.TotalScans
	}
	if ts := parseTimestamp(w.LastScanTime); !ts.IsZero() {
		out.LastScanTime = &ts
	}
	return out
}

// decodeScanList accepts a bare array or an envelope keyed by scans or items.
func decodeScanList(raw json.RawMessage) ([]wireRecord, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []wireRecord
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var envelope struct {
		Scans []wireRecord `json:"scans"`
		Items []wireRecord `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Scans != nil {
		return envelope.Scans, nil
	}
	if envelope.Items != nil {
		return envelope.Items, nil
	}
	return nil, errors.New("unrecognized scan list payload")
}
