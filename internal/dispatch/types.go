package dispatch

import (
	"fmt"
	"strings"
	"time"
)

// ScanAction is the operator intent attached to every submission.
type ScanAction string

const (
	ActionDispatch ScanAction = "dispatch"
	ActionCancel   ScanAction = "cancel"
)

// ParseScanAction accepts dispatch or cancel, case-insensitively.
func ParseScanAction(value string) (ScanAction, error) {
	switch ScanAction(strings.ToLower(strings.TrimSpace(value))) {
	case ActionDispatch:
		return ActionDispatch, nil
	case ActionCancel:
		return ActionCancel, nil
	default:
		return "", fmt.Errorf("%w: unknown scan action %q", ErrUserInput, value)
	}
}

// ValidationMode governs whether a scan is checked against the backend before
// it is recorded.
type ValidationMode string

const (
	ModeStrict ValidationMode = "strict"
	ModeLoose  ValidationMode = "loose"
)

// ParseValidationMode accepts strict or loose, case-insensitively.
func ParseValidationMode(value string) (ValidationMode, error) {
	switch ValidationMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeLoose:
		return ModeLoose, nil
	default:
		return "", fmt.Errorf("%w: unknown validation mode %q", ErrUserInput, value)
	}
}

// Settings are the operator-tunable scanner preferences persisted across sessions.
type Settings struct {
	AutoSubmit     bool           `json:"auto_submit"`
	ValidationMode ValidationMode `json:"validation_mode"`
}

// DefaultSettings is used for any key missing from the settings store.
func DefaultSettings() Settings {
	return Settings{AutoSubmit: true, ValidationMode: ModeStrict}
}

// ScanPayload is one decoded barcode or manual entry.
type ScanPayload struct {
	RawText string
}

// Blank reports whether the payload carries no usable text.
func (p ScanPayload) Blank() bool {
	return strings.TrimSpace(p.RawText) == ""
}

// OrderDetails is descriptive order metadata returned by validation.
type OrderDetails struct {
	CustomerName string  `json:"customer_name,omitempty"`
	OrderTotal   float64 `json:"order_total,omitempty"`
	Status       string  `json:"status,omitempty"`
	PlatformName string  `json:"platform_name,omitempty"`
}

// ValidationResult is the backend verdict for a scanned barcode.
type ValidationResult struct {
	IsValid           bool          `json:"is_valid"`
	AlreadyDispatched bool          `json:"already_dispatched"`
	Message           string        `json:"message"`
	OrderDetails      *OrderDetails `json:"order_details,omitempty"`
}

// ScanRequest is the submission body sent to the backend.
type ScanRequest struct {
	PlatformOrderID string `json:"platform_order_id"`
	BarcodeData     string `json:"barcode_data"`
	WarehouseID     string `json:"warehouse_id,omitempty"`
	AWBNumber       string `json:"awb_number,omitempty"`
	CourierPartner  string `json:"courier_partner,omitempty"`
	PlatformName    string `json:"platform_name"`
}

// ScanRecord is the canonical record returned by a successful submission.
type ScanRecord struct {
	ID              int64      `json:"id"`
	PlatformOrderID string     `json:"platform_order_id"`
	PlatformName    string     `json:"platform_name"`
	ScannedAt       time.Time  `json:"scanned_at"`
	ScannedBy       string     `json:"scanned_by"`
	AWBNumber       string     `json:"awb_number,omitempty"`
	CourierPartner  string     `json:"courier_partner,omitempty"`
	ScanAction      ScanAction `json:"scan_action"`
}

// Summary is the backend's aggregate view of today's scanning.
type Summary struct {
	TodayCount   int            `json:"today_count"`
	TotalCount   int            `json:"total_count"`
	ByPlatform   map[string]int `json:"by_platform,omitempty"`
	LastScanTime *time.Time     `json:"last_scan_time,omitempty"`
}

// FormFields carries the optional carrier metadata typed alongside a scan.
type FormFields struct {
	AWBNumber      string
	CourierPartner string
}

// Empty reports whether no carrier metadata was provided.
func (f FormFields) Empty() bool {
	return strings.TrimSpace(f.AWBNumber) == "" && strings.TrimSpace(f.CourierPartner) == ""
}
