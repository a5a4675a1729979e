// Package pipeline turns decoded barcodes into exactly one operator-facing
// outcome each.
//
// A single-flight Guard admits one scan at a time; capture detections that
// arrive while a scan is in flight are dropped. Admitted scans are validated
// (strict mode only), optionally confirmed by the operator for cancellations,
// and submitted to the backend. Successful submissions land in the bounded
// Ledger and the same-day counter. In auto-submit mode the guard stays held
// after a capture-originated success until ReadyForNext is invoked, which keeps
// a barcode still in the camera frame from being submitted twice.
package pipeline
