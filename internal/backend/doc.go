// Package backend talks to the order-management HTTP API on behalf of the scan
// pipeline: barcode validation, scan submission, and the summary/history reads
// that seed the recent-scan ledger.
//
// Requests carry a bearer token when configured and an X-Request-ID header so
// station logs can be correlated with server logs. Non-2xx responses become
// *APIError values whose Message is extracted from the usual detail, message,
// or error body fields; Message(err) gives the operator-facing text for any
// error the client returns.
package backend
