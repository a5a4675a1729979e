// Package statusapi serves the local station status API: session state, the
// recent-scan ledger, the "ready for next" release, and Prometheus metrics.
//
// The server is optional and bound to loopback by default. When a token is
// configured every route except /healthz requires it as a bearer token.
package statusapi
