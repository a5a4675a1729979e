// Package station assembles a scanning session: it holds the single-session
// station lock, opens the local store, loads the session state, and connects
// the scan pipeline to the backend, the capture source, notifications,
// metrics, and the optional status API.
//
// A Station is created with Open, started with Start, and must be closed with
// Close so the capture device and the station lock are released.
package station
