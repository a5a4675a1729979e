package pipeline

import "sync/atomic"

// Guard is a single-flight admission gate shared by capture goroutines and
// the manual entry path.
type Guard struct {
	busy atomic.Bool
}

// TryAdmit claims the guard. It returns false when a scan is already in flight.
func (g *Guard) TryAdmit() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the guard for the next scan.
func (g *Guard) Release() {
	g.busy.Store(false)
}

// Busy reports whether a scan currently holds the guard.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}
