// Package session owns the per-session mutable state of a scanning station:
// the persisted scanner settings, the locked sales channel, and the selected
// scan action.
//
// State is an explicit object handed to the pipeline. Its fields change only
// through ApplySettings, Lock, Unlock, and SetAction, so the channel lock and
// the persist-before-apply rule hold regardless of which goroutine calls in.
package session
