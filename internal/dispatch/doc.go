// Package dispatch defines the shared vocabulary of the dispatch scanning
// station: scan payloads, actions, validation modes, backend records, and the
// error markers that classify failures into operator feedback.
//
// Key responsibilities:
//   - Value types passed between the capture source, the scan pipeline, and
//     the backend client.
//   - Parsing helpers for persisted and user-supplied enum values.
//   - Sentinel error markers plus the Wrap helper so every failure carries its
//     component and operation while staying classifiable with errors.Is.
package dispatch
