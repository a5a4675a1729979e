// Command dispatchscan runs dispatch scanning sessions at a packing station.
//
// `dispatchscan run` opens an interactive console: lock a channel, start the
// scanner, and every decoded barcode is validated and recorded with the order
// backend. Other subcommands submit a single scan, inspect or change the
// persisted scanner settings, show today's summary and history, and talk to a
// running session through its local status API.
package main
