// Package capture acquires barcode capture hardware and turns its output into
// a stream of decoded strings.
//
// A Source acquires a Device: a serial/HID-POS scanner character device, an
// external decoder process such as zbarcam reading a camera, or any io.Reader.
// The Controller drives the Stopped -> Starting -> Running -> Stopped
// lifecycle, refuses to start without a session channel, and hands back a
// StopHandle whose Stop releases the device before returning. Acquisition
// failures are reported once as dispatch.ErrDeviceAcquisition and never
// retried; the operator starts capture again explicitly.
package capture
