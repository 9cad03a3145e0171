// Package serial owns physical serial devices.
//
// A Channel wraps one device path and tracks its lifecycle state. It never
// reconnects on its own: an I/O error moves it into StateError and the
// owner decides when to Open it again.
package serial
