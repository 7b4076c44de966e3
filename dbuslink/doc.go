// Package dbuslink connects the connman engine to the ConnMan daemon over
// D-Bus using github.com/godbus/dbus/v5.
//
// A Bus implements connman.Bus. Method calls run on their own goroutine
// with a per-call deadline; signals are received on one goroutine and fanned
// out to the watchers registered for their object path and member. Values
// are normalized before they reach the engine: variants are unwrapped,
// object paths become strings and struct arrays become []interface{}.
package dbuslink
