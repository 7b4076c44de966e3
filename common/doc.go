// Package common provides shared constants, types, utilities, and interfaces
// used throughout the ConnMan indicator.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: Bus names, object paths, timeouts and presentation limits
//   - Errors: Sentinel errors and TransportError for daemon request failures
//   - Interfaces: Abstractions for logging and desktop notifications
//   - Logger: Leveled logging with optional rotated file output
//   - Utils: Small helpers for directories and string slices
//
// # Usage
//
//	common.LogInfo("Daemon appeared on the bus")
//
//	if errors.Is(err, common.ErrStaleIdentity) {
//	    // The service vanished before the command reached it
//	}
package common
