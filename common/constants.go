// Package common provides shared constants, types, and utilities
// used across the ConnMan indicator.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "ConnMan Indicator"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "connman-indicator"
)

// File names used by the application.
const (
	ConfigFileName = "config.yaml"
	LogFileName    = "connman-indicator.log"
)

// Daemon bus names and interfaces.
const (
	// DaemonBusName is the well-known bus name owned by connmand.
	DaemonBusName = "net.connman"
	// ManagerPath is the object path of the daemon's manager object.
	ManagerPath = "/"
	// TechnologyPathPrefix prefixes per-technology object paths.
	TechnologyPathPrefix = "/net/connman/technology/"

	ManagerInterface    = "net.connman.Manager"
	ServiceInterface    = "net.connman.Service"
	TechnologyInterface = "net.connman.Technology"
)

// Default timeouts and intervals.
const (
	// ConnectTimeout bounds Connect and Disconnect requests. The daemon
	// does not answer until association and DHCP have completed or failed.
	ConnectTimeout = 120 * time.Second
	// FailureLinger is how long the credential prompt stays visible after
	// a failed authenticated connect.
	FailureLinger = 2 * time.Second
	// SyncTimeout bounds how long one-shot CLI commands wait for the first
	// full service list.
	SyncTimeout = 10 * time.Second
)

// Presentation constants.
const (
	// VisibleNetworks is how many wifi services are shown before the
	// remainder is moved into the overflow group.
	VisibleNetworks = 5
	// OverflowLabel is the title of the overflow group.
	OverflowLabel = "More..."
	// TrayIconSize is the size of the system tray icon.
	TrayIconSize = 22
)

// Bus selection values.
const (
	BusSystem  = "system"
	BusSession = "session"
)
