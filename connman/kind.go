package connman

// Kind identifies a connection medium.
type Kind int

const (
	KindWired Kind = iota
	KindWifi

	numKinds
)

// Kinds lists every technology in display order.
var Kinds = [numKinds]Kind{KindWired, KindWifi}

// String returns the daemon's name for the technology, which is also the
// value of a member service's Type property.
func (k Kind) String() string {
	switch k {
	case KindWired:
		return "ethernet"
	case KindWifi:
		return "wifi"
	default:
		return "unknown"
	}
}

// Label returns the user-facing name of the technology.
func (k Kind) Label() string {
	switch k {
	case KindWired:
		return "Wired"
	case KindWifi:
		return "Wifi"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is a known technology.
func (k Kind) Valid() bool {
	return k >= 0 && k < numKinds
}

// ParseKind accepts the daemon name of a technology as well as the
// user-facing aliases "wired" and "wireless".
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "ethernet", "wired", "Wired":
		return KindWired, true
	case "wifi", "wireless", "Wifi":
		return KindWifi, true
	default:
		return 0, false
	}
}

// kindForType maps a service Type property to its technology. Only the
// daemon's names are accepted here.
func kindForType(serviceType string) (Kind, bool) {
	switch serviceType {
	case "ethernet":
		return KindWired, true
	case "wifi":
		return KindWifi, true
	default:
		return 0, false
	}
}

// ServiceState is the connection state of a service.
type ServiceState string

const (
	StateUnknown       ServiceState = ""
	StateIdle          ServiceState = "idle"
	StateFailure       ServiceState = "failure"
	StateAssociation   ServiceState = "association"
	StateConfiguration ServiceState = "configuration"
	StateReady         ServiceState = "ready"
	StateDisconnect    ServiceState = "disconnect"
	StateOnline        ServiceState = "online"
)

// Connected reports whether the service carries traffic.
func (s ServiceState) Connected() bool {
	return s == StateReady || s == StateOnline
}

// Acquiring reports whether the service is part-way through connecting.
func (s ServiceState) Acquiring() bool {
	return s == StateAssociation || s == StateConfiguration || s == StateReady
}

// ManagerState is the daemon's global connectivity state.
type ManagerState string

const (
	ManagerOffline ManagerState = "offline"
	ManagerIdle    ManagerState = "idle"
	ManagerReady   ManagerState = "ready"
	ManagerOnline  ManagerState = "online"
)
