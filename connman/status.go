package connman

import "fmt"

// StatusKind is the single externally visible connectivity summary.
type StatusKind int

const (
	StatusOffline StatusKind = iota
	StatusWired
	StatusWifi
	StatusAcquiring
)

func (k StatusKind) String() string {
	switch k {
	case StatusWired:
		return "wired-connected"
	case StatusWifi:
		return "wifi-connected"
	case StatusAcquiring:
		return "wifi-acquiring"
	default:
		return "offline"
	}
}

// Status is the derived global status. Strength is only meaningful for
// StatusWifi.
type Status struct {
	Kind     StatusKind
	Strength uint8
}

// IconName returns the freedesktop icon name for the status.
func (s Status) IconName() string {
	switch s.Kind {
	case StatusWired:
		return "network-wired"
	case StatusWifi:
		return SignalIconName(s.Strength)
	case StatusAcquiring:
		return "network-wireless-acquiring"
	default:
		return "network-offline"
	}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusWired:
		return "Connected (wired)"
	case StatusWifi:
		return fmt.Sprintf("Connected (wifi, %d%%)", s.Strength)
	case StatusAcquiring:
		return "Connecting (wifi)"
	default:
		return "Offline"
	}
}

// SignalIconName maps a strength percentage to a wireless signal icon.
func SignalIconName(strength uint8) string {
	switch {
	case strength > 80:
		return "network-wireless-signal-excellent"
	case strength > 55:
		return "network-wireless-signal-good"
	case strength > 30:
		return "network-wireless-signal-ok"
	case strength > 5:
		return "network-wireless-signal-weak"
	default:
		return "network-wireless-signal-none"
	}
}

// deriveStatus applies the fixed precedence: no daemon means offline, any
// connected wired line wins, then the first online wifi service in display
// order, then the first wifi service part-way through connecting.
func deriveStatus(present bool, wired, wifi []*Service) Status {
	if !present {
		return Status{Kind: StatusOffline}
	}
	for _, s := range wired {
		if state, _ := s.State(); state.Connected() {
			return Status{Kind: StatusWired}
		}
	}
	for _, s := range wifi {
		state, _ := s.State()
		switch {
		case state == StateIdle:
			continue
		case state == StateOnline:
			strength, _ := s.Strength()
			return Status{Kind: StatusWifi, Strength: strength}
		case state.Acquiring():
			return Status{Kind: StatusAcquiring}
		}
	}
	return Status{Kind: StatusOffline}
}
