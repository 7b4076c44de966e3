package connman

// ServiceView is an immutable copy of one service's facts.
type ServiceView struct {
	Path string
	Name string
	// Type is the raw daemon type; Kind is valid only when HasKind is set.
	Type               string
	Kind               Kind
	HasKind            bool
	Mode               string
	Security           []string
	Secured            bool
	State              ServiceState
	Strength           uint8
	HasStrength        bool
	Favourite          bool
	Immutable          bool
	AutoConnect        bool
	Roaming            bool
	PassphraseRequired bool
	HasPassphrase      bool
	// Authenticating is set while a credential flow is live for the service.
	Authenticating bool
	// LastError is the daemon's reason for the last failed Connect. It is
	// cleared when a new Connect is issued.
	LastError string
}

// Connected reports whether the service carries traffic.
func (v ServiceView) Connected() bool { return v.State.Connected() }

// SignalIcon returns the wireless signal icon for the service.
func (v ServiceView) SignalIcon() string { return SignalIconName(v.Strength) }

// TechnologyView is an immutable copy of one technology's facts.
type TechnologyView struct {
	Kind      Kind
	Label     string
	Available bool
	Enabled   bool
	Blocked   bool
	Reactive  bool
	Visible   bool
	// Pending is set while an Enable/Disable request is unconfirmed;
	// PendingTarget is the requested state.
	Pending       bool
	PendingTarget bool
	Expanded      bool
	Direct        []ServiceView
	Overflow      []ServiceView
	// HasOverflow is set once the overflow group exists, even when empty.
	HasOverflow   bool
	OverflowLabel string
}

// Services returns direct and overflow members in display order.
func (v TechnologyView) Services() []ServiceView {
	out := make([]ServiceView, 0, len(v.Direct)+len(v.Overflow))
	out = append(out, v.Direct...)
	return append(out, v.Overflow...)
}

// Snapshot is the state published to presentation after every
// reconciliation. It shares no memory with the live model.
type Snapshot struct {
	DaemonPresent bool
	// Synced is set once the first service list has been applied.
	Synced       bool
	State        ManagerState
	OfflineMode  bool
	Status       Status
	Technologies [numKinds]TechnologyView
	// Services holds every cached service in daemon order, including
	// last-known data while the daemon is away.
	Services []ServiceView
	// Extra holds manager properties this package does not interpret.
	Extra map[string]interface{}
}

// Technology returns the view for kind.
func (s Snapshot) Technology(kind Kind) TechnologyView {
	if !kind.Valid() {
		return TechnologyView{}
	}
	return s.Technologies[kind]
}

// Service finds a service by path.
func (s Snapshot) Service(path string) (ServiceView, bool) {
	for _, v := range s.Services {
		if v.Path == path {
			return v, true
		}
	}
	return ServiceView{}, false
}

// Lookup resolves a service by path or, failing that, by exact name.
func (s Snapshot) Lookup(nameOrPath string) (ServiceView, bool) {
	if v, ok := s.Service(nameOrPath); ok {
		return v, true
	}
	for _, v := range s.Services {
		if v.Name == nameOrPath {
			return v, true
		}
	}
	return ServiceView{}, false
}

func viewOf(s *Service) ServiceView {
	v := ServiceView{Path: s.path, Name: s.DisplayName(), Secured: s.Secured()}
	v.Type, _ = s.Type()
	v.Kind, v.HasKind = s.Kind()
	v.Mode, _ = s.Mode()
	v.Security, _ = s.Security()
	v.State, _ = s.State()
	v.Strength, v.HasStrength = s.Strength()
	v.Favourite, _ = s.Favourite()
	v.Immutable, _ = s.Immutable()
	v.AutoConnect, _ = s.AutoConnect()
	v.Roaming, _ = s.Roaming()
	v.PassphraseRequired, _ = s.PassphraseRequired()
	_, v.HasPassphrase = s.Passphrase()
	if err := s.LastError(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

func viewsOf(services []*Service, authenticating map[string]*AuthFlow) []ServiceView {
	if len(services) == 0 {
		return nil
	}
	out := make([]ServiceView, 0, len(services))
	for _, s := range services {
		v := viewOf(s)
		_, v.Authenticating = authenticating[s.path]
		out = append(out, v)
	}
	return out
}
