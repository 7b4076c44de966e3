package connman

import (
	"path"
	"time"

	"github.com/yllada/connman-indicator/common"
)

// EventType identifies a notification raised by a Service.
type EventType int

const (
	// EventChanged follows every applied snapshot or property change.
	EventChanged EventType = iota
	// EventConnected follows a successful Connect reply.
	EventConnected
	// EventConnectionFailed follows a failed Connect reply; Err holds the reason.
	EventConnectionFailed
	// EventDisconnected follows a successful Disconnect reply.
	EventDisconnected
	// EventRemoved is the last event a Service raises before its
	// subscribers are dropped.
	EventRemoved
)

func (e EventType) String() string {
	switch e {
	case EventChanged:
		return "changed"
	case EventConnected:
		return "connected"
	case EventConnectionFailed:
		return "connection-failed"
	case EventDisconnected:
		return "disconnected"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ServiceEvent is delivered to Service subscribers on the event loop.
type ServiceEvent struct {
	Type    EventType
	Service *Service
	Err     error
}

type serviceSubscriber struct {
	id int
	fn func(ServiceEvent)
}

// Service models one connectable network service. The object for a path is
// created once and updated in place until the path leaves the daemon's
// service list.
type Service struct {
	path           string
	props          Properties
	passphrase     *string
	lastErr        error
	remote         *remote
	log            common.Logger
	connectTimeout time.Duration

	subscribers []serviceSubscriber
	nextID      int
	unwatch     func()
	destroyed   bool
}

func newService(objectPath string, r *remote, log common.Logger, connectTimeout time.Duration) *Service {
	s := &Service{
		path:           objectPath,
		remote:         r,
		log:            log,
		connectTimeout: connectTimeout,
	}
	s.unwatch = r.watch("PropertyChanged", s.onPropertyChanged)
	return s
}

// Path returns the daemon-assigned object path, the service's identity.
func (s *Service) Path() string { return s.path }

// Populated reports whether any daemon data has been applied yet.
func (s *Service) Populated() bool { return s.props != nil }

// Type returns the raw Type property ("ethernet", "wifi", ...).
func (s *Service) Type() (string, bool) { return s.props.str(propType) }

// Kind returns the technology the service belongs to.
func (s *Service) Kind() (Kind, bool) {
	t, ok := s.Type()
	if !ok {
		return 0, false
	}
	return kindForType(t)
}

func (s *Service) Name() (string, bool) { return s.props.str(propName) }
func (s *Service) Mode() (string, bool) { return s.props.str(propMode) }

// Security returns the list of security mechanisms.
func (s *Service) Security() ([]string, bool) { return s.props.strings(propSecurity) }

// State returns the connection state.
func (s *Service) State() (ServiceState, bool) {
	v, ok := s.props.str(propState)
	return ServiceState(v), ok
}

// Strength returns the signal strength in percent.
func (s *Service) Strength() (uint8, bool) {
	v, ok := s.props[propStrength]
	if !ok {
		return 0, false
	}
	return asPercent(v)
}

func (s *Service) Favourite() (bool, bool)          { return s.props.flag(propFavourite) }
func (s *Service) Immutable() (bool, bool)          { return s.props.flag(propImmutable) }
func (s *Service) AutoConnect() (bool, bool)        { return s.props.flag(propAutoConnect) }
func (s *Service) Roaming() (bool, bool)            { return s.props.flag(propRoaming) }
func (s *Service) PassphraseRequired() (bool, bool) { return s.props.flag(propPassphraseRequired) }

// Passphrase returns the locally cached passphrase. The daemon never
// reports it back.
func (s *Service) Passphrase() (string, bool) {
	if s.passphrase == nil {
		return "", false
	}
	return *s.passphrase, true
}

// Property returns any property by name, including ones this package does
// not interpret.
func (s *Service) Property(name string) (interface{}, bool) {
	v, ok := s.props[name]
	return v, ok
}

// Secured reports whether joining the service needs credentials of some kind.
// Unknown security counts as secured.
func (s *Service) Secured() bool {
	security, ok := s.Security()
	if !ok {
		return true
	}
	return !common.StringInSlice("none", security)
}

// DisplayName returns the service name, or a placeholder derived from the
// path for hidden networks.
func (s *Service) DisplayName() string {
	if name, ok := s.Name(); ok && name != "" {
		return name
	}
	return path.Base(s.path)
}

// Subscribe registers fn for this service's events and returns a function
// that removes it.
func (s *Service) Subscribe(fn func(ServiceEvent)) (unsubscribe func()) {
	if s.destroyed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, serviceSubscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (s *Service) SubscriberCount() int { return len(s.subscribers) }

func (s *Service) emit(eventType EventType, err error) {
	event := ServiceEvent{Type: eventType, Service: s, Err: err}
	subscribers := make([]serviceSubscriber, len(s.subscribers))
	copy(subscribers, s.subscribers)
	for _, sub := range subscribers {
		sub.fn(event)
	}
}

// applySnapshot replaces every daemon-reported property at once.
func (s *Service) applySnapshot(props Properties) {
	if s.destroyed {
		return
	}
	next := make(Properties, len(props))
	for name, value := range props {
		if name == propPassphrase {
			continue
		}
		next[name] = value
	}
	s.props = next
	s.emit(EventChanged, nil)
}

// applyPropertyChange merges one property. Names this package does not
// interpret are kept as they are.
func (s *Service) applyPropertyChange(name string, value interface{}) {
	if s.destroyed {
		return
	}
	if name == propPassphrase {
		s.log.Debug("Ignoring daemon-reported passphrase for %s", s.path)
		return
	}
	if !common.StringInSlice(name, knownServiceProperties) {
		s.log.Debug("%v", common.WrapError(common.ErrUnknownProperty, s.path+" "+name))
	}
	if s.props == nil {
		s.props = make(Properties)
	}
	s.props[name] = value
	s.emit(EventChanged, nil)
}

func (s *Service) onPropertyChanged(args []interface{}) {
	name, value, ok := decodePropertyChanged(args)
	if !ok {
		s.log.Warn("Malformed PropertyChanged from %s: %v", s.path, args)
		return
	}
	s.applyPropertyChange(name, value)
}

// refresh fetches the full property set, for services listed without one.
func (s *Service) refresh() {
	s.remote.call("GetProperties", 0, func(reply Reply) {
		if s.destroyed {
			return
		}
		if reply.Err != nil {
			s.log.Warn("Unable to update properties for service %s: %v", s.path, reply.Err)
			return
		}
		props, ok := firstProperties(reply.Body)
		if !ok {
			s.log.Warn("%v", common.WrapError(common.ErrMalformedReply, s.path+" GetProperties"))
			return
		}
		s.applySnapshot(props)
	})
}

// setPassphrase caches value and forwards it to the daemon. The daemon does
// not signal this property, so the cache is authoritative from here on.
func (s *Service) setPassphrase(value string) {
	s.passphrase = &value
	s.remote.call("SetProperty", 0, func(reply Reply) {
		if reply.Err != nil {
			s.log.Warn("Unable to set the passphrase for %s: %v", s.DisplayName(), reply.Err)
		}
	}, propPassphrase, Variant{Value: value})
}

// clearPassphrase drops the cached passphrase and asks the daemon to forget it.
func (s *Service) clearPassphrase() {
	s.passphrase = nil
	s.remote.call("ClearProperty", 0, func(reply Reply) {
		if reply.Err != nil {
			s.log.Warn("Unable to clear the passphrase for %s: %v", s.DisplayName(), reply.Err)
		}
	}, propPassphrase)
}

// needsPassphrase reports whether connecting must first collect credentials.
func (s *Service) needsPassphrase() bool {
	immutable, _ := s.Immutable()
	required, _ := s.PassphraseRequired()
	_, cached := s.Passphrase()
	return !immutable && required && !cached
}

// connect asks the daemon to connect. State transitions arrive as property
// changes; the reply only decides between connected and connection-failed.
func (s *Service) connect() {
	s.log.Info("Connecting %s", s.DisplayName())
	if s.lastErr != nil {
		s.lastErr = nil
		s.emit(EventChanged, nil)
	}
	s.remote.call("Connect", s.connectTimeout, func(reply Reply) {
		if s.destroyed {
			return
		}
		if reply.Err != nil {
			s.log.Warn("Unable to connect %s: %v", s.DisplayName(), reply.Err)
			s.lastErr = reply.Err
			s.emit(EventConnectionFailed, reply.Err)
			return
		}
		s.emit(EventConnected, nil)
	})
}

// LastError returns the error of the most recent Connect reply, or nil
// when it succeeded or is still outstanding.
func (s *Service) LastError() error { return s.lastErr }

func (s *Service) disconnect() {
	s.log.Info("Disconnecting %s", s.DisplayName())
	s.remote.call("Disconnect", s.connectTimeout, func(reply Reply) {
		if s.destroyed {
			return
		}
		if reply.Err != nil {
			s.log.Warn("Unable to disconnect %s: %v", s.DisplayName(), reply.Err)
			return
		}
		s.emit(EventDisconnected, nil)
	})
}

// destroy raises EventRemoved, drops every subscriber and stops listening
// to the daemon. Later replies for this service are ignored.
func (s *Service) destroy() {
	if s.destroyed {
		return
	}
	s.emit(EventRemoved, nil)
	s.destroyed = true
	s.subscribers = nil
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
}
