package connman

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/yllada/connman-indicator/common"
)

// Re-export common errors for convenience.
var (
	ErrStaleIdentity     = common.ErrStaleIdentity
	ErrUnknownTechnology = common.ErrUnknownTechnology
	ErrTechnologyBlocked = common.ErrTechnologyBlocked
	ErrAuthInProgress    = common.ErrAuthInProgress
	ErrAuthCancelled     = common.ErrAuthCancelled
)

// Config tunes the engine.
type Config struct {
	// DaemonName is the well-known bus name whose ownership decides
	// daemon presence.
	DaemonName string
	// VisibleNetworks is how many wifi services are shown before the
	// overflow group.
	VisibleNetworks int
	// ConnectTimeout bounds Connect and Disconnect requests.
	ConnectTimeout time.Duration
	// FailureLinger is passed to the prompt with AuthFailed events.
	FailureLinger time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DaemonName:      common.DaemonBusName,
		VisibleNetworks: common.VisibleNetworks,
		ConnectTimeout:  common.ConnectTimeout,
		FailureLinger:   common.FailureLinger,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DaemonName == "" {
		c.DaemonName = d.DaemonName
	}
	if c.VisibleNetworks < 1 {
		c.VisibleNetworks = d.VisibleNetworks
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.FailureLinger < 0 {
		c.FailureLinger = d.FailureLinger
	}
	return c
}

// Observer is told about reconciliations, request outcomes and published
// snapshots. Calls happen on the event loop.
type Observer interface {
	Reconciled(trigger string)
	RequestCompleted(method string, err error)
	Published(snapshot Snapshot)
}

type listener struct {
	id int
	fn func(Snapshot)
}

// Manager is the root of the model. It owns every Technology and Service
// and is only mutated on its event loop; exported methods post work there
// and return immediately.
type Manager struct {
	cfg  Config
	bus  Bus
	loop Dispatcher
	log  common.Logger

	manager *remote

	present      bool
	watchingName bool
	state        ManagerState
	offlineMode  bool
	synced       bool
	status       Status
	extra        Properties

	technologies [numKinds]*Technology
	services     map[string]*Service
	order        []string
	serviceSubs  map[string]func()
	reconciling  bool

	// Service-list requests are numbered so that a reply older than one
	// already applied is dropped.
	servicesIssued  uint64
	servicesApplied uint64

	flows    map[string]*AuthFlow
	prompt   CredentialPrompt
	observer Observer

	listeners    []listener
	nextListener int
	latest       atomic.Pointer[Snapshot]

	cancels []func()
	started bool
}

// NewManager creates a Manager talking to the daemon through bus. All
// callbacks run on loop.
func NewManager(bus Bus, loop Dispatcher, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:         cfg,
		bus:         bus,
		loop:        loop,
		log:         common.GetLogger().Component("connman"),
		extra:       make(Properties),
		services:    make(map[string]*Service),
		serviceSubs: make(map[string]func()),
		flows:       make(map[string]*AuthFlow),
	}
	m.manager = m.remoteFor(common.ManagerPath)
	for _, kind := range Kinds {
		object := m.remoteFor(common.TechnologyPathPrefix + kind.String())
		m.technologies[kind] = newTechnology(kind, OrderingFor(kind, cfg.VisibleNetworks), m.manager, object, m.log, m.refresh)
	}
	empty := m.buildSnapshot()
	m.latest.Store(&empty)
	return m
}

// SetLogger replaces the logger. Call before Start.
func (m *Manager) SetLogger(log common.Logger) {
	if log == nil {
		log = common.NopLogger{}
	}
	m.log = log
	for _, t := range m.technologies {
		t.log = log
	}
}

// SetCredentialPrompt installs the collaborator that collects passphrases.
func (m *Manager) SetCredentialPrompt(prompt CredentialPrompt) {
	m.loop.Post(func() { m.prompt = prompt })
}

// SetObserver installs an observer, replacing any previous one.
func (m *Manager) SetObserver(observer Observer) {
	m.loop.Post(func() { m.observer = observer })
}

// Start subscribes to the daemon and begins the initial sync.
func (m *Manager) Start() {
	m.loop.Post(m.start)
}

// Stop drops every subscription. The model is left as it was.
func (m *Manager) Stop() {
	m.loop.Post(m.stop)
}

// Shutdown is Stop that waits until the loop has dropped the subscriptions,
// or ctx ends. The loop must still be running for it to succeed.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	m.loop.Post(func() {
		m.stop()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return common.WrapError(common.ErrTimeout, "engine shutdown")
	}
}

// Snapshot returns the most recently published snapshot. Safe from any
// goroutine.
func (m *Manager) Snapshot() Snapshot {
	return *m.latest.Load()
}

// Subscribe registers fn for every published snapshot. fn is called on the
// event loop, first with the current snapshot.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	var id int
	m.loop.Post(func() {
		m.nextListener++
		id = m.nextListener
		m.listeners = append(m.listeners, listener{id: id, fn: fn})
		fn(m.Snapshot())
	})
	return func() {
		m.loop.Post(func() {
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ConnectService connects the service at path, collecting a passphrase
// first when one is needed.
func (m *Manager) ConnectService(path string) {
	m.loop.Post(func() { m.report("connect", m.connectService(path)) })
}

// DisconnectService disconnects the service at path.
func (m *Manager) DisconnectService(path string) {
	m.loop.Post(func() { m.report("disconnect", m.disconnectService(path)) })
}

// EnableTechnology powers a technology on.
func (m *Manager) EnableTechnology(kind Kind) {
	m.loop.Post(func() { m.report("enable", m.setTechnologyPower(kind, true)) })
}

// DisableTechnology powers a technology off.
func (m *Manager) DisableTechnology(kind Kind) {
	m.loop.Post(func() { m.report("disable", m.setTechnologyPower(kind, false)) })
}

// SubmitPassphrase answers the live credential flow for path.
func (m *Manager) SubmitPassphrase(path, passphrase string) {
	m.loop.Post(func() { m.report("submit passphrase", m.submitPassphrase(path, passphrase)) })
}

// CancelAuthentication ends the live credential flow for path.
func (m *Manager) CancelAuthentication(path string) {
	m.loop.Post(func() { m.report("cancel authentication", m.cancelAuthentication(path)) })
}

// report logs a command outcome. A target that no longer exists is a no-op.
func (m *Manager) report(command string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, common.ErrStaleIdentity):
		m.log.Debug("Ignoring %s: %v", command, err)
	default:
		m.log.Warn("Unable to %s: %v", command, err)
	}
}

func (m *Manager) remoteFor(path string) *remote {
	return &remote{obj: m.bus.Object(path), loop: m.loop, observer: m.observeRequest}
}

func (m *Manager) observeRequest(method string, err error) {
	if m.observer != nil {
		m.observer.RequestCompleted(method, err)
	}
}

func (m *Manager) start() {
	if m.started {
		return
	}
	m.started = true

	m.cancels = append(m.cancels,
		m.manager.watch("PropertyChanged", m.onPropertyChanged),
		m.manager.watch("StateChanged", m.onStateChanged),
	)
	for _, t := range m.technologies {
		t.watch()
	}

	cancel, err := m.bus.WatchName(m.cfg.DaemonName, func(present bool) {
		m.loop.Post(func() { m.setDaemonPresent(present) })
	})
	if err != nil {
		// Presence is then inferred from request outcomes.
		m.log.Warn("Unable to watch %s, inferring presence from replies: %v", m.cfg.DaemonName, err)
		m.fetchAll()
	} else {
		m.watchingName = true
		m.cancels = append(m.cancels, cancel)
	}
	m.publish()
}

func (m *Manager) stop() {
	for _, cancel := range m.cancels {
		if cancel != nil {
			cancel()
		}
	}
	m.cancels = nil
	for _, t := range m.technologies {
		t.stop()
	}
	for _, s := range m.services {
		if s.unwatch != nil {
			s.unwatch()
			s.unwatch = nil
		}
	}
	m.started = false
	m.watchingName = false
}

// Commands, run on the loop.

func (m *Manager) lookup(path string) (*Service, error) {
	s, ok := m.services[path]
	if !ok {
		return nil, common.WrapError(common.ErrStaleIdentity, path)
	}
	return s, nil
}

func (m *Manager) connectService(path string) error {
	s, err := m.lookup(path)
	if err != nil {
		return err
	}
	if _, live := m.flows[path]; live {
		return common.WrapError(common.ErrAuthInProgress, s.DisplayName())
	}
	if s.needsPassphrase() {
		flow := newAuthFlow(s, m.prompt, m.cfg.FailureLinger, m.log, m.flowDone)
		m.flows[path] = flow
		flow.begin()
		m.publish()
		return nil
	}
	s.connect()
	return nil
}

func (m *Manager) disconnectService(path string) error {
	s, err := m.lookup(path)
	if err != nil {
		return err
	}
	s.disconnect()
	return nil
}

func (m *Manager) setTechnologyPower(kind Kind, on bool) error {
	if !kind.Valid() {
		return common.ErrUnknownTechnology
	}
	t := m.technologies[kind]
	var err error
	if on {
		err = t.enable()
	} else {
		err = t.disable()
	}
	if err == nil {
		m.publish()
	}
	return err
}

func (m *Manager) submitPassphrase(path, passphrase string) error {
	flow, ok := m.flows[path]
	if !ok {
		return common.WrapError(common.ErrStaleIdentity, "no credential request for "+path)
	}
	return flow.submit(passphrase)
}

func (m *Manager) cancelAuthentication(path string) error {
	flow, ok := m.flows[path]
	if !ok {
		return common.WrapError(common.ErrStaleIdentity, "no credential request for "+path)
	}
	flow.cancel()
	return nil
}

func (m *Manager) flowDone(flow *AuthFlow) {
	if m.flows[flow.service.path] == flow {
		delete(m.flows, flow.service.path)
	}
	if !m.reconciling {
		m.publish()
	}
}

// authState returns the state of the live flow for path.
func (m *Manager) authState(path string) AuthState {
	if flow, ok := m.flows[path]; ok {
		return flow.state
	}
	return AuthIdle
}

// Publication.

func (m *Manager) publish() {
	snapshot := m.buildSnapshot()
	m.latest.Store(&snapshot)
	listeners := append([]listener(nil), m.listeners...)
	for _, l := range listeners {
		l.fn(snapshot)
	}
	if m.observer != nil {
		m.observer.Published(snapshot)
	}
}

func (m *Manager) buildSnapshot() Snapshot {
	snapshot := Snapshot{
		DaemonPresent: m.present,
		Synced:        m.synced,
		State:         m.state,
		OfflineMode:   m.offlineMode,
		Status:        m.status,
	}
	if !m.present {
		snapshot.State = ManagerOffline
		snapshot.Status = Status{Kind: StatusOffline}
	}

	for _, t := range m.technologies {
		if t == nil {
			continue
		}
		view := TechnologyView{
			Kind:      t.kind,
			Label:     t.kind.Label(),
			Available: t.available,
			Enabled:   t.enabled,
			Blocked:   t.blocked,
			Reactive:  t.Reactive(),
			Visible:   t.visible(m.present, m.offlineMode),
		}
		view.PendingTarget, view.Pending = t.Pending()
		if m.present {
			view.Expanded = t.expanded
			view.Direct = viewsOf(t.direct, m.flows)
			if t.overflow != nil {
				view.HasOverflow = true
				view.OverflowLabel = t.overflow.Label
				view.Overflow = viewsOf(t.overflow.services, m.flows)
			}
		}
		snapshot.Technologies[t.kind] = view
	}

	services := make([]*Service, 0, len(m.order))
	for _, path := range m.order {
		if s, ok := m.services[path]; ok {
			services = append(services, s)
		}
	}
	snapshot.Services = viewsOf(services, m.flows)

	if len(m.extra) > 0 {
		snapshot.Extra = m.extra.clone()
	}
	return snapshot
}
