package connman

import (
	"sort"

	"github.com/yllada/connman-indicator/common"
)

// managerProperty applies one manager-level property push.
type managerProperty func(m *Manager, value interface{})

var managerProperties = map[string]managerProperty{
	propAvailableTechnologies: (*Manager).updateAvailable,
	propEnabledTechnologies:   (*Manager).updateEnabled,
	propServices:              (*Manager).updateServices,
	propState:                 (*Manager).updateState,
	propOfflineMode:           (*Manager).updateOfflineMode,
}

// setDaemonPresent handles ownership changes of the daemon's bus name.
func (m *Manager) setDaemonPresent(present bool) {
	if m.present == present {
		return
	}
	m.present = present
	if present {
		m.log.Info("%s appeared, synchronizing", m.cfg.DaemonName)
		m.fetchAll()
	} else {
		m.log.Warn("%v", common.ErrDaemonUnavailable)
		for _, t := range m.technologies {
			t.clearPending()
		}
	}
	m.refresh("presence")
}

// markReachable records that the daemon answered. With a name watch in
// place, the watch alone decides presence.
func (m *Manager) markReachable() {
	if m.watchingName || m.present {
		return
	}
	m.present = true
	m.log.Info("%s is reachable", m.cfg.DaemonName)
}

// markUnreachable records a failed manager request when presence has to
// be inferred.
func (m *Manager) markUnreachable(err error) {
	if m.watchingName || !m.present {
		return
	}
	m.present = false
	m.log.Warn("%s unreachable: %v", m.cfg.DaemonName, err)
	m.refresh("presence")
}

// fetchAll issues the three independent manager reads plus one read per
// technology object.
func (m *Manager) fetchAll() {
	m.fetchProperties()
	m.fetchState()
	m.fetchServices()
	for _, t := range m.technologies {
		t.fetchProperties()
	}
}

func (m *Manager) fetchProperties() {
	m.manager.call("GetProperties", 0, func(reply Reply) {
		if reply.Err != nil {
			m.log.Warn("Unable to read manager properties: %v", reply.Err)
			m.markUnreachable(reply.Err)
			return
		}
		props, ok := firstProperties(reply.Body)
		if !ok {
			m.log.Warn("%v", common.WrapError(common.ErrMalformedReply, "GetProperties"))
			return
		}
		m.markReachable()

		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			// The service list has its own request.
			if name == propServices {
				continue
			}
			m.applyManagerProperty(name, props[name])
		}
		m.refresh("properties")
	})
}

func (m *Manager) fetchState() {
	m.manager.call("GetState", 0, func(reply Reply) {
		if reply.Err != nil {
			m.log.Warn("Unable to read manager state: %v", reply.Err)
			m.markUnreachable(reply.Err)
			return
		}
		state, ok := firstString(reply.Body)
		if !ok {
			m.log.Warn("%v", common.WrapError(common.ErrMalformedReply, "GetState"))
			return
		}
		m.markReachable()
		m.state = ManagerState(state)
		m.refresh("state")
	})
}

func (m *Manager) fetchServices() {
	m.servicesIssued++
	seq := m.servicesIssued
	m.manager.call("GetServices", 0, func(reply Reply) {
		if reply.Err != nil {
			m.log.Warn("Unable to read the service list: %v", reply.Err)
			m.markUnreachable(reply.Err)
			return
		}
		if seq < m.servicesApplied {
			m.log.Debug("Dropping stale service list %d, %d already applied", seq, m.servicesApplied)
			return
		}
		entries, err := decodeServiceList(reply.Body)
		if err != nil {
			m.log.Warn("%v", common.WrapError(err, "GetServices"))
			return
		}
		m.servicesApplied = seq
		m.markReachable()
		m.reconcileServices(entries)
	})
}

func (m *Manager) onPropertyChanged(args []interface{}) {
	name, value, ok := decodePropertyChanged(args)
	if !ok {
		m.log.Warn("Malformed manager PropertyChanged: %v", args)
		return
	}
	m.applyManagerProperty(name, value)
	m.refresh("property")
}

func (m *Manager) onStateChanged(args []interface{}) {
	state, ok := firstString(args)
	if !ok {
		m.log.Warn("Malformed StateChanged: %v", args)
		return
	}
	m.state = ManagerState(state)
	m.refresh("state")
}

func (m *Manager) applyManagerProperty(name string, value interface{}) {
	if apply, ok := managerProperties[name]; ok {
		apply(m, value)
		return
	}
	m.log.Debug("%v", common.WrapError(common.ErrUnknownProperty, "manager "+name))
	m.extra[name] = value
}

func (m *Manager) updateAvailable(value interface{}) {
	names, ok := asStrings(value)
	if !ok {
		m.log.Warn("Malformed %s: %v", propAvailableTechnologies, value)
		return
	}
	for _, t := range m.technologies {
		t.setAvailability(common.StringInSlice(t.kind.String(), names))
	}
}

func (m *Manager) updateEnabled(value interface{}) {
	names, ok := asStrings(value)
	if !ok {
		m.log.Warn("Malformed %s: %v", propEnabledTechnologies, value)
		return
	}
	for _, t := range m.technologies {
		t.setEnabled(common.StringInSlice(t.kind.String(), names))
	}
}

// updateServices re-fetches: the push carries paths only.
func (m *Manager) updateServices(interface{}) {
	m.fetchServices()
}

func (m *Manager) updateState(value interface{}) {
	state, ok := asString(value)
	if !ok {
		m.log.Warn("Malformed %s: %v", propState, value)
		return
	}
	m.state = ManagerState(state)
}

func (m *Manager) updateOfflineMode(value interface{}) {
	offline, ok := value.(bool)
	if !ok {
		m.log.Warn("Malformed %s: %v", propOfflineMode, value)
		return
	}
	m.offlineMode = offline
}

// reconcileServices merges a full service list into the collection. Known
// paths keep their Service; new paths get one; missing paths are destroyed.
func (m *Manager) reconcileServices(entries []serviceEntry) {
	m.reconciling = true
	seen := make(map[string]bool, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		if seen[entry.path] {
			continue
		}
		seen[entry.path] = true
		order = append(order, entry.path)

		s, known := m.services[entry.path]
		if !known {
			s = newService(entry.path, m.remoteFor(entry.path), m.log, m.cfg.ConnectTimeout)
			m.serviceSubs[entry.path] = s.Subscribe(m.onServiceEvent)
			m.services[entry.path] = s
		}
		if entry.props != nil {
			s.applySnapshot(entry.props)
		} else {
			s.refresh()
		}
	}

	var gone []string
	for path := range m.services {
		if !seen[path] {
			gone = append(gone, path)
		}
	}
	sort.Strings(gone)
	for _, path := range gone {
		m.removeService(path)
	}

	m.order = order
	m.synced = true
	m.reconciling = false
	m.refresh("services")
}

func (m *Manager) removeService(path string) {
	s, ok := m.services[path]
	if !ok {
		return
	}
	if unsubscribe, ok := m.serviceSubs[path]; ok {
		unsubscribe()
		delete(m.serviceSubs, path)
	}
	delete(m.services, path)
	m.log.Debug("Service %s removed", path)
	s.destroy()
}

func (m *Manager) onServiceEvent(event ServiceEvent) {
	if m.reconciling {
		return
	}
	switch event.Type {
	case EventChanged, EventConnectionFailed:
		m.refresh("service")
	}
}

// refresh re-derives membership, order and status and publishes.
func (m *Manager) refresh(trigger string) {
	var members [numKinds][]*Service
	for _, path := range m.order {
		s, ok := m.services[path]
		if !ok {
			continue
		}
		if kind, ok := s.Kind(); ok {
			members[kind] = append(members[kind], s)
		}
	}
	for _, t := range m.technologies {
		t.setServices(members[t.kind])
	}
	m.status = deriveStatus(m.present,
		m.technologies[KindWired].Services(),
		m.technologies[KindWifi].Services())

	if m.observer != nil {
		m.observer.Reconciled(trigger)
	}
	m.publish()
}
