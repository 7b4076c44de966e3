package connman

import (
	"github.com/yllada/connman-indicator/common"
)

// Technology state values reported on a technology object.
const (
	techStateEnabled = "enabled"
	techStateBlocked = "blocked"
)

// OverflowGroup collects the services beyond the directly shown ones. A
// technology creates it the first time it is needed and keeps it.
type OverflowGroup struct {
	Label    string
	services []*Service
}

// Services returns the services currently bucketed into the group.
func (g *OverflowGroup) Services() []*Service {
	return append([]*Service(nil), g.services...)
}

// Technology models one connection medium and its member services.
type Technology struct {
	kind      Kind
	available bool
	enabled   bool
	blocked   bool
	// pending is the target of an unconfirmed Enable/Disable request.
	pending *bool

	ordering Ordering
	members  []*Service
	direct   []*Service
	overflow *OverflowGroup
	expanded bool

	manager *remote
	object  *remote
	unwatch func()
	changed func(trigger string)
	log     common.Logger
}

func newTechnology(kind Kind, ordering Ordering, manager, object *remote, log common.Logger, changed func(string)) *Technology {
	return &Technology{
		kind:     kind,
		ordering: ordering,
		manager:  manager,
		object:   object,
		changed:  changed,
		log:      log,
	}
}

func (t *Technology) Kind() Kind      { return t.kind }
func (t *Technology) Available() bool { return t.available }
func (t *Technology) Enabled() bool   { return t.enabled }
func (t *Technology) Blocked() bool   { return t.blocked }

// Reactive reports whether the technology accepts user toggles.
func (t *Technology) Reactive() bool { return !t.blocked }

// Pending returns the target of an unconfirmed toggle.
func (t *Technology) Pending() (target bool, ok bool) {
	if t.pending == nil {
		return false, false
	}
	return *t.pending, true
}

// Services returns the members in display order, direct ones first.
func (t *Technology) Services() []*Service {
	return append([]*Service(nil), t.members...)
}

// Direct returns the members shown directly.
func (t *Technology) Direct() []*Service {
	return append([]*Service(nil), t.direct...)
}

// Overflow returns the overflow group, or nil if none was ever needed.
func (t *Technology) Overflow() *OverflowGroup { return t.overflow }

// Expanded reports whether the section is shown open.
func (t *Technology) Expanded() bool { return t.expanded }

func (t *Technology) setAvailability(available bool) bool {
	if t.available == available {
		return false
	}
	t.available = available
	return true
}

func (t *Technology) setEnabled(enabled bool) bool {
	if t.pending != nil && *t.pending == enabled {
		t.pending = nil
	}
	if t.enabled == enabled {
		return false
	}
	t.enabled = enabled
	return true
}

func (t *Technology) setBlocked(blocked bool) bool {
	if t.blocked == blocked {
		return false
	}
	t.blocked = blocked
	return true
}

// setServices replaces the membership and re-derives order and overflow.
func (t *Technology) setServices(services []*Service) {
	arranged := t.ordering.Arrange(services)
	if len(arranged.Overflow) > 0 && t.overflow == nil {
		t.overflow = &OverflowGroup{Label: common.OverflowLabel}
	}
	if t.overflow != nil {
		t.overflow.services = arranged.Overflow
	}
	t.direct = arranged.Direct
	t.expanded = arranged.Expanded
	t.members = make([]*Service, 0, len(arranged.Direct)+len(arranged.Overflow))
	t.members = append(t.members, arranged.Direct...)
	t.members = append(t.members, arranged.Overflow...)
}

func (t *Technology) enable() error  { return t.requestPower(true) }
func (t *Technology) disable() error { return t.requestPower(false) }

// requestPower asks the daemon to power the technology on or off. The
// enabled flag is left alone until the daemon confirms.
func (t *Technology) requestPower(on bool) error {
	if t.blocked {
		return common.WrapError(common.ErrTechnologyBlocked, t.kind.Label())
	}
	method := "DisableTechnology"
	if on {
		method = "EnableTechnology"
	}
	target := on
	t.pending = &target
	t.log.Info("%s %s", method, t.kind)
	t.manager.call(method, 0, func(reply Reply) {
		if reply.Err == nil {
			// Already at the target: no push will follow.
			if t.pending != nil && *t.pending == target && t.enabled == target {
				t.pending = nil
				t.changed("technology")
			}
			return
		}
		t.log.Warn("%s %s failed: %v", method, t.kind, reply.Err)
		if t.pending != nil && *t.pending == target {
			t.pending = nil
		}
		t.changed("technology")
	}, t.kind.String())
	return nil
}

func (t *Technology) clearPending() { t.pending = nil }

// watch subscribes to the technology object's own pushes.
func (t *Technology) watch() {
	if t.unwatch != nil {
		return
	}
	t.unwatch = t.object.watch("PropertyChanged", func(args []interface{}) {
		name, value, ok := decodePropertyChanged(args)
		if !ok {
			t.log.Warn("Malformed PropertyChanged from %s: %v", t.object.path(), args)
			return
		}
		if t.applyProperty(name, value) {
			t.changed("technology")
		}
	})
}

func (t *Technology) stop() {
	if t.unwatch != nil {
		t.unwatch()
		t.unwatch = nil
	}
}

// fetchProperties reads the technology object's state.
func (t *Technology) fetchProperties() {
	t.object.call("GetProperties", 0, func(reply Reply) {
		if reply.Err != nil {
			t.log.Debug("Unable to read %s properties: %v", t.kind, reply.Err)
			return
		}
		props, ok := firstProperties(reply.Body)
		if !ok {
			t.log.Warn("%v", common.WrapError(common.ErrMalformedReply, t.object.path()+" GetProperties"))
			return
		}
		changed := false
		for name, value := range props {
			if t.applyProperty(name, value) {
				changed = true
			}
		}
		if changed {
			t.changed("technology")
		}
	})
}

func (t *Technology) applyProperty(name string, value interface{}) bool {
	switch name {
	case propState:
		state, ok := asString(value)
		if !ok {
			return false
		}
		blocked := t.setBlocked(state == techStateBlocked)
		enabled := t.setEnabled(state == techStateEnabled)
		return blocked || enabled
	case propPowered:
		powered, ok := value.(bool)
		if !ok {
			return false
		}
		return t.setEnabled(powered)
	default:
		return false
	}
}

// visible reports whether the technology's section should be shown.
func (t *Technology) visible(present, offlineMode bool) bool {
	if !present || !t.available {
		return false
	}
	if t.kind == KindWifi && offlineMode {
		return false
	}
	return true
}
