package tray

import (
	"fmt"
	"strings"

	"github.com/yllada/connman-indicator/connman"
)

// wiredSlots is how many wired lines are created up front. Sections add
// slots when a snapshot lists more services and hide the surplus.
const wiredSlots = 4

// slotModel is one service line in the menu.
type slotModel struct {
	path      string
	title     string
	tooltip   string
	connected bool
	busy      bool
}

// sectionModel is one technology's submenu.
type sectionModel struct {
	visible        bool
	title          string
	toggleTitle    string
	toggleChecked  bool
	toggleDisabled bool
	direct         []slotModel
	hasOverflow    bool
	overflowTitle  string
	overflow       []slotModel
}

// menuModel is everything the tray shows for one snapshot.
type menuModel struct {
	icon     string
	tooltip  string
	status   string
	sections [len(connman.Kinds)]sectionModel
}

// fitSlots grows slots to at least want entries using add. Slots are never
// removed; unused ones are hidden by renderSlots.
func fitSlots(slots []*slotItem, want int, add func() *slotItem) []*slotItem {
	for len(slots) < want {
		slots = append(slots, add())
	}
	return slots
}

func buildModel(snapshot connman.Snapshot) menuModel {
	m := menuModel{
		icon:    snapshot.Status.IconName(),
		tooltip: tooltip(snapshot),
		status:  statusLine(snapshot),
	}
	for i, kind := range connman.Kinds {
		m.sections[i] = buildSection(snapshot.Technology(kind))
	}
	return m
}

func tooltip(snapshot connman.Snapshot) string {
	if !snapshot.DaemonPresent {
		return "ConnMan is not running"
	}
	return snapshot.Status.String()
}

func statusLine(snapshot connman.Snapshot) string {
	switch {
	case !snapshot.DaemonPresent:
		return "○  ConnMan is not running"
	case snapshot.Status.Kind == connman.StatusOffline:
		return "○  Not Connected"
	case snapshot.Status.Kind == connman.StatusAcquiring:
		return "⟳  " + snapshot.Status.String()
	default:
		return "●  " + snapshot.Status.String()
	}
}

func buildSection(view connman.TechnologyView) sectionModel {
	s := sectionModel{
		visible:        view.Visible,
		title:          view.Label,
		toggleTitle:    "Enabled",
		toggleChecked:  view.Enabled,
		toggleDisabled: view.Blocked,
		hasOverflow:    view.HasOverflow,
		overflowTitle:  view.OverflowLabel,
	}
	switch {
	case view.Blocked:
		s.toggleTitle = "Blocked"
	case view.Pending:
		s.toggleTitle = "Enabled…"
		s.toggleChecked = view.PendingTarget
	}
	if !view.Expanded && view.Kind == connman.KindWired && len(view.Direct) == 1 {
		// A single wired line is shown folded into the section title.
		s.title = fmt.Sprintf("%s: %s", view.Label, stateLabel(view.Direct[0].State))
	}
	for _, v := range view.Direct {
		s.direct = append(s.direct, buildSlot(v))
	}
	for _, v := range view.Overflow {
		s.overflow = append(s.overflow, buildSlot(v))
	}
	return s
}

func buildSlot(v connman.ServiceView) slotModel {
	var title strings.Builder
	if v.Connected() {
		title.WriteString("● ")
	}
	title.WriteString(v.Name)
	if v.HasStrength && v.Kind == connman.KindWifi {
		fmt.Fprintf(&title, "  %s", bars(v.Strength))
	}
	if v.Secured && v.Kind == connman.KindWifi {
		title.WriteString(" 🔒")
	}
	if v.State.Acquiring() && !v.Connected() {
		title.WriteString("  …")
	}

	tip := "Connect"
	if v.Connected() {
		tip = "Disconnect"
	}
	return slotModel{
		path:      v.Path,
		title:     title.String(),
		tooltip:   fmt.Sprintf("%s %s (%s)", tip, v.Name, stateLabel(v.State)),
		connected: v.Connected(),
		busy:      v.Authenticating,
	}
}

// bars renders a strength percentage with the same thresholds as the
// signal icons.
func bars(strength uint8) string {
	switch {
	case strength > 80:
		return "▂▄▆█"
	case strength > 55:
		return "▂▄▆_"
	case strength > 30:
		return "▂▄__"
	case strength > 5:
		return "▂___"
	default:
		return "____"
	}
}

func stateLabel(state connman.ServiceState) string {
	switch state {
	case connman.StateUnknown:
		return "unknown"
	case connman.StateOnline:
		return "online"
	case connman.StateReady:
		return "connected"
	case connman.StateAssociation, connman.StateConfiguration:
		return "connecting"
	case connman.StateFailure:
		return "failed"
	case connman.StateDisconnect:
		return "disconnecting"
	default:
		return string(state)
	}
}
