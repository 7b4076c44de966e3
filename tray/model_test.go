package tray

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/connman-indicator/connman"
)

func wifiView(path, name string, state connman.ServiceState, strength uint8) connman.ServiceView {
	return connman.ServiceView{
		Path: path, Name: name, Type: "wifi", Kind: connman.KindWifi, HasKind: true,
		State: state, Strength: strength, HasStrength: true, Secured: true,
	}
}

func TestBuildModelDaemonAbsent(t *testing.T) {
	m := buildModel(connman.Snapshot{})

	assert.Equal(t, "network-offline", m.icon)
	assert.Equal(t, "ConnMan is not running", m.tooltip)
	assert.Equal(t, "○  ConnMan is not running", m.status)
	for _, s := range m.sections {
		assert.False(t, s.visible)
	}
}

func TestBuildModelWifiSection(t *testing.T) {
	var snapshot connman.Snapshot
	snapshot.DaemonPresent = true
	snapshot.Status = connman.Status{Kind: connman.StatusWifi, Strength: 70}
	snapshot.Technologies[connman.KindWifi] = connman.TechnologyView{
		Kind:    connman.KindWifi,
		Label:   "Wifi",
		Enabled: true,
		Visible: true,
		Direct: []connman.ServiceView{
			wifiView("/net/connman/service/b", "Home", connman.StateOnline, 70),
			wifiView("/net/connman/service/a", "Cafe", connman.StateIdle, 40),
		},
		Overflow:      []connman.ServiceView{wifiView("/net/connman/service/c", "Far", connman.StateIdle, 3)},
		HasOverflow:   true,
		OverflowLabel: "More...",
	}

	m := buildModel(snapshot)
	assert.Equal(t, "network-wireless-signal-good", m.icon)
	assert.Equal(t, "●  Connected (wifi, 70%)", m.status)

	s := m.sections[connman.KindWifi]
	require.True(t, s.visible)
	assert.True(t, s.toggleChecked)
	assert.False(t, s.toggleDisabled)
	require.Len(t, s.direct, 2)
	assert.Equal(t, "● Home  ▂▄▆_ 🔒", s.direct[0].title)
	assert.True(t, s.direct[0].connected)
	assert.Equal(t, "Disconnect Home (online)", s.direct[0].tooltip)
	assert.Equal(t, "Cafe  ▂▄__ 🔒", s.direct[1].title)
	assert.True(t, s.hasOverflow)
	assert.Equal(t, "More...", s.overflowTitle)
	require.Len(t, s.overflow, 1)
	assert.Equal(t, "/net/connman/service/c", s.overflow[0].path)
}

func TestBuildSectionToggle(t *testing.T) {
	tests := []struct {
		name     string
		view     connman.TechnologyView
		title    string
		checked  bool
		disabled bool
	}{
		{
			name:    "enabled",
			view:    connman.TechnologyView{Enabled: true},
			title:   "Enabled",
			checked: true,
		},
		{
			name:    "pending enable shows target",
			view:    connman.TechnologyView{Pending: true, PendingTarget: true},
			title:   "Enabled…",
			checked: true,
		},
		{
			name:     "blocked",
			view:     connman.TechnologyView{Blocked: true, Enabled: true},
			title:    "Blocked",
			checked:  true,
			disabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := buildSection(tt.view)
			assert.Equal(t, tt.title, s.toggleTitle)
			assert.Equal(t, tt.checked, s.toggleChecked)
			assert.Equal(t, tt.disabled, s.toggleDisabled)
		})
	}
}

func TestBuildSectionFoldsSingleWiredLine(t *testing.T) {
	view := connman.TechnologyView{
		Kind:    connman.KindWired,
		Label:   "Wired",
		Visible: true,
		Direct: []connman.ServiceView{{
			Path: "/net/connman/service/eth", Name: "Wired", Kind: connman.KindWired, HasKind: true,
			State: connman.StateReady,
		}},
	}
	assert.Equal(t, "Wired: connected", buildSection(view).title)

	view.Expanded = true
	assert.Equal(t, "Wired", buildSection(view).title)
}

func TestBuildSlotBusyWhileAuthenticating(t *testing.T) {
	v := wifiView("/net/connman/service/a", "Cafe", connman.StateAssociation, 20)
	v.Authenticating = true

	slot := buildSlot(v)
	assert.True(t, slot.busy)
	assert.False(t, slot.connected)
	assert.Equal(t, "Cafe  ▂___ 🔒  …", slot.title)
}

func TestBars(t *testing.T) {
	tests := []struct {
		strength uint8
		want     string
	}{
		{0, "____"},
		{5, "____"},
		{6, "▂___"},
		{31, "▂▄__"},
		{56, "▂▄▆_"},
		{81, "▂▄▆█"},
		{100, "▂▄▆█"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bars(tt.strength), "strength %d", tt.strength)
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name     string
		snapshot connman.Snapshot
		want     string
	}{
		{"offline", connman.Snapshot{DaemonPresent: true}, "○  Not Connected"},
		{"acquiring", connman.Snapshot{DaemonPresent: true, Status: connman.Status{Kind: connman.StatusAcquiring}}, "⟳  Connecting (wifi)"},
		{"wired", connman.Snapshot{DaemonPresent: true, Status: connman.Status{Kind: connman.StatusWired}}, "●  Connected (wired)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusLine(tt.snapshot))
		})
	}
}

func TestSlotsGrowForEveryOverflowNetwork(t *testing.T) {
	var snapshot connman.Snapshot
	snapshot.DaemonPresent = true
	view := connman.TechnologyView{
		Kind: connman.KindWifi, Label: "Wifi", Enabled: true, Visible: true,
		HasOverflow: true, OverflowLabel: "More...",
	}
	for i := 0; i < 40; i++ {
		v := wifiView(fmt.Sprintf("/net/connman/service/w%02d", i), fmt.Sprintf("Net %d", i), connman.StateIdle, 50)
		if i < 5 {
			view.Direct = append(view.Direct, v)
		} else {
			view.Overflow = append(view.Overflow, v)
		}
	}
	snapshot.Technologies[connman.KindWifi] = view

	s := buildModel(snapshot).sections[connman.KindWifi]
	require.Len(t, s.overflow, 35)

	added := 0
	add := func() *slotItem {
		added++
		return &slotItem{}
	}
	slots := fitSlots(nil, len(s.overflow), add)
	require.Len(t, slots, 35)
	assert.Equal(t, 35, added)
	assert.Equal(t, "/net/connman/service/w39", s.overflow[34].path)

	// A shorter list reuses the slots already created.
	slots = fitSlots(slots, 3, add)
	assert.Len(t, slots, 35)
	assert.Equal(t, 35, added)
}
