// Package tray shows the engine's state as a system tray indicator.
package tray

import (
	"sync"

	"fyne.io/systray"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
	"github.com/yllada/connman-indicator/notify"
)

// Engine is the part of connman.Manager the indicator drives.
type Engine interface {
	Subscribe(fn func(connman.Snapshot)) (unsubscribe func())
	ConnectService(path string)
	DisconnectService(path string)
	EnableTechnology(kind connman.Kind)
	DisableTechnology(kind connman.Kind)
}

// slotItem is a menu item reused for whichever service currently occupies
// its position.
type slotItem struct {
	item      *systray.MenuItem
	path      string
	connected bool
}

type sectionItems struct {
	kind     connman.Kind
	root     *systray.MenuItem
	toggle   *systray.MenuItem
	enabled  bool
	slots    []*slotItem
	more     *systray.MenuItem
	overflow []*slotItem
}

// Indicator manages the system tray icon and menu.
type Indicator struct {
	engine   Engine
	visible  int
	icons    iconSet
	tracker  *notify.Tracker
	settings *settingsLauncher
	log      common.Logger
	onQuit   func()

	mu          sync.Mutex
	ready       bool
	model       menuModel
	statusItem  *systray.MenuItem
	sections    [len(connman.Kinds)]*sectionItems
	unsubscribe func()
}

// NewIndicator creates an indicator for engine. visible is the number of
// wifi networks listed before the overflow submenu. settingsCommand opens
// the network settings application; empty hides that item. tracker may be
// nil.
func NewIndicator(engine Engine, visible int, settingsCommand string, tracker *notify.Tracker) *Indicator {
	if visible < 1 {
		visible = common.VisibleNetworks
	}
	return &Indicator{
		engine:   engine,
		visible:  visible,
		icons:    newIconSet(NewIconGenerator(DefaultIconConfig())),
		tracker:  tracker,
		settings: newSettingsLauncher(settingsCommand),
		log:      common.GetLogger().Component("tray"),
	}
}

// Run shows the indicator and blocks until Quit. onQuit runs when the
// user picks Quit.
func (t *Indicator) Run(onQuit func()) {
	t.onQuit = onQuit
	t.unsubscribe = t.engine.Subscribe(t.update)
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the indicator.
func (t *Indicator) Quit() {
	systray.Quit()
}

func (t *Indicator) onReady() {
	systray.SetTitle(common.AppName)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.statusItem = systray.AddMenuItem("○  Not Connected", "Current network status")
	t.statusItem.Disable()
	systray.AddSeparator()

	for i, kind := range connman.Kinds {
		t.sections[i] = t.addSection(kind)
	}

	systray.AddSeparator()
	if t.settings.enabled() {
		settingsItem := systray.AddMenuItem("Network Settings", "Open the network settings")
		go func() {
			for range settingsItem.ClickedCh {
				if err := t.settings.launch(); err != nil {
					t.log.Warn("Unable to open network settings: %v", err)
				}
			}
		}()
	}
	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)
	go func() {
		for range quitItem.ClickedCh {
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
		}
	}()

	t.ready = true
	t.render()
}

func (t *Indicator) onExit() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	common.LogInfo("Tray indicator cleanup completed")
}

func (t *Indicator) addSection(kind connman.Kind) *sectionItems {
	s := &sectionItems{kind: kind}
	s.root = systray.AddMenuItem(kind.Label(), kind.Label()+" networks")
	s.toggle = s.root.AddSubMenuItemCheckbox("Enabled", "Turn "+kind.Label()+" on or off", false)
	go func() {
		for range s.toggle.ClickedCh {
			t.toggle(s)
		}
	}()

	count := wiredSlots
	if kind == connman.KindWifi {
		count = t.visible
	}
	for i := 0; i < count; i++ {
		s.slots = append(s.slots, t.addSlot(s.root))
	}
	return s
}

func (t *Indicator) addSlot(parent *systray.MenuItem) *slotItem {
	slot := &slotItem{item: parent.AddSubMenuItemCheckbox("", "", false)}
	slot.item.Hide()
	go func() {
		for range slot.item.ClickedCh {
			t.activate(slot)
		}
	}()
	return slot
}

// update receives snapshots on the engine's loop.
func (t *Indicator) update(snapshot connman.Snapshot) {
	if t.tracker != nil {
		if err := t.tracker.Observe(snapshot); err != nil {
			t.log.Debug("Notification failed: %v", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = buildModel(snapshot)
	if t.ready {
		t.render()
	}
}

// render applies the current model to the menu. Callers hold mu.
func (t *Indicator) render() {
	m := t.model
	systray.SetIcon(t.icons.lookup(m.icon))
	systray.SetTooltip(m.tooltip)
	t.statusItem.SetTitle(m.status)

	for i, items := range t.sections {
		t.renderSection(items, m.sections[i])
	}
}

func (t *Indicator) renderSection(items *sectionItems, s sectionModel) {
	if !s.visible {
		items.root.Hide()
		return
	}
	items.root.Show()
	items.root.SetTitle(s.title)

	items.toggle.SetTitle(s.toggleTitle)
	items.enabled = s.toggleChecked
	if s.toggleChecked {
		items.toggle.Check()
	} else {
		items.toggle.Uncheck()
	}
	if s.toggleDisabled {
		items.toggle.Disable()
	} else {
		items.toggle.Enable()
	}

	items.slots = fitSlots(items.slots, len(s.direct), func() *slotItem { return t.addSlot(items.root) })
	renderSlots(items.slots, s.direct)

	if s.hasOverflow && items.more == nil {
		items.more = items.root.AddSubMenuItem(s.overflowTitle, "More networks")
	}
	if items.more != nil {
		if len(s.overflow) == 0 {
			items.more.Hide()
		} else {
			items.more.Show()
		}
		items.overflow = fitSlots(items.overflow, len(s.overflow), func() *slotItem { return t.addSlot(items.more) })
		renderSlots(items.overflow, s.overflow)
	}
}

func renderSlots(slots []*slotItem, models []slotModel) {
	for i, slot := range slots {
		if i >= len(models) {
			slot.path = ""
			slot.item.Hide()
			continue
		}
		m := models[i]
		slot.path = m.path
		slot.connected = m.connected
		slot.item.SetTitle(m.title)
		slot.item.SetTooltip(m.tooltip)
		if m.connected {
			slot.item.Check()
		} else {
			slot.item.Uncheck()
		}
		if m.busy {
			slot.item.Disable()
		} else {
			slot.item.Enable()
		}
		slot.item.Show()
	}
}

func (t *Indicator) toggle(s *sectionItems) {
	t.mu.Lock()
	enabled := s.enabled
	t.mu.Unlock()

	if enabled {
		t.engine.DisableTechnology(s.kind)
	} else {
		t.engine.EnableTechnology(s.kind)
	}
}

// activate connects the slot's service, or disconnects it when it is
// already connected.
func (t *Indicator) activate(slot *slotItem) {
	t.mu.Lock()
	path, connected := slot.path, slot.connected
	t.mu.Unlock()

	if path == "" {
		return
	}
	if connected {
		t.engine.DisconnectService(path)
	} else {
		t.engine.ConnectService(path)
	}
}
