// Package notify sends desktop notifications for connection events over
// the session bus.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	expireDefault = int32(-1)

	// callTimeout bounds a Notify call to an unresponsive server.
	callTimeout = 2 * time.Second
)

// Urgency levels defined by the notification specification.
const (
	UrgencyLow byte = iota
	UrgencyNormal
	UrgencyCritical
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Notification represents a desktop notification.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

func (n Notification) icon() string {
	if n.Icon != "" {
		return n.Icon
	}
	switch n.Type {
	case NotificationWarning:
		return "dialog-warning"
	case NotificationError:
		return "dialog-error"
	default:
		return "network-transmit-receive"
	}
}

func (n Notification) urgency() byte {
	switch n.Type {
	case NotificationError:
		return UrgencyCritical
	case NotificationWarning:
		return UrgencyNormal
	default:
		return UrgencyLow
	}
}

// caller is the part of dbus.BusObject used here.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier posts notifications to the desktop's notification server. It
// implements common.Notifier.
type Notifier struct {
	obj     caller
	conn    *dbus.Conn
	appName string
	timeout time.Duration
	log     common.Logger

	mu sync.Mutex
	// lastID lets a new notification replace the previous one.
	lastID uint32
}

// New connects to the session bus.
func New() (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, common.WrapError(err, "failed to connect to the session bus")
	}
	n := newNotifier(conn.Object(notificationsName, notificationsPath))
	n.conn = conn
	return n, nil
}

func newNotifier(obj caller) *Notifier {
	return &Notifier{
		obj:     obj,
		appName: common.AppName,
		timeout: callTimeout,
		log:     common.GetLogger().Component("notify"),
	}
}

// Close releases the session bus connection.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// Notify sends a notification with the given title and message.
func (n *Notifier) Notify(title, message string) error {
	return n.Show(Notification{Title: title, Message: message})
}

// NotifyWithIcon sends a notification with a custom icon.
func (n *Notifier) NotifyWithIcon(title, message, icon string) error {
	return n.Show(Notification{Title: title, Message: message, Icon: icon})
}

// Show displays n, replacing the previous notification from this notifier.
func (n *Notifier) Show(note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(note.urgency()),
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	call := n.obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		n.appName,
		n.lastID,
		note.icon(),
		note.Title,
		note.Message,
		[]string{},
		hints,
		expireDefault,
	)
	if call.Err != nil {
		n.log.Warn("Error showing notification: %v", call.Err)
		return fmt.Errorf("notify: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err == nil {
		n.lastID = id
	}
	return nil
}

// Queue posts notifications from its own goroutine so callers never wait
// on the notification server. Notifications arriving while the queue is
// full are dropped. Queue implements common.Notifier.
type Queue struct {
	notifier common.Notifier
	log      common.Logger
	pending  chan Notification
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a worker delivering through notifier. size is the number
// of notifications held while one is in flight.
func NewQueue(notifier common.Notifier, size int) *Queue {
	if size < 1 {
		size = 1
	}
	q := &Queue{
		notifier: notifier,
		log:      common.GetLogger().Component("notify"),
		pending:  make(chan Notification, size),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for note := range q.pending {
		var err error
		if note.Icon == "" {
			err = q.notifier.Notify(note.Title, note.Message)
		} else {
			err = q.notifier.NotifyWithIcon(note.Title, note.Message, note.Icon)
		}
		if err != nil {
			q.log.Debug("Notification failed: %v", err)
		}
	}
}

// Notify queues a notification.
func (q *Queue) Notify(title, message string) error {
	return q.post(Notification{Title: title, Message: message})
}

// NotifyWithIcon queues a notification with a custom icon.
func (q *Queue) NotifyWithIcon(title, message, icon string) error {
	return q.post(Notification{Title: title, Message: message, Icon: icon})
}

func (q *Queue) post(note Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueFull
	}
	select {
	case q.pending <- note:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	q.mu.Unlock()
	<-q.done
}

// ErrQueueFull is returned when a notification is dropped.
var ErrQueueFull = errors.New("notification queue is full")

// Tracker turns successive snapshots and auth events into notifications.
type Tracker struct {
	notifier common.Notifier
	last     connman.Status
	name     string
	started  bool
}

// NewTracker creates a Tracker posting through notifier.
func NewTracker(notifier common.Notifier) *Tracker {
	return &Tracker{notifier: notifier}
}

// Observe notifies when the global status moves between connected and not
// connected. The first snapshot only primes the tracker.
func (t *Tracker) Observe(snapshot connman.Snapshot) error {
	status := snapshot.Status
	name := connectedName(snapshot)
	defer func() {
		t.last = status
		t.name = name
		t.started = true
	}()

	if !t.started {
		return nil
	}
	wasConnected := connected(t.last)
	isConnected := connected(status)
	switch {
	case isConnected && (!wasConnected || name != t.name):
		return t.notifier.NotifyWithIcon("Connected", connectedMessage(status, name), status.IconName())
	case !isConnected && wasConnected && status.Kind == connman.StatusOffline:
		message := "Disconnected from " + t.name
		if !snapshot.DaemonPresent {
			message = common.ErrDaemonUnavailable.Error()
		}
		return t.notifier.NotifyWithIcon("Disconnected", message, status.IconName())
	}
	return nil
}

// AuthFailed reports a failed authenticated connect.
func (t *Tracker) AuthFailed(event connman.AuthEvent) error {
	return t.notifier.NotifyWithIcon("Connection Error", event.ServiceName+": "+event.Message, "dialog-error")
}

func connected(status connman.Status) bool {
	return status.Kind == connman.StatusWired || status.Kind == connman.StatusWifi
}

func connectedMessage(status connman.Status, name string) string {
	if name == "" {
		return status.String()
	}
	return "Connected to " + name
}

// connectedName returns the first connected service of the technology the
// status is derived from.
func connectedName(snapshot connman.Snapshot) string {
	var kind connman.Kind
	switch snapshot.Status.Kind {
	case connman.StatusWired:
		kind = connman.KindWired
	case connman.StatusWifi:
		kind = connman.KindWifi
	default:
		return ""
	}
	for _, v := range snapshot.Technology(kind).Services() {
		if v.Connected() {
			return v.Name
		}
	}
	return ""
}
