package dbuslink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

const (
	busInterface = "org.freedesktop.DBus"
	busPath      = "/org/freedesktop/DBus"

	// DefaultCallTimeout applies to calls made with a zero timeout.
	DefaultCallTimeout = 25 * time.Second
)

type signalKey struct {
	path   string
	member string
}

// matchRule identifies one match rule added to the bus daemon.
type matchRule struct {
	signalKey
	arg0 string
}

type watcher struct {
	id      int
	handler func([]interface{})
}

// Bus is a connman.Bus over a godbus connection.
type Bus struct {
	conn *dbus.Conn
	dest string
	log  common.Logger

	mu       sync.Mutex
	watchers map[signalKey][]watcher
	matches  map[matchRule]int
	nextID   int
	closed   bool

	signals chan *dbus.Signal
	done    chan struct{}
}

// Connect opens the system or session bus and returns a Bus addressing
// dest.
func Connect(which, dest string) (*Bus, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch which {
	case common.BusSession:
		conn, err = dbus.ConnectSessionBus()
	case common.BusSystem, "":
		conn, err = dbus.ConnectSystemBus()
	default:
		return nil, errors.New("unknown bus " + which)
	}
	if err != nil {
		return nil, common.WrapError(err, "failed to connect to the "+which+" bus")
	}
	return New(conn, dest), nil
}

// New wraps an open connection. The Bus takes ownership of conn.
func New(conn *dbus.Conn, dest string) *Bus {
	b := &Bus{
		conn:     conn,
		dest:     dest,
		log:      common.GetLogger().Component("dbus"),
		watchers: make(map[signalKey][]watcher),
		matches:  make(map[matchRule]int),
		signals:  make(chan *dbus.Signal, 64),
		done:     make(chan struct{}),
	}
	conn.Signal(b.signals)
	go b.dispatchSignals()
	return b
}

// SetLogger replaces the logger.
func (b *Bus) SetLogger(log common.Logger) {
	b.log = log
}

// Close stops signal delivery and closes the connection.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.conn.RemoveSignal(b.signals)
	close(b.done)
	return b.conn.Close()
}

// Object returns the daemon object at path.
func (b *Bus) Object(path string) connman.RemoteObject {
	return &object{
		bus:   b,
		path:  path,
		iface: interfaceFor(path),
		obj:   b.conn.Object(b.dest, dbus.ObjectPath(path)),
	}
}

// WatchName reports ownership changes of name, starting with the current
// owner state.
func (b *Bus) WatchName(name string, handler func(bool)) (func(), error) {
	cancel, err := b.watch(busPath, busInterface, "NameOwnerChanged", name,
		func(args []interface{}) {
			if len(args) < 3 {
				return
			}
			owner, _ := args[0].(string)
			if owner != name {
				return
			}
			newOwner, _ := args[2].(string)
			handler(newOwner != "")
		})
	if err != nil {
		return nil, err
	}

	var present bool
	call := b.conn.BusObject().Call(busInterface+".NameHasOwner", 0, name)
	if call.Err != nil {
		cancel()
		return nil, convertError(busPath, "NameHasOwner", call.Err)
	}
	if err := call.Store(&present); err != nil {
		cancel()
		return nil, common.WrapError(common.ErrMalformedReply, "NameHasOwner")
	}
	handler(present)
	return cancel, nil
}

// watch registers handler for member on path. The match rule is added
// the first time it is needed and removed with its last watcher. A
// non-empty arg0 narrows the rule to signals whose first argument matches.
func (b *Bus) watch(path, iface, member, arg0 string, handler func([]interface{})) (func(), error) {
	key := signalKey{path: path, member: iface + "." + member}
	rule := matchRule{signalKey: key, arg0: arg0}
	options := []dbus.MatchOption{
		dbus.WithMatchObjectPath(dbus.ObjectPath(path)),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if arg0 != "" {
		options = append(options, dbus.WithMatchArg(0, arg0))
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.watchers[key] = append(b.watchers[key], watcher{id: id, handler: handler})
	b.matches[rule]++
	first := b.matches[rule] == 1
	b.mu.Unlock()

	if first {
		if err := b.conn.AddMatchSignal(options...); err != nil {
			b.release(key, rule, id)
			return nil, common.WrapError(err, "failed to watch "+key.member+" on "+path)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if b.release(key, rule, id) {
				if err := b.conn.RemoveMatchSignal(options...); err != nil {
					b.log.Debug("Unable to remove match for %s on %s: %v", key.member, path, err)
				}
			}
		})
	}, nil
}

// release drops a watcher and reports whether its match rule is no longer
// used.
func (b *Bus) release(key signalKey, rule matchRule, id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.watchers[key]
	for i, w := range list {
		if w.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.watchers, key)
	} else {
		b.watchers[key] = list
	}

	b.matches[rule]--
	if b.matches[rule] > 0 {
		return false
	}
	delete(b.matches, rule)
	return !b.closed
}

func (b *Bus) dispatchSignals() {
	for {
		select {
		case <-b.done:
			return
		case signal, ok := <-b.signals:
			if !ok {
				return
			}
			b.deliver(signal)
		}
	}
}

func (b *Bus) deliver(signal *dbus.Signal) {
	key := signalKey{path: string(signal.Path), member: signal.Name}
	b.mu.Lock()
	list := append([]watcher(nil), b.watchers[key]...)
	b.mu.Unlock()
	if len(list) == 0 {
		return
	}
	args := normalizeAll(signal.Body)
	for _, w := range list {
		w.handler(args)
	}
}

// object is one remote object of the daemon.
type object struct {
	bus   *Bus
	path  string
	iface string
	obj   dbus.BusObject
}

func (o *object) Path() string { return o.path }

// Call issues method on its own goroutine and hands the normalized reply
// to fn.
func (o *object) Call(method string, timeout time.Duration, fn func(connman.Reply), args ...interface{}) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	wire := toWire(args)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		call := o.obj.CallWithContext(ctx, o.iface+"."+method, 0, wire...)
		if call.Err != nil {
			err := convertError(o.path, method, call.Err)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err.Timeout = true
			}
			o.bus.log.Debug("%s %s failed: %v", o.path, method, err)
			fn(connman.Reply{Err: err})
			return
		}
		fn(connman.Reply{Body: normalizeAll(call.Body)})
	}()
}

// Watch subscribes to signal on this object.
func (o *object) Watch(signal string, handler func([]interface{})) func() {
	cancel, err := o.bus.watch(o.path, o.iface, signal, "", handler)
	if err != nil {
		o.bus.log.Warn("%v", err)
		return func() {}
	}
	return cancel
}

// interfaceFor picks the daemon interface implemented at path.
func interfaceFor(path string) string {
	switch {
	case path == common.ManagerPath:
		return common.ManagerInterface
	case strings.HasPrefix(path, common.TechnologyPathPrefix):
		return common.TechnologyInterface
	default:
		return common.ServiceInterface
	}
}

// convertError turns a godbus error into a TransportError carrying the
// daemon's error name and text.
func convertError(path, method string, err error) *common.TransportError {
	te := &common.TransportError{Object: path, Method: method}
	var dbusErr dbus.Error
	var dbusErrPtr *dbus.Error
	switch {
	case errors.As(err, &dbusErr):
		te.Name = dbusErr.Name
		te.Message = errorText(dbusErr.Body)
	case errors.As(err, &dbusErrPtr):
		te.Name = dbusErrPtr.Name
		te.Message = errorText(dbusErrPtr.Body)
	case errors.Is(err, context.DeadlineExceeded):
		te.Timeout = true
		te.Message = "request timed out"
	default:
		te.Message = err.Error()
	}
	if te.Name == "org.freedesktop.DBus.Error.NoReply" || te.Name == "org.freedesktop.DBus.Error.Timeout" {
		te.Timeout = true
	}
	return te
}

func errorText(body []interface{}) string {
	if len(body) == 0 {
		return ""
	}
	text, _ := body[0].(string)
	return text
}
