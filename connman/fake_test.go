package connman

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yllada/connman-indicator/common"
)

// queueDispatcher runs posted closures in order on the caller's goroutine.
// Closures posted while one is running are queued behind it.
type queueDispatcher struct {
	queue   []func()
	running bool
}

func (d *queueDispatcher) Post(fn func()) {
	d.queue = append(d.queue, fn)
	if d.running {
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		next()
	}
	d.running = false
}

type fakeCall struct {
	path    string
	method  string
	timeout time.Duration
	args    []interface{}
	reply   func(Reply)
	done    bool
}

type fakeWatch struct {
	signal  string
	handler func([]interface{})
	active  bool
}

type fakeObject struct {
	bus     *fakeBus
	path    string
	watches []*fakeWatch
}

func (o *fakeObject) Path() string { return o.path }

func (o *fakeObject) Call(method string, timeout time.Duration, reply func(Reply), args ...interface{}) {
	o.bus.calls = append(o.bus.calls, &fakeCall{
		path:    o.path,
		method:  method,
		timeout: timeout,
		args:    args,
		reply:   reply,
	})
}

func (o *fakeObject) Watch(signal string, handler func([]interface{})) func() {
	w := &fakeWatch{signal: signal, handler: handler, active: true}
	o.watches = append(o.watches, w)
	return func() { w.active = false }
}

// fakeBus records every request and lets tests answer them explicitly.
type fakeBus struct {
	t           *testing.T
	objects     map[string]*fakeObject
	calls       []*fakeCall
	nameHandler func(bool)
	watchErr    error
}

func newFakeBus(t *testing.T) *fakeBus {
	return &fakeBus{t: t, objects: make(map[string]*fakeObject)}
}

func (b *fakeBus) Object(path string) RemoteObject {
	return b.object(path)
}

func (b *fakeBus) object(path string) *fakeObject {
	o, ok := b.objects[path]
	if !ok {
		o = &fakeObject{bus: b, path: path}
		b.objects[path] = o
	}
	return o
}

func (b *fakeBus) WatchName(name string, handler func(bool)) (func(), error) {
	if b.watchErr != nil {
		return nil, b.watchErr
	}
	b.nameHandler = handler
	return func() { b.nameHandler = nil }, nil
}

func (b *fakeBus) setPresent(present bool) {
	require.NotNil(b.t, b.nameHandler, "name watch not installed")
	b.nameHandler(present)
}

// emit delivers a signal to every active watcher on path.
func (b *fakeBus) emit(path, signal string, args ...interface{}) {
	for _, w := range b.object(path).watches {
		if w.active && w.signal == signal {
			w.handler(args)
		}
	}
}

func (b *fakeBus) activeWatches(path string) int {
	n := 0
	for _, w := range b.object(path).watches {
		if w.active {
			n++
		}
	}
	return n
}

// pending returns unanswered calls of method on path, oldest first.
func (b *fakeBus) pending(path, method string) []*fakeCall {
	var out []*fakeCall
	for _, c := range b.calls {
		if !c.done && c.path == path && c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBus) count(path, method string) int {
	n := 0
	for _, c := range b.calls {
		if c.path == path && c.method == method {
			n++
		}
	}
	return n
}

func (b *fakeBus) answer(c *fakeCall, reply Reply) {
	require.False(b.t, c.done, "call %s %s answered twice", c.path, c.method)
	c.done = true
	c.reply(reply)
}

// reply answers the oldest pending call of method on path.
func (b *fakeBus) reply(path, method string, body ...interface{}) {
	calls := b.pending(path, method)
	require.NotEmpty(b.t, calls, "no pending %s on %s", method, path)
	b.answer(calls[0], Reply{Body: body})
}

func (b *fakeBus) fail(path, method string, err error) {
	calls := b.pending(path, method)
	require.NotEmpty(b.t, calls, "no pending %s on %s", method, path)
	b.answer(calls[0], Reply{Err: err})
}

// drain answers every pending call of method on path with an error.
func (b *fakeBus) drain(path, method string) {
	for _, c := range b.pending(path, method) {
		b.answer(c, Reply{Err: &common.TransportError{Object: path, Method: method, Name: "test.Drained"}})
	}
}

func svc(path string, props Properties) []interface{} {
	return []interface{}{path, map[string]interface{}(props)}
}

func wifi(name string, state ServiceState, strength uint8) Properties {
	return Properties{
		propType:     "wifi",
		propName:     name,
		propState:    string(state),
		propStrength: strength,
		propSecurity: []string{"psk"},
	}
}

func wired(name string, state ServiceState) Properties {
	return Properties{
		propType:     "ethernet",
		propName:     name,
		propState:    string(state),
		propSecurity: []string{"none"},
	}
}

type testEnv struct {
	t    *testing.T
	bus  *fakeBus
	loop *queueDispatcher
	m    *Manager
	last Snapshot
	seen int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t, bus: newFakeBus(t), loop: &queueDispatcher{}}
	cfg := DefaultConfig()
	cfg.FailureLinger = 0
	env.m = NewManager(env.bus, env.loop, cfg)
	env.m.SetLogger(common.NopLogger{})
	env.m.Subscribe(func(s Snapshot) {
		env.last = s
		env.seen++
	})
	return env
}

// startSynced brings the manager up with the daemon present and answers the
// initial reads.
func (e *testEnv) startSynced(services ...[]interface{}) {
	e.t.Helper()
	e.m.Start()
	e.bus.setPresent(true)
	e.bus.reply(common.ManagerPath, "GetProperties", map[string]interface{}{
		propAvailableTechnologies: []string{"ethernet", "wifi"},
		propEnabledTechnologies:   []string{"ethernet", "wifi"},
		propState:                 "online",
		propOfflineMode:           false,
	})
	e.bus.reply(common.ManagerPath, "GetState", "online")
	e.services(services...)
	for _, kind := range Kinds {
		e.bus.drain(common.TechnologyPathPrefix+kind.String(), "GetProperties")
	}
}

// services answers the oldest pending GetServices.
func (e *testEnv) services(entries ...[]interface{}) {
	e.t.Helper()
	list := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		list = append(list, entry)
	}
	e.bus.reply(common.ManagerPath, "GetServices", list)
}

// push delivers a manager PropertyChanged.
func (e *testEnv) push(name string, value interface{}) {
	e.bus.emit(common.ManagerPath, "PropertyChanged", name, value)
}

func (e *testEnv) directNames(kind Kind) []string {
	var names []string
	for _, v := range e.last.Technology(kind).Direct {
		names = append(names, v.Name)
	}
	return names
}
