package connman

import "time"

// Reply is the outcome of one request to a remote object.
type Reply struct {
	Body []interface{}
	Err  error
}

// Variant marks a call argument that must travel as a variant-typed value
// (the "v" in SetProperty's "sv" signature).
type Variant struct {
	Value interface{}
}

// RemoteObject is one addressable object exposed by the daemon.
// Callbacks may run on any goroutine.
type RemoteObject interface {
	// Path returns the object path.
	Path() string
	// Call issues method and invokes reply exactly once with the result.
	// A zero timeout selects the transport default.
	Call(method string, timeout time.Duration, reply func(Reply), args ...interface{})
	// Watch subscribes to a signal emitted by this object.
	Watch(signal string, handler func(args []interface{})) (cancel func())
}

// Bus hands out remote objects and reports whether the daemon owns its name.
type Bus interface {
	Object(path string) RemoteObject
	// WatchName reports ownership changes of a well-known name. The handler
	// is also invoked once with the current state when it is known.
	WatchName(name string, handler func(present bool)) (cancel func(), err error)
}

// Dispatcher runs closures one at a time, in posting order.
type Dispatcher interface {
	Post(fn func())
}

// remote binds a RemoteObject to the dispatcher so that every reply and
// signal is handled on the event loop.
type remote struct {
	obj      RemoteObject
	loop     Dispatcher
	observer func(method string, err error)
}

func (r *remote) path() string {
	return r.obj.Path()
}

func (r *remote) call(method string, timeout time.Duration, fn func(Reply), args ...interface{}) {
	r.obj.Call(method, timeout, func(reply Reply) {
		r.loop.Post(func() {
			if r.observer != nil {
				r.observer(method, reply.Err)
			}
			if fn != nil {
				fn(reply)
			}
		})
	}, args...)
}

func (r *remote) watch(signal string, fn func(args []interface{})) func() {
	return r.obj.Watch(signal, func(args []interface{}) {
		r.loop.Post(func() { fn(args) })
	})
}
