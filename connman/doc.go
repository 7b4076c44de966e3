// Package connman mirrors the state of the ConnMan daemon into a local
// model and exposes the commands that change it.
//
// The model has three entities. A Manager owns one Technology per
// connection medium and every Service the daemon reports, keyed by object
// path. Daemon pushes and request replies are merged in place so that a
// Service object lives exactly as long as its path is listed.
//
// All mutation happens on a single Dispatcher, normally an EventLoop.
// Presentation code reads immutable Snapshot values and sends intent back
// through the Manager's command methods:
//
//	loop := connman.NewEventLoop()
//	go loop.Run(ctx)
//	m := connman.NewManager(bus, loop, connman.DefaultConfig())
//	m.Subscribe(func(s connman.Snapshot) { render(s) })
//	m.Start()
//
// Connecting a service that needs a passphrase runs an AuthFlow, which
// talks to the installed CredentialPrompt.
package connman
