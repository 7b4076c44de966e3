// Package cli provides one-shot terminal commands over the engine.
// This allows users to inspect and change connections from scripts
// without starting the tray indicator.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
	"golang.org/x/term"
)

// Engine is the part of connman.Manager the commands drive.
type Engine interface {
	Subscribe(fn func(connman.Snapshot)) (unsubscribe func())
	SetCredentialPrompt(prompt connman.CredentialPrompt)
	ConnectService(path string)
	DisconnectService(path string)
	EnableTechnology(kind connman.Kind)
	DisableTechnology(kind connman.Kind)
	SubmitPassphrase(path, passphrase string)
	CancelAuthentication(path string)
}

// CLI represents the command-line interface.
type CLI struct {
	engine         Engine
	out            io.Writer
	readPassphrase func(prompt string) (string, error)
	syncTimeout    time.Duration
	connectTimeout time.Duration

	wg sync.WaitGroup
}

// New creates a CLI over engine. connectTimeout bounds how long Connect
// and Disconnect wait for the service to settle.
func New(engine Engine, connectTimeout time.Duration) *CLI {
	if connectTimeout <= 0 {
		connectTimeout = common.ConnectTimeout
	}
	return &CLI{
		engine:         engine,
		out:            os.Stdout,
		readPassphrase: readPassphrase,
		syncTimeout:    common.SyncTimeout,
		connectTimeout: connectTimeout,
	}
}

// snapshotBuffer is how many undelivered snapshots a command keeps before
// dropping the oldest.
const snapshotBuffer = 16

// watch subscribes to snapshots without ever blocking the engine.
func (c *CLI) watch() (<-chan connman.Snapshot, func()) {
	ch := make(chan connman.Snapshot, snapshotBuffer)
	unsubscribe := c.engine.Subscribe(func(s connman.Snapshot) {
		for {
			select {
			case ch <- s:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
	return ch, unsubscribe
}

// synced waits for the first full service list.
func (c *CLI) synced(ctx context.Context, snapshots <-chan connman.Snapshot) (connman.Snapshot, error) {
	timeout := time.NewTimer(c.syncTimeout)
	defer timeout.Stop()

	var last connman.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timeout.C:
			if !last.DaemonPresent {
				return last, common.ErrDaemonUnavailable
			}
			return last, common.ErrNotSynchronized
		case last = <-snapshots:
			if last.DaemonPresent && last.Synced {
				return last, nil
			}
		}
	}
}

// Status shows the daemon state, the global status and each technology.
func (c *CLI) Status(ctx context.Context) error {
	snapshots, unsubscribe := c.watch()
	defer unsubscribe()

	snapshot, err := c.synced(ctx, snapshots)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "State:         %s\n", snapshot.State)
	fmt.Fprintf(c.out, "Status:        %s\n", snapshot.Status)
	fmt.Fprintf(c.out, "Offline mode:  %s\n", yesNo(snapshot.OfflineMode))
	if name := connectedService(snapshot); name != "" {
		fmt.Fprintf(c.out, "Connected to:  %s\n", name)
	}
	fmt.Fprintln(c.out)

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TECHNOLOGY\tAVAILABLE\tENABLED\tBLOCKED\tSERVICES")
	fmt.Fprintln(w, "----------\t---------\t-------\t-------\t--------")
	for _, kind := range connman.Kinds {
		view := snapshot.Technology(kind)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			view.Label, yesNo(view.Available), yesNo(view.Enabled), yesNo(view.Blocked), len(view.Services()))
	}
	return w.Flush()
}

// List lists every known service in display order.
func (c *CLI) List(ctx context.Context) error {
	snapshots, unsubscribe := c.watch()
	defer unsubscribe()

	snapshot, err := c.synced(ctx, snapshots)
	if err != nil {
		return err
	}
	if len(snapshot.Services) == 0 {
		fmt.Fprintln(c.out, "No networks found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSTATE\tSIGNAL\tSECURITY\tPATH")
	fmt.Fprintln(w, "----\t----\t-----\t------\t--------\t----")
	for _, kind := range connman.Kinds {
		for _, v := range snapshot.Technology(kind).Services() {
			writeService(w, v)
		}
	}
	// Services of technologies the indicator does not manage.
	for _, v := range snapshot.Services {
		if !v.HasKind {
			writeService(w, v)
		}
	}
	return w.Flush()
}

func writeService(w io.Writer, v connman.ServiceView) {
	signal := "-"
	if v.HasStrength {
		signal = fmt.Sprintf("%d%%", v.Strength)
	}
	security := strings.Join(v.Security, ",")
	if security == "" {
		security = "-"
	}
	state := string(v.State)
	if state == "" {
		state = "-"
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.Name, v.Type, state, signal, security, v.Path)
}

// Connect connects to a service by name or path, asking for a passphrase
// on the terminal when the daemon needs one.
func (c *CLI) Connect(ctx context.Context, nameOrPath string) error {
	snapshots, unsubscribe := c.watch()
	defer unsubscribe()

	snapshot, err := c.synced(ctx, snapshots)
	if err != nil {
		return err
	}
	target, ok := snapshot.Lookup(nameOrPath)
	if !ok {
		return common.WrapError(common.ErrServiceNotFound, nameOrPath)
	}
	if target.Connected() {
		return fmt.Errorf("already connected to %s", target.Name)
	}

	outcomes := make(chan connman.AuthEvent, 1)
	c.engine.SetCredentialPrompt(connman.CredentialPromptFunc(func(event connman.AuthEvent) {
		c.handleAuthEvent(event, outcomes)
	}))
	defer c.engine.SetCredentialPrompt(nil)

	fmt.Fprintf(c.out, "Connecting to %s...\n", target.Name)
	c.engine.ConnectService(target.Path)

	timeout := time.NewTimer(c.connectTimeout)
	defer timeout.Stop()

	// A failure left over from an earlier attempt does not count.
	attempted := target.State != connman.StateFailure
	cleared := target.LastError == ""
	for {
		select {
		case <-ctx.Done():
			c.engine.CancelAuthentication(target.Path)
			return ctx.Err()
		case <-timeout.C:
			c.engine.CancelAuthentication(target.Path)
			return common.WrapError(common.ErrTimeout, "connecting to "+target.Name)
		case event := <-outcomes:
			switch event.Type {
			case connman.AuthFailed:
				return fmt.Errorf("connection failed: %s", event.Message)
			case connman.AuthCancelled:
				return common.ErrAuthCancelled
			}
		case snapshot = <-snapshots:
			if !snapshot.DaemonPresent {
				return common.ErrDaemonUnavailable
			}
			v, ok := snapshot.Service(target.Path)
			if ok && v.LastError == "" {
				cleared = true
			}
			switch {
			case !ok:
				return common.WrapError(common.ErrStaleIdentity, target.Name)
			case v.LastError != "" && cleared && !v.Authenticating:
				return fmt.Errorf("connection to %s failed: %s", v.Name, v.LastError)
			case v.Connected():
				fmt.Fprintf(c.out, "✓ Connected to %s\n", v.Name)
				return nil
			case v.State.Acquiring():
				attempted = true
			case v.State == connman.StateFailure && attempted && !v.Authenticating:
				return fmt.Errorf("connection to %s failed", v.Name)
			}
		}
	}
}

// handleAuthEvent runs on the engine's loop and must not block it.
func (c *CLI) handleAuthEvent(event connman.AuthEvent, outcomes chan<- connman.AuthEvent) {
	switch event.Type {
	case connman.AuthRequested:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			passphrase, err := c.readPassphrase(fmt.Sprintf("Passphrase for %s: ", event.ServiceName))
			if err != nil || passphrase == "" {
				c.engine.CancelAuthentication(event.Path)
				return
			}
			c.engine.SubmitPassphrase(event.Path, passphrase)
		}()
	case connman.AuthFailed, connman.AuthCancelled:
		select {
		case outcomes <- event:
		default:
		}
	}
}

// Disconnect disconnects a service by name or path. With "all" or an
// empty name every connected service is disconnected.
func (c *CLI) Disconnect(ctx context.Context, nameOrPath string) error {
	snapshots, unsubscribe := c.watch()
	defer unsubscribe()

	snapshot, err := c.synced(ctx, snapshots)
	if err != nil {
		return err
	}

	var targets []connman.ServiceView
	if nameOrPath == "" || nameOrPath == "all" {
		for _, v := range snapshot.Services {
			if v.Connected() {
				targets = append(targets, v)
			}
		}
		if len(targets) == 0 {
			fmt.Fprintln(c.out, "No active connections.")
			return nil
		}
	} else {
		v, ok := snapshot.Lookup(nameOrPath)
		if !ok {
			return common.WrapError(common.ErrServiceNotFound, nameOrPath)
		}
		if !v.Connected() {
			return fmt.Errorf("not connected to %s", v.Name)
		}
		targets = append(targets, v)
	}

	for _, v := range targets {
		fmt.Fprintf(c.out, "Disconnecting from %s...\n", v.Name)
		c.engine.DisconnectService(v.Path)
	}

	timeout := time.NewTimer(c.connectTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return common.WrapError(common.ErrTimeout, "disconnecting")
		case snapshot = <-snapshots:
			if !snapshot.DaemonPresent {
				return common.ErrDaemonUnavailable
			}
			if disconnected(snapshot, targets) {
				fmt.Fprintln(c.out, "✓ Disconnected")
				return nil
			}
		}
	}
}

func disconnected(snapshot connman.Snapshot, targets []connman.ServiceView) bool {
	for _, t := range targets {
		if v, ok := snapshot.Service(t.Path); ok && v.Connected() {
			return false
		}
	}
	return true
}

// Enable powers a technology on.
func (c *CLI) Enable(ctx context.Context, name string) error {
	return c.setPower(ctx, name, true)
}

// Disable powers a technology off.
func (c *CLI) Disable(ctx context.Context, name string) error {
	return c.setPower(ctx, name, false)
}

func (c *CLI) setPower(ctx context.Context, name string, on bool) error {
	kind, ok := connman.ParseKind(name)
	if !ok {
		return common.WrapError(common.ErrUnknownTechnology, name)
	}

	snapshots, unsubscribe := c.watch()
	defer unsubscribe()

	snapshot, err := c.synced(ctx, snapshots)
	if err != nil {
		return err
	}
	view := snapshot.Technology(kind)
	switch {
	case !view.Available:
		return fmt.Errorf("%s is not available", view.Label)
	case view.Blocked:
		return common.WrapError(common.ErrTechnologyBlocked, view.Label)
	case view.Enabled == on:
		fmt.Fprintf(c.out, "%s is already %s\n", view.Label, onOff(on))
		return nil
	}

	if on {
		c.engine.EnableTechnology(kind)
	} else {
		c.engine.DisableTechnology(kind)
	}

	timeout := time.NewTimer(c.syncTimeout)
	defer timeout.Stop()

	requested := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return common.WrapError(common.ErrTimeout, "turning "+onOff(on)+" "+view.Label)
		case snapshot = <-snapshots:
			view = snapshot.Technology(kind)
			switch {
			case view.Enabled == on:
				fmt.Fprintf(c.out, "✓ %s turned %s\n", view.Label, onOff(on))
				return nil
			case view.Pending:
				requested = true
			case requested:
				// Pending cleared without reaching the target.
				return fmt.Errorf("unable to turn %s %s", onOff(on), view.Label)
			}
		}
	}
}

// readPassphrase reads a line from the terminal without echo, or a plain
// line when standard input is not a terminal.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func connectedService(snapshot connman.Snapshot) string {
	for _, v := range snapshot.Services {
		if v.Connected() {
			return v.Name
		}
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`ConnMan Indicator

Usage:
  connman-indicator [OPTIONS]

Options:
  --tray              Show the system tray indicator (default)
  --tui               Run the terminal interface
  --status            Show the current connection status
  --list              List known networks
  --connect NAME      Connect to a network by name or object path
  --disconnect[=NAME] Disconnect a network (all if no name)
  --enable TECH       Turn a technology on (wifi, ethernet)
  --disable TECH      Turn a technology off (wifi, ethernet)
  --config FILE       Read configuration from FILE
  --verbose           Enable verbose logging
  --version           Show version and exit
  --help              Show this help message

Examples:
  connman-indicator --list
  connman-indicator --connect "Home"
  connman-indicator --disable wifi
  connman-indicator --disconnect

Notes:
  - Passphrases are read from the terminal when a network needs one`)
}
