package tray

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

// Authenticator is the part of connman.Manager the prompt answers through.
type Authenticator interface {
	SubmitPassphrase(path, passphrase string)
	CancelAuthentication(path string)
}

// runFunc runs a command and returns its standard output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// AskpassPrompt collects passphrases by running an external helper such
// as zenity or ssh-askpass. It implements connman.CredentialPrompt.
type AskpassPrompt struct {
	command  []string
	auth     Authenticator
	onFailed func(connman.AuthEvent)
	run      runFunc
	log      common.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewAskpassPrompt parses command, in which "%s" stands for the prompt
// title, and answers through auth. onFailed, if set, is told about failed
// attempts.
func NewAskpassPrompt(command string, auth Authenticator, onFailed func(connman.AuthEvent)) *AskpassPrompt {
	return &AskpassPrompt{
		command:  strings.Fields(command),
		auth:     auth,
		onFailed: onFailed,
		run:      runCommand,
		log:      common.GetLogger().Component("askpass"),
		running:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// HandleAuthEvent starts the helper on a request and stops it when the
// flow ends some other way. It never blocks.
func (p *AskpassPrompt) HandleAuthEvent(event connman.AuthEvent) {
	switch event.Type {
	case connman.AuthRequested:
		p.start(event)
	case connman.AuthFailed:
		p.stop(event.FlowID)
		if p.onFailed != nil {
			p.onFailed(event)
		}
	default:
		p.stop(event.FlowID)
	}
}

// Wait blocks until every helper has exited.
func (p *AskpassPrompt) Wait() {
	p.wg.Wait()
}

// Close stops every running helper and waits for them to exit.
func (p *AskpassPrompt) Close() {
	p.mu.Lock()
	for id, cancel := range p.running {
		cancel()
		delete(p.running, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *AskpassPrompt) start(event connman.AuthEvent) {
	if len(p.command) == 0 {
		p.log.Warn("No askpass command configured, cancelling authentication for %s", event.ServiceName)
		p.auth.CancelAuthentication(event.Path)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.running[event.FlowID] = cancel
	p.mu.Unlock()

	name, args := p.expand(event)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.forget(event.FlowID)

		out, err := p.run(ctx, name, args...)
		if ctx.Err() != nil {
			// The flow ended while the helper was open.
			return
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				p.log.Warn("Askpass helper %s failed: %v", name, err)
			}
			p.auth.CancelAuthentication(event.Path)
			return
		}
		passphrase := strings.TrimRight(string(out), "\r\n")
		if passphrase == "" {
			p.auth.CancelAuthentication(event.Path)
			return
		}
		p.auth.SubmitPassphrase(event.Path, passphrase)
	}()
}

func (p *AskpassPrompt) expand(event connman.AuthEvent) (string, []string) {
	title := fmt.Sprintf("Passphrase for %s", event.ServiceName)
	args := make([]string, 0, len(p.command)-1)
	for _, arg := range p.command[1:] {
		args = append(args, strings.ReplaceAll(arg, "%s", title))
	}
	return p.command[0], args
}

func (p *AskpassPrompt) stop(id uuid.UUID) {
	p.mu.Lock()
	cancel, ok := p.running[id]
	delete(p.running, id)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *AskpassPrompt) forget(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.running[id]; ok {
		cancel()
		delete(p.running, id)
	}
}
