package connman

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yllada/connman-indicator/common"
)

// AuthState is the state of one credential-collecting connect attempt.
type AuthState int

const (
	AuthIdle AuthState = iota
	AuthAwaitingCredentials
	AuthSubmitting
	AuthConnected
	AuthStateFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthIdle:
		return "idle"
	case AuthAwaitingCredentials:
		return "awaiting-credentials"
	case AuthSubmitting:
		return "submitting"
	case AuthConnected:
		return "connected"
	case AuthStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s AuthState) Terminal() bool {
	return s == AuthConnected || s == AuthStateFailed
}

// AuthEventType identifies what a credential prompt is told.
type AuthEventType int

const (
	// AuthRequested asks the prompt to collect a passphrase.
	AuthRequested AuthEventType = iota
	// AuthFailed reports the daemon's error; the prompt should show
	// Message for Linger and then close.
	AuthFailed
	// AuthSucceeded closes the prompt.
	AuthSucceeded
	// AuthCancelled closes the prompt without a message.
	AuthCancelled
)

func (t AuthEventType) String() string {
	switch t {
	case AuthRequested:
		return "requested"
	case AuthFailed:
		return "failed"
	case AuthSucceeded:
		return "succeeded"
	case AuthCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AuthEvent is delivered to the credential prompt on the event loop.
type AuthEvent struct {
	Type        AuthEventType
	FlowID      uuid.UUID
	Path        string
	ServiceName string
	Message     string
	Err         error
	Linger      time.Duration
}

// CredentialPrompt collects passphrases on behalf of the engine. It must
// not block; answers go back through Manager.SubmitPassphrase or
// Manager.CancelAuthentication.
type CredentialPrompt interface {
	HandleAuthEvent(event AuthEvent)
}

// CredentialPromptFunc adapts a function to CredentialPrompt.
type CredentialPromptFunc func(event AuthEvent)

func (f CredentialPromptFunc) HandleAuthEvent(event AuthEvent) { f(event) }

// AuthFlow coordinates one connect attempt with passphrase collection.
// Exactly one terminal event is delivered per flow.
type AuthFlow struct {
	id      uuid.UUID
	service *Service
	state   AuthState
	prompt  CredentialPrompt
	linger  time.Duration
	log     common.Logger

	unsubscribe func()
	done        func(*AuthFlow)
}

func newAuthFlow(service *Service, prompt CredentialPrompt, linger time.Duration, log common.Logger, done func(*AuthFlow)) *AuthFlow {
	return &AuthFlow{
		id:      uuid.New(),
		service: service,
		state:   AuthIdle,
		prompt:  prompt,
		linger:  linger,
		log:     log,
		done:    done,
	}
}

func (f *AuthFlow) ID() uuid.UUID    { return f.id }
func (f *AuthFlow) State() AuthState { return f.state }

// begin moves to AwaitingCredentials and asks the prompt for a passphrase.
func (f *AuthFlow) begin() {
	f.state = AuthAwaitingCredentials
	f.unsubscribe = f.service.Subscribe(f.onServiceEvent)
	f.log.Info("Passphrase needed for %s (flow %s)", f.service.DisplayName(), f.id)
	if f.prompt == nil {
		f.finish(AuthStateFailed, AuthCancelled, common.ErrAuthCancelled)
		return
	}
	f.prompt.HandleAuthEvent(f.event(AuthRequested, nil))
}

// submit stores the passphrase and issues the connect request. An empty
// passphrase leaves the flow waiting.
func (f *AuthFlow) submit(passphrase string) error {
	if f.state != AuthAwaitingCredentials {
		return fmt.Errorf("flow %s is %s: %w", f.id, f.state, common.ErrStaleIdentity)
	}
	if passphrase == "" {
		return common.ErrCredentialsMissing
	}
	f.service.setPassphrase(passphrase)
	f.state = AuthSubmitting
	f.service.connect()
	return nil
}

// cancel ends the flow. Once a request is out, a late reply is ignored.
func (f *AuthFlow) cancel() {
	if f.state.Terminal() || f.state == AuthIdle {
		return
	}
	f.log.Info("Authentication for %s cancelled", f.service.DisplayName())
	f.finish(AuthStateFailed, AuthCancelled, common.ErrAuthCancelled)
}

func (f *AuthFlow) onServiceEvent(event ServiceEvent) {
	if f.state.Terminal() {
		return
	}
	switch event.Type {
	case EventConnected:
		if f.state == AuthSubmitting {
			f.finish(AuthConnected, AuthSucceeded, nil)
		}
	case EventConnectionFailed:
		if f.state == AuthSubmitting {
			f.service.clearPassphrase()
			f.finish(AuthStateFailed, AuthFailed, event.Err)
		}
	case EventRemoved:
		f.finish(AuthStateFailed, AuthFailed, common.WrapError(common.ErrStaleIdentity, f.service.path))
	}
}

func (f *AuthFlow) finish(state AuthState, eventType AuthEventType, err error) {
	f.state = state
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
	if err != nil && eventType == AuthFailed {
		f.log.Warn("Authentication for %s failed: %v", f.service.DisplayName(), err)
	}
	if f.prompt != nil {
		f.prompt.HandleAuthEvent(f.event(eventType, err))
	}
	if f.done != nil {
		f.done(f)
	}
}

func (f *AuthFlow) event(eventType AuthEventType, err error) AuthEvent {
	event := AuthEvent{
		Type:        eventType,
		FlowID:      f.id,
		Path:        f.service.path,
		ServiceName: f.service.DisplayName(),
		Err:         err,
	}
	if err != nil {
		event.Message = common.ErrorReason(err)
	}
	if eventType == AuthFailed {
		event.Linger = f.linger
	}
	return event
}
