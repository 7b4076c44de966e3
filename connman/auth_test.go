package connman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/connman-indicator/common"
)

type recordingPrompt struct {
	events []AuthEvent
}

func (p *recordingPrompt) HandleAuthEvent(event AuthEvent) {
	p.events = append(p.events, event)
}

func (p *recordingPrompt) types() []AuthEventType {
	out := make([]AuthEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func secured(name string) Properties {
	props := wifi(name, StateIdle, 70)
	props[propPassphraseRequired] = true
	return props
}

func newAuthEnv(t *testing.T) (*testEnv, *recordingPrompt) {
	env := newTestEnv(t)
	prompt := &recordingPrompt{}
	env.m.SetCredentialPrompt(prompt)
	env.startSynced(svc(pathA, secured("Cafe")))
	return env, prompt
}

func TestAuth_PromptsWhenPassphraseNeeded(t *testing.T) {
	env, prompt := newAuthEnv(t)

	env.m.ConnectService(pathA)

	require.Len(t, prompt.events, 1)
	event := prompt.events[0]
	assert.Equal(t, AuthRequested, event.Type)
	assert.Equal(t, "Cafe", event.ServiceName)
	assert.Equal(t, pathA, event.Path)
	assert.NotEmpty(t, event.FlowID.String())
	assert.Equal(t, AuthAwaitingCredentials, env.m.authState(pathA))
	assert.Equal(t, 0, env.bus.count(pathA, "Connect"), "nothing is sent before credentials")

	view, ok := env.last.Service(pathA)
	require.True(t, ok)
	assert.True(t, view.Authenticating)
}

func TestAuth_NoPromptForImmutableOrCached(t *testing.T) {
	env := newTestEnv(t)
	prompt := &recordingPrompt{}
	env.m.SetCredentialPrompt(prompt)

	immutable := secured("Managed")
	immutable[propImmutable] = true
	env.startSynced(svc(pathA, immutable), svc(pathB, secured("Cached")))
	env.m.services[pathB].setPassphrase("known")

	env.m.ConnectService(pathA)
	env.m.ConnectService(pathB)

	assert.Empty(t, prompt.events)
	assert.Equal(t, 1, env.bus.count(pathA, "Connect"))
	assert.Equal(t, 1, env.bus.count(pathB, "Connect"))
}

func TestAuth_SubmitConnects(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)

	env.m.SubmitPassphrase(pathA, "hunter2")

	set := env.bus.pending(pathA, "SetProperty")
	require.Len(t, set, 1)
	assert.Equal(t, []interface{}{propPassphrase, Variant{Value: "hunter2"}}, set[0].args)
	passphrase, ok := env.m.services[pathA].Passphrase()
	assert.True(t, ok)
	assert.Equal(t, "hunter2", passphrase)
	assert.Equal(t, AuthSubmitting, env.m.authState(pathA))

	env.bus.reply(pathA, "SetProperty")
	env.bus.reply(pathA, "Connect")

	assert.Equal(t, []AuthEventType{AuthRequested, AuthSucceeded}, prompt.types())
	assert.Equal(t, AuthIdle, env.m.authState(pathA), "flow is discarded once terminal")
	view, _ := env.last.Service(pathA)
	assert.False(t, view.Authenticating)
}

func TestAuth_WrongPassphraseFailsOnce(t *testing.T) {
	env, prompt := newAuthEnv(t)
	service := env.m.services[pathA]
	env.m.ConnectService(pathA)
	env.m.SubmitPassphrase(pathA, "wrong")

	env.bus.fail(pathA, "Connect", &common.TransportError{
		Object:  pathA,
		Method:  "Connect",
		Name:    "net.connman.Error.InvalidArguments",
		Message: "Invalid arguments",
	})

	_, cached := service.Passphrase()
	assert.False(t, cached, "failed passphrase is dropped locally")
	assert.Len(t, env.bus.pending(pathA, "ClearProperty"), 1)

	// A stray success after the failure changes nothing.
	service.emit(EventConnected, nil)

	require.Equal(t, []AuthEventType{AuthRequested, AuthFailed}, prompt.types())
	failure := prompt.events[1]
	assert.Equal(t, "Invalid arguments", failure.Message)
	assert.Equal(t, env.m.cfg.FailureLinger, failure.Linger)
	assert.Equal(t, prompt.events[0].FlowID, failure.FlowID)

	// The next connect asks again.
	env.m.ConnectService(pathA)
	require.Len(t, prompt.events, 3)
	assert.Equal(t, AuthRequested, prompt.events[2].Type)
	assert.NotEqual(t, failure.FlowID, prompt.events[2].FlowID)
}

func TestAuth_CancelIssuesNoRequest(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)
	calls := len(env.bus.calls)

	env.m.CancelAuthentication(pathA)

	assert.Len(t, env.bus.calls, calls)
	assert.Equal(t, []AuthEventType{AuthRequested, AuthCancelled}, prompt.types())
	assert.ErrorIs(t, prompt.events[1].Err, ErrAuthCancelled)
	assert.Equal(t, AuthIdle, env.m.authState(pathA))
}

func TestAuth_LateReplyAfterCancelIgnored(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)
	env.m.SubmitPassphrase(pathA, "hunter2")
	env.m.CancelAuthentication(pathA)

	env.bus.reply(pathA, "Connect")

	assert.Equal(t, []AuthEventType{AuthRequested, AuthCancelled}, prompt.types())
}

func TestAuth_EmptyPassphraseKeepsWaiting(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)

	assert.ErrorIs(t, env.m.submitPassphrase(pathA, ""), common.ErrCredentialsMissing)
	assert.Equal(t, AuthAwaitingCredentials, env.m.authState(pathA))
	assert.Equal(t, 0, env.bus.count(pathA, "SetProperty"))
	assert.Len(t, prompt.events, 1)
}

func TestAuth_SecondConnectWhileLiveIgnored(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)

	assert.ErrorIs(t, env.m.connectService(pathA), ErrAuthInProgress)
	assert.Len(t, prompt.events, 1)
}

func TestAuth_RemovalFailsFlow(t *testing.T) {
	env, prompt := newAuthEnv(t)
	env.m.ConnectService(pathA)

	env.push(propServices, nil)
	env.services()

	require.Equal(t, []AuthEventType{AuthRequested, AuthFailed}, prompt.types())
	assert.ErrorIs(t, prompt.events[1].Err, ErrStaleIdentity)
	assert.Empty(t, env.m.flows)
}

func TestAuth_NoPromptInstalled(t *testing.T) {
	env := newTestEnv(t)
	env.startSynced(svc(pathA, secured("Cafe")))

	env.m.ConnectService(pathA)

	assert.Equal(t, 0, env.bus.count(pathA, "Connect"))
	assert.Empty(t, env.m.flows)
}

func TestAuthState_String(t *testing.T) {
	tests := []struct {
		state    AuthState
		expected string
		terminal bool
	}{
		{AuthIdle, "idle", false},
		{AuthAwaitingCredentials, "awaiting-credentials", false},
		{AuthSubmitting, "submitting", false},
		{AuthConnected, "connected", true},
		{AuthStateFailed, "failed", true},
		{AuthState(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("AuthState.String() = %v, want %v", got, tt.expected)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("AuthState.Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
