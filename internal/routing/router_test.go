package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/adjutant-ai/adjutant/internal/identity"
)

type fakeIdentities struct {
	mainID      int64
	owner       map[string]bool
	resolutions map[string]*identity.Resolution
	resolveErr  error
}

func (f *fakeIdentities) MainAgentID() int64 { return f.mainID }

func (f *fakeIdentities) IsOwnerIdentity(service, identifier string) bool {
	return f.owner[service+"/"+identifier]
}

func (f *fakeIdentities) Resolve(_ context.Context, service, identifier string) (*identity.Resolution, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolutions[service+"/"+identifier], nil
}

type fakeNamer struct {
	names map[int64]string
}

func (f *fakeNamer) AgentName(_ context.Context, id int64) (string, error) {
	if name, ok := f.names[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("agent %d not found", id)
}

func newTestRouter() *Router {
	ids := &fakeIdentities{
		mainID: 1,
		owner:  map[string]bool{"telegram/555": true},
		resolutions: map[string]*identity.Resolution{
			"signal/+4477": {AgentID: 7, IdentityID: 42, DisplayName: "Alice"},
		},
	}
	return NewRouter(ids, &fakeNamer{names: map[int64]string{3: "research"}})
}

// TestRoute_Dispatch verifies the routing decision for each source class:
// internal sources, owner identities, known contacts, and explicit targets.
func TestRoute_Dispatch(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantOK    bool
		wantAgent int64
		wantLabel string
		wantMain  bool
	}{
		{
			name:      "local call with no attribution goes to main as owner",
			in:        Input{},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: OwnerLabel,
			wantMain:  true,
		},
		{
			name:      "cron source goes to main labeled by source",
			in:        Input{Source: SourceCron},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: "cron",
			wantMain:  true,
		},
		{
			name:      "coder source goes to main",
			in:        Input{Source: SourceCoder},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: "coder",
			wantMain:  true,
		},
		{
			name:      "plugin source goes to main",
			in:        Input{Source: "plugin:weather"},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: "plugin:weather",
			wantMain:  true,
		},
		{
			name:      "owner identity goes to main as owner",
			in:        Input{Source: "telegram", Sender: "555"},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: OwnerLabel,
			wantMain:  true,
		},
		{
			name:      "known contact goes to assigned agent with display name",
			in:        Input{Source: "signal", Sender: "+4477"},
			wantOK:    true,
			wantAgent: 7,
			wantLabel: "Alice",
			wantMain:  false,
		},
		{
			name:      "explicit target bypasses identity resolution",
			in:        Input{Source: "signal", Sender: "+9999", TargetAgentID: 2},
			wantOK:    true,
			wantAgent: 2,
			wantLabel: "signal",
			wantMain:  false,
		},
		{
			name:      "agent message with known sender id uses agent name",
			in:        Input{Source: SourceAgent, Sender: "3", TargetAgentID: 1},
			wantOK:    true,
			wantAgent: 1,
			wantLabel: "research",
			wantMain:  true,
		},
		{
			name:      "agent message with unknown sender keeps raw label",
			in:        Input{Source: SourceAgent, Sender: "helper", TargetAgentID: 2},
			wantOK:    true,
			wantAgent: 2,
			wantLabel: "agent:helper",
			wantMain:  false,
		},
		{
			name:   "agent message without target is dropped",
			in:     Input{Source: SourceAgent, Sender: "3"},
			wantOK: false,
		},
		{
			name:   "external message without sender is dropped",
			in:     Input{Source: "signal"},
			wantOK: false,
		},
		{
			name:   "unknown identity is dropped",
			in:     Input{Source: "signal", Sender: "+0000"},
			wantOK: false,
		},
	}

	r := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, ok, err := r.Route(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Route returned error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("Route ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if dec.AgentID != tt.wantAgent {
				t.Errorf("AgentID = %d, want %d", dec.AgentID, tt.wantAgent)
			}
			if dec.SenderLabel != tt.wantLabel {
				t.Errorf("SenderLabel = %q, want %q", dec.SenderLabel, tt.wantLabel)
			}
			if dec.IsMain != tt.wantMain {
				t.Errorf("IsMain = %v, want %v", dec.IsMain, tt.wantMain)
			}
		})
	}
}

// TestRoute_SenderAttribution verifies that at most one of the two sender
// reference fields is populated per decision.
func TestRoute_SenderAttribution(t *testing.T) {
	r := newTestRouter()

	dec, ok, err := r.Route(context.Background(), Input{Source: "signal", Sender: "+4477"})
	if err != nil || !ok {
		t.Fatalf("Route = (%v, %v), want ok", ok, err)
	}
	if dec.SenderIdentityID == nil || *dec.SenderIdentityID != 42 {
		t.Errorf("SenderIdentityID = %v, want 42", dec.SenderIdentityID)
	}
	if dec.SenderAgentID != nil {
		t.Errorf("SenderAgentID = %v, want nil for external sender", dec.SenderAgentID)
	}

	dec, ok, err = r.Route(context.Background(), Input{Source: SourceAgent, Sender: "3", TargetAgentID: 1})
	if err != nil || !ok {
		t.Fatalf("Route = (%v, %v), want ok", ok, err)
	}
	if dec.SenderAgentID == nil || *dec.SenderAgentID != 3 {
		t.Errorf("SenderAgentID = %v, want 3", dec.SenderAgentID)
	}
	if dec.SenderIdentityID != nil {
		t.Errorf("SenderIdentityID = %v, want nil for agent sender", dec.SenderIdentityID)
	}
}

// TestRoute_ResolveError verifies that a store failure during identity
// resolution surfaces as an error, not a silent drop.
func TestRoute_ResolveError(t *testing.T) {
	ids := &fakeIdentities{mainID: 1, resolveErr: fmt.Errorf("connection refused")}
	r := NewRouter(ids, &fakeNamer{})

	_, ok, err := r.Route(context.Background(), Input{Source: "signal", Sender: "+4477"})
	if err == nil {
		t.Fatal("expected error from failing resolver")
	}
	if ok {
		t.Error("ok = true, want false on resolver error")
	}
}
