package queue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adjutant-ai/adjutant/internal/agent"
	"github.com/adjutant-ai/adjutant/internal/providers"
	"github.com/adjutant-ai/adjutant/internal/routing"
)

type fakeRouter struct {
	drop bool
	err  error
}

func (f *fakeRouter) Route(_ context.Context, in routing.Input) (routing.Decision, bool, error) {
	if f.err != nil {
		return routing.Decision{}, false, f.err
	}
	if f.drop {
		return routing.Decision{}, false, nil
	}
	return routing.Decision{AgentID: 1, SenderLabel: routing.OwnerLabel, IsMain: true}, true, nil
}

// fakeRunner replays a scripted sequence of (reply, error) results and
// records every input it sees.
type fakeRunner struct {
	mu      sync.Mutex
	inputs  []string
	replies []string
	errs    []error
}

func (f *fakeRunner) RunTurn(_ context.Context, _ routing.Decision, in agent.TurnInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.inputs)
	f.inputs = append(f.inputs, in.Text)
	var reply string
	var err error
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return reply, err
}

func (f *fakeRunner) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type notification struct {
	channel, recipient, text string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
	known []string // nil: a sender exists for every channel
}

func (f *fakeNotifier) Has(channel string) bool {
	if f.known == nil {
		return true
	}
	for _, c := range f.known {
		if c == channel {
			return true
		}
	}
	return false
}

func (f *fakeNotifier) Notify(_ context.Context, channel, recipient, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notification{channel, recipient, text})
}

func testConfig() Config {
	return Config{MaxRetries: 2, RetryDelay: time.Millisecond, LoginURL: "https://console.example.com"}
}

// TestIngestor_FIFOOrder verifies that submissions complete in arrival
// order even when enqueued concurrently with an active worker.
func TestIngestor_FIFOOrder(t *testing.T) {
	runner := &fakeRunner{replies: []string{"r1", "r2", "r3"}}
	q := NewIngestor(&fakeRouter{}, runner, nil, testConfig())
	q.Start(context.Background())

	chans := make([]<-chan Outcome, 3)
	for i, msg := range []string{"first", "second", "third"} {
		chans[i] = q.Enqueue(Request{Message: msg})
	}
	for _, ch := range chans {
		if out := <-ch; out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
	}

	got := runner.seen()
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed order = %v, want %v", got, want)
		}
	}
}

// TestIngestor_SilentDrop verifies that an unroutable message resolves
// with an empty reply and never reaches the completion runner.
func TestIngestor_SilentDrop(t *testing.T) {
	runner := &fakeRunner{}
	q := NewIngestor(&fakeRouter{drop: true}, runner, nil, testConfig())
	q.Start(context.Background())

	reply, err := q.Submit(context.Background(), Request{Message: "hi", Source: "signal", Sender: "+0000"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if reply != "" {
		t.Errorf("reply = %q, want empty for dropped message", reply)
	}
	if calls := len(runner.seen()); calls != 0 {
		t.Errorf("runner invoked %d times for dropped message, want 0", calls)
	}
}

// TestIngestor_AuthFailure verifies that a credential rejection resolves
// immediately with the re-login message, without retrying, and pushes a
// notification to external senders.
func TestIngestor_AuthFailure(t *testing.T) {
	authErr := &providers.HTTPError{Status: 401, Body: `{"type":"authentication_error"}`}
	runner := &fakeRunner{errs: []error{authErr, authErr}}
	notifier := &fakeNotifier{}
	q := NewIngestor(&fakeRouter{}, runner, notifier, testConfig())
	q.Start(context.Background())

	reply, err := q.Submit(context.Background(), Request{Message: "hi", Source: "telegram", Sender: "555"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !strings.Contains(reply, "Authentication required") {
		t.Errorf("reply = %q, want authentication message", reply)
	}
	if !strings.Contains(reply, "https://console.example.com") {
		t.Errorf("reply = %q, want login URL included", reply)
	}
	if calls := len(runner.seen()); calls != 1 {
		t.Errorf("runner invoked %d times, want 1 (no retries on auth failure)", calls)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.calls) != 1 {
		t.Fatalf("notifier invoked %d times, want 1", len(notifier.calls))
	}
	if n := notifier.calls[0]; n.channel != "telegram" || n.recipient != "555" {
		t.Errorf("notified %s/%s, want telegram/555", n.channel, n.recipient)
	}
}

// TestIngestor_AuthFailure_InternalSourceNotNotified verifies that
// internal sources never receive push notifications.
func TestIngestor_AuthFailure_InternalSourceNotNotified(t *testing.T) {
	authErr := &providers.HTTPError{Status: 403, Body: `{"type":"permission_error"}`}
	runner := &fakeRunner{errs: []error{authErr}}
	notifier := &fakeNotifier{}
	q := NewIngestor(&fakeRouter{}, runner, notifier, testConfig())
	q.Start(context.Background())

	if _, err := q.Submit(context.Background(), Request{Message: "hi", Source: routing.SourceCron, Sender: "job"}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.calls) != 0 {
		t.Errorf("notifier invoked %d times for internal source, want 0", len(notifier.calls))
	}
}

// TestIngestor_AuthFailure_UnregisteredChannelNotNotified verifies that
// a channel with no registered sender is skipped instead of handed to the
// notifier; the caller still gets the re-login reply.
func TestIngestor_AuthFailure_UnregisteredChannelNotNotified(t *testing.T) {
	authErr := &providers.HTTPError{Status: 401, Body: `{"type":"authentication_error"}`}
	runner := &fakeRunner{errs: []error{authErr}}
	notifier := &fakeNotifier{known: []string{"discord"}}
	q := NewIngestor(&fakeRouter{}, runner, notifier, testConfig())
	q.Start(context.Background())

	reply, err := q.Submit(context.Background(), Request{Message: "hi", Source: "telegram", Sender: "555"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !strings.Contains(reply, "Authentication required") {
		t.Errorf("reply = %q, want authentication message", reply)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.calls) != 0 {
		t.Errorf("notifier invoked %d times for unregistered channel, want 0", len(notifier.calls))
	}
}

// TestIngestor_BadRequest verifies that a malformed-request rejection
// resolves with the generic apology and is never retried.
func TestIngestor_BadRequest(t *testing.T) {
	badReq := &providers.HTTPError{Status: 400, Body: `{"type":"invalid_request_error"}`}
	runner := &fakeRunner{errs: []error{badReq, badReq}}
	q := NewIngestor(&fakeRouter{}, runner, nil, testConfig())
	q.Start(context.Background())

	reply, err := q.Submit(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !strings.Contains(reply, "Something went wrong") {
		t.Errorf("reply = %q, want generic failure message", reply)
	}
	if calls := len(runner.seen()); calls != 1 {
		t.Errorf("runner invoked %d times, want 1 (no retries on bad request)", calls)
	}
}

// TestIngestor_TransientRetryExhausted verifies the retry budget: the
// initial attempt plus MaxRetries re-attempts, then a hard error.
func TestIngestor_TransientRetryExhausted(t *testing.T) {
	overloaded := &providers.HTTPError{Status: 529, Body: `{"type":"overloaded_error"}`}
	runner := &fakeRunner{errs: []error{overloaded, overloaded, overloaded, overloaded}}
	q := NewIngestor(&fakeRouter{}, runner, nil, testConfig())
	q.Start(context.Background())

	_, err := q.Submit(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected hard error after retries exhausted")
	}
	if calls := len(runner.seen()); calls != 3 {
		t.Errorf("runner invoked %d times, want 3 (1 attempt + 2 retries)", calls)
	}
}

// TestIngestor_TransientThenSuccess verifies that a retry after a
// transient failure can still succeed.
func TestIngestor_TransientThenSuccess(t *testing.T) {
	runner := &fakeRunner{
		replies: []string{"", "recovered"},
		errs:    []error{&providers.HTTPError{Status: 500, Body: "{}"}, nil},
	}
	q := NewIngestor(&fakeRouter{}, runner, nil, testConfig())
	q.Start(context.Background())

	reply, err := q.Submit(context.Background(), Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if reply != "recovered" {
		t.Errorf("reply = %q, want %q", reply, "recovered")
	}
	if calls := len(runner.seen()); calls != 2 {
		t.Errorf("runner invoked %d times, want 2", calls)
	}
}

// TestIngestor_RetryYieldsToQueuedEntries verifies that a retried entry
// rejoins at the back of the FIFO instead of blocking later arrivals.
func TestIngestor_RetryYieldsToQueuedEntries(t *testing.T) {
	runner := &fakeRunner{
		replies: []string{"", "", "", ""},
		errs:    []error{&providers.HTTPError{Status: 500, Body: "{}"}, nil, nil},
	}
	// A generous delay guarantees "behind" is queued before the retry
	// rejoins the FIFO.
	cfg := testConfig()
	cfg.RetryDelay = 50 * time.Millisecond
	q := NewIngestor(&fakeRouter{}, runner, nil, cfg)
	q.Start(context.Background())

	chA := q.Enqueue(Request{Message: "flapping"})
	chB := q.Enqueue(Request{Message: "behind"})
	<-chA
	<-chB

	got := runner.seen()
	want := []string{"flapping", "behind", "flapping"}
	if len(got) != len(want) {
		t.Fatalf("processed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed order = %v, want %v", got, want)
		}
	}
}

// TestIngestor_RejectsWhenStopped verifies that a queue that was never
// started, or whose context is cancelled, refuses new work.
func TestIngestor_RejectsWhenStopped(t *testing.T) {
	q := NewIngestor(&fakeRouter{}, &fakeRunner{}, nil, testConfig())

	if out := <-q.Enqueue(Request{Message: "hi"}); out.Err == nil {
		t.Error("expected error from unstarted queue")
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()
	if out := <-q.Enqueue(Request{Message: "hi"}); out.Err == nil {
		t.Error("expected error from cancelled queue")
	}
}

// TestIngestor_RouteErrorRetried verifies that a routing failure (e.g. a
// store outage) takes the transient path rather than dropping silently.
func TestIngestor_RouteErrorRetried(t *testing.T) {
	runner := &fakeRunner{}
	q := NewIngestor(&fakeRouter{err: context.DeadlineExceeded}, runner, nil, testConfig())
	q.Start(context.Background())

	_, err := q.Submit(context.Background(), Request{Message: "hi"})
	if err == nil {
		t.Fatal("expected error after routing failures exhaust retries")
	}
	if calls := len(runner.seen()); calls != 0 {
		t.Errorf("runner invoked %d times despite routing failure, want 0", calls)
	}
}
