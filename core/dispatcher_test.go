package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jdelaire/annoyray/core/analysis"
	"github.com/jdelaire/annoyray/core/policy"
)

// --- test helpers ---

type spyNotifier struct {
	mu   sync.Mutex
	sent []Reply
	err  error
}

func (s *spyNotifier) Send(_ context.Context, r Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, r)
	return nil
}
func (s *spyNotifier) last() Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return Reply{}
	}
	return s.sent[len(s.sent)-1]
}
func (s *spyNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type stubCompleter struct {
	mu    sync.Mutex
	out   string
	err   error
	texts []string
}

func (s *stubCompleter) Complete(_ context.Context, req analysis.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, req.UserText)
	return s.out, s.err
}
func (s *stubCompleter) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(spy *spyNotifier, stub *stubCompleter) *Dispatcher {
	return NewDispatcher(policy.New(nil), analysis.NewAnalyzer(stub), spy, testLogger())
}

var nextUpdateID int64

func privateMsg(text string) InboundMessage {
	nextUpdateID++
	return InboundMessage{
		UpdateID:  nextUpdateID,
		MessageID: 7,
		ChatID:    100,
		Private:   true,
		UserID:    1,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func groupMsg(text string) InboundMessage {
	msg := privateMsg(text)
	msg.ChatID = -100
	msg.Private = false
	return msg
}

func strPtr(s string) *string { return &s }

// --- Dispatch ---

func TestDispatchStart(t *testing.T) {
	stub := &stubCompleter{}
	d := newTestDispatcher(&spyNotifier{}, stub)

	reply, ok := d.Dispatch(context.Background(), StartCommand{})
	if !ok {
		t.Fatal("expected a reply")
	}
	if !strings.Contains(reply, "cognitive bias analyzer") {
		t.Errorf("reply = %q, want greeting", reply)
	}
	if !strings.Contains(reply, "/analyze") {
		t.Errorf("reply = %q, should document /analyze", reply)
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestDispatchAnalyzeArgs(t *testing.T) {
	stub := &stubCompleter{out: "Bandwagon effect detected."}
	d := newTestDispatcher(&spyNotifier{}, stub)

	ev := AnalyzeCommand{Args: []string{"I", "think", "everyone", "agrees"}}
	reply, ok := d.Dispatch(context.Background(), ev)
	if !ok {
		t.Fatal("expected a reply")
	}
	if reply != "Bandwagon effect detected." {
		t.Errorf("reply = %q, want %q", reply, "Bandwagon effect detected.")
	}
	calls := stub.calls()
	if len(calls) != 1 || calls[0] != "I think everyone agrees" {
		t.Errorf("completer calls = %q, want [\"I think everyone agrees\"]", calls)
	}
}

func TestDispatchAnalyzeEmptyArgs(t *testing.T) {
	stub := &stubCompleter{out: "unused"}
	d := newTestDispatcher(&spyNotifier{}, stub)

	reply, ok := d.Dispatch(context.Background(), AnalyzeCommand{})
	if !ok {
		t.Fatal("expected a reply")
	}
	if reply != UsageHint {
		t.Errorf("reply = %q, want usage hint", reply)
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestDispatchAnalyzeReplyPrecedence(t *testing.T) {
	stub := &stubCompleter{out: "analysis"}
	d := newTestDispatcher(&spyNotifier{}, stub)

	ev := AnalyzeCommand{ReplyTo: strPtr("everyone knows this"), Args: []string{"ignored", "args"}}
	if _, ok := d.Dispatch(context.Background(), ev); !ok {
		t.Fatal("expected a reply")
	}
	calls := stub.calls()
	if len(calls) != 1 || calls[0] != "everyone knows this" {
		t.Errorf("completer calls = %q, want replied-to text", calls)
	}
}

func TestDispatchPlainPrivate(t *testing.T) {
	stub := &stubCompleter{out: "no biases"}
	d := newTestDispatcher(&spyNotifier{}, stub)

	reply, ok := d.Dispatch(context.Background(), PlainMessage{Text: "cats are best", Private: true})
	if !ok || reply != "no biases" {
		t.Errorf("Dispatch = (%q, %v), want (\"no biases\", true)", reply, ok)
	}
	calls := stub.calls()
	if len(calls) != 1 || calls[0] != "cats are best" {
		t.Errorf("completer calls = %q", calls)
	}
}

func TestDispatchPlainGroup(t *testing.T) {
	stub := &stubCompleter{out: "unused"}
	d := newTestDispatcher(&spyNotifier{}, stub)

	if reply, ok := d.Dispatch(context.Background(), PlainMessage{Text: "hello", Private: false}); ok {
		t.Errorf("Dispatch = %q, want no reply", reply)
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestDispatchCompletionError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("401 Unauthorized: invalid api key")}
	d := newTestDispatcher(&spyNotifier{}, stub)

	reply, ok := d.Dispatch(context.Background(), AnalyzeCommand{Args: []string{"x"}})
	if !ok {
		t.Fatal("expected a reply")
	}
	if !strings.HasPrefix(reply, "Sorry, I encountered an error") {
		t.Errorf("reply = %q, want apology", reply)
	}
	if !strings.Contains(reply, "401 Unauthorized: invalid api key") {
		t.Errorf("reply = %q, should embed the error", reply)
	}
}

// --- Handle ---

func TestHandleStartSendsGreeting(t *testing.T) {
	spy := &spyNotifier{}
	d := newTestDispatcher(spy, &stubCompleter{})

	d.Handle(context.Background(), groupMsg("/start"))

	if spy.count() != 1 {
		t.Fatalf("sent %d, want 1", spy.count())
	}
	r := spy.last()
	if !strings.Contains(r.Text, "cognitive bias analyzer") {
		t.Errorf("text = %q", r.Text)
	}
	if r.ChatID != -100 || r.ReplyToMessageID != 7 {
		t.Errorf("reply routed to chat %d msg %d, want -100/7", r.ChatID, r.ReplyToMessageID)
	}
	if r.ID == "" {
		t.Error("reply has no request id")
	}
}

func TestHandleAnalyzeInGroup(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "Bandwagon effect detected."}
	d := newTestDispatcher(spy, stub)

	d.Handle(context.Background(), groupMsg("/analyze@annoyray_bot I think everyone agrees"))

	if got := spy.last().Text; got != "Bandwagon effect detected." {
		t.Errorf("text = %q", got)
	}
	if calls := stub.calls(); len(calls) != 1 || calls[0] != "I think everyone agrees" {
		t.Errorf("completer calls = %q", calls)
	}
}

func TestHandleAnalyzeReply(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "ok"}
	d := newTestDispatcher(spy, stub)

	msg := groupMsg("/analyze extra words")
	msg.ReplyTo = strPtr("the quoted claim")
	d.Handle(context.Background(), msg)

	if calls := stub.calls(); len(calls) != 1 || calls[0] != "the quoted claim" {
		t.Errorf("completer calls = %q, want replied-to text", calls)
	}
}

func TestHandleAnalyzeReplyWithoutText(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "unused"}
	d := newTestDispatcher(spy, stub)

	msg := groupMsg("/analyze some args")
	msg.ReplyTo = strPtr("")
	d.Handle(context.Background(), msg)

	if spy.last().Text != UsageHint {
		t.Errorf("text = %q, want usage hint", spy.last().Text)
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestHandlePlainPrivate(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "Confirmation bias."}
	d := newTestDispatcher(spy, stub)

	d.Handle(context.Background(), privateMsg("I only read sources that agree with me"))

	if calls := stub.calls(); len(calls) != 1 || calls[0] != "I only read sources that agree with me" {
		t.Errorf("completer calls = %q", calls)
	}
	if spy.last().Text != "Confirmation bias." {
		t.Errorf("text = %q", spy.last().Text)
	}
}

func TestHandlePlainGroupIgnored(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "unused"}
	d := newTestDispatcher(spy, stub)

	d.Handle(context.Background(), groupMsg("just chatting"))

	if spy.count() != 0 {
		t.Errorf("sent %d for group plain message, want 0", spy.count())
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestHandleUnknownCommandIgnored(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{}
	d := newTestDispatcher(spy, stub)

	d.Handle(context.Background(), privateMsg("/foobar"))

	if spy.count() != 0 {
		t.Errorf("sent %d for unknown command, want 0", spy.count())
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}
}

func TestHandleCommandForOtherBotIgnored(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "unused"}
	d := newTestDispatcher(spy, stub).WithBotUsername("annoyray_bot")

	d.Handle(context.Background(), groupMsg("/analyze@SomeOtherBot hello"))

	if spy.count() != 0 {
		t.Errorf("sent %d for another bot's command, want 0", spy.count())
	}
	if len(stub.calls()) != 0 {
		t.Errorf("completer called %d times, want 0", len(stub.calls()))
	}

	d.Handle(context.Background(), groupMsg("/analyze@annoyray_bot hello"))
	if calls := stub.calls(); len(calls) != 1 || calls[0] != "hello" {
		t.Errorf("completer calls = %q, want [\"hello\"]", calls)
	}
}

func TestHandleStaleMessage(t *testing.T) {
	spy := &spyNotifier{}
	d := newTestDispatcher(spy, &stubCompleter{})

	msg := privateMsg("/start")
	msg.Timestamp = time.Now().Add(-10 * time.Minute)
	d.Handle(context.Background(), msg)

	if spy.count() != 0 {
		t.Errorf("sent %d for stale message, want 0", spy.count())
	}
}

func TestHandleDuplicateUpdate(t *testing.T) {
	spy := &spyNotifier{}
	stub := &stubCompleter{out: "once"}
	d := newTestDispatcher(spy, stub)

	msg := privateMsg("analyze me")
	d.Handle(context.Background(), msg)
	d.Handle(context.Background(), msg)

	if len(stub.calls()) != 1 {
		t.Errorf("completer called %d times, want 1", len(stub.calls()))
	}
}

func TestHandleDeliveryErrorDoesNotPanic(t *testing.T) {
	spy := &spyNotifier{err: errors.New("telegram down")}
	stub := &stubCompleter{out: "fine"}
	d := newTestDispatcher(spy, stub)

	d.Handle(context.Background(), privateMsg("text"))

	if len(stub.calls()) != 1 {
		t.Errorf("completer called %d times, want 1", len(stub.calls()))
	}
	if spy.count() != 0 {
		t.Errorf("recorded %d sends, want 0", spy.count())
	}
}

// --- shutdown ---

// gatedCompleter blocks until released and honours cancellation.
type gatedCompleter struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedCompleter) Complete(ctx context.Context, req analysis.Request) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return "analysis of " + req.UserText, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ctxNotifier fails sends on a cancelled context, like an HTTP client would.
type ctxNotifier struct {
	spyNotifier
	errs []error
}

func (c *ctxNotifier) Send(ctx context.Context, r Reply) error {
	if err := ctx.Err(); err != nil {
		c.mu.Lock()
		c.errs = append(c.errs, err)
		c.mu.Unlock()
		return err
	}
	return c.spyNotifier.Send(ctx, r)
}

func TestHandleInFlightSurvivesShutdown(t *testing.T) {
	gate := &gatedCompleter{started: make(chan struct{}, 2), release: make(chan struct{})}
	notifier := &ctxNotifier{}
	d := NewDispatcher(policy.New(nil), analysis.NewAnalyzer(gate), notifier, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	lanes := NewLanes(ctx, d.Handle)

	first := privateMsg("first")
	second := privateMsg("second")
	second.ChatID = 200
	lanes.Submit(first)
	lanes.Submit(second)

	for i := 0; i < 2; i++ {
		select {
		case <-gate.started:
		case <-time.After(2 * time.Second):
			t.Fatal("completion not started")
		}
	}

	cancel()
	close(gate.release)

	if !lanes.WaitTimeout(5 * time.Second) {
		t.Fatal("lanes did not drain")
	}

	if len(notifier.errs) != 0 {
		t.Errorf("send errors = %v, want none", notifier.errs)
	}
	if notifier.count() != 2 {
		t.Fatalf("replies delivered = %d, want 2", notifier.count())
	}
	for _, r := range notifier.sent {
		if !strings.HasPrefix(r.Text, "analysis of ") {
			t.Errorf("reply = %q, want analysis text", r.Text)
		}
	}
}
