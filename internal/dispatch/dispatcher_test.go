package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/runstore"
	"github.com/flitsinc/schedd/internal/schema"
	"github.com/flitsinc/schedd/internal/session"
	"github.com/flitsinc/schedd/internal/testutil"
	"github.com/flitsinc/schedd/internal/workflow"
)

type staticExtractor struct{}

func (staticExtractor) ExtractIntent(ctx context.Context, req capability.ExtractRequest) (capability.MeetingIntent, error) {
	return capability.MeetingIntent{Title: "Sync", DurationMinutes: 30, TimeframeQuery: req.Text}, nil
}

type staticProposer struct{}

func (staticProposer) ProposeSlots(ctx context.Context, req capability.ProposalRequest) (capability.Proposal, error) {
	start := req.Now.AddDate(0, 0, 1)
	return capability.Proposal{
		Slots:           []capability.CandidateSlot{{Start: start, End: start.Add(30 * time.Minute), Timezone: "UTC"}},
		DurationMinutes: 30,
	}, nil
}

type staticInterpreter struct{}

func (staticInterpreter) InterpretReply(ctx context.Context, req capability.ReplyRequest) (capability.InterpretedReply, error) {
	return capability.InterpretedReply{Intent: capability.IntentConfirm, ConfirmedOption: 1}, nil
}

type staticScheduler struct{}

func (staticScheduler) Commit(ctx context.Context, req capability.MeetingRequest) (string, error) {
	return "meeting-1", nil
}

type syncNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *syncNotifier) Send(ctx context.Context, thread schema.ThreadID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *syncNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *session.Registry, *runstore.Store, *syncNotifier) {
	t.Helper()
	db, closeFn := testutil.OpenTestDB(t)
	t.Cleanup(closeFn)

	registry := session.NewRegistry(db)
	runs := runstore.NewStore(db)
	notifier := &syncNotifier{}
	engine := &workflow.Engine{
		Registry:    registry,
		Runs:        runs,
		Extractor:   staticExtractor{},
		Proposer:    staticProposer{},
		Interpreter: staticInterpreter{},
		Scheduler:   staticScheduler{},
		Notifier:    notifier,
		Timezone:    "UTC",
	}
	d := &Dispatcher{
		Engine:    engine,
		Registry:  registry,
		Notifier:  notifier,
		BotUserID: "BOT",
		Timezone:  "UTC",
	}
	return d, registry, runs, notifier
}

func TestDispatcherNewThenResumeThenDone(t *testing.T) {
	d, registry, _, notifier := newTestDispatcher(t)
	ctx := context.Background()
	thread := schema.ThreadID{ChannelID: "C1", ThreadTS: "1.0"}

	class, err := d.HandleInbound(ctx, InboundMessage{
		Thread: thread,
		Sender: capability.User{ID: "U1"},
		Text:   "<@BOT> schedule a 30 min sync tomorrow",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if class != session.ClassNew {
		t.Fatalf("expected new, got %s", class)
	}
	d.Wait()

	rec, err := registry.Get(ctx, thread)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if rec.Status != session.StatusAwaitingReply {
		t.Fatalf("expected awaiting_reply, got %s", rec.Status)
	}
	if !notifier.contains("Got it!") {
		t.Fatalf("expected ack notice")
	}

	class, err = d.HandleInbound(ctx, InboundMessage{
		Thread: thread,
		Sender: capability.User{ID: "U1"},
		Text:   "yes",
	})
	if err != nil {
		t.Fatalf("resume inbound: %v", err)
	}
	if class != session.ClassResumable {
		t.Fatalf("expected resumable, got %s", class)
	}
	d.Wait()

	if !notifier.contains("Successfully scheduled meeting") {
		t.Fatalf("expected success notice, got %v", notifier.messages)
	}
	if _, err := registry.Get(ctx, thread); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session closed, got %v", err)
	}
}

func TestDispatcherDuplicateGetsNotice(t *testing.T) {
	d, registry, _, notifier := newTestDispatcher(t)
	ctx := context.Background()
	thread := schema.ThreadID{ChannelID: "C1", ThreadTS: "2.0"}

	// Simulate a run still executing.
	if err := registry.Create(ctx, thread); err != nil {
		t.Fatalf("create: %v", err)
	}

	class, err := d.HandleInbound(ctx, InboundMessage{
		Thread: thread,
		Sender: capability.User{ID: "U1"},
		Text:   "any update?",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if class != session.ClassDuplicateInFlight {
		t.Fatalf("expected duplicate, got %s", class)
	}
	if !notifier.contains("already processing") {
		t.Fatalf("expected duplicate notice")
	}
}

func TestDispatcherRejectsEmpty(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	if _, err := d.HandleInbound(ctx, InboundMessage{
		Sender: capability.User{ID: "U1"},
		Text:   "hello",
	}); err == nil {
		t.Fatalf("expected error for missing thread")
	}
	if _, err := d.HandleInbound(ctx, InboundMessage{
		Thread: schema.ThreadID{ChannelID: "C1", ThreadTS: "3.0"},
		Sender: capability.User{ID: "U1"},
		Text:   "   ",
	}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestDispatcherSeedsParticipantsFromMentions(t *testing.T) {
	d, _, runs, _ := newTestDispatcher(t)
	ctx := context.Background()
	thread := schema.ThreadID{ChannelID: "C1", ThreadTS: "4.0"}

	if _, err := d.HandleInbound(ctx, InboundMessage{
		Thread: thread,
		Sender: capability.User{ID: "U1"},
		Text:   "<@BOT> set up a sync with <@U2> and <@U3>",
	}); err != nil {
		t.Fatalf("inbound: %v", err)
	}
	d.Wait()

	var st workflow.RunState
	if err := runs.Load(ctx, thread, &st); err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if st.RequestText != "set up a sync with <@U2> and <@U3>" {
		t.Fatalf("expected bot mention stripped, got %q", st.RequestText)
	}
	ids := make([]string, 0, len(st.Participants))
	for _, p := range st.Participants {
		ids = append(ids, p.ID)
	}
	if len(ids) != 2 || ids[0] != "U2" || ids[1] != "U3" {
		t.Fatalf("expected participants [U2 U3], got %v", ids)
	}
}
