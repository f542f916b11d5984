// Package dispatch routes inbound conversation events to the workflow engine.
// It is the serialization point per thread: exactly one of any set of
// concurrent events for a thread starts or resumes a run, the rest are
// answered with a duplicate notice.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/eventbus"
	"github.com/flitsinc/schedd/internal/schema"
	"github.com/flitsinc/schedd/internal/session"
	"github.com/flitsinc/schedd/internal/workflow"
)

const ackMessage = "Got it! Give me a moment while I work on your request."

const duplicateMessage = "I'm already processing your request for this thread. " +
	"Please wait for my proposal before sending more messages."

// InboundMessage is one conversation event as received from the chat surface.
// Context optionally carries surrounding chat history when the adapter chose
// to include it (e.g. the request referenced earlier messages).
type InboundMessage struct {
	Thread  schema.ThreadID `json:"thread"`
	Sender  capability.User `json:"sender"`
	Text    string          `json:"text"`
	Context string          `json:"context,omitempty"`
}

// Dispatcher classifies inbound messages against the session registry and
// hands them to the engine. Runs execute on their own goroutines; Wait drains
// them at shutdown.
type Dispatcher struct {
	Engine   *workflow.Engine
	Registry *session.Registry
	Notifier capability.Notifier
	Bus      *eventbus.Bus

	// BotUserID is this service's own chat identity, stripped from mention
	// scans so the bot never invites itself.
	BotUserID string
	Timezone  string

	nowFn func() time.Time
	wg    sync.WaitGroup
}

func (d *Dispatcher) now() time.Time {
	if d.nowFn == nil {
		return time.Now().UTC()
	}
	return d.nowFn().UTC()
}

// HandleInbound classifies the message and starts or resumes a run. The
// classification is decided synchronously so the caller can report it; the
// run itself executes asynchronously.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg InboundMessage) (session.Classification, error) {
	if msg.Thread.IsZero() {
		return "", fmt.Errorf("thread is required")
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", fmt.Errorf("text is required")
	}

	d.record(ctx, msg)

	class, err := d.Registry.BeginRun(ctx, msg.Thread)
	if err != nil {
		return "", fmt.Errorf("classify inbound: %w", err)
	}

	// The run must outlive the inbound HTTP request that carried the message.
	runCtx := context.WithoutCancel(ctx)

	switch class {
	case session.ClassNew:
		seed := d.seedRun(msg)
		d.notify(ctx, msg.Thread, ackMessage)
		d.spawn(func() {
			if err := d.Engine.Start(runCtx, seed); err != nil {
				log.Printf("dispatch %s: run failed: %v", msg.Thread, err)
			}
		})

	case session.ClassResumable:
		reply := text
		d.spawn(func() {
			if err := d.Engine.Resume(runCtx, msg.Thread, reply); err != nil {
				log.Printf("dispatch %s: resume failed: %v", msg.Thread, err)
			}
		})

	case session.ClassDuplicateInFlight:
		d.notify(ctx, msg.Thread, duplicateMessage)
	}

	return class, nil
}

func (d *Dispatcher) seedRun(msg InboundMessage) workflow.RunState {
	text := StripBotMention(msg.Text, d.BotUserID)
	st := workflow.RunState{
		Thread:      msg.Thread,
		RequestText: text,
		Requester:   msg.Sender,
		Timezone:    d.Timezone,
	}
	st.Intent.HistoryText = msg.Context
	// Everyone mentioned in the request is a participant from the start.
	st.AddParticipants(MentionedUsers(msg.Text, d.BotUserID, msg.Sender.ID))
	return st
}

func (d *Dispatcher) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Wait blocks until every in-flight run has returned (suspended or finished).
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) notify(ctx context.Context, thread schema.ThreadID, text string) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Send(ctx, thread, text); err != nil {
		log.Printf("dispatch %s: notify failed: %v", thread, err)
	}
}

// record appends the raw inbound message to the event log.
func (d *Dispatcher) record(ctx context.Context, msg InboundMessage) {
	if d.Bus == nil {
		return
	}
	_, err := d.Bus.Push(ctx, eventbus.EventInput{
		Stream:    schema.StreamInbound,
		ScopeType: "conversation",
		ScopeID:   msg.Thread.Key(),
		Subject:   "Message from " + msg.Sender.ID,
		Body:      msg.Text,
		Metadata: map[string]any{
			schema.MetaThread: msg.Thread.Key(),
			schema.MetaSender: msg.Sender.ID,
		},
	})
	if err != nil {
		log.Printf("dispatch %s: record inbound: %v", msg.Thread, err)
	}
}
