// Package workflow implements the scheduling conversation state machine:
// a directed graph of stages with a single suspend point, checkpointed run
// state, and routing over interpreted human replies.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/flitsinc/schedd/internal/capability"
	"github.com/flitsinc/schedd/internal/eventbus"
	"github.com/flitsinc/schedd/internal/idgen"
	"github.com/flitsinc/schedd/internal/runstore"
	"github.com/flitsinc/schedd/internal/schema"
	"github.com/flitsinc/schedd/internal/session"
)

// ErrCheckpointLost marks a resume whose checkpoint could not be produced.
// Fatal for that thread only: the session is closed and the human informed.
var ErrCheckpointLost = errors.New("run checkpoint lost")

// Engine drives one run per conversation thread through the stage graph.
// Between the suspend point and the next inbound reply it holds no goroutine,
// timer, or poll; the checkpoint in the run store is the only thing that
// survives.
type Engine struct {
	Registry    *session.Registry
	Runs        *runstore.Store
	Extractor   capability.IntentExtractor
	Proposer    capability.SlotProposer
	Interpreter capability.ReplyInterpreter
	Scheduler   capability.MeetingScheduler
	Notifier    capability.Notifier
	Bus         *eventbus.Bus

	Timezone string

	nowFn func() time.Time
}

func (e *Engine) now() time.Time {
	if e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn().UTC()
}

// Start runs a freshly dispatched request until it either suspends awaiting
// a reply or reaches a terminal stage. The caller must already hold the
// thread's session (registry BeginRun returned NEW).
func (e *Engine) Start(ctx context.Context, seed RunState) error {
	st := seed
	if st.RunID == "" {
		st.RunID = idgen.New()
	}
	if st.Timezone == "" {
		st.Timezone = e.Timezone
	}
	st.StartedAt = e.now()
	st.Stage = StagePreprocess
	e.emit(ctx, &st, "started")
	return e.run(ctx, &st)
}

// Resume continues a suspended run with the human's reply bound as its only
// new input. The run state is reconstructed from the checkpoint; a missing
// checkpoint abandons the thread (and only that thread).
func (e *Engine) Resume(ctx context.Context, thread schema.ThreadID, replyText string) error {
	var st RunState
	if err := e.Runs.Load(ctx, thread, &st); err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			log.Printf("workflow %s: checkpoint missing on resume, abandoning thread", thread)
			e.notify(ctx, thread, contextLostMessage)
			if cerr := e.Registry.Close(ctx, thread); cerr != nil {
				log.Printf("workflow %s: close session after lost checkpoint: %v", thread, cerr)
			}
			return fmt.Errorf("resume %s: %w", thread, ErrCheckpointLost)
		}
		return fmt.Errorf("resume %s: %w", thread, err)
	}

	// Continue from immediately after the suspend point with the reply bound.
	st.ReplyText = replyText
	st.Stage = StageInterpretReply
	e.emit(ctx, &st, "resumed")
	return e.run(ctx, &st)
}

func (e *Engine) run(ctx context.Context, st *RunState) error {
	for {
		switch st.Stage {
		case StagePreprocess:
			if st.ReferenceTime.IsZero() {
				st.ReferenceTime = e.now()
			}
			st.Stage = StageExtractIntent

		case StageExtractIntent:
			intent, err := e.Extractor.ExtractIntent(ctx, capability.ExtractRequest{
				Text:        st.RequestText,
				ChatContext: st.Intent.HistoryText,
			})
			if err != nil {
				log.Printf("workflow %s: intent extraction failed, using minimal intent: %v", st.Thread, err)
				e.emitError(ctx, st, "intent extraction failed")
				intent = capability.MeetingIntent{
					Title:           "Meeting",
					DurationMinutes: 60,
					TimeframeQuery:  st.RequestText,
				}
			}
			st.Intent = intent
			if len(intent.HistoryUsers) > 0 {
				st.AddParticipants(intent.HistoryUsers)
			}
			st.Stage = StageProposeSlots

		case StageProposeSlots:
			proposal, err := e.Proposer.ProposeSlots(ctx, capability.ProposalRequest{
				Intent:       st.Intent,
				Constraints:  st.MergedConstraints(),
				Requester:    st.Requester,
				Participants: st.Participants,
				Now:          st.ReferenceTime,
				Timezone:     st.Timezone,
			})
			clean, ok := capability.SanitizeProposal(proposal, err)
			if !ok {
				log.Printf("workflow %s: slot proposal violated contract, continuing with %d slots (err=%v)", st.Thread, len(clean.Slots), err)
				e.emitError(ctx, st, "slot proposal violated contract")
			}
			// Prior candidates are discarded wholesale, never merged.
			st.Proposal = clean
			st.Round++
			st.Stage = StagePresentOptions

		case StagePresentOptions:
			e.notify(ctx, st.Thread, RenderOptions(st.Proposal))
			st.Stage = StageAwaitReply

		case StageAwaitReply:
			return e.suspend(ctx, st)

		case StageInterpretReply:
			raw, err := e.Interpreter.InterpretReply(ctx, capability.ReplyRequest{
				CandidateSummary: CandidateSummary(st.Proposal),
				ReplyText:        st.ReplyText,
			})
			reply, ok := capability.SanitizeReply(raw, len(st.Proposal.Slots), err)
			if !ok {
				log.Printf("workflow %s: reply interpretation violated contract, treating as %s (err=%v)", st.Thread, reply.Intent, err)
				e.emitError(ctx, st, "reply interpretation violated contract")
			}
			// A bare affirmative on a single candidate confirms option 1.
			if len(st.Proposal.Slots) == 1 && reply.Intent == capability.IntentConfirm && reply.ConfirmedOption == 0 {
				reply.ConfirmedOption = 1
			}
			if reply.EffectiveIntent() == capability.IntentRejectWithNewInfo && reply.NewInformation != "" {
				st.AddSessionConstraint(reply.NewInformation)
			}
			st.LastReply = reply

			switch Route(st.ReplyText, reply) {
			case DecideCancel:
				st.Stage = StageCancel
			case DecideReAnalyze:
				st.AddParticipants(reply.ParticipantsToAdd)
				st.Stage = StageProposeSlots
			case DecideSchedule:
				st.Stage = StageSchedule
			default: // clarify, then wait again
				e.notify(ctx, st.Thread, clarificationMessage)
				st.Stage = StageAwaitReply
			}

		case StageSchedule:
			slot, ok := confirmedSlot(st)
			if !ok {
				log.Printf("workflow %s: confirmed ordinal does not resolve to a slot, asking to clarify", st.Thread)
				e.notify(ctx, st.Thread, clarificationMessage)
				st.Stage = StageAwaitReply
				continue
			}
			title := st.Intent.Title
			if title == "" {
				title = "Meeting"
			}
			ref, err := e.Scheduler.Commit(ctx, capability.MeetingRequest{
				Thread:      st.Thread.Key(),
				Organizer:   st.Requester,
				Title:       title,
				Attendees:   st.Attendees(),
				Start:       slot.Start,
				End:         slot.End,
				Description: "Scheduled via schedd",
			})
			if err != nil {
				// Single failure is surfaced, never retried automatically.
				log.Printf("workflow %s: meeting commit failed: %v", st.Thread, err)
				e.notify(ctx, st.Thread, "I couldn't create the calendar event: "+err.Error()+
					" You can start a new request to try again.")
				return e.finish(ctx, st, "commit_failed")
			}
			e.notify(ctx, st.Thread, "Successfully scheduled meeting. Reference: "+ref)
			return e.finish(ctx, st, "scheduled")

		case StageCancel:
			e.notify(ctx, st.Thread, cancelledMessage)
			return e.finish(ctx, st, "cancelled")

		default:
			return fmt.Errorf("run %s: unknown stage %q", st.RunID, st.Stage)
		}
	}
}

// suspend checkpoints the full run state, marks the session AWAITING_REPLY,
// and yields. The checkpoint is durable before control is released.
func (e *Engine) suspend(ctx context.Context, st *RunState) error {
	if err := e.Runs.Checkpoint(ctx, st.Thread, st); err != nil {
		// Without a checkpoint the run cannot be resumed; abandon it
		// cleanly rather than leave the thread wedged.
		log.Printf("workflow %s: checkpoint failed, abandoning run: %v", st.Thread, err)
		e.notify(ctx, st.Thread, contextLostMessage)
		if cerr := e.Registry.Close(ctx, st.Thread); cerr != nil {
			log.Printf("workflow %s: close session after failed checkpoint: %v", st.Thread, cerr)
		}
		return fmt.Errorf("checkpoint before suspend: %w", err)
	}
	if err := e.Registry.MarkAwaiting(ctx, st.Thread); err != nil {
		return fmt.Errorf("mark awaiting: %w", err)
	}
	e.emit(ctx, st, "awaiting_reply")
	return nil
}

func (e *Engine) finish(ctx context.Context, st *RunState, outcome string) error {
	if err := e.Runs.Drop(ctx, st.Thread); err != nil {
		log.Printf("workflow %s: drop checkpoint: %v", st.Thread, err)
	}
	if err := e.Registry.Close(ctx, st.Thread); err != nil {
		log.Printf("workflow %s: close session: %v", st.Thread, err)
	}
	e.emit(ctx, st, outcome)
	return nil
}

func confirmedSlot(st *RunState) (capability.CandidateSlot, bool) {
	ordinal := st.LastReply.ConfirmedOption
	if ordinal == 0 {
		ordinal = 1
	}
	if ordinal < 1 || ordinal > len(st.Proposal.Slots) {
		return capability.CandidateSlot{}, false
	}
	return st.Proposal.Slots[ordinal-1], true
}

func (e *Engine) notify(ctx context.Context, thread schema.ThreadID, text string) {
	if e.Notifier == nil || text == "" {
		return
	}
	if err := e.Notifier.Send(ctx, thread, text); err != nil {
		log.Printf("workflow %s: notify failed: %v", thread, err)
	}
}

func (e *Engine) emit(ctx context.Context, st *RunState, kind string) {
	if e.Bus == nil {
		return
	}
	_, err := e.Bus.Push(ctx, eventbus.EventInput{
		Stream:    schema.StreamWorkflow,
		ScopeType: "conversation",
		ScopeID:   st.Thread.Key(),
		Subject:   fmt.Sprintf("Run %s %s", st.RunID, kind),
		Body:      kind,
		Metadata: map[string]any{
			schema.MetaKind:   kind,
			schema.MetaThread: st.Thread.Key(),
			schema.MetaRunID:  st.RunID,
			schema.MetaStage:  string(st.Stage),
		},
	})
	if err != nil {
		log.Printf("workflow %s: emit %s: %v", st.Thread, kind, err)
	}
}

func (e *Engine) emitError(ctx context.Context, st *RunState, body string) {
	if e.Bus == nil {
		return
	}
	_, err := e.Bus.Push(ctx, eventbus.EventInput{
		Stream:    schema.StreamErrors,
		ScopeType: "conversation",
		ScopeID:   st.Thread.Key(),
		Subject:   fmt.Sprintf("Run %s anomaly", st.RunID),
		Body:      body,
		Metadata: map[string]any{
			schema.MetaThread: st.Thread.Key(),
			schema.MetaRunID:  st.RunID,
			schema.MetaStage:  string(st.Stage),
		},
	})
	if err != nil {
		log.Printf("workflow %s: emit error event: %v", st.Thread, err)
	}
}
