package capability

// Structural contract checks for provider output. The engine substitutes safe
// defaults instead of failing the run when a provider misbehaves: an
// unparseable reply becomes AMBIGUOUS and an unparseable proposal becomes
// zero candidates, so the conversation can continue via clarification.

const maxCandidates = 3

// SanitizeProposal validates a proposer result. The second return value is
// false when the output (or the call itself) violated the contract and a safe
// default was substituted.
func SanitizeProposal(p Proposal, err error) (Proposal, bool) {
	if err != nil {
		return Proposal{DurationMinutes: p.DurationMinutes}, false
	}
	ok := true
	var slots []CandidateSlot
	for _, s := range p.Slots {
		if s.Start.IsZero() || s.End.IsZero() || !s.End.After(s.Start) {
			ok = false
			continue
		}
		slots = append(slots, s)
	}
	if len(slots) > maxCandidates {
		slots = slots[:maxCandidates]
		ok = false
	}
	p.Slots = slots
	if !p.WindowEnd.IsZero() && !p.WindowStart.IsZero() && p.WindowEnd.Before(p.WindowStart) {
		p.WindowStart, p.WindowEnd = p.WindowEnd, p.WindowStart
		ok = false
	}
	return p, ok
}

// SanitizeReply validates an interpreter result. Unknown intents and failed
// calls degrade to AMBIGUOUS; a confirmed ordinal outside [1, candidates] is
// cleared so the router asks for clarification instead of scheduling the
// wrong slot.
func SanitizeReply(r InterpretedReply, candidates int, err error) (InterpretedReply, bool) {
	if err != nil {
		return InterpretedReply{Intent: IntentAmbiguous}, false
	}
	ok := true
	if !ValidIntent(r.Intent) {
		r.Intent = IntentAmbiguous
		ok = false
	}
	if r.ConfirmedOption < 0 || r.ConfirmedOption > candidates {
		r.ConfirmedOption = 0
		ok = false
	}
	cleaned := r.ParticipantsToAdd[:0]
	for _, p := range r.ParticipantsToAdd {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	r.ParticipantsToAdd = cleaned
	return r, ok
}
