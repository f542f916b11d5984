package workflow

import (
	"testing"

	"github.com/flitsinc/schedd/internal/capability"
)

func TestRoutePriority(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		reply capability.InterpretedReply
		want  Decision
	}{
		{
			name:  "confirm schedules",
			text:  "option 1 works",
			reply: capability.InterpretedReply{Intent: capability.IntentConfirm, ConfirmedOption: 1},
			want:  DecideSchedule,
		},
		{
			name:  "new info re-analyzes",
			text:  "afternoon only",
			reply: capability.InterpretedReply{Intent: capability.IntentRejectWithNewInfo, NewInformation: "afternoon only"},
			want:  DecideReAnalyze,
		},
		{
			name:  "ambiguous clarifies",
			text:  "hmm",
			reply: capability.InterpretedReply{Intent: capability.IntentAmbiguous},
			want:  DecideClarify,
		},
		{
			name:  "cancel keyword beats confirm",
			text:  "yes but let's end it",
			reply: capability.InterpretedReply{Intent: capability.IntentConfirm, ConfirmedOption: 1},
			want:  DecideCancel,
		},
		{
			name:  "cancel keyword is case-insensitive",
			text:  "END",
			reply: capability.InterpretedReply{Intent: capability.IntentAmbiguous},
			want:  DecideCancel,
		},
		{
			name:  "cancel matches inside words",
			text:  "see you this weekend",
			reply: capability.InterpretedReply{Intent: capability.IntentConfirm, ConfirmedOption: 1},
			want:  DecideCancel,
		},
		{
			name:  "participant addition beats confirm",
			text:  "sounds good, add bob",
			reply: capability.InterpretedReply{Intent: capability.IntentConfirm, ConfirmedOption: 1, ParticipantsToAdd: []string{"U2"}},
			want:  DecideReAnalyze,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Route(tc.text, tc.reply); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
