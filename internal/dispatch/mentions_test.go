package dispatch

import (
	"reflect"
	"testing"
)

func TestMentionedUsersKeepsAll(t *testing.T) {
	text := "<@BOT> schedule a sync with <@U2> and <@U3>, cc <@U2>"
	got := MentionedUsers(text, "BOT", "U1")
	want := []string{"U2", "U3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMentionedUsersExcludesSender(t *testing.T) {
	got := MentionedUsers("<@U1> and <@U2>", "BOT", "U1")
	want := []string{"U2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMentionedUsersEmpty(t *testing.T) {
	if got := MentionedUsers("no mentions here", "BOT", "U1"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestStripBotMention(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<@BOT> schedule a sync", "schedule a sync"},
		{"<@BOT>: schedule a sync", "schedule a sync"},
		{"schedule a sync <@BOT>", "schedule a sync <@BOT>"},
		{"  <@BOT>   hello  ", "hello"},
		{"plain text", "plain text"},
	}
	for _, tc := range cases {
		if got := StripBotMention(tc.in, "BOT"); got != tc.want {
			t.Fatalf("StripBotMention(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
