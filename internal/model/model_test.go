package model

import "testing"

func TestVoteValueIsValid(t *testing.T) {
	for _, tc := range []struct {
		value VoteValue
		want  bool
	}{
		{VoteUp, true},
		{VoteDown, true},
		{0, false},
		{2, false},
		{-2, false},
	} {
		if got := tc.value.IsValid(); got != tc.want {
			t.Errorf("VoteValue(%d).IsValid() = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestEventIDIsDeterministic(t *testing.T) {
	if EventID("abc") != EventID("abc") {
		t.Error("EventID is not deterministic")
	}
	if got, want := EventID("vote-42"), "migrated_vote-42"; got != want {
		t.Errorf("EventID(\"vote-42\") = %q, want %q", got, want)
	}
}

func TestEventTypeIsValid(t *testing.T) {
	if !EventVoteCast.IsValid() {
		t.Error("vote_cast should be valid")
	}
	if EventType("page_view").IsValid() {
		t.Error("unknown event type should be invalid")
	}
}
