package chat

import "testing"

// TestTranscript_AppendAndTurns keeps turns in insertion order.
func TestTranscript_AppendAndTurns(t *testing.T) {
	t.Parallel()

	var tr Transcript
	tr.Append(RoleUser, "Get secret word")
	tr.Append(RoleAssistant, "ABRACADABRA")

	if tr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tr.Len())
	}
	turns := tr.Turns()
	if turns[0].Role != RoleUser || turns[0].Content != "Get secret word" {
		t.Errorf("turns[0] = %+v, want the user turn", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Content != "ABRACADABRA" {
		t.Errorf("turns[1] = %+v, want the assistant turn", turns[1])
	}
}

// TestTranscript_TurnsReturnsCopy protects the transcript from mutation
// through the returned slice.
func TestTranscript_TurnsReturnsCopy(t *testing.T) {
	t.Parallel()

	var tr Transcript
	tr.Append(RoleUser, "original")

	turns := tr.Turns()
	turns[0].Content = "mutated"

	if got := tr.Turns()[0].Content; got != "original" {
		t.Errorf("Content = %q, want original", got)
	}
}
