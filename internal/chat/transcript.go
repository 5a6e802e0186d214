package chat

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a chat transcript.
type Turn struct {
	Role    Role
	Content string
}

// Transcript is the append-only, ordered sequence of turns for one session.
// It exists for display replay only and is never re-parsed.
//
// A session processes one command at a time, so Transcript is not
// synchronized.
type Transcript struct {
	turns []Turn
}

// Append adds a turn and returns it.
func (t *Transcript) Append(role Role, content string) Turn {
	turn := Turn{Role: role, Content: content}
	t.turns = append(t.turns, turn)
	return turn
}

// Turns returns a copy of all turns in order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len reports the number of turns.
func (t *Transcript) Len() int { return len(t.turns) }
