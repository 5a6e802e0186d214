package chat

import (
	"context"
	"log/slog"

	"github.com/heravelli/tollgate/internal/observe"
)

// Caller invokes tools by name. [Client] implements it; session tests
// script replies instead of dialing a server.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
}

// SQLTranslator turns free text into a SQL statement. Satisfied by
// [nlp.Translator].
type SQLTranslator interface {
	ToSQL(ctx context.Context, request string) (string, error)
}

// queryTools are the tools whose output is a JSON array of row mappings and
// is rendered one row per line.
var queryTools = map[string]bool{
	"run_sql_query":       true,
	"run_snowflake_query": true,
	"run_postgres_query":  true,
}

// Session ties one transcript to a tool caller, an optional SQL translator
// and an optional persistent store. It processes one command at a time and
// is not safe for concurrent use.
type Session struct {
	id         string
	caller     Caller
	translator SQLTranslator
	transcript *Transcript
	store      *Store
	metrics    *observe.Metrics
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithTranslator enables natural-language commands. Without it, input that
// matches no fixed pattern is answered with an error turn.
func WithTranslator(t SQLTranslator) SessionOption {
	return func(s *Session) { s.translator = t }
}

// WithStore persists every appended turn under sessionID, which must have
// been created on the store beforehand.
func WithStore(store *Store, sessionID string) SessionOption {
	return func(s *Session) {
		s.store = store
		s.id = sessionID
	}
}

// WithMetrics overrides the default metrics set.
func WithMetrics(m *observe.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession builds a session around caller. The active-session gauge is
// incremented until [Session.Close].
func NewSession(caller Caller, opts ...SessionOption) *Session {
	s := &Session{
		caller:     caller,
		transcript: &Transcript{},
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.ActiveChatSessions.Add(context.Background(), 1)
	return s
}

// ID returns the persistent session ID, or "" when the session is not
// stored.
func (s *Session) ID() string { return s.id }

// Transcript returns the session's transcript.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Process runs one line of user input through the interpreter and the tools
// and appends the user turn plus the resulting assistant turns to the
// transcript. The returned slice holds exactly the turns appended by this
// call, in order. Failures become "Error: …" turns; the session always
// stays alive.
func (s *Session) Process(ctx context.Context, input string) []Turn {
	appended := []Turn{s.append(ctx, RoleUser, input)}
	reply := func(content string) {
		appended = append(appended, s.append(ctx, RoleAssistant, content))
	}

	cmd := Interpret(input)
	switch cmd.Kind {
	case KindError:
		reply(cmd.Message)

	case KindFixed:
		res, err := s.caller.CallTool(ctx, cmd.Tool, cmd.Args)
		switch {
		case err != nil:
			reply("Error: " + err.Error())
		case res.IsError:
			reply("Error: " + res.Content)
		case queryTools[cmd.Tool]:
			reply(RenderRows(res.Content))
		default:
			reply(res.Content)
		}

	case KindDirectSQL:
		reply(s.runQuery(ctx, cmd.SQL))

	case KindTranslate:
		if s.translator == nil {
			reply("Error: no NLP provider configured")
			break
		}
		query, err := s.translator.ToSQL(ctx, cmd.Raw)
		if err != nil {
			reply("Error: " + err.Error())
			break
		}
		// The generated statement is surfaced before execution so the user
		// sees what is about to run.
		reply("Generated SQL: " + query)
		reply(s.runQuery(ctx, query))
	}

	return appended
}

// Note appends a turn without interpreting anything. The REPL uses it to
// record slash-command output on the transcript.
func (s *Session) Note(ctx context.Context, role Role, content string) Turn {
	return s.append(ctx, role, content)
}

// Close releases the session's entry in the active-session gauge. It does
// not close the caller or the store, which the owner may share.
func (s *Session) Close() {
	s.metrics.ActiveChatSessions.Add(context.Background(), -1)
}

// runQuery executes query through the run_sql_query tool and renders the
// outcome.
func (s *Session) runQuery(ctx context.Context, query string) string {
	res, err := s.caller.CallTool(ctx, "run_sql_query", map[string]any{"query": query})
	if err != nil {
		return "Error: " + err.Error()
	}
	if res.IsError {
		return "Error: " + res.Content
	}
	return RenderRows(res.Content)
}

// append records a turn on the transcript and, when a store is configured,
// persists it. Persistence failures are logged and never interrupt the
// session.
func (s *Session) append(ctx context.Context, role Role, content string) Turn {
	turn := s.transcript.Append(role, content)
	if s.store != nil {
		if err := s.store.SaveTurn(ctx, s.id, turn); err != nil {
			observe.Logger(ctx).Warn("failed to persist turn",
				slog.String("session", s.id),
				slog.String("error", err.Error()))
		}
	}
	return turn
}
