package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/heravelli/tollgate/internal/tools/tollcalc"
)

// replHelp is printed by /help.
const replHelp = `Commands:
  /secret                        look up the secret word
  /toll [vehicle] [dist] [rate]  calculate a toll
  /sql <query>                   run SQL on Databricks
  /snowflake <query>             run SQL on Snowflake
  /pg <query>                    run SQL on PostgreSQL
  /tools                         list server tools
  /history                       replay this session
  /quit                          exit

Anything else is chatted: fixed phrases ("secret word", "calculate toll
for truck, 12 miles", "run sql query SELECT 1") run directly, and any
other text is translated to SQL first.`

var replCompleter = readline.NewPrefixCompleter(
	readline.PcItem("/secret"),
	readline.PcItem("/toll"),
	readline.PcItem("/sql"),
	readline.PcItem("/snowflake"),
	readline.PcItem("/pg"),
	readline.PcItem("/tools"),
	readline.PcItem("/history"),
	readline.PcItem("/help"),
	readline.PcItem("/quit"),
)

// ToolLister extends [Caller] with the connect-time tool listing.
type ToolLister interface {
	Caller
	Tools() []ToolInfo
}

// REPL is the interactive terminal front-end. Slash commands mirror the
// reference UI's buttons and invoke tools directly; everything else goes
// through the session's interpreter pipeline.
type REPL struct {
	session *Session
	tools   ToolLister
	rl      *readline.Instance
	out     io.Writer
}

// NewREPL builds a REPL reading from the terminal. The caller owns session
// and tools and closes them after [REPL.Run] returns.
func NewREPL(session *Session, tools ToolLister) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tollchat> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".tollchat_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
		AutoComplete:    replCompleter,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: init readline: %w", err)
	}
	return &REPL{session: session, tools: tools, rl: rl, out: rl.Stdout()}, nil
}

// Run reads commands until /quit, end of input or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	defer r.rl.Close()

	fmt.Fprintln(r.out, FormatMeta("tollchat ready. Type /help for commands."))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.slash(ctx, line); quit {
				return nil
			}
			continue
		}

		for _, turn := range r.session.Process(ctx, line) {
			if turn.Role == RoleAssistant {
				fmt.Fprintln(r.out, FormatTurn(turn))
			}
		}
	}
}

// slash executes one slash command and reports whether the REPL should
// exit.
func (r *REPL) slash(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(r.out, FormatMeta(replHelp))

	case "/secret":
		r.direct(ctx, "secret_word", map[string]any{}, func(out string) string {
			return "Secret Word: " + out
		})

	case "/toll":
		args, err := parseTollSlash(fields[1:])
		if err != nil {
			fmt.Fprintln(r.out, FormatTurn(Turn{Role: RoleAssistant, Content: "Error: " + err.Error()}))
			break
		}
		r.direct(ctx, "calculate_toll", args, func(out string) string {
			return "Toll Cost: $" + out
		})

	case "/sql":
		r.query(ctx, "run_sql_query", rest)

	case "/snowflake":
		r.query(ctx, "run_snowflake_query", rest)

	case "/pg":
		r.query(ctx, "run_postgres_query", rest)

	case "/tools":
		for _, t := range r.tools.Tools() {
			fmt.Fprintln(r.out, FormatMeta(fmt.Sprintf("%-22s %s", t.Name, t.Description)))
		}

	case "/history":
		for _, turn := range r.session.Transcript().Turns() {
			fmt.Fprintln(r.out, FormatTurn(turn))
		}

	default:
		fmt.Fprintln(r.out, FormatMeta("unknown command "+cmd+"; try /help"))
	}
	return false
}

// direct invokes a tool for a slash command, renders its output with
// format, prints it and records it on the transcript.
func (r *REPL) direct(ctx context.Context, tool string, args map[string]any, format func(string) string) {
	res, err := r.tools.CallTool(ctx, tool, args)

	var content string
	switch {
	case err != nil:
		content = "Error: " + err.Error()
	case res.IsError:
		content = "Error: " + res.Content
	default:
		content = format(res.Content)
	}

	turn := r.session.Note(ctx, RoleAssistant, content)
	fmt.Fprintln(r.out, FormatTurn(turn))
}

// query invokes one of the SQL tools for a slash command.
func (r *REPL) query(ctx context.Context, tool, sql string) {
	if sql == "" {
		turn := r.session.Note(ctx, RoleAssistant, missingQueryReply)
		fmt.Fprintln(r.out, FormatTurn(turn))
		return
	}
	r.direct(ctx, tool, map[string]any{"query": sql}, RenderRows)
}

// parseTollSlash parses the optional /toll arguments: vehicle, distance and
// rate, in that order. Omitted arguments use the chat defaults.
func parseTollSlash(fields []string) (map[string]any, error) {
	if len(fields) > 3 {
		return nil, errors.New("usage: /toll [vehicle] [distance] [rate]")
	}

	args := map[string]any{
		"vehicle_type": defaultVehicle,
		"distance":     defaultDistance,
		"toll_rate":    tollcalc.DefaultRate,
	}
	if len(fields) > 0 {
		args["vehicle_type"] = fields[0]
	}
	if len(fields) > 1 {
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad distance %q", fields[1])
		}
		args["distance"] = v
	}
	if len(fields) > 2 {
		v, err := strconv.ParseFloat(strings.TrimPrefix(fields[2], "$"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad rate %q", fields[2])
		}
		args["toll_rate"] = v
	}
	return args, nil
}
