// Package chat implements the tollchat front-end: command interpretation,
// the MCP client, transcripts and their persistence, and the interactive
// surfaces (REPL and WebSocket gateway).
//
// One line of user input flows through [Interpret], which classifies it into
// a fixed tool command, a direct SQL statement, or free text that needs
// translation to SQL. A [Session] then invokes the matching tool over MCP
// and appends the rendered reply to its append-only transcript.
package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/heravelli/tollgate/internal/tools/tollcalc"
)

// Kind classifies one line of user input.
type Kind int

const (
	// KindFixed is a recognized command naming a tool directly.
	KindFixed Kind = iota

	// KindDirectSQL carries a SQL statement given verbatim by the user.
	KindDirectSQL

	// KindTranslate means no fixed pattern matched and the input should be
	// translated to SQL by the NLP provider.
	KindTranslate

	// KindError is unusable input; Message holds the reply to show.
	KindError
)

// Command is the outcome of interpreting one input line.
type Command struct {
	Kind Kind

	// Tool is the wire name to invoke for KindFixed.
	Tool string

	// Args holds the extracted tool arguments for KindFixed.
	Args map[string]any

	// SQL is the statement to run for KindDirectSQL.
	SQL string

	// Message is the reply to show for KindError.
	Message string

	// Raw is the normalized input. For KindTranslate it is the text handed
	// to the translator.
	Raw string
}

// missingQueryReply is shown when "run sql query" carries no statement.
const missingQueryReply = "Please provide a SQL query (e.g., 'Run SQL query SELECT * FROM my_table')."

// Defaults for calculate_toll parameters whose pattern did not match.
const (
	defaultVehicle  = "car"
	defaultDistance = 10.0
)

var (
	vehicleRe  = regexp.MustCompile(`for\s+(\w+)`)
	distanceRe = regexp.MustCompile(`(\d+\.?\d*)\s+miles`)
	rateRe     = regexp.MustCompile(`\$?(\d+\.?\d*)\s*/\s*mile`)
	sqlRe      = regexp.MustCompile(`run sql query\s+(.+)`)
)

// Interpret classifies one line of user input. Matching happens on the
// lowercased, trimmed text, so the SQL of a KindDirectSQL command and the
// Raw text of a KindTranslate command are lowercased too. Patterns are
// tested in order; the first match wins.
func Interpret(input string) Command {
	text := strings.ToLower(strings.TrimSpace(input))

	switch {
	case strings.Contains(text, "secret word"):
		return Command{Kind: KindFixed, Tool: "secret_word", Args: map[string]any{}, Raw: text}

	case strings.Contains(text, "calculate toll"):
		return Command{Kind: KindFixed, Tool: "calculate_toll", Args: tollArgs(text), Raw: text}

	case strings.Contains(text, "run sql query"):
		m := sqlRe.FindStringSubmatch(text)
		if m == nil {
			return Command{Kind: KindError, Message: missingQueryReply, Raw: text}
		}
		return Command{Kind: KindDirectSQL, SQL: strings.TrimSpace(m[1]), Raw: text}

	default:
		return Command{Kind: KindTranslate, Raw: text}
	}
}

// tollArgs extracts calculate_toll arguments from the lowered text. The
// three patterns are searched independently, so any one of them can fall
// back to its default while the others still extract.
func tollArgs(text string) map[string]any {
	args := map[string]any{
		"vehicle_type": defaultVehicle,
		"distance":     defaultDistance,
		"toll_rate":    tollcalc.DefaultRate,
	}

	if m := vehicleRe.FindStringSubmatch(text); m != nil {
		args["vehicle_type"] = m[1]
	}
	if m := distanceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			args["distance"] = v
		}
	}
	if m := rateRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			args["toll_rate"] = v
		}
	}
	return args
}
