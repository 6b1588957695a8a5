package tracker

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// A leaderboard post is a sequence of single-line entries:
//
//	entry  := rank "."? ws+ name sep+ amount
//	rank   := digit+
//	name   := non-digit run, no line break; trimmed, may contain spaces
//	sep    := ws | bidi
//	amount := digit (digit | "," | bidi)*
//
// A rank and its name must sit on the same line, so a number ending a header
// line never pairs with the next line.
//	ws     := " " | "\t" | U+00A0
//	bidi   := U+200E | U+200F | U+202A..U+202E | U+2066..U+2069
//
// Game clients wrap the amount in directional marks (typically U+202D ... U+202C),
// and some paste paths leave them inside the name or the number. They are
// stripped from both before conversion. Anything that does not match is ignored.
const (
	bidiClass = `\x{200E}\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}`
	wsClass   = `\t \x{00A0}`
)

var (
	entryPattern = regexp.MustCompile(
		`(?:^|\s)(\d+)\.?[` + wsClass + `]+([^\d\r\n]+?)[` + wsClass + bidiClass + `]+(\d[\d,` + bidiClass + `]*)`,
	)
	bidiPattern = regexp.MustCompile(`[` + bidiClass + `]`)
)

// Parser extracts leaderboard entries from raw message text.
type Parser struct {
	logger   *slog.Logger
	expected int
}

// NewParser returns a Parser that warns when a post does not hold expected entries.
func NewParser(logger *slog.Logger, expected int) *Parser {
	return &Parser{logger: logger.With("component", "parser"), expected: expected}
}

// Parse returns the entries of text in document order. A count mismatch is
// logged and never fatal.
func (p *Parser) Parse(text string) []Entry {
	entries := ParseEntries(text)

	p.logger.Debug("parsed leaderboard", "entries", len(entries))

	if len(entries) > 0 && p.expected > 0 && len(entries) != p.expected {
		p.logger.Warn("unexpected leaderboard shape", "expected", p.expected, "got", len(entries))
	}

	return entries
}

// ParseEntries applies the entry grammar to text.
func ParseEntries(text string) []Entry {
	matches := entryPattern.FindAllStringSubmatch(text, -1)

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		rank, err := strconv.Atoi(m[1])
		if err != nil || rank <= 0 {
			continue
		}

		name := strings.TrimSpace(bidiPattern.ReplaceAllString(m[2], ""))
		if name == "" {
			continue
		}

		total, ok := parseAmount(m[3])
		if !ok {
			continue
		}

		entries = append(entries, Entry{Rank: rank, Name: name, Total: total})
	}

	return entries
}

func parseAmount(raw string) (int64, bool) {
	digits := strings.ReplaceAll(bidiPattern.ReplaceAllString(raw, ""), ",", "")
	if digits == "" {
		return 0, false
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// Classify splits entries into the visible board and the author's own line.
// Only the first entry ranked below the board is kept as personal.
func Classify(entries []Entry, boardSize int) ([]Entry, *Entry) {
	var (
		board    []Entry
		personal *Entry
	)

	for i := range entries {
		if entries[i].Rank <= boardSize {
			board = append(board, entries[i])
			continue
		}

		if personal == nil {
			e := entries[i]
			personal = &e
		}
	}

	return board, personal
}
