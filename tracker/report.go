package tracker

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	msgNewEntrant = "New to leaderboard!"
	msgWelcome    = "Welcome to the leaderboard!"
	weekLayout    = "Mon 02 Jan 15:04 MST"
	ellipsis      = "…"
)

// Formatter renders a RateReport as chat text no longer than maxLength runes.
type Formatter struct {
	maxLength int
	compact   bool
	logger    *slog.Logger
}

// NewFormatter returns a Formatter. A non-positive maxLength disables the bound.
func NewFormatter(maxLength int, compact bool, logger *slog.Logger) *Formatter {
	return &Formatter{maxLength: maxLength, compact: compact, logger: logger.With("component", "formatter")}
}

// Format renders r and returns the text together with the number of board rows
// that had to be dropped to respect the size bound. Rows are dropped from the
// highest rank number down, so identical reports always render identically.
func (f *Formatter) Format(r RateReport) (string, int) {
	rows := append([]PlayerRate(nil), r.Entries...)

	text := f.render(r, rows)
	dropped := 0

	for f.tooLong(text) && len(rows) > 0 {
		rows = dropLowestPriority(rows)
		dropped++
		text = f.render(r, rows)
	}

	if f.tooLong(text) {
		runes := []rune(text)
		text = string(runes[:f.maxLength-1]) + ellipsis
	}

	if dropped > 0 {
		f.logger.Warn("report truncated", "dropped_rows", dropped, "max_length", f.maxLength)
	}

	return text, dropped
}

func (f *Formatter) tooLong(s string) bool {
	return f.maxLength > 0 && utf8.RuneCountInString(s) > f.maxLength
}

func (f *Formatter) render(r RateReport, rows []PlayerRate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Raiding Rates** (week from %s)\n", r.WeekStart.Format(weekLayout))

	if len(rows) > 0 {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"#", "Player", "Now/hr", "Week/hr", "Total"})

		for _, pr := range rows {
			if pr.IsNew() {
				tbl.AppendRow(table.Row{pr.Rank, pr.Name, msgNewEntrant, msgNewEntrant, f.number(pr.Total)},
					table.RowConfig{AutoMerge: true})

				continue
			}

			tbl.AppendRow(table.Row{pr.Rank, pr.Name, f.rate(pr.Current), f.rate(pr.Week), f.number(pr.Total)})
		}

		b.WriteString("```\n")
		b.WriteString(tbl.Render())
		b.WriteString("\n```\n")
	}

	if p := r.Personal; p != nil {
		if p.IsNew() {
			fmt.Fprintf(&b, "**Your Raiding Stats (%s)**\n%s Total: %s\n", p.Name, msgWelcome, humanize.Comma(p.Total))
		} else {
			fmt.Fprintf(&b, "**Your Raiding Rate (%s)**\nCurrent: %s/hr\nWeek Average: %s/hr\n",
				p.Name, f.rate(p.Current), f.rate(p.Week))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (f *Formatter) rate(r Rate) string {
	if f.compact {
		return r.Compact()
	}

	return r.String()
}

func (f *Formatter) number(n int64) string {
	if f.compact {
		return compactNumber(n)
	}

	return humanize.Comma(n)
}

// dropLowestPriority removes the row with the highest rank number; the first
// such row wins a tie.
func dropLowestPriority(rows []PlayerRate) []PlayerRate {
	worst := 0
	for i := range rows {
		if rows[i].Rank > rows[worst].Rank {
			worst = i
		}
	}

	return append(rows[:worst:worst], rows[worst+1:]...)
}
