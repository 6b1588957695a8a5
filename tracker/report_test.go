package tracker_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TravBots/hammer-tracker/observability"
	"github.com/TravBots/hammer-tracker/tracker"
)

func sampleReport(rows int) tracker.RateReport {
	r := tracker.RateReport{
		WeekStart: utc(2024, 3, 3, 0, 30, 0),
	}

	for i := 1; i <= rows; i++ {
		r.Entries = append(r.Entries, tracker.PlayerRate{
			Rank:    i,
			Name:    fmt.Sprintf("Raider%02d", i),
			Current: tracker.Measured(int64(2000 - i*100)),
			Week:    tracker.Measured(int64(1500 - i*100)),
			Total:   int64(200_000 - i*10_000),
		})
	}

	return r
}

func TestFormatRendersBoardAndPersonal(t *testing.T) {
	t.Parallel()

	r := tracker.RateReport{
		WeekStart: utc(2024, 3, 3, 0, 30, 0),
		Entries: []tracker.PlayerRate{
			{Rank: 1, Name: "Alice", Current: tracker.Measured(1500), Week: tracker.Measured(1200), Total: 120_000},
			{Rank: 2, Name: "Bob", Current: tracker.NewEntrant(), Week: tracker.Unavailable(), Total: 5_000},
		},
		Personal: &tracker.PlayerRate{Rank: 1234, Name: "Me", Current: tracker.Measured(923), Week: tracker.Measured(12_345), Total: 6_678},
	}

	text, dropped := tracker.NewFormatter(2000, true, observability.Discard()).Format(r)

	assert.Zero(t, dropped)
	assert.True(t, strings.HasPrefix(text, "**Raiding Rates** (week from Sun 03 Mar 00:30 UTC)"), text)
	assert.Contains(t, text, "Alice")
	assert.Contains(t, text, "1.5k")
	assert.Contains(t, text, "1.2k")
	assert.Contains(t, text, "120k")
	assert.Contains(t, text, "New to leaderboard!")
	assert.Contains(t, text, "**Your Raiding Rate (Me)**")
	assert.Contains(t, text, "Current: 923/hr")
	assert.Contains(t, text, "Week Average: 12.3k/hr")
}

func TestFormatFullNumbers(t *testing.T) {
	t.Parallel()

	r := tracker.RateReport{
		WeekStart: utc(2024, 3, 3, 0, 30, 0),
		Entries: []tracker.PlayerRate{
			{Rank: 1, Name: "Alice", Current: tracker.Measured(1500), Week: tracker.Unavailable(), Total: 120_000},
		},
	}

	text, _ := tracker.NewFormatter(2000, false, observability.Discard()).Format(r)

	assert.Contains(t, text, "1,500")
	assert.Contains(t, text, "120,000")
	assert.Contains(t, text, "N/A")
}

func TestFormatWelcomesNewPersonalEntry(t *testing.T) {
	t.Parallel()

	r := tracker.RateReport{
		WeekStart: utc(2024, 3, 3, 0, 30, 0),
		Personal:  &tracker.PlayerRate{Rank: 1234, Name: "Me", Current: tracker.NewEntrant(), Week: tracker.Unavailable(), Total: 5_678},
	}

	text, _ := tracker.NewFormatter(2000, true, observability.Discard()).Format(r)

	assert.Contains(t, text, "**Your Raiding Stats (Me)**")
	assert.Contains(t, text, "Welcome to the leaderboard! Total: 5,678")
	assert.NotContains(t, text, "```")
}

func TestFormatDropsHighestRankFirst(t *testing.T) {
	t.Parallel()

	r := sampleReport(10)

	full, dropped := tracker.NewFormatter(0, true, observability.Discard()).Format(r)
	require.Zero(t, dropped)

	limit := utf8.RuneCountInString(full) - 1
	f := tracker.NewFormatter(limit, true, observability.Discard())

	text, dropped := f.Format(r)

	assert.Equal(t, 1, dropped)
	assert.LessOrEqual(t, utf8.RuneCountInString(text), limit)
	assert.Contains(t, text, "Raider01")
	assert.Contains(t, text, "Raider09")
	assert.NotContains(t, text, "Raider10")

	again, _ := f.Format(r)
	assert.Equal(t, text, again)
}

func TestFormatDropOrderIgnoresRowOrder(t *testing.T) {
	t.Parallel()

	r := sampleReport(3)
	r.Entries[0], r.Entries[2] = r.Entries[2], r.Entries[0]

	full, _ := tracker.NewFormatter(0, true, observability.Discard()).Format(r)
	text, dropped := tracker.NewFormatter(utf8.RuneCountInString(full)-1, true, observability.Discard()).Format(r)

	assert.Equal(t, 1, dropped)
	assert.NotContains(t, text, "Raider03")
	assert.Contains(t, text, "Raider01")
	assert.Equal(t, 3, len(r.Entries), "input must not be modified")
}

func TestFormatHardCut(t *testing.T) {
	t.Parallel()

	r := sampleReport(5)

	text, dropped := tracker.NewFormatter(10, true, observability.Discard()).Format(r)

	assert.Equal(t, 5, dropped)
	assert.Equal(t, 10, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}
