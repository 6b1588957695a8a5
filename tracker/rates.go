package tracker

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Calculator derives raiding rates from stored snapshots.
//
// The personal entry follows the same rule as board entries: its current rate
// compares the two newest personal samples of the running week.
type Calculator struct {
	opts   Options
	logger *slog.Logger
}

// NewCalculator returns a Calculator using the week anchor in opts.
func NewCalculator(opts Options, logger *slog.Logger) *Calculator {
	return &Calculator{opts: opts, logger: logger.With("component", "calculator")}
}

// Compute fills a report with rates for the board entries and the optional
// personal entry, as of now. Missing or degenerate history is expressed in the
// rates, never as an error; only storage failures are returned.
func (c *Calculator) Compute(ctx context.Context, store SnapshotStore, board []Entry, personal *Entry, now time.Time) (RateReport, error) {
	weekStart := c.opts.WeekStart(now)
	c.logger.Debug("computing rates", "week_start", weekStart, "board", len(board), "personal", personal != nil)

	report := RateReport{
		GeneratedAt: now.UTC(),
		WeekStart:   weekStart,
		Entries:     make([]PlayerRate, 0, len(board)),
	}

	for _, e := range board {
		pr, err := c.playerRate(ctx, store, e, false, weekStart, now)
		if err != nil {
			return RateReport{}, err
		}

		report.Entries = append(report.Entries, pr)
	}

	if personal != nil {
		pr, err := c.playerRate(ctx, store, *personal, true, weekStart, now)
		if err != nil {
			return RateReport{}, err
		}

		report.Personal = &pr
	}

	return report, nil
}

func (c *Calculator) playerRate(ctx context.Context, store SnapshotStore, e Entry, personal bool, weekStart, now time.Time) (PlayerRate, error) {
	pr := PlayerRate{Rank: e.Rank, Name: e.Name, Total: e.Total}

	recent, err := store.Latest(ctx, e.Name, personal, weekStart, 2)
	if err != nil {
		return PlayerRate{}, storageErr("latest", err)
	}

	if len(recent) < 2 {
		pr.Current = NewEntrant()
		pr.Week = Unavailable()

		return pr, nil
	}

	end, start := recent[0], recent[1]
	pr.Current = perHour(end.TotalRaided-start.TotalRaided, end.RecordedAt.Sub(start.RecordedAt))

	first, err := store.EarliestSince(ctx, e.Name, personal, weekStart)
	if err != nil {
		return PlayerRate{}, storageErr("earliest", err)
	}

	pr.Week = Unavailable()
	if first != nil {
		pr.Week = perHour(e.Total-first.TotalRaided, now.Sub(first.RecordedAt))
	}

	c.logger.Debug("player rate",
		"player", e.Name, "personal", personal, "current", pr.Current.String(), "week", pr.Week.String())

	return pr, nil
}

// perHour floors delta over elapsed hours. An empty or negative interval has no rate.
func perHour(delta int64, elapsed time.Duration) Rate {
	hours := elapsed.Hours()
	if hours <= 0 {
		return Unavailable()
	}

	return Measured(int64(math.Floor(float64(delta) / hours)))
}
