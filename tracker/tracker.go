// Package tracker turns raid-leaderboard posts into a snapshot time series
// and reports per-player raiding rates.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TravBots/hammer-tracker/models"
)

const tracerName = "github.com/TravBots/hammer-tracker/tracker"

// Ingestion results passed to Recorder.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
	ResultError = "error"
)

// Recorder receives pipeline measurements.
type Recorder interface {
	Ingestion(result string, elapsed time.Duration)
	Snapshots(inserted, duplicates int)
	Truncated(rows int)
}

type nopRecorder struct{}

func (nopRecorder) Ingestion(string, time.Duration) {}
func (nopRecorder) Snapshots(int, int)              {}
func (nopRecorder) Truncated(int)                   {}

// partitioned is implemented by stores that know their guild.
type partitioned interface {
	Partition() string
}

// Tracker runs one ingestion cycle per leaderboard post: parse, classify,
// bucket, store, compute, format. It keeps no state between calls.
type Tracker struct {
	opts      Options
	parser    *Parser
	calc      *Calculator
	formatter *Formatter
	recorder  Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds a Tracker. rec may be nil.
func New(opts Options, logger *slog.Logger, rec Recorder) *Tracker {
	if rec == nil {
		rec = nopRecorder{}
	}

	return &Tracker{
		opts:      opts,
		parser:    NewParser(logger, opts.ExpectedEntries),
		calc:      NewCalculator(opts, logger),
		formatter: NewFormatter(opts.MaxReportLength, opts.CompactRates, logger),
		recorder:  rec,
		logger:    logger.With("component", "tracker"),
		tracer:    otel.Tracer(tracerName),
	}
}

// Ingest processes one leaderboard post received at now. It returns nil when
// the text holds no entries. Any storage failure aborts the cycle, rolls back
// the rows written by it and is returned as a *StorageError.
func (t *Tracker) Ingest(ctx context.Context, text, channelID string, now time.Time, store SnapshotStore) (*Outcome, error) {
	started := time.Now()
	ingestID := uuid.NewString()

	ctx, span := t.tracer.Start(ctx, "tracker.Ingest", trace.WithAttributes(
		attribute.String("ingest.id", ingestID),
		attribute.String("channel.id", channelID),
	))
	defer span.End()

	logger := t.logger.With("ingest_id", ingestID, "channel_id", channelID)
	logger.InfoContext(ctx, "processing leaderboard")

	entries := t.parser.Parse(text)
	if len(entries) == 0 {
		logger.WarnContext(ctx, "no entries found in leaderboard message")
		t.recorder.Ingestion(ResultEmpty, time.Since(started))

		return nil, nil
	}

	board, personal := Classify(entries, t.opts.BoardSize)
	logger.InfoContext(ctx, "classified entries", "board", len(board), "personal", personal != nil)

	out := &Outcome{}

	err := store.Transaction(ctx, func(tx SnapshotStore) error {
		bucket := t.opts.Bucket(now)
		for _, e := range board {
			if err := t.record(ctx, tx, snapshotOf(e, channelID, bucket, false), out, logger); err != nil {
				return err
			}
		}

		if personal != nil {
			if err := t.record(ctx, tx, snapshotOf(*personal, channelID, now.UTC(), true), out, logger); err != nil {
				return err
			}
		}

		report, err := t.calc.Compute(ctx, tx, board, personal, now)
		if err != nil {
			return err
		}

		out.Report = report

		return nil
	})
	if err != nil {
		err = storageErr("ingest", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
		logger.ErrorContext(ctx, "ingestion aborted", "error", err)
		t.recorder.Ingestion(ResultError, time.Since(started))

		return nil, err
	}

	out.Report.IngestID = ingestID
	out.Report.ChannelID = channelID
	if p, ok := store.(partitioned); ok {
		out.Report.GuildID = p.Partition()
	}

	out.Text, out.Dropped = t.formatter.Format(out.Report)

	t.recorder.Snapshots(out.Inserted, out.Duplicates)
	if out.Dropped > 0 {
		t.recorder.Truncated(out.Dropped)
	}
	t.recorder.Ingestion(ResultOK, time.Since(started))

	span.SetAttributes(
		attribute.Int("snapshots.inserted", out.Inserted),
		attribute.Int("snapshots.duplicates", out.Duplicates),
	)
	logger.InfoContext(ctx, "leaderboard processed",
		"inserted", out.Inserted, "duplicates", out.Duplicates, "dropped_rows", out.Dropped)

	return out, nil
}

// Format renders a report with the tracker's size bound.
func (t *Tracker) Format(r RateReport) (string, int) {
	return t.formatter.Format(r)
}

func (t *Tracker) record(ctx context.Context, tx SnapshotStore, s *models.Snapshot, out *Outcome, logger *slog.Logger) error {
	exists, err := tx.Exists(ctx, s.PlayerName, s.RecordedAt, s.IsPersonal)
	if err != nil {
		return storageErr("exists", err)
	}

	if exists {
		logger.DebugContext(ctx, "skipping duplicate snapshot",
			"player", s.PlayerName, "recorded_at", s.RecordedAt, "personal", s.IsPersonal)
		out.Duplicates++

		return nil
	}

	inserted, err := tx.Insert(ctx, s)
	if err != nil {
		return storageErr("insert", err)
	}

	if !inserted {
		// Lost a race with a concurrent ingestion of the same bucket.
		out.Duplicates++
		return nil
	}

	logger.DebugContext(ctx, "stored snapshot",
		"player", s.PlayerName, "rank", s.Rank, "total", s.TotalRaided, "recorded_at", s.RecordedAt, "personal", s.IsPersonal)
	out.Inserted++

	return nil
}

func snapshotOf(e Entry, channelID string, at time.Time, personal bool) *models.Snapshot {
	return &models.Snapshot{
		PlayerName:  e.Name,
		Rank:        e.Rank,
		TotalRaided: e.Total,
		ChannelID:   channelID,
		RecordedAt:  at,
		IsPersonal:  personal,
	}
}
