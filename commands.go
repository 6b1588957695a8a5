package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/TravBots/hammer-tracker/config"
	"github.com/TravBots/hammer-tracker/db"
	"github.com/TravBots/hammer-tracker/handlers"
	"github.com/TravBots/hammer-tracker/notify"
	"github.com/TravBots/hammer-tracker/observability"
	"github.com/TravBots/hammer-tracker/tracker"
)

const shutdownTimeout = 10 * time.Second

// app is the explicit process context: built once, passed to every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	registry  *db.Registry
	tracker   *tracker.Tracker
	redis     *redis.Client
	publisher *notify.Publisher
	shutdown  observability.ShutdownFunc
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.NewMetrics()

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}

	registry, err := db.NewRegistry(cfg.Database, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		tracker:  tracker.New(trackerOptions(cfg), logger, metrics),
		shutdown: shutdown,
	}

	if cfg.Tracing.OTLPEndpoint != "" {
		logger.Info("span export enabled", "otlp_endpoint", cfg.Tracing.OTLPEndpoint)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := notify.NewClient(ctx, cfg.Redis)
		if err != nil {
			_ = registry.Close()
			_ = shutdown(ctx)

			return nil, err
		}

		a.redis = rdb
		a.publisher = notify.NewPublisher(rdb, cfg.Redis.ChannelPrefix, cfg.Redis.LatestTTL, logger)
		logger.Info("report publication enabled", "redis_addr", cfg.Redis.Addr)
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.registry.Close(); err != nil {
		a.logger.Error("closing databases", "error", err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("closing redis", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		a.logger.Error("flushing spans", "error", err)
	}
}

func trackerOptions(cfg *config.Config) tracker.Options {
	opts := tracker.DefaultOptions()
	opts.BoardSize = cfg.Tracker.BoardSize
	opts.ExpectedEntries = cfg.Tracker.ExpectedEntries
	opts.BucketMinute = cfg.Tracker.BucketMinute
	opts.WeekAnchorWeekday = time.Weekday(cfg.Tracker.WeekAnchorWeekday)
	opts.WeekAnchorOffset = cfg.Tracker.WeekAnchorOffset
	opts.MaxReportLength = cfg.Report.MaxLength
	opts.CompactRates = cfg.Report.Compact

	return opts
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			gin.SetMode(gin.ReleaseMode)

			deps := handlers.Deps{
				Stores:  a.registry,
				Tracker: a.tracker,
				Metrics: a.metrics.Handler(),
				Logger:  a.logger,
			}
			if a.publisher != nil {
				deps.Publisher = a.publisher
			}

			srv := &http.Server{
				Addr:         a.cfg.Server.Addr,
				Handler:      handlers.NewRouter(deps),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}

			go func() {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("server shutdown", "error", err)
				}
			}()

			a.logger.Info("starting server", "addr", srv.Addr)

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}

			return nil
		},
	}
}

func ingestCmd(configPath *string) *cobra.Command {
	var (
		guildID   string
		channelID string
		file      string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one leaderboard post and print the rate report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.registry.Store(guildID)
			if err != nil {
				return err
			}

			out, err := a.tracker.Ingest(cmd.Context(), text, channelID, time.Now(), store)
			if err != nil {
				return err
			}

			if out == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no leaderboard entries found")
				return nil
			}

			if a.publisher != nil {
				if err := a.publisher.Publish(cmd.Context(), guildID, out); err != nil {
					a.logger.Warn("report publication failed", "error", err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(out)
			}

			fmt.Fprintln(cmd.OutOrStdout(), out.Text)

			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "guild id (partition)")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel id the post came from")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "file holding the post, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full outcome as JSON")
	_ = cmd.MarkFlagRequired("guild")

	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the snapshot table of a guild",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.registry.Store(guildID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "guild %s migrated\n", guildID)

			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "guild id (partition)")
	_ = cmd.MarkFlagRequired("guild")

	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	var (
		guildID  string
		player   string
		personal bool
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored snapshots of a player",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.registry.Store(guildID)
			if err != nil {
				return err
			}

			rows, err := store.History(cmd.Context(), player, personal, time.Time{}, limit)
			if err != nil {
				return err
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Recorded At (UTC)", "Rank", "Total", "Channel"})

			for _, r := range rows {
				tbl.AppendRow(table.Row{r.RecordedAt.UTC().Format(time.DateTime), r.Rank, humanize.Comma(r.TotalRaided), r.ChannelID})
			}

			tbl.AppendFooter(table.Row{fmt.Sprintf("%d snapshots", len(rows))})
			tbl.Render()

			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "guild id (partition)")
	cmd.Flags().StringVar(&player, "player", "", "player name")
	cmd.Flags().BoolVar(&personal, "personal", false, "list personal-entry snapshots")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows, 0 for all")
	_ = cmd.MarkFlagRequired("guild")
	_ = cmd.MarkFlagRequired("player")

	return cmd
}

func readInput(stdin io.Reader, file string) (string, error) {
	var (
		raw []byte
		err error
	)

	if file == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(file)
	}

	if err != nil {
		return "", fmt.Errorf("failed to read leaderboard post: %w", err)
	}

	return string(raw), nil
}
