package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/TravBots/hammer-tracker/db"
	"github.com/TravBots/hammer-tracker/notify"
	"github.com/TravBots/hammer-tracker/tracker"
)

const (
	tracerName = "github.com/TravBots/hammer-tracker/handlers"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// propagator reads W3C traceparent and baggage headers.
var propagator = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

// Stores resolves the snapshot store of a guild.
type Stores interface {
	Store(guildID string) (*db.SnapshotStore, error)
}

// Publisher forwards finished reports to the chat-facing process.
type Publisher interface {
	Publish(ctx context.Context, guildID string, out *tracker.Outcome) error
	Latest(ctx context.Context, guildID string) (*notify.Message, error)
}

// Deps are the collaborators of the HTTP surface. Publisher, Metrics and
// Tracer may be nil.
type Deps struct {
	Stores    Stores
	Tracker   *tracker.Tracker
	Publisher Publisher
	Metrics   http.Handler
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Now       func() time.Time
}

type ingestRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// NewRouter wires every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}

	r := gin.New()
	r.Use(gin.Recovery(), traceRequests(d.Tracer), requestLogger(d.Logger))

	r.GET("/health", HealthHandler())
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	guilds := r.Group("/guilds/:guild")
	{
		guilds.POST("/leaderboard", IngestHandler(d))
		guilds.GET("/players/:name/snapshots", SnapshotsHandler(d.Stores))
		guilds.GET("/reports/latest", LatestReportHandler(d.Publisher))
	}

	return r
}

// IngestHandler processes a posted leaderboard message for a guild.
func IngestHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		guildID := c.Param("guild")

		store, ok := storeFor(c, d.Stores, guildID)
		if !ok {
			return
		}

		out, err := d.Tracker.Ingest(c.Request.Context(), req.Content, req.ChannelID, d.Now(), store)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, tracker.ErrStorage) {
				status = http.StatusServiceUnavailable
			}

			c.JSON(status, gin.H{"error": err.Error()})

			return
		}

		if out == nil {
			c.Status(http.StatusNoContent)
			return
		}

		if d.Publisher != nil {
			if err := d.Publisher.Publish(c.Request.Context(), guildID, out); err != nil {
				d.Logger.WarnContext(c.Request.Context(), "report publication failed", "guild_id", guildID, "error", err)
			}
		}

		c.JSON(http.StatusOK, out)
	}
}

// SnapshotsHandler lists the stored snapshots of one player.
func SnapshotsHandler(stores Stores) gin.HandlerFunc {
	return func(c *gin.Context) {
		personal, err := strconv.ParseBool(c.DefaultQuery("personal", "false"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "personal must be a boolean"})
			return
		}

		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}

		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		var since time.Time
		if raw := c.Query("since"); raw != "" {
			since, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
				return
			}
		}

		store, ok := storeFor(c, stores, c.Param("guild"))
		if !ok {
			return
		}

		rows, err := store.History(c.Request.Context(), c.Param("name"), personal, since, limit)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"snapshots": rows})
	}
}

// LatestReportHandler returns the last report published for a guild.
func LatestReportHandler(pub Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pub == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "report publication is disabled"})
			return
		}

		msg, err := pub.Latest(c.Request.Context(), c.Param("guild"))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		if msg == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report yet"})
			return
		}

		c.JSON(http.StatusOK, msg)
	}
}

// HealthHandler returns a simple health check handler.
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	}
}

func storeFor(c *gin.Context, stores Stores, guildID string) (*db.SnapshotStore, bool) {
	store, err := stores.Store(guildID)
	if err == nil {
		return store, true
	}

	status := http.StatusServiceUnavailable
	if errors.Is(err, db.ErrInvalidGuild) {
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error()})

	return nil, false
}

// traceRequests starts a server span per request, continuing any W3C trace
// context sent by the caller. Span names use the route template.
func traceRequests(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		parent := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}
