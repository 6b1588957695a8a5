// Package notify hands finished raid reports to the chat-facing process via Redis.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TravBots/hammer-tracker/config"
	"github.com/TravBots/hammer-tracker/tracker"
)

// Message is the payload published for each report.
type Message struct {
	GuildID   string             `json:"guild_id"`
	ChannelID string             `json:"channel_id"`
	Text      string             `json:"text"`
	Report    tracker.RateReport `json:"report"`
}

// Publisher publishes reports on <prefix>:reports:<guild> and keeps the most
// recent one at <prefix>:latest:<guild>.
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// NewPublisher wraps client.
func NewPublisher(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, ttl: ttl, logger: logger.With("component", "notify")}
}

// ReportsChannel is the pub/sub channel of a guild.
func (p *Publisher) ReportsChannel(guildID string) string {
	return fmt.Sprintf("%s:reports:%s", p.prefix, guildID)
}

// LatestKey holds the last report of a guild.
func (p *Publisher) LatestKey(guildID string) string {
	return fmt.Sprintf("%s:latest:%s", p.prefix, guildID)
}

// Publish stores and broadcasts out. Both writes go through one pipeline.
func (p *Publisher) Publish(ctx context.Context, guildID string, out *tracker.Outcome) error {
	payload, err := json.Marshal(Message{
		GuildID:   guildID,
		ChannelID: out.Report.ChannelID,
		Text:      out.Text,
		Report:    out.Report,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.LatestKey(guildID), payload, p.ttl)
	pipe.Publish(ctx, p.ReportsChannel(guildID), payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	p.logger.DebugContext(ctx, "report published", "guild_id", guildID, "ingest_id", out.Report.IngestID)

	return nil
}

// Latest returns the last report published for guildID, or nil when none is cached.
func (p *Publisher) Latest(ctx context.Context, guildID string) (*Message, error) {
	raw, err := p.client.Get(ctx, p.LatestKey(guildID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read latest report: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal latest report: %w", err)
	}

	return &msg, nil
}
