package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Governor keeps the chat database inside its storage budget. It trims
// per-session history and expires idle sessions with plain row deletes,
// never exclusive locks, so it can run while the bot serves traffic.
type Governor struct {
	db                    *sql.DB
	maxStorageMB          int
	cleanupThreshold      float64
	maxMessagesPerSession int
	maxSessionIdleDays    int
	logger                *logging.Logger
}

// Config bounds the governor's behavior.
type Config struct {
	MaxStorageMB          int
	CleanupThreshold      float64
	MaxMessagesPerSession int
	MaxSessionIdleDays    int
}

// NewGovernor creates a governor over the chat database.
func NewGovernor(db *sql.DB, cfg Config, logger *logging.Logger) *Governor {
	if cfg.MaxStorageMB <= 0 {
		cfg.MaxStorageMB = 400
	}
	if cfg.CleanupThreshold <= 0 || cfg.CleanupThreshold > 1 {
		cfg.CleanupThreshold = 0.8
	}
	if cfg.MaxMessagesPerSession <= 0 {
		cfg.MaxMessagesPerSession = 50
	}
	if cfg.MaxSessionIdleDays <= 0 {
		cfg.MaxSessionIdleDays = 30
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Governor{
		db:                    db,
		maxStorageMB:          cfg.MaxStorageMB,
		cleanupThreshold:      cfg.CleanupThreshold,
		maxMessagesPerSession: cfg.MaxMessagesPerSession,
		maxSessionIdleDays:    cfg.MaxSessionIdleDays,
		logger:                logger,
	}
}

// Usage describes how full the database is relative to the ceiling.
type Usage struct {
	CurrentSizeMB float64 `json:"currentSizeMB"`
	LimitMB       int     `json:"limitMB"`
	PercentUsed   float64 `json:"percentUsed"`
	NeedsCleanup  bool    `json:"needsCleanup"`
}

// Report describes what one maintenance run did.
type Report struct {
	Performed       bool  `json:"performed"`
	TrimmedMessages int64 `json:"trimmedMessages"`
	ExpiredSessions int64 `json:"expiredSessions"`
	Usage           Usage `json:"usage"`
}

// Stats are row counts for the admin surface.
type Stats struct {
	Conversations  int64 `json:"conversations"`
	Messages       int64 `json:"messages"`
	TrackingEvents int64 `json:"trackingEvents"`
}

// CheckUsage measures database size against the configured ceiling.
func (g *Governor) CheckUsage(ctx context.Context) (Usage, error) {
	var sizeBytes int64
	err := g.db.QueryRowContext(ctx,
		`SELECT pg_database_size(current_database())`,
	).Scan(&sizeBytes)
	if err != nil {
		return Usage{}, fmt.Errorf("storage: failed to measure database size: %w", err)
	}

	sizeMB := float64(sizeBytes) / (1024 * 1024)
	percent := sizeMB / float64(g.maxStorageMB)
	return Usage{
		CurrentSizeMB: sizeMB,
		LimitMB:       g.maxStorageMB,
		PercentUsed:   percent,
		NeedsCleanup:  percent >= g.cleanupThreshold,
	}, nil
}

// PerformMaintenance trims history and expires idle sessions. Below the
// cleanup threshold nothing happens unless force is set.
func (g *Governor) PerformMaintenance(ctx context.Context, force bool) (Report, error) {
	usage, err := g.CheckUsage(ctx)
	if err != nil {
		return Report{}, err
	}
	if !force && !usage.NeedsCleanup {
		return Report{Performed: false, Usage: usage}, nil
	}

	trimmed, err := g.trimLongSessions(ctx)
	if err != nil {
		return Report{}, err
	}
	expired, err := g.expireIdleSessions(ctx)
	if err != nil {
		return Report{}, err
	}

	g.logger.Info("storage: maintenance complete",
		"trimmed_messages", trimmed, "expired_sessions", expired,
		"size_mb", usage.CurrentSizeMB)

	return Report{
		Performed:       true,
		TrimmedMessages: trimmed,
		ExpiredSessions: expired,
		Usage:           usage,
	}, nil
}

// trimLongSessions deletes each session's oldest messages beyond the
// per-session cap.
func (g *Governor) trimLongSessions(ctx context.Context) (int64, error) {
	res, err := g.db.ExecContext(ctx, `
		DELETE FROM chat_messages WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY session_id ORDER BY timestamp DESC
				) AS rank
				FROM chat_messages
			) ranked
			WHERE ranked.rank > $1
		)
	`, g.maxMessagesPerSession)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to trim messages: %w", err)
	}
	return res.RowsAffected()
}

// expireIdleSessions deactivates and removes sessions idle beyond the max
// age. Messages and appointment state go with the conversation via
// cascade.
func (g *Governor) expireIdleSessions(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -g.maxSessionIdleDays)

	_, err := g.db.ExecContext(ctx, `
		UPDATE chat_conversations SET is_active = FALSE
		WHERE last_message_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to deactivate idle sessions: %w", err)
	}

	res, err := g.db.ExecContext(ctx, `
		DELETE FROM chat_conversations
		WHERE is_active = FALSE AND last_message_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to expire idle sessions: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts rows for the admin stats endpoint.
func (g *Governor) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := g.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM chat_conversations),
			(SELECT COUNT(*) FROM chat_messages),
			(SELECT COUNT(*) FROM tracking_events)
	`).Scan(&s.Conversations, &s.Messages, &s.TrackingEvents)
	if err != nil {
		return Stats{}, fmt.Errorf("storage: failed to count rows: %w", err)
	}
	return s, nil
}

// RunLoop performs maintenance on the interval until the context ends.
func (g *Governor) RunLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.PerformMaintenance(ctx, false); err != nil {
				g.logger.Error("storage: scheduled maintenance failed", "error", err)
			}
		}
	}
}
