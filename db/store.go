package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/TravBots/hammer-tracker/models"
	"github.com/TravBots/hammer-tracker/tracker"
)

// SnapshotStore is the GORM implementation of tracker.SnapshotStore for one guild.
type SnapshotStore struct {
	db      *gorm.DB
	guildID string
}

var _ tracker.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore scopes gdb to guildID.
func NewSnapshotStore(gdb *gorm.DB, guildID string) *SnapshotStore {
	return &SnapshotStore{db: gdb, guildID: guildID}
}

// Partition returns the guild this store is bound to.
func (s *SnapshotStore) Partition() string { return s.guildID }

func (s *SnapshotStore) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Snapshot{}).Where("guild_id = ?", s.guildID)
}

// Exists reports whether a snapshot with the same key is already stored.
func (s *SnapshotStore) Exists(ctx context.Context, player string, recordedAt time.Time, personal bool) (bool, error) {
	var n int64

	err := s.scoped(ctx).
		Where("player_name = ? AND recorded_at = ? AND is_personal = ?", player, recordedAt.UTC(), personal).
		Count(&n).Error
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Insert appends snap. A row with the same key is left untouched and false is returned.
func (s *SnapshotStore) Insert(ctx context.Context, snap *models.Snapshot) (bool, error) {
	snap.GuildID = s.guildID
	snap.RecordedAt = snap.RecordedAt.UTC()

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(snap)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// Latest returns up to limit snapshots of player recorded at or after since, newest first.
func (s *SnapshotStore) Latest(ctx context.Context, player string, personal bool, since time.Time, limit int) ([]models.Snapshot, error) {
	var rows []models.Snapshot

	err := s.scoped(ctx).
		Where("player_name = ? AND is_personal = ? AND recorded_at >= ?", player, personal, since.UTC()).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// EarliestSince returns the first snapshot of player at or after since, or nil.
func (s *SnapshotStore) EarliestSince(ctx context.Context, player string, personal bool, since time.Time) (*models.Snapshot, error) {
	var rows []models.Snapshot

	err := s.scoped(ctx).
		Where("player_name = ? AND is_personal = ? AND recorded_at >= ?", player, personal, since.UTC()).
		Order("recorded_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return &rows[0], nil
}

// History lists a player's snapshots, newest first. A zero since means all of
// them and a non-positive limit means no limit.
func (s *SnapshotStore) History(ctx context.Context, player string, personal bool, since time.Time, limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}

	q := s.scoped(ctx).Where("player_name = ? AND is_personal = ?", player, personal)
	if !since.IsZero() {
		q = q.Where("recorded_at >= ?", since.UTC())
	}

	var rows []models.Snapshot
	if err := q.Order("recorded_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// Transaction runs fn inside one database transaction; an error from fn rolls it back.
func (s *SnapshotStore) Transaction(ctx context.Context, fn func(tracker.SnapshotStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SnapshotStore{db: tx, guildID: s.guildID})
	})
}
