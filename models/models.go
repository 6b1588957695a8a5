package models

import "time"

// Snapshot is one observation of a player's cumulative raided total.
// Rows are append-only; the composite unique index makes a repeated
// ingestion of the same board refresh a no-op.
type Snapshot struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GuildID     string    `gorm:"size:32;not null;uniqueIndex:idx_raid_snapshot,priority:1" json:"guild_id"`
	PlayerName  string    `gorm:"size:100;not null;uniqueIndex:idx_raid_snapshot,priority:2;index:idx_raid_player_time,priority:1" json:"player_name"`
	RecordedAt  time.Time `gorm:"not null;uniqueIndex:idx_raid_snapshot,priority:3;index:idx_raid_player_time,priority:2" json:"recorded_at"`
	IsPersonal  bool      `gorm:"not null;default:false;uniqueIndex:idx_raid_snapshot,priority:4" json:"is_personal"`
	Rank        int       `gorm:"not null" json:"rank"`
	TotalRaided int64     `gorm:"not null" json:"total_raided"`
	ChannelID   string    `gorm:"size:32" json:"channel_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps the table name used by the bot's existing databases.
func (Snapshot) TableName() string { return "raid_tracking" }
