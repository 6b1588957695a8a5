package tracker_test

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/TravBots/hammer-tracker/models"
	"github.com/TravBots/hammer-tracker/tracker"
)

var errDiskFull = errors.New("disk full")

// memStore is an in-memory SnapshotStore. Transaction restores the rows on error.
type memStore struct {
	rows []models.Snapshot

	// failInsertAt fails the n-th Insert call (1-based). Zero disables.
	failInsertAt int
	inserts      int
	failLatest   bool
}

var _ tracker.SnapshotStore = (*memStore)(nil)

func (m *memStore) Exists(_ context.Context, player string, recordedAt time.Time, personal bool) (bool, error) {
	for _, r := range m.rows {
		if r.PlayerName == player && r.IsPersonal == personal && r.RecordedAt.Equal(recordedAt) {
			return true, nil
		}
	}

	return false, nil
}

func (m *memStore) Insert(ctx context.Context, s *models.Snapshot) (bool, error) {
	m.inserts++
	if m.failInsertAt > 0 && m.inserts == m.failInsertAt {
		return false, errDiskFull
	}

	exists, _ := m.Exists(ctx, s.PlayerName, s.RecordedAt, s.IsPersonal)
	if exists {
		return false, nil
	}

	row := *s
	row.RecordedAt = row.RecordedAt.UTC()
	m.rows = append(m.rows, row)

	return true, nil
}

func (m *memStore) Latest(_ context.Context, player string, personal bool, since time.Time, limit int) ([]models.Snapshot, error) {
	if m.failLatest {
		return nil, errDiskFull
	}

	rows := m.matching(player, personal, since)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RecordedAt.After(rows[j].RecordedAt) })

	if len(rows) > limit {
		rows = rows[:limit]
	}

	return rows, nil
}

func (m *memStore) EarliestSince(_ context.Context, player string, personal bool, since time.Time) (*models.Snapshot, error) {
	rows := m.matching(player, personal, since)
	if len(rows) == 0 {
		return nil, nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].RecordedAt.Before(rows[j].RecordedAt) })

	return &rows[0], nil
}

func (m *memStore) Transaction(_ context.Context, fn func(tracker.SnapshotStore) error) error {
	saved := append([]models.Snapshot(nil), m.rows...)

	if err := fn(m); err != nil {
		m.rows = saved
		return err
	}

	return nil
}

func (m *memStore) matching(player string, personal bool, since time.Time) []models.Snapshot {
	var out []models.Snapshot
	for _, r := range m.rows {
		if r.PlayerName == player && r.IsPersonal == personal && !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}

	return out
}

func (m *memStore) add(player string, personal bool, at time.Time, total int64) {
	m.rows = append(m.rows, models.Snapshot{PlayerName: player, IsPersonal: personal, RecordedAt: at.UTC(), TotalRaided: total})
}

func (m *memStore) count(personal bool) int {
	n := 0
	for _, r := range m.rows {
		if r.IsPersonal == personal {
			n++
		}
	}

	return n
}
