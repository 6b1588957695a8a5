package tracker

import "time"

// BucketTime rounds t down to the most recent board refresh, which happens at
// minute past every hour. All instants in one refresh period share a bucket.
func BucketTime(t time.Time, minute int) time.Time {
	u := t.UTC()

	bucket := u.Truncate(time.Hour).Add(time.Duration(minute) * time.Minute)
	if u.Minute() < minute {
		bucket = bucket.Add(-time.Hour)
	}

	return bucket
}

// WeekStart returns the latest weekly anchor (weekday at midnight UTC plus
// offset) that is not after now.
func WeekStart(now time.Time, weekday time.Weekday, offset time.Duration) time.Time {
	u := now.UTC()

	daysBack := (int(u.Weekday()) - int(weekday) + 7) % 7
	day := u.AddDate(0, 0, -daysBack)

	anchor := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Add(offset)
	if u.Before(anchor) {
		anchor = anchor.AddDate(0, 0, -7)
	}

	return anchor
}

// Bucket applies BucketTime with the configured refresh minute.
func (o Options) Bucket(t time.Time) time.Time {
	return BucketTime(t, o.BucketMinute)
}

// WeekStart applies WeekStart with the configured anchor.
func (o Options) WeekStart(now time.Time) time.Time {
	return WeekStart(now, o.WeekAnchorWeekday, o.WeekAnchorOffset)
}
