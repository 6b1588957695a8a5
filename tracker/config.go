package tracker

import "time"

// Engine defaults. The board shows the top ten raiders plus the author's own line.
const (
	DefaultBoardSize       = 10
	DefaultExpectedEntries = DefaultBoardSize + 1
	DefaultBucketMinute    = 30
	DefaultMaxReportLength = 2000

	// The weekly raid reset lands on Sunday 00:30 UTC.
	DefaultWeekAnchorWeekday = time.Sunday
	DefaultWeekAnchorOffset  = 30 * time.Minute
)

// Options tunes the engine. The zero value is not usable; start from DefaultOptions.
type Options struct {
	BoardSize         int
	ExpectedEntries   int
	BucketMinute      int
	WeekAnchorWeekday time.Weekday
	WeekAnchorOffset  time.Duration
	MaxReportLength   int
	CompactRates      bool
}

// DefaultOptions returns the settings the live board has always used.
func DefaultOptions() Options {
	return Options{
		BoardSize:         DefaultBoardSize,
		ExpectedEntries:   DefaultExpectedEntries,
		BucketMinute:      DefaultBucketMinute,
		WeekAnchorWeekday: DefaultWeekAnchorWeekday,
		WeekAnchorOffset:  DefaultWeekAnchorOffset,
		MaxReportLength:   DefaultMaxReportLength,
		CompactRates:      true,
	}
}
