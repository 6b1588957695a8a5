package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry is one ranked line of a leaderboard post.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// RateKind tells whether a Rate carries a number.
type RateKind int

const (
	// RateUnavailable is rendered as "N/A": history exists but the interval is empty.
	RateUnavailable RateKind = iota
	// RateNew marks a player with fewer than two samples this week.
	RateNew
	// RateMeasured carries a per-hour value.
	RateMeasured
)

const (
	markerNew = "new"
	markerNA  = "N/A"
)

// Rate is a raided-per-hour figure or one of the "new" / "N/A" markers.
type Rate struct {
	Kind    RateKind
	PerHour int64
}

// Measured returns a numeric rate.
func Measured(perHour int64) Rate { return Rate{Kind: RateMeasured, PerHour: perHour} }

// NewEntrant returns the "new" marker.
func NewEntrant() Rate { return Rate{Kind: RateNew} }

// Unavailable returns the "N/A" marker.
func Unavailable() Rate { return Rate{} }

// IsMeasured reports whether r carries a number.
func (r Rate) IsMeasured() bool { return r.Kind == RateMeasured }

// String renders r with thousands separators.
func (r Rate) String() string {
	switch r.Kind {
	case RateMeasured:
		return humanize.Comma(r.PerHour)
	case RateNew:
		return markerNew
	default:
		return markerNA
	}
}

// Compact renders r with a k suffix once it reaches four digits.
func (r Rate) Compact() string {
	if r.Kind != RateMeasured {
		return r.String()
	}

	return compactNumber(r.PerHour)
}

// MarshalJSON emits the raw number, or the marker string.
func (r Rate) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RateMeasured:
		return []byte(strconv.FormatInt(r.PerHour, 10)), nil
	case RateNew:
		return json.Marshal(markerNew)
	default:
		return json.Marshal(markerNA)
	}
}

// UnmarshalJSON accepts the forms produced by MarshalJSON.
func (r *Rate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return fmt.Errorf("decode rate marker: %w", err)
		}

		switch marker {
		case markerNew:
			*r = NewEntrant()
		case markerNA:
			*r = Unavailable()
		default:
			return fmt.Errorf("unknown rate marker %q", marker)
		}

		return nil
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("decode rate: %w", err)
	}

	*r = Measured(v)

	return nil
}

// PlayerRate is one row of a RateReport.
type PlayerRate struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Current Rate   `json:"current_rate"`
	Week    Rate   `json:"week_rate"`
	Total   int64  `json:"total"`
}

// IsNew reports whether the player has too little history for a current rate.
func (p PlayerRate) IsNew() bool { return p.Current.Kind == RateNew }

// RateReport is the result of one ingestion.
type RateReport struct {
	IngestID    string       `json:"ingest_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	ChannelID   string       `json:"channel_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	WeekStart   time.Time    `json:"week_start"`
	Entries     []PlayerRate `json:"entries"`
	Personal    *PlayerRate  `json:"personal,omitempty"`
}

// Outcome bundles the report with what the ingestion did to storage.
type Outcome struct {
	Report     RateReport `json:"report"`
	Text       string     `json:"text"`
	Inserted   int        `json:"inserted"`
	Duplicates int        `json:"duplicates"`
	Dropped    int        `json:"dropped"`
}

func compactNumber(n int64) string {
	sign := ""
	abs := n
	if n < 0 {
		sign = "-"
		abs = -n
	}

	if abs < 1000 {
		return strconv.FormatInt(n, 10)
	}

	if abs < 1_000_000 {
		// 999,950 and up round to "1000k"; those belong to the next unit.
		if k := trimZero(float64(abs) / 1000); k != "1000" {
			return sign + k + "k"
		}
	}

	return sign + trimZero(float64(abs)/1_000_000) + "m"
}

// trimZero formats with one decimal, dropping a trailing ".0".
func trimZero(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}

	return s
}
