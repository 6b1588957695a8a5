package tracker_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TravBots/hammer-tracker/tracker"
)

func TestRateRendering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate    tracker.Rate
		full    string
		compact string
	}{
		{tracker.Measured(0), "0", "0"},
		{tracker.Measured(999), "999", "999"},
		{tracker.Measured(1000), "1,000", "1k"},
		{tracker.Measured(1500), "1,500", "1.5k"},
		{tracker.Measured(12_000), "12,000", "12k"},
		{tracker.Measured(999_949), "999,949", "999.9k"},
		{tracker.Measured(999_950), "999,950", "1m"},
		{tracker.Measured(999_999), "999,999", "1m"},
		{tracker.Measured(-999_999), "-999,999", "-1m"},
		{tracker.Measured(2_345_678), "2,345,678", "2.3m"},
		{tracker.Measured(-1500), "-1,500", "-1.5k"},
		{tracker.NewEntrant(), "new", "new"},
		{tracker.Unavailable(), "N/A", "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.full, tt.rate.String())
			assert.Equal(t, tt.compact, tt.rate.Compact())
		})
	}
}

func TestRateJSON(t *testing.T) {
	t.Parallel()

	pr := tracker.PlayerRate{Rank: 1, Name: "Alice", Current: tracker.Measured(500), Week: tracker.Unavailable(), Total: 1600}

	raw, err := json.Marshal(pr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rank":1,"name":"Alice","current_rate":500,"week_rate":"N/A","total":1600}`, string(raw))

	var back tracker.PlayerRate
	require.NoError(t, json.Unmarshal([]byte(`{"rank":2,"name":"Bob","current_rate":"new","week_rate":"N/A","total":5}`), &back))
	assert.True(t, back.IsNew())
	assert.Equal(t, tracker.Unavailable(), back.Week)
}

func TestRateJSONRejectsUnknownMarker(t *testing.T) {
	t.Parallel()

	var r tracker.Rate
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &r))
}
