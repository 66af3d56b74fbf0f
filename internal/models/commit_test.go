package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf(t *testing.T) {
	t.Run("truncates to UTC day", func(t *testing.T) {
		ts := time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC)
		assert.Equal(t, "2024-01-05", DayOf(ts).String())
	})

	t.Run("converts offsets to UTC before truncating", func(t *testing.T) {
		loc := time.FixedZone("UTC+3", 3*60*60)
		ts := time.Date(2024, 1, 6, 1, 0, 0, 0, loc)
		assert.Equal(t, "2024-01-05", DayOf(ts).String())
	})
}

func TestDateAddDays(t *testing.T) {
	d := NewDate(2024, 2, 28)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.Equal(DayOf(d.Time().Add(5*time.Hour))))
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"time value", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "2024-01-05"},
		{"plain string", "2024-01-05", "2024-01-05"},
		{"timestamp string", "2024-01-05T00:00:00Z", "2024-01-05"},
		{"bytes", []byte("2023-12-31"), "2023-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
	assert.Error(t, d.Scan("not-a-date"))
}

func TestDateJSON(t *testing.T) {
	cc := CommitCount{Date: NewDate(2024, 1, 5), Count: 3}
	data, err := json.Marshal(cc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date":"2024-01-05"`)

	var decoded CommitCount
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Date.Equal(cc.Date))
}

func TestSyncSummaryAdd(t *testing.T) {
	var s SyncSummary
	s.Add(RepositorySyncResult{FullName: "a/a", CommitsTracked: 4})
	s.Add(RepositorySyncResult{FullName: "b/b", Error: "boom"})
	s.Add(RepositorySyncResult{FullName: "c/c", CommitsTracked: 1})

	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 5, s.TotalCommitsTracked)
	assert.Len(t, s.Results, 3)
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := Credential{ExpiresAt: now}
	assert.True(t, c.Expired(now))
	assert.False(t, c.Expired(now.Add(-time.Second)))
}
