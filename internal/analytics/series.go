// Package analytics derives reports from player ledgers. Every function here
// is pure: it reads a GameState copy and a pinned now and never mutates.
package analytics

import (
	"encoding/json"
	"time"

	"cargo-market/internal/economy"
)

const (
	MinHours = 1
	MaxHours = 168
)

// ClampHours bounds a requested window to [MinHours, MaxHours].
func ClampHours(hours int) int {
	if hours < MinHours {
		return MinHours
	}
	if hours > MaxHours {
		return MaxHours
	}
	return hours
}

// Point is one minute of a balance series. Known is false until the first
// balance observation at or before Minute.
type Point struct {
	Minute  time.Time
	Balance int
	Known   bool
}

// MarshalJSON encodes a point as ["2006-01-02T15:04:00Z", balance|null].
func (p Point) MarshalJSON() ([]byte, error) {
	var v any
	if p.Known {
		v = p.Balance
	}
	return json.Marshal([2]any{p.Minute.UTC().Format("2006-01-02T15:04:00Z"), v})
}

// Series maps player name to one point per minute of the window.
type Series map[string][]Point

// MoneySeries resamples each player's balance snapshots to one point per
// minute over the last hours ending at now, carrying values forward.
func MoneySeries(state *economy.GameState, hours int, now time.Time) Series {
	hours = ClampHours(hours)
	end := now.UTC().Truncate(time.Minute)
	start := end.Add(-time.Duration(hours) * time.Hour)
	steps := hours*60 + 1

	out := make(Series, len(state.Players))
	for name, p := range state.Players {
		buckets := bucketByMinute(p.Log)

		var current Point
		var prior int64
		for minute, bal := range buckets {
			if minute < start.Unix() && (!current.Known || minute > prior) {
				prior = minute
				current = Point{Balance: bal, Known: true}
			}
		}

		points := make([]Point, steps)
		for i := 0; i < steps; i++ {
			minute := start.Add(time.Duration(i) * time.Minute)
			if bal, ok := buckets[minute.Unix()]; ok {
				current = Point{Balance: bal, Known: true}
			}
			current.Minute = minute
			points[i] = current
		}
		out[name] = points
	}
	return out
}

// bucketByMinute keeps the last snapshot seen in each minute, keyed by the
// minute's Unix time.
func bucketByMinute(log []economy.LogEntry) map[int64]int {
	buckets := make(map[int64]int)
	for _, e := range log {
		if e.Kind != economy.EntrySnapshot {
			continue
		}
		buckets[e.At.Truncate(time.Minute).Unix()] = e.Balance
	}
	return buckets
}
