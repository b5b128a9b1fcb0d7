package analytics

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"cargo-market/internal/economy"
)

const (
	topPerCity = 3
	topGlobal  = 10
)

var soldPattern = regexp.MustCompile(`^Sold (.+?) for €(\d+) in (.+)\.$`)

// ItemCount is one row of a popularity ranking.
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Report counts sales per item inside a window.
type Report struct {
	PerCity    map[string]map[string]int `json:"per_city"`
	Global     map[string]int            `json:"global"`
	TopPerCity map[string][]ItemCount    `json:"top_per_city"`
	TopGlobal  []ItemCount               `json:"top_global"`
}

// Popularity counts sales whose timestamp falls in [now-hours, now]. A sale's
// timestamp comes from the snapshot entry that immediately follows its
// narrative; sales without one, or with an unparsable amount, are skipped.
func Popularity(state *economy.GameState, hours int, now time.Time) Report {
	hours = ClampHours(hours)
	end := now.UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	r := Report{
		PerCity:    make(map[string]map[string]int),
		Global:     make(map[string]int),
		TopPerCity: make(map[string][]ItemCount),
		TopGlobal:  []ItemCount{},
	}
	for _, p := range state.Players {
		for i, e := range p.Log {
			if e.Kind != economy.EntryNarrative {
				continue
			}
			m := soldPattern.FindStringSubmatch(e.Text)
			if m == nil {
				continue
			}
			if _, err := strconv.Atoi(m[2]); err != nil {
				continue
			}
			if i+1 >= len(p.Log) || p.Log[i+1].Kind != economy.EntrySnapshot {
				continue
			}
			at := p.Log[i+1].At
			if at.Before(start) || at.After(end) {
				continue
			}
			item, city := m[1], m[3]
			if r.PerCity[city] == nil {
				r.PerCity[city] = make(map[string]int)
			}
			r.PerCity[city][item]++
			r.Global[item]++
		}
	}

	for city, counts := range r.PerCity {
		r.TopPerCity[city] = rank(counts, topPerCity)
	}
	r.TopGlobal = rank(r.Global, topGlobal)
	return r
}

// rank orders by count descending, then item name ascending.
func rank(counts map[string]int, limit int) []ItemCount {
	out := make([]ItemCount, 0, len(counts))
	for item, n := range counts {
		out = append(out, ItemCount{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Item < out[j].Item
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
