package economy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EntryKind tags a LogEntry.
type EntryKind uint8

const (
	// EntryNarrative is a human-readable line such as "Sold Wine for €28 in Genoa."
	EntryNarrative EntryKind = iota + 1
	// EntrySnapshot records the balance right after the preceding narrative.
	EntrySnapshot
	// EntryOpaque is a stored record this version could not interpret. It is
	// written back unchanged and ignored by analytics.
	EntryOpaque
)

// LogEntry is one element of a player's transaction log.
//
// On disk a narrative is a bare JSON string and a snapshot is
// {"ts": "2006-01-02T15:04:05Z", "money": 120}.
type LogEntry struct {
	Kind    EntryKind
	Text    string
	At      time.Time
	Balance int

	raw json.RawMessage
}

// Narrative returns a narrative entry.
func Narrative(text string) LogEntry {
	return LogEntry{Kind: EntryNarrative, Text: text}
}

// BalanceSnapshot returns a snapshot entry with at normalized to UTC seconds.
func BalanceSnapshot(at time.Time, balance int) LogEntry {
	return LogEntry{Kind: EntrySnapshot, At: at.UTC().Truncate(time.Second), Balance: balance}
}

type snapshotRecord struct {
	TS    string `json:"ts"`
	Money int    `json:"money"`
}

// lenient reader for snapshot records written by older builds
type snapshotRecordIn struct {
	TS        *string `json:"ts"`
	Timestamp *string `json:"timestamp"`
	Money     *int    `json:"money"`
	Balance   *int    `json:"balance"`
}

func (e LogEntry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EntryNarrative:
		return json.Marshal(e.Text)
	case EntrySnapshot:
		return json.Marshal(snapshotRecord{TS: e.At.UTC().Format(time.RFC3339), Money: e.Balance})
	case EntryOpaque:
		if len(e.raw) == 0 {
			return []byte("null"), nil
		}
		return e.raw, nil
	default:
		return nil, fmt.Errorf("economy: log entry has unknown kind %d", e.Kind)
	}
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*e = Narrative(text)
		return nil
	}

	*e = LogEntry{Kind: EntryOpaque, raw: append(json.RawMessage(nil), trimmed...)}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var rec snapshotRecordIn
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil
	}
	ts := rec.TS
	if ts == nil {
		ts = rec.Timestamp
	}
	money := rec.Money
	if money == nil {
		money = rec.Balance
	}
	if ts == nil || money == nil {
		return nil
	}
	at, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return nil
	}
	*e = BalanceSnapshot(at, *money)
	return nil
}
