package logging

import (
	"encoding/json"
	"time"
)

// Level is the severity tag of a log record.
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Record is one observed event. Records are immutable once written;
// within a session their append order equals chronological order.
type Record struct {
	Time    time.Time `json:"-"`
	Level   Level     `json:"level"`
	Source  string    `json:"source"`
	Content string    `json:"content"`
	RunID   string    `json:"run_id,omitempty"`
}

// jsonRecord is the wire shape for the JSON Lines sink. The timestamp
// is serialized as RFC 3339 so the file stays greppable and sortable.
type jsonRecord struct {
	TS string `json:"ts"`
	Record
}

// MarshalJSONL encodes the record as a single JSON Lines entry,
// trailing newline included.
func (r Record) MarshalJSONL() ([]byte, error) {
	data, err := json.Marshal(jsonRecord{TS: r.Time.Format(time.RFC3339), Record: r})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// UnmarshalJSONL decodes one JSON Lines entry produced by MarshalJSONL.
func UnmarshalJSONL(line []byte) (Record, error) {
	var jr jsonRecord
	if err := json.Unmarshal(line, &jr); err != nil {
		return Record{}, err
	}
	rec := jr.Record
	if ts, err := time.Parse(time.RFC3339, jr.TS); err == nil {
		rec.Time = ts
	}
	return rec, nil
}
