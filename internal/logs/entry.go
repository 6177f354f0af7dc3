package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"lingocast/internal/logging"
)

// Entry is one decoded job log record.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	Stage     string
	EventType string
	Attrs     map[string]string
	Raw       string
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "time": {}, "level": {}, "msg": {}, "source": {},
	logging.FieldComponent: {}, logging.FieldStage: {}, logging.FieldEventType: {},
}

// ParseEntry decodes a JSON log line. Lines that are not JSON objects come
// back with only Raw and Message set and ok false.
func ParseEntry(line string) (Entry, bool) {
	entry := Entry{Raw: line, Message: line}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return entry, false
	}
	entry.Message = stringField(record, "msg")
	entry.Level = strings.ToLower(stringField(record, "level"))
	entry.Component = stringField(record, logging.FieldComponent)
	entry.Stage = stringField(record, logging.FieldStage)
	entry.EventType = stringField(record, logging.FieldEventType)
	for _, key := range []string{"ts", "time"} {
		if ts, err := time.Parse(time.RFC3339Nano, stringField(record, key)); err == nil {
			entry.Time = ts
			break
		}
	}
	for key, value := range record {
		if _, skip := reservedKeys[key]; skip {
			continue
		}
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]string)
		}
		entry.Attrs[key] = valueString(value)
	}
	return entry, true
}

// Format renders the entry as a single console line.
func (e Entry) Format() string {
	if e.Level == "" && e.Time.IsZero() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format(time.TimeOnly))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(e.Level))
	if e.Stage != "" {
		fmt.Fprintf(&b, "[%s] ", e.Stage)
	}
	b.WriteString(e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := e.Attrs[key]
		if strings.ContainsAny(value, " \t") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	// MinLevel drops entries below this level (debug, info, warn, error).
	MinLevel  string
	Stage     string
	Component string
	EventType string
	Search    string
}

// Match reports whether e passes every configured predicate.
func (f Filter) Match(e Entry) bool {
	if f.MinLevel != "" && levelRank(e.Level) < levelRank(f.MinLevel) {
		return false
	}
	if f.Stage != "" && !strings.EqualFold(e.Stage, f.Stage) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(e.Component, f.Component) {
		return false
	}
	if f.EventType != "" && !strings.EqualFold(e.EventType, f.EventType) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Raw), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0
	case "", "info":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}

func stringField(record map[string]any, key string) string {
	if v, ok := record[key]; ok {
		return valueString(v)
	}
	return ""
}

func valueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64, bool:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
