package logs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Record is one decoded JSON log line.
type Record struct {
	Time      string
	Level     string
	Message   string
	Component string
	Course    string
	Fields    map[string]any
}

// Parse decodes a JSON log line. It reports false for lines that are not
// JSON objects.
func Parse(line string) (Record, bool) {
	decoder := json.NewDecoder(strings.NewReader(line))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil || fields == nil {
		return Record{}, false
	}
	rec := Record{
		Time:      takeString(fields, "ts"),
		Level:     takeString(fields, "level"),
		Message:   takeString(fields, "msg"),
		Component: takeString(fields, "component"),
		Course:    takeString(fields, "course"),
		Fields:    fields,
	}
	return rec, true
}

// AtLeast reports whether rec is at or above level. Unknown levels pass.
func (rec Record) AtLeast(level string) bool {
	want, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return true
	}
	have, ok := levelRank[rec.Level]
	return !ok || have >= want
}

// Render formats a JSON log line for the terminal; other lines are returned
// unchanged.
func Render(line string) string {
	rec, ok := Parse(line)
	if !ok {
		return line
	}
	return rec.String()
}

func (rec Record) String() string {
	var b strings.Builder
	if rec.Time != "" {
		b.WriteString(rec.Time)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s ", strings.ToUpper(rec.Level))
	switch {
	case rec.Component != "" && rec.Course != "":
		fmt.Fprintf(&b, "%s [%s]: ", rec.Component, rec.Course)
	case rec.Component != "":
		b.WriteString(rec.Component + ": ")
	case rec.Course != "":
		fmt.Fprintf(&b, "[%s]: ", rec.Course)
	}
	b.WriteString(rec.Message)

	keys := make([]string, 0, len(rec.Fields))
	for key := range rec.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, formatField(rec.Fields[key]))
	}
	return b.String()
}

func takeString(fields map[string]any, key string) string {
	value, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func formatField(value any) string {
	switch v := value.(type) {
	case string:
		if v == "" || strings.ContainsAny(v, " \t\"=") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case json.Number:
		return v.String()
	case map[string]any, []any:
		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSpace(buf.String())
	default:
		return fmt.Sprint(v)
	}
}
