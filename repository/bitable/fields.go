package bitable

import (
	"strconv"
	"strings"
	"time"
)

// Spreadsheet cells come back loosely typed: plain strings, numbers, option
// lists, or rich-text fragments ({"text": ...}). These helpers normalize them
// before anything downstream touches the values.

func fieldString(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return strings.TrimSpace(text)
		}
	case []any:
		var parts []string
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
					continue
				}
			}
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.TrimSpace(strings.Join(parts, ""))
	}
	return ""
}

func fieldStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case map[string]any:
				if text, ok := s["text"].(string); ok {
					out = append(out, text)
				}
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return nil
}

func fieldFloat(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}
	return 0
}

func fieldInt(fields map[string]any, key string) int {
	return int(fieldFloat(fields, key))
}

func fieldTime(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case float64:
		// date cells arrive as unix milliseconds
		return time.UnixMilli(int64(v))
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
