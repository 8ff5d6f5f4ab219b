package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tracegate/internal/canon"
)

// marshalCanonical converts v to canonical JSON TEXT for storage so identical
// values always produce identical column contents.
func marshalCanonical(v any) (string, error) {
	data, err := canon.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalText parses a JSON TEXT column into v.
func unmarshalText(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
