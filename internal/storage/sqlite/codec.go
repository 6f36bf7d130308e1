package sqlite

import (
	"encoding/json"
	"fmt"
	"time"
)

// encodeJSON marshals v into the TEXT column representation.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(b), nil
}

// decodeJSON unmarshals a TEXT column into target. Empty columns decode to
// the zero value.
func decodeJSON(column string, target any) error {
	if column == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(column), target); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}
	return nil
}

// timeToNanos converts a time to its column representation. The zero time
// maps to 0 because year-1 timestamps overflow UnixNano.
func timeToNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
