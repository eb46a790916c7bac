package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/launchpad/internal/campaign"
	"github.com/roach88/launchpad/internal/canon"
)

// timeLayout keeps nanoseconds so replay reproduces the exact instant.
const timeLayout = time.RFC3339Nano

// marshalObject converts a generic object to canonical JSON TEXT.
func marshalObject(field string, obj map[string]any) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := canon.Canonicalize(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT, keeping numbers as
// json.Number so integers above 2^53 survive.
func unmarshalObject(field, data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	n, err := canon.Normalize(json.RawMessage(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	obj, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal %s: not an object", field)
	}
	return obj, nil
}

func marshalMovements(moves []campaign.Movement) (string, error) {
	if len(moves) == 0 {
		return "[]", nil
	}
	data, err := canon.Canonicalize(moves)
	if err != nil {
		return "", fmt.Errorf("marshal movements: %w", err)
	}
	return string(data), nil
}

func unmarshalMovements(data string) ([]campaign.Movement, error) {
	moves := []campaign.Movement{}
	if data == "" || data == "[]" {
		return moves, nil
	}
	if err := json.Unmarshal([]byte(data), &moves); err != nil {
		return nil, fmt.Errorf("unmarshal movements: %w", err)
	}
	return moves, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
