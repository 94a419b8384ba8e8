package repo

import (
	"encoding/json"
	"fmt"
)

// jsonArg renders v as a string parameter; lib/pq sends []byte as bytea,
// which jsonb columns reject.
func jsonArg(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case json.RawMessage:
		if len(t) == 0 {
			return "null", nil
		}
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func rawArg(m json.RawMessage, fallback string) string {
	if len(m) == 0 {
		return fallback
	}
	return string(m)
}

func decodeStrings(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return out, nil
}
