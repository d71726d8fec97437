package bark

import (
	"encoding/json"
	"errors"
	"strings"
)

// Client construction failures.
var (
	ErrInvalidClientConfig = errors.New("invalid bark client config")
)

const unknownErrorMessage = "Unknown error"

// NormalizeError flattens the daemon's inconsistent error shapes into a
// single string. Errors arrive as bare strings, as {"message": ...}, as
// {"error": ...}, or as arbitrary nested objects; the last case falls
// back to compact JSON.
func NormalizeError(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var asString string
	if err := json.Unmarshal([]byte(trimmed), &asString); err == nil {
		return asString
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &asObject); err == nil {
		if message, ok := stringField(asObject, "message"); ok {
			return message
		}
		if message, ok := stringField(asObject, "error"); ok {
			return message
		}
	}

	compacted, err := compactJSON(trimmed)
	if err != nil {
		return unknownErrorMessage
	}
	return compacted
}

func compactJSON(raw string) (string, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", err
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
