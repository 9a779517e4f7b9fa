package ai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoJSON is returned when a reply holds no balanced JSON object.
var ErrNoJSON = errors.New("ai: no json object in reply")

// ExtractJSONObject returns the first balanced {...} substring of text. Braces inside
// string literals are ignored so surrounding prose and embedded quotes are tolerated.
func ExtractJSONObject(text string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}

// DecodeReply extracts the first JSON object from reply and unmarshals it into v.
func DecodeReply(reply string, v any) error {
	obj, err := ExtractJSONObject(reply)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("ai: decode reply: %w", err)
	}
	return nil
}
