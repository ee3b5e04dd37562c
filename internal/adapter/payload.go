package adapter

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Payload is a provider payload decoded into a generic nested structure.
// JSON bodies map directly; form-urlencoded bodies with PHP-style bracket
// keys (order[fields][phone]) are expanded into the same nested shape.
type Payload map[string]any

// ParsePayload decodes a webhook body according to its content type.
func ParsePayload(contentType string, body []byte) (Payload, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return Payload{}, nil
	}

	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	if mediaType == "application/json" || strings.HasPrefix(trimmed, "{") {
		var payload Payload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode json payload: %w", err)
		}
		return payload, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode form payload: %w", err)
	}
	return expandForm(values), nil
}

// expandForm turns bracket-notation form keys into nested maps, keeping the
// last value for repeated keys the way PHP does.
func expandForm(values url.Values) Payload {
	payload := Payload{}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[len(vals)-1]
		setPath(payload, splitBracketKey(key), value)
	}
	return payload
}

func splitBracketKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return []string{key}
	}
	parts := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			break
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			parts = append(parts, strings.TrimPrefix(rest, "["))
			break
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func setPath(node map[string]any, path []string, value string) {
	for i, part := range path {
		if i == len(path)-1 {
			node[part] = value
			return
		}
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
}

// String walks the payload along the given path and returns a trimmed string
// value, or "" when the path is absent or not scalar.
func (p Payload) String(path ...string) string {
	value, ok := p.lookup(path)
	if !ok {
		return ""
	}
	return stringify(value)
}

// Slice walks the payload and returns the value as a slice, or nil.
func (p Payload) Slice(path ...string) []any {
	value, ok := p.lookup(path)
	if !ok {
		return nil
	}
	items, _ := value.([]any)
	return items
}

// Bool reports whether the value at path is truthy: true, "true", "1" or 1.
func (p Payload) Bool(path ...string) bool {
	value, ok := p.lookup(path)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case float64:
		return v != 0
	default:
		return false
	}
}

func (p Payload) lookup(path []string) (any, bool) {
	var current any = map[string]any(p)
	for _, part := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// firstString returns the first non-empty string among the given paths,
// preserving the historical shape fallback order of each provider.
func firstString(p Payload, paths ...[]string) string {
	for _, path := range paths {
		if value := p.String(path...); value != "" {
			return value
		}
	}
	return ""
}
