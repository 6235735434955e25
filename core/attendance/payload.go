package attendance

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxPayloadDepth bounds string-encoded JSON nesting ("[...]" inside a string inside a string).
const maxPayloadDepth = 4

type payloadKind int

const (
	payloadAbsent payloadKind = iota
	payloadString
	payloadArray
	payloadObject
	payloadScalar
	payloadInvalid
)

func (k payloadKind) String() string {
	switch k {
	case payloadAbsent:
		return "absent"
	case payloadString:
		return "string"
	case payloadArray:
		return "array"
	case payloadObject:
		return "object"
	case payloadScalar:
		return "scalar"
	default:
		return "invalid"
	}
}

// payload is the decoded top-level shape of a raw value. Only the field for its kind is set.
type payload struct {
	kind payloadKind
	str  string
	arr  []json.RawMessage
	obj  map[string]json.RawMessage
}

// decodePayload discriminates on the first significant byte, then decodes only that shape.
func decodePayload(raw json.RawMessage) payload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return payload{kind: payloadAbsent}
	}

	switch raw[0] {
	case 'n':
		if string(raw) == "null" {
			return payload{kind: payloadAbsent}
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return payload{kind: payloadString, str: s}
		}
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil {
			return payload{kind: payloadArray, arr: arr}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err == nil {
			return payload{kind: payloadObject, obj: obj}
		}
	default:
		if json.Valid(raw) {
			return payload{kind: payloadScalar}
		}
	}
	return payload{kind: payloadInvalid}
}

// decodeNumber accepts a JSON number or a numeric string such as " 88.24% ".
func decodeNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return parseNumber(s)
	case 'n', 't', 'f', '[', '{':
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func parseNumber(s string) (float64, bool) {
	s = trimNumber(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func trimNumber(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	return strings.TrimSpace(s)
}

// decodeText accepts a JSON string, or a number rendered as text (course codes like 101).
func decodeText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n', 't', 'f', '[', '{':
		return "", false
	}
	if !json.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

func formatUnixNano(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
