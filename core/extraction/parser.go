// Package extraction splits a vision model reply into structured JSON and a readable explanation.
package extraction

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	JSONMarker        = "###JSON###"
	ExplanationMarker = "###EXPLANATION###"

	// NoExtraction is the explanation of a failed parse. It is not content.
	NoExtraction = "Could not extract data from the response."

	maxDepth = 3
)

// Path groups reported in Diagnostics.Path.
const (
	PathNone      = 0
	PathCandidate = 1 // candidates[0].content.parts[0].text
	PathNested    = 2 // content arrays: candidates[0].content[0].parts[0].text, content[0].parts[0].text
	PathTopLevel  = 3 // output, text
	PathPlain     = 4 // the reply itself, no envelope
)

var (
	emptyObject = json.RawMessage("{}")

	envelopePaths = []struct {
		group int
		path  string
	}{
		{PathCandidate, "candidates.0.content.parts.0.text"},
		{PathNested, "candidates.0.content.0.parts.0.text"},
		{PathNested, "content.0.parts.0.text"},
		{PathTopLevel, "output"},
		{PathTopLevel, "text"},
	}

	// keys that mark an object as a response envelope rather than model data
	envelopeKeys = []string{"candidates", "content", "output", "text", "error", "promptFeedback"}

	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
)

type Diagnostics struct {
	Path      int    `json:"path"`
	Markers   bool   `json:"markers"`
	JSONError string `json:"json_error,omitempty"`
}

type Result struct {
	Structured  json.RawMessage `json:"structured"`
	Explanation string          `json:"explanation"`
	// Failed is set when nothing could be extracted; Explanation is then NoExtraction.
	Failed      bool        `json:"failed"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Failure is the result callers substitute when the model call itself failed.
func Failure() Result {
	return Result{Structured: emptyObject, Explanation: NoExtraction, Failed: true}
}

// Parse extracts the structured section and the explanation from a model reply.
// It has no side effects and never fails; see Result.Failed.
func Parse(text string) Result {
	return parse(text, 0)
}

func parse(text string, depth int) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Failure()
	}

	if strings.Contains(text, JSONMarker) && strings.Contains(text, ExplanationMarker) {
		return splitMarkers(text)
	}

	if text[0] == '{' && gjson.Valid(text) && isEnvelope(text) {
		if depth >= maxDepth {
			return Failure()
		}
		for _, p := range envelopePaths {
			r := gjson.Get(text, p.path)
			if r.Type != gjson.String || strings.TrimSpace(r.Str) == "" {
				continue
			}
			res := parse(r.Str, depth+1)
			res.Diagnostics.Path = p.group
			return res
		}
		return Failure()
	}

	return plain(text)
}

func isEnvelope(text string) bool {
	for _, key := range envelopeKeys {
		if gjson.Get(text, key).Exists() {
			return true
		}
	}
	return false
}

// splitMarkers handles "###JSON### {...} ###EXPLANATION### text", in either order.
func splitMarkers(text string) Result {
	res := Result{Diagnostics: Diagnostics{Path: PathPlain, Markers: true}}

	ji := strings.Index(text, JSONMarker)
	ei := strings.Index(text, ExplanationMarker)
	var section string
	if ji < ei {
		section = text[ji+len(JSONMarker) : ei]
		res.Explanation = strings.TrimSpace(text[ei+len(ExplanationMarker):])
	} else {
		res.Explanation = strings.TrimSpace(text[ei+len(ExplanationMarker) : ji])
		section = text[ji+len(JSONMarker):]
	}

	structured, err := decodeSection(section)
	if err != "" {
		res.Structured = emptyObject
		res.Diagnostics.JSONError = err
		return res
	}
	res.Structured = structured
	return res
}

// plain handles a reply without markers or envelope: bare JSON, fenced JSON, or prose.
func plain(text string) Result {
	res := Result{Diagnostics: Diagnostics{Path: PathPlain}}

	stripped := stripFences(text)
	if json.Valid([]byte(stripped)) && isContainer(stripped) {
		res.Structured = compact(stripped)
		return res
	}

	res.Explanation = text
	if raw, ok := firstJSONValue(text); ok {
		res.Structured = raw
	} else {
		res.Structured = emptyObject
	}
	return res
}

// decodeSection returns the JSON value of a marker section, or an error message.
func decodeSection(section string) (json.RawMessage, string) {
	section = stripFences(section)
	if section == "" {
		return nil, "empty JSON section"
	}
	if json.Valid([]byte(section)) {
		return compact(section), ""
	}
	if repaired := trailingCommaRegex.ReplaceAllString(section, "$1"); json.Valid([]byte(repaired)) {
		return compact(repaired), ""
	}
	if raw, ok := firstJSONValue(section); ok {
		return raw, ""
	}
	return nil, "invalid JSON section"
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstJSONValue decodes the first object or array embedded in free text.
func firstJSONValue(s string) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil && isContainer(string(raw)) {
			return compact(string(raw)), true
		}
	}
	return nil, false
}

func isContainer(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && (s[0] == '{' || s[0] == '[')
}

func compact(s string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return json.RawMessage(s)
	}
	return buf.Bytes()
}
