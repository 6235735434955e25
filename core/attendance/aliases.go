package attendance

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Alias lists are in priority order; the first key present wins.
// Entries are canonical keys (see canonicalKey), the first one is the serialized name.
var (
	courseCodeAliases = []string{
		"coursecode", "code", "subjectcode", "subject", "course", "coursename", "name",
	}
	courseNameAliases = []string{
		"coursename", "subjectname", "title", "name",
	}
	totalClassesAliases = []string{
		"totalclasses", "total", "conductedclasses", "conducted", "classesconducted",
		"totallectures", "delivered", "held",
	}
	attendedClassesAliases = []string{
		"attendedclasses", "attended", "present", "classesattended", "presentclasses",
		"attendedlectures",
	}
	percentAliases = []string{
		"percent", "percentage", "attendancepercent", "attendancepercentage", "attendance",
	}
	minPercentAliases = []string{
		"minrequiredpercent", "minpercent", "requiredpercent", "minimumpercent", "threshold",
		"minrequired",
	}

	subjectAliases = []string{
		"subject", "subjectname", "course", "coursecode", "coursename", "code", "name", "title",
	}
	dayAliases = []string{
		"day", "weekday", "dayofweek", "date",
	}
	timeAliases = []string{
		"time", "timing", "timings", "timeslot", "slot", "period", "starttime",
	}

	// collectionKeys unwrap {"records": [...]} style envelopes.
	collectionKeys = []string{
		"records", "attendance", "subjects", "timetable", "entries", "data", "items",
	}
)

var keyFolder = cases.Fold()

// canonicalKey folds case and width and drops everything but letters and digits,
// so "Percentage %", "percentage" and "PERCENTAGE" resolve to the same alias.
func canonicalKey(key string) string {
	key = keyFolder.String(norm.NFKC.String(key))
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fields is an object indexed by canonical key.
type fields map[string]json.RawMessage

// indexFields canonicalizes the keys of obj. When raw keys collide, the raw key that sorts
// first wins, so the outcome does not depend on map iteration order.
func indexFields(obj map[string]json.RawMessage) (fields, int) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var collisions int
	idx := make(fields, len(obj))
	for _, k := range keys {
		ck := canonicalKey(k)
		if ck == "" {
			continue
		}
		if _, ok := idx[ck]; ok {
			collisions++
			continue
		}
		idx[ck] = obj[k]
	}
	return idx, collisions
}

// lookup returns the raw value of the first alias present and not null.
func (f fields) lookup(aliases []string) (json.RawMessage, string, bool) {
	for _, alias := range aliases {
		if raw, ok := f[alias]; ok && decodePayload(raw).kind != payloadAbsent {
			return raw, alias, true
		}
	}
	return nil, "", false
}

// collection returns the first collection key holding an array, plain or string encoded.
func (f fields) collection() (json.RawMessage, bool) {
	for _, key := range collectionKeys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		p := decodePayload(raw)
		switch {
		case p.kind == payloadArray:
			return raw, true
		case p.kind == payloadString && decodePayload(json.RawMessage(strings.TrimSpace(p.str))).kind == payloadArray:
			return raw, true
		}
	}
	return nil, false
}

func (f fields) text(aliases []string, skip ...string) string {
	for _, alias := range aliases {
		if contains(skip, alias) {
			continue
		}
		if raw, ok := f[alias]; ok {
			if s, ok := decodeText(raw); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func (f fields) number(aliases []string) (float64, bool) {
	for _, alias := range aliases {
		if raw, ok := f[alias]; ok {
			if n, ok := decodeNumber(raw); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
