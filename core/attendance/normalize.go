package attendance

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// maxCount rejects absurd class counts coming out of OCR noise.
const maxCount = 1e9

// Normalize coerces a raw payload of unknown shape into canonical records of the given kind.
// It never fails: malformed parts are skipped and reported in the batch diagnostics.
func Normalize(raw json.RawMessage, kind Kind, policy Policy) Batch {
	n := normalizer{kind: kind, policy: policy, seen: make(map[string]bool)}
	n.batch.Kind = kind
	n.walk(raw, 0, true)
	return n.batch
}

func NormalizeAttendance(raw json.RawMessage, policy Policy) Batch {
	return Normalize(raw, KindAttendance, policy)
}

func NormalizeTimetable(raw json.RawMessage, policy Policy) Batch {
	return Normalize(raw, KindTimetable, policy)
}

// NormalizeValue is Normalize for values that were already decoded, e.g. by a JSON binder.
func NormalizeValue(v interface{}, kind Kind, policy Policy) Batch {
	if raw, ok := v.(json.RawMessage); ok {
		return Normalize(raw, kind, policy)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		b := Batch{Kind: kind}
		b.Diagnostics.MalformedPayload = true
		b.Diagnostics.warn(fmt.Sprintf("unencodable payload: %v", err))
		return b
	}
	return Normalize(raw, kind, policy)
}

type normalizer struct {
	kind   Kind
	policy Policy
	batch  Batch
	seen   map[string]bool
}

// walk dispatches on the payload shape. top is true for the payload itself (not an element):
// a bad top-level payload marks the batch malformed, a bad element is only skipped.
func (n *normalizer) walk(raw json.RawMessage, depth int, top bool) {
	d := &n.batch.Diagnostics
	if depth > maxPayloadDepth {
		d.Skipped++
		d.warn("payload nested too deeply")
		return
	}

	p := decodePayload(raw)
	switch p.kind {
	case payloadAbsent:
		if !top {
			d.Skipped++
		}
	case payloadString:
		s := strings.TrimSpace(p.str)
		if s == "" {
			if !top {
				d.Skipped++
			}
			return
		}
		if decodePayload(json.RawMessage(s)).kind == payloadInvalid {
			if top {
				d.MalformedPayload = true
				d.warn("payload string is not valid JSON")
			} else {
				d.Skipped++
			}
			return
		}
		n.walk(json.RawMessage(s), depth+1, top)
	case payloadArray:
		for _, elem := range p.arr {
			n.walk(elem, depth+1, false)
		}
	case payloadObject:
		n.object(p.obj, depth)
	default:
		if top {
			d.MalformedPayload = true
			d.warn(fmt.Sprintf("unsupported payload shape: %s", p.kind))
		} else {
			d.Skipped++
		}
	}
}

func (n *normalizer) object(obj map[string]json.RawMessage, depth int) {
	d := &n.batch.Diagnostics
	f, collisions := indexFields(obj)
	if collisions > 0 {
		d.warn(fmt.Sprintf("%d ambiguous keys ignored", collisions))
	}

	// a wrapper around a collection, even when it also carries a label such as "name"
	if raw, found := f.collection(); found {
		n.walk(raw, depth+1, false)
		return
	}

	var ok bool
	if n.kind == KindTimetable {
		ok = n.entry(f)
	} else {
		ok = n.record(f)
	}
	if ok {
		return
	}

	// not a record itself; maybe a wrapper around a single item
	if raw, _, found := f.lookup(collectionKeys); found {
		switch decodePayload(raw).kind {
		case payloadArray, payloadString, payloadObject:
			n.walk(raw, depth+1, false)
			return
		}
	}
	d.Skipped++
}

func (n *normalizer) record(f fields) bool {
	code := f.text(courseCodeAliases)
	if code == "" {
		return false
	}
	key := strings.ToLower(code)
	if n.seen[key] {
		n.batch.Diagnostics.Duplicates++
		return true
	}
	n.seen[key] = true

	rec := Record{
		CourseCode:         code,
		CourseName:         f.text(courseNameAliases),
		TotalClasses:       n.count(f, totalClassesAliases, code, "total"),
		AttendedClasses:    n.count(f, attendedClassesAliases, code, "attended"),
		MinRequiredPercent: n.policy.minPercent(),
	}
	// a name that only stood in for the code is not a separate label
	if rec.CourseName == rec.CourseCode {
		rec.CourseName = ""
		if _, alias, found := f.lookup(courseNameAliases); found && alias == "coursename" {
			rec.CourseName = code
		}
	}
	if minPct, ok := f.number(minPercentAliases); ok {
		rec.MinRequiredPercent = minPct
	}
	if pct, ok := f.number(percentAliases); ok {
		rec.Percent = pct
	} else if rec.TotalClasses > 0 {
		rec.Percent = float64(rec.AttendedClasses) / float64(rec.TotalClasses) * 100
	}

	n.batch.Records = append(n.batch.Records, rec)
	return true
}

func (n *normalizer) count(f fields, aliases []string, code, name string) int {
	v, ok := f.number(aliases)
	if !ok {
		return 0
	}
	if math.Abs(v) > maxCount {
		n.batch.Diagnostics.warn(fmt.Sprintf("%s: %s count out of range", code, name))
		return 0
	}
	return int(v) // truncates toward zero
}

func (n *normalizer) entry(f fields) bool {
	subject := f.text(subjectAliases)
	if subject == "" {
		return false
	}
	n.batch.Entries = append(n.batch.Entries, Entry{
		Subject: subject,
		Day:     f.text(dayAliases),
		Time:    f.text(timeAliases),
	})
	return true
}
