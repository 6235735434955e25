// Package advisory assembles the bounded context the advice model answers from.
package advisory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

const (
	// NoData marks an empty section. Sections are never left blank.
	NoData = "(no data)"

	truncatedMarker = "... (truncated)"
	dateLayout      = "2006-01-02"
)

type Limits struct {
	MaxAttendanceChars int
	MaxTimetableChars  int
	MaxQueryChars      int
}

func DefaultLimits() Limits {
	return Limits{MaxAttendanceChars: 4000, MaxTimetableChars: 2000, MaxQueryChars: 1000}
}

func LimitsFromConfig(conf core.PolicyConfig) Limits {
	l := DefaultLimits()
	if conf.MaxAttendanceChars > 0 {
		l.MaxAttendanceChars = conf.MaxAttendanceChars
	}
	if conf.MaxTimetableChars > 0 {
		l.MaxTimetableChars = conf.MaxTimetableChars
	}
	if conf.MaxQueryChars > 0 {
		l.MaxQueryChars = conf.MaxQueryChars
	}
	return l
}

// Notes is free-form timetable information kept next to the structured entries.
type Notes struct {
	TimetableText string
	ExamStartDate *time.Time
}

// Unmatched is a timetable subject that matched no course, with the closest course code.
type Unmatched struct {
	Subject string  `json:"subject"`
	Nearest string  `json:"nearest,omitempty"`
	Ratio   float64 `json:"ratio,omitempty"`
}

// Context is built per chat turn and discarded after the advice call.
type Context struct {
	TimetableSummary   string `json:"timetable_summary"`
	AttendanceSummary  string `json:"attendance_summary"`
	ComputedFigures    string `json:"computed_figures"`
	PolicyInstructions string `json:"policy_instructions"`
	UserQuery          string `json:"user_query"`

	// Unmatched is for logs only; it never reaches the model.
	Unmatched []Unmatched `json:"unmatched,omitempty"`
}

// Render serializes the context into the single text block sent to the advice model.
func (c Context) Render() string {
	var b strings.Builder
	b.WriteString(c.PolicyInstructions)
	b.WriteString("\n\nAttendance:\n")
	b.WriteString(c.AttendanceSummary)
	b.WriteString("\n\nComputed figures:\n")
	b.WriteString(c.ComputedFigures)
	b.WriteString("\n\nTimetable:\n")
	b.WriteString(c.TimetableSummary)
	b.WriteString("\n\nUser message: ")
	b.WriteString(c.UserQuery)
	b.WriteString("\n")
	return b.String()
}

type Builder struct {
	Policy attendance.Policy
	Limits Limits
}

func NewBuilder(policy attendance.Policy, limits Limits) Builder {
	return Builder{Policy: policy, Limits: limits}
}

// Build is deterministic: the same records, entries, query and notes give the same context.
func (bld Builder) Build(records []attendance.Record, timetable []attendance.Entry, userQuery string, notes ...Notes) Context {
	var n Notes
	if len(notes) > 0 {
		n = notes[0]
	}

	tt, unmatched := bld.timetableSummary(records, timetable, n)
	return Context{
		TimetableSummary:   tt,
		AttendanceSummary:  bld.attendanceSummary(records),
		ComputedFigures:    bld.computedFigures(records),
		PolicyInstructions: PolicyInstructions(bld.Policy),
		UserQuery:          core.Truncate(strings.TrimSpace(userQuery), bld.Limits.MaxQueryChars),
		Unmatched:          unmatched,
	}
}

// AttendanceLine is the canonical "code: attended/total (percent%)" line.
func AttendanceLine(rec attendance.Record) string {
	pct := attendance.Round2(attendance.Percent(rec.AttendedClasses, rec.TotalClasses))
	return fmt.Sprintf("%s: %d/%d (%.2f%%)", rec.CourseCode, rec.AttendedClasses, rec.TotalClasses, pct)
}

func (bld Builder) attendanceSummary(records []attendance.Record) string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, AttendanceLine(rec))
	}
	return boundLines(lines, bld.Limits.MaxAttendanceChars)
}

func (bld Builder) computedFigures(records []attendance.Record) string {
	lines := make([]string, 0, len(records)+1)
	for _, rec := range records {
		proj, err := attendance.Project(rec, bld.Policy)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s: invalid record (%v)", rec.CourseCode, err))
			continue
		}
		lines = append(lines, figureLine(proj))
	}
	if valid := attendance.ValidRecords(records); len(valid) > 0 {
		sum := attendance.Aggregate(valid)
		line := fmt.Sprintf("overall: %.2f%% across %d subjects", sum.OverallPercent, sum.Subjects)
		if sum.MinSubject != nil {
			line += fmt.Sprintf("; lowest: %s (%.2f%%)", sum.MinSubject.Name, sum.MinSubject.Percent)
		}
		lines = append(lines, line)
	}
	return boundLines(lines, bld.Limits.MaxAttendanceChars)
}

func figureLine(p attendance.Projection) string {
	head := fmt.Sprintf("%s: min %s%%", p.CourseCode, formatPercent(p.MinRequiredPercent))
	switch {
	case p.TotalClasses == 0 && p.IsEligible:
		return head + ", no classes held yet, counted as eligible"
	case p.TotalClasses == 0:
		return head + ", no classes held yet, not eligible"
	case p.IsEligible:
		return fmt.Sprintf("%s, eligible, bunkable %d", head, p.Bunkable)
	case p.Unreachable:
		return head + ", not eligible, the minimum can no longer be reached"
	default:
		return fmt.Sprintf("%s, not eligible, need_to_attend %d", head, p.NeedToAttend)
	}
}

func (bld Builder) timetableSummary(records []attendance.Record, timetable []attendance.Entry, n Notes) (string, []Unmatched) {
	courses := make(map[string]string, 2*len(records))
	for _, rec := range records {
		if key := core.CleanString(rec.CourseCode, true); key != "" {
			if _, ok := courses[key]; !ok {
				courses[key] = rec.CourseCode
			}
		}
		if key := core.CleanString(rec.CourseName, true); key != "" {
			if _, ok := courses[key]; !ok {
				courses[key] = rec.CourseCode
			}
		}
	}

	var (
		lines     []string
		unmatched []Unmatched
		seen      = make(map[string]bool)
	)
	for _, e := range timetable {
		key := core.CleanString(e.Subject, true)
		code, ok := courses[key]
		if !ok {
			if !seen[key] {
				seen[key] = true
				unmatched = append(unmatched, nearestCourse(e.Subject, records))
			}
			continue
		}
		lines = append(lines, entryLine(code, e))
	}

	if n.ExamStartDate != nil {
		lines = append(lines, "exams start: "+n.ExamStartDate.Format(dateLayout))
	}
	if text := strings.TrimSpace(n.TimetableText); text != "" {
		lines = append(lines, "notes:")
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return boundLines(lines, bld.Limits.MaxTimetableChars), unmatched
}

func entryLine(code string, e attendance.Entry) string {
	when := strings.TrimSpace(strings.Join(nonEmpty(e.Day, e.Time), " "))
	if when == "" {
		return code + ": schedule not given"
	}
	return code + ": " + when
}

// nearestCourse suggests the course a mistyped subject most likely meant.
func nearestCourse(subject string, records []attendance.Record) Unmatched {
	um := Unmatched{Subject: subject}
	a := strings.Split(core.CleanString(subject, true), "")
	var best float64
	for _, rec := range records {
		b := strings.Split(core.CleanString(rec.CourseCode, true), "")
		if ratio := difflib.NewMatcher(a, b).Ratio(); ratio > best {
			best = ratio
			um.Nearest = rec.CourseCode
		}
	}
	um.Ratio = attendance.Round2(best)
	return um
}

// boundLines joins lines, cutting at a line boundary so the result fits in limit bytes.
func boundLines(lines []string, limit int) string {
	if len(lines) == 0 {
		return NoData
	}
	text := strings.Join(lines, "\n")
	if limit <= 0 || len(text) <= limit {
		return text
	}

	budget := limit - len(truncatedMarker) - 1
	if budget <= 0 {
		return core.Truncate(text, limit)
	}
	var b strings.Builder
	for _, line := range lines {
		if b.Len()+len(line)+1 > budget {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		// a single oversized line
		return core.Truncate(lines[0], budget) + "\n" + truncatedMarker
	}
	return b.String() + truncatedMarker
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
