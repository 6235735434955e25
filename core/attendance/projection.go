package attendance

import (
	"fmt"
	"math"

	"github.com/trezcool/attendr/core"
)

// PolicyViolation is returned by Project when a record breaks an attendance invariant.
type PolicyViolation struct {
	CourseCode string `json:"course_code"`
	Field      string `json:"field"`
	Reason     string `json:"reason"`
}

func (v *PolicyViolation) Error() string {
	if v.CourseCode == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", v.CourseCode, v.Field, v.Reason)
}

// ValidationError converts the violation for presentation layers.
func (v *PolicyViolation) ValidationError() error {
	return core.NewValidationError(v, core.FieldError{Field: v.Field, Error: v.Reason})
}

// Projection is the computed standing of one subject.
type Projection struct {
	CourseCode         string  `json:"course_code"`
	CourseName         string  `json:"course_name,omitempty"`
	TotalClasses       int     `json:"total_classes"`
	AttendedClasses    int     `json:"attended_classes"`
	MinRequiredPercent float64 `json:"min_required_percent"`
	Percent            float64 `json:"percent"` // 2 dp, display only
	IsEligible         bool    `json:"is_eligible"`
	Bunkable           int     `json:"bunkable"`
	NeedToAttend       int     `json:"need_to_attend"`
	// Unreachable is set when a 100% requirement is already missed, or when reaching the
	// minimum would take more than maxCount classes.
	Unreachable bool `json:"unreachable,omitempty"`
}

type SubjectPercent struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// Summary aggregates a record set. MinSubject is nil for an empty set.
type Summary struct {
	OverallPercent float64         `json:"overall_percent"`
	MinSubject     *SubjectPercent `json:"min_subject"`
	Subjects       int             `json:"subjects"`
}

// Round2 rounds for display. Never compare rounded values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent is attended/total as a percentage, 0 when no class was held.
func Percent(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(attended) / float64(total) * 100
}

// meets reports attended/total >= minPct/100 without dividing.
func meets(attended, total int, minPct float64) bool {
	return float64(attended)*100 >= minPct*float64(total)
}

// Validate checks the record invariants the calculator depends on.
func Validate(rec Record) error {
	m := rec.MinRequiredPercent
	switch {
	case math.IsNaN(m) || m <= 0 || m > 100:
		return &PolicyViolation{rec.CourseCode, "minRequiredPercent", "must be greater than 0 and at most 100"}
	case rec.TotalClasses < 0:
		return &PolicyViolation{rec.CourseCode, "totalClasses", "cannot be negative"}
	case rec.AttendedClasses < 0:
		return &PolicyViolation{rec.CourseCode, "attendedClasses", "cannot be negative"}
	case rec.AttendedClasses > rec.TotalClasses:
		return &PolicyViolation{rec.CourseCode, "attendedClasses", "cannot exceed totalClasses"}
	}
	return nil
}

// Project computes eligibility, bunkable and need-to-attend for one record.
func Project(rec Record, policy Policy) (Projection, error) {
	if err := Validate(rec); err != nil {
		return Projection{}, err
	}

	a, t, m := rec.AttendedClasses, rec.TotalClasses, rec.MinRequiredPercent
	proj := Projection{
		CourseCode:         rec.CourseCode,
		CourseName:         rec.CourseName,
		TotalClasses:       t,
		AttendedClasses:    a,
		MinRequiredPercent: m,
		Percent:            Round2(Percent(a, t)),
	}

	if t == 0 {
		proj.IsEligible = policy.ZeroClassesEligible
		return proj, nil
	}

	proj.IsEligible = meets(a, t, m)
	if proj.IsEligible {
		proj.Bunkable = bunkable(a, t, m)
		return proj, nil
	}

	if m >= 100 {
		proj.Unreachable = true
		return proj, nil
	}
	need, ok := needToAttend(a, t, m)
	if !ok {
		proj.Unreachable = true
		return proj, nil
	}
	proj.NeedToAttend = need
	return proj, nil
}

// bunkable is the largest x with a/(t+x) >= m%, capped at maxCount. The closed form is
// checked against meets so float rounding never yields an off-by-one.
func bunkable(a, t int, m float64) int {
	f := math.Floor(float64(a)*100/m) - float64(t)
	if f >= maxCount {
		return maxCount
	}
	x := int(f)
	if x < 0 {
		x = 0
	}
	if x > 0 && !meets(a, t+x, m) {
		x--
	}
	if meets(a, t+x+1, m) {
		x++
	}
	return x
}

// needToAttend is the smallest y with (a+y)/(t+y) >= m%, for m < 100.
// It reports false when more than maxCount classes would be needed.
func needToAttend(a, t int, m float64) (int, bool) {
	f := math.Ceil((m*float64(t) - 100*float64(a)) / (100 - m))
	if f > maxCount {
		return 0, false
	}
	y := int(f)
	if y < 0 {
		y = 0
	}
	if y > 0 && meets(a+y-1, t+y-1, m) {
		y--
	}
	if !meets(a+y, t+y, m) {
		y++
	}
	return y, true
}

// ProjectAll projects every valid record, in order, and returns the violations of the others.
func ProjectAll(records []Record, policy Policy) ([]Projection, []*PolicyViolation) {
	projs := make([]Projection, 0, len(records))
	var violations []*PolicyViolation
	for _, rec := range records {
		proj, err := Project(rec, policy)
		if err != nil {
			if v, ok := err.(*PolicyViolation); ok {
				violations = append(violations, v)
			}
			continue
		}
		projs = append(projs, proj)
	}
	return projs, violations
}

// ValidRecords drops the records Project would reject.
func ValidRecords(records []Record) []Record {
	valid := make([]Record, 0, len(records))
	for _, rec := range records {
		if Validate(rec) == nil {
			valid = append(valid, rec)
		}
	}
	return valid
}

// Aggregate pools all classes into one percentage and finds the weakest subject.
// Ties on the lowest percentage go to the first record.
func Aggregate(records []Record) Summary {
	var (
		sumA, sumT int
		weakest    *SubjectPercent
		minExact   float64
	)
	for _, rec := range records {
		sumA += rec.AttendedClasses
		sumT += rec.TotalClasses

		pct := Percent(rec.AttendedClasses, rec.TotalClasses)
		if weakest == nil || pct < minExact {
			weakest = &SubjectPercent{Name: rec.CourseCode, Percent: Round2(pct)}
			minExact = pct
		}
	}
	return Summary{
		OverallPercent: Round2(Percent(sumA, sumT)),
		MinSubject:     weakest,
		Subjects:       len(records),
	}
}
