package attendance

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/attendr/core"
)

// Kind names an upload stream.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindTimetable  Kind = "timetable"
)

var Kinds = []Kind{KindAttendance, KindTimetable}

func (k Kind) Valid() bool {
	return k == KindAttendance || k == KindTimetable
}

// DefaultMinPercent is used when no policy is configured.
const DefaultMinPercent = 75.0

// Policy is threaded into every normalize and projection call.
type Policy struct {
	DefaultMinPercent   float64 `json:"default_min_percent" validate:"minpercent"`
	ZeroClassesEligible bool    `json:"zero_classes_eligible"`
}

func (p Policy) minPercent() float64 {
	if p.DefaultMinPercent == 0 {
		return DefaultMinPercent
	}
	return p.DefaultMinPercent
}

// Validate checks the configured default minimum.
func (p Policy) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

func DefaultPolicy() Policy {
	return Policy{DefaultMinPercent: DefaultMinPercent}
}

func PolicyFromConfig(conf core.PolicyConfig) Policy {
	p := Policy{
		DefaultMinPercent:   conf.DefaultMinPercent,
		ZeroClassesEligible: conf.ZeroClassesEligible,
	}
	if p.DefaultMinPercent == 0 {
		p.DefaultMinPercent = DefaultMinPercent
	}
	return p
}

// Record is a canonical attendance record.
// Its JSON keys are the primary aliases, so canonical output normalizes to itself.
type Record struct {
	CourseCode         string  `json:"courseCode"`
	CourseName         string  `json:"courseName,omitempty"`
	TotalClasses       int     `json:"totalClasses"`
	AttendedClasses    int     `json:"attendedClasses"`
	Percent            float64 `json:"percent"`
	MinRequiredPercent float64 `json:"minRequiredPercent"`
}

// Entry is a canonical timetable entry.
type Entry struct {
	Subject string `json:"subject"`
	Day     string `json:"day,omitempty"`
	Time    string `json:"time,omitempty"`
}

type Diagnostics struct {
	Skipped          int      `json:"skipped"`
	Duplicates       int      `json:"duplicates"`
	MalformedPayload bool     `json:"malformed_payload"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (d *Diagnostics) warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// Batch is the normalized content of one upload.
type Batch struct {
	Kind        Kind        `json:"kind"`
	Records     []Record    `json:"records,omitempty"`
	Entries     []Entry     `json:"entries,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Len returns the number of canonical items in the batch.
func (b Batch) Len() int {
	if b.Kind == KindTimetable {
		return len(b.Entries)
	}
	return len(b.Records)
}

// Canonical returns the JSON array of the batch items, suitable for storage.
func (b Batch) Canonical() json.RawMessage {
	var (
		data []byte
		err  error
	)
	if b.Kind == KindTimetable {
		entries := b.Entries
		if entries == nil {
			entries = []Entry{}
		}
		data, err = json.Marshal(entries)
	} else {
		records := b.Records
		if records == nil {
			records = []Record{}
		}
		data, err = json.Marshal(records)
	}
	if err != nil { // plain structs of strings and numbers
		return json.RawMessage("[]")
	}
	return data
}

// Upload is one stored ingestion for a client. Rows are never mutated; later uploads supersede.
type Upload struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	AnalyzedText  string          `json:"analyzed_text,omitempty"`
	ExamStartDate *time.Time      `json:"exam_start_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Version identifies the upload content for cache keys.
func (u Upload) Version() string {
	return u.ID + ":" + formatUnixNano(u.CreatedAt)
}
