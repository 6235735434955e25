package attendance

import "time"

// Status is the projected view of one attendance record set.
type Status struct {
	UploadID      string             `json:"upload_id,omitempty"`
	UploadedAt    *time.Time         `json:"uploaded_at,omitempty"`
	Projections   []Projection       `json:"projections"`
	Summary       Summary            `json:"summary"`
	EligibleCount int                `json:"eligible_count"`
	AtRiskCount   int                `json:"at_risk_count"`
	Violations    []*PolicyViolation `json:"violations,omitempty"`
	Diagnostics   Diagnostics        `json:"diagnostics"`
	// Degraded flags input that was partially unusable.
	Degraded bool `json:"degraded"`
}

// Evaluate projects a normalized batch. Invalid records are reported, not aggregated.
func Evaluate(batch Batch, policy Policy) Status {
	projs, violations := ProjectAll(batch.Records, policy)
	st := Status{
		Projections: projs,
		Summary:     Aggregate(ValidRecords(batch.Records)),
		Violations:  violations,
		Diagnostics: batch.Diagnostics,
	}
	for _, p := range projs {
		if p.IsEligible {
			st.EligibleCount++
		} else {
			st.AtRiskCount++
		}
	}
	d := batch.Diagnostics
	st.Degraded = d.MalformedPayload || d.Skipped > 0 || len(violations) > 0
	return st
}
