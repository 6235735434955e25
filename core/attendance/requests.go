package attendance

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/attendr/core"
)

const dateLayout = "2006-01-02"

type (
	// UploadImage is a screenshot to run through extraction. Kind comes from the route.
	UploadImage struct {
		ClientID      string `json:"client_id" validate:"required,notblank"`
		Kind          Kind   `json:"-" validate:"kind"`
		ImageBase64   string `json:"image_base64" validate:"required,base64"`
		MimeType      string `json:"mime_type" validate:"omitempty,oneof=image/png image/jpeg image/webp image/heic"`
		ExamStartDate string `json:"exam_start_date" validate:"omitempty,datetime=2006-01-02"`
	}

	// SubmitRecords is a record set entered by hand, in any payload shape.
	SubmitRecords struct {
		ClientID string          `json:"client_id" validate:"required,notblank"`
		Kind     Kind            `json:"kind" validate:"kind"`
		Records  json.RawMessage `json:"records" validate:"required"`
	}

	ProjectRequest struct {
		Records            json.RawMessage `json:"records" validate:"required"`
		MinRequiredPercent *float64        `json:"min_required_percent" validate:"omitempty,minpercent"`
	}
)

func (ui *UploadImage) Validate(validate *validator.Validate) error {
	ui.MimeType = core.CleanString(ui.MimeType, true /* lower */)
	ui.ExamStartDate = core.CleanString(ui.ExamStartDate)
	return validate.Struct(ui)
}

func (ui UploadImage) examStart() *time.Time {
	if ui.ExamStartDate == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ui.ExamStartDate)
	if err != nil {
		return nil
	}
	return &t
}

func (sr *SubmitRecords) Validate(validate *validator.Validate) error {
	if sr.Kind == "" {
		sr.Kind = KindAttendance
	}
	return validate.Struct(sr)
}

func (pr *ProjectRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(pr)
}
