package attendance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/extraction"
)

var (
	// errors
	ErrNotFound = errors.New("no upload found")

	// mockable
	nowFunc   = time.Now
	newIDFunc = func() string { return uuid.NewString() }
)

type (
	// Repository reads and appends uploads. Reads are always newest first.
	Repository interface {
		// LatestUpload returns the most recent upload of kind for the client, or ErrNotFound.
		LatestUpload(ctx context.Context, clientID string, kind Kind) (Upload, error)
		ListUploads(ctx context.Context, filter UploadFilter, orderings ...core.DBOrdering) ([]Upload, error)
		CreateUpload(ctx context.Context, upl Upload) (Upload, error)
	}

	// Cache stores normalized batches under versioned keys (see CacheKey).
	Cache interface {
		GetBatch(ctx context.Context, key string) (Batch, bool, error)
		SetBatch(ctx context.Context, key string, batch Batch) error
	}

	UploadFilter struct {
		ClientID string
		Kind     Kind
		Limit    int
	}

	Service struct {
		repo   Repository
		cache  Cache
		models core.ModelService
		logger core.Logger
		policy Policy
	}

	// Ingestion is the outcome of one upload attempt.
	Ingestion struct {
		Upload      *Upload                 `json:"upload,omitempty"`
		Batch       Batch                   `json:"batch"`
		Explanation string                  `json:"explanation"`
		Status      *Status                 `json:"status,omitempty"`
		Extraction  *extraction.Diagnostics `json:"extraction,omitempty"`
		// Degraded is set when nothing usable was extracted; nothing is stored then.
		Degraded bool `json:"degraded"`
	}
)

// CacheKey embeds the upload version so a newer upload never reads an older normalization.
func CacheKey(upl Upload) string {
	return fmt.Sprintf("attendr:v1:%s:%s:%s", upl.ClientID, upl.Kind, upl.Version())
}

func NewService(repo Repository, cache Cache, models core.ModelService, logger core.Logger, policy Policy) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(models, "models"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, cache: cache, models: models, logger: logger, policy: policy}
}

func (svc *Service) Policy() Policy {
	return svc.policy
}

// Latest returns the current upload of kind and its normalized batch.
func (svc *Service) Latest(ctx context.Context, clientID string, kind Kind) (Upload, Batch, error) {
	upl, err := svc.repo.LatestUpload(ctx, clientID, kind)
	if err != nil {
		return Upload{}, Batch{Kind: kind}, err
	}

	key := CacheKey(upl)
	batch, hit, err := svc.cache.GetBatch(ctx, key)
	if err != nil {
		svc.logger.Warn("reading normalized batch from cache", errors.Wrap(err, key), core.ClientID(clientID))
	}
	if hit {
		return upl, batch, nil
	}

	batch = Normalize(upl.Payload, kind, svc.policy)
	if batch.Diagnostics.MalformedPayload || batch.Diagnostics.Skipped > 0 {
		svc.logger.Warn(
			"degraded payload",
			map[string]interface{}{"upload_id": upl.ID, "kind": kind, "diagnostics": batch.Diagnostics},
			core.ClientID(clientID),
		)
	}
	if err := svc.cache.SetBatch(ctx, key, batch); err != nil {
		svc.logger.Warn("writing normalized batch to cache", errors.Wrap(err, key), core.ClientID(clientID))
	}
	return upl, batch, nil
}

// Status projects the client's latest attendance upload. No upload yet is an empty status.
func (svc *Service) Status(ctx context.Context, clientID string) (Status, error) {
	upl, batch, err := svc.Latest(ctx, clientID, KindAttendance)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Evaluate(Batch{Kind: KindAttendance}, svc.policy), nil
		}
		return Status{}, errors.Wrap(err, "loading latest attendance")
	}

	st := Evaluate(batch, svc.policy)
	st.UploadID = upl.ID
	uploadedAt := upl.CreatedAt
	st.UploadedAt = &uploadedAt
	return st, nil
}

// Preview normalizes and projects a payload without storing it.
func (svc *Service) Preview(raw json.RawMessage, minRequiredPercent *float64) Status {
	policy := svc.policy
	if minRequiredPercent != nil {
		policy.DefaultMinPercent = *minRequiredPercent
	}
	return Evaluate(NormalizeAttendance(raw, policy), policy)
}

func (svc *Service) History(ctx context.Context, filter UploadFilter, orderings ...core.DBOrdering) ([]Upload, error) {
	upls, err := svc.repo.ListUploads(ctx, filter, orderings...)
	if err != nil {
		return nil, errors.Wrap(err, "listing uploads")
	}
	return upls, nil
}

// Submit stores a record set supplied directly by the client.
func (svc *Service) Submit(ctx context.Context, sr SubmitRecords) (Ingestion, error) {
	batch := Normalize(sr.Records, sr.Kind, svc.policy)
	if batch.Len() == 0 {
		return Ingestion{}, core.NewValidationError(
			errors.New("no usable records"),
			core.FieldError{Field: "records", Error: "no usable records found"},
		)
	}

	upl, err := svc.store(ctx, sr.ClientID, sr.Kind, batch, "", nil)
	if err != nil {
		return Ingestion{}, err
	}
	return svc.ingestion(upl, batch, ""), nil
}

// Ingest runs a screenshot through the extraction model, normalizes the reply and stores it.
// A failed or empty extraction is reported as degraded and never supersedes stored data.
func (svc *Service) Ingest(ctx context.Context, ui UploadImage) (Ingestion, error) {
	data, err := base64.StdEncoding.DecodeString(ui.ImageBase64)
	if err != nil {
		return Ingestion{}, core.NewValidationError(err, core.FieldError{Field: "image_base64", Error: "must be base64 encoded data"})
	}
	mime := ui.MimeType
	if mime == "" {
		mime = "image/png"
	}

	prompt := extraction.AttendancePrompt
	if ui.Kind == KindTimetable {
		prompt = extraction.TimetablePrompt
	}

	var res extraction.Result
	reply, err := svc.models.Extract(ctx, prompt, core.Image{MimeType: mime, Data: data})
	if err != nil {
		svc.logger.Error("extraction call failed", errors.Wrap(err, string(ui.Kind)), core.ClientID(ui.ClientID))
		res = extraction.Failure()
	} else {
		res = extraction.Parse(reply)
	}

	batch := Normalize(res.Structured, ui.Kind, svc.policy)
	explanation := res.Explanation

	storable := !res.Failed && (batch.Len() > 0 || (ui.Kind == KindTimetable && explanation != ""))
	if !storable {
		out := Ingestion{Batch: batch, Explanation: explanation, Extraction: &res.Diagnostics, Degraded: true}
		if out.Explanation == "" {
			out.Explanation = extraction.NoExtraction
		}
		return out, nil
	}

	upl, err := svc.store(ctx, ui.ClientID, ui.Kind, batch, explanation, ui.examStart())
	if err != nil {
		return Ingestion{}, err
	}
	out := svc.ingestion(upl, batch, explanation)
	out.Extraction = &res.Diagnostics
	return out, nil
}

func (svc *Service) store(ctx context.Context, clientID string, kind Kind, batch Batch, text string, exam *time.Time) (Upload, error) {
	now := nowFunc().UTC()
	upl, err := svc.repo.CreateUpload(ctx, Upload{
		ID:            newIDFunc(),
		ClientID:      clientID,
		Kind:          kind,
		Payload:       batch.Canonical(),
		AnalyzedText:  text,
		ExamStartDate: exam,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Upload{}, errors.Wrap(err, "creating upload")
	}

	// the batch a cold Latest computes from the stored payload
	if err := svc.cache.SetBatch(ctx, CacheKey(upl), Normalize(upl.Payload, kind, svc.policy)); err != nil {
		svc.logger.Warn("writing normalized batch to cache", err, core.ClientID(clientID))
	}
	return upl, nil
}

func (svc *Service) ingestion(upl Upload, batch Batch, explanation string) Ingestion {
	out := Ingestion{Upload: &upl, Batch: batch, Explanation: explanation}
	if upl.Kind == KindAttendance {
		st := Evaluate(batch, svc.policy)
		st.UploadID = upl.ID
		st.UploadedAt = &upl.CreatedAt
		out.Status = &st
	}
	return out
}
