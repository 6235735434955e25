package advisory

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

type (
	// Records is the read side of attendance.Service the chat needs.
	Records interface {
		Latest(ctx context.Context, clientID string, kind attendance.Kind) (attendance.Upload, attendance.Batch, error)
	}

	Service struct {
		records Records
		models  core.ModelService
		logger  core.Logger
		builder Builder
	}

	ChatRequest struct {
		ClientID string `json:"client_id" validate:"required,notblank"`
		Message  string `json:"message" validate:"required,notblank"`
	}

	Reply struct {
		Reply         string `json:"reply"`
		HasAttendance bool   `json:"has_attendance"`
		HasTimetable  bool   `json:"has_timetable"`
	}
)

func (cr *ChatRequest) Validate(validate *validator.Validate) error {
	cr.Message = core.CleanString(cr.Message)
	return validate.Struct(cr)
}

func NewService(records Records, models core.ModelService, logger core.Logger, builder Builder) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(records, "records"),
		vala.IsNotNil(models, "models"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{records: records, models: models, logger: logger, builder: builder}
}

// Context loads the client's latest uploads and builds the advisory context for query.
func (svc *Service) Context(ctx context.Context, clientID, query string) (Context, error) {
	_, att, err := svc.records.Latest(ctx, clientID, attendance.KindAttendance)
	if err != nil && errors.Cause(err) != attendance.ErrNotFound {
		return Context{}, errors.Wrap(err, "loading latest attendance")
	}

	ttUpl, tt, err := svc.records.Latest(ctx, clientID, attendance.KindTimetable)
	if err != nil && errors.Cause(err) != attendance.ErrNotFound {
		return Context{}, errors.Wrap(err, "loading latest timetable")
	}

	c := svc.builder.Build(att.Records, tt.Entries, query, Notes{
		TimetableText: ttUpl.AnalyzedText,
		ExamStartDate: ttUpl.ExamStartDate,
	})
	if len(c.Unmatched) > 0 {
		svc.logger.Debug(
			"timetable subjects without a matching course",
			map[string]interface{}{"unmatched": c.Unmatched},
			core.ClientID(clientID),
		)
	}
	return c, nil
}

// Chat answers a question from the client's own data. The model reply is returned as is.
func (svc *Service) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	c, err := svc.Context(ctx, req.ClientID, req.Message)
	if err != nil {
		return Reply{}, err
	}

	text, err := svc.models.Advise(ctx, c.Render())
	if err != nil {
		svc.logger.Error("advice call failed", err, core.ClientID(req.ClientID))
		return Reply{}, errors.Wrap(core.ErrUpstreamUnavailable, err.Error())
	}

	return Reply{
		Reply:         text,
		HasAttendance: c.AttendanceSummary != NoData,
		HasTimetable:  c.TimetableSummary != NoData,
	}, nil
}
