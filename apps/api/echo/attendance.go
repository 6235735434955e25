package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core/attendance"
)

type (
	attendanceApi struct {
		svc      *attendance.Service
		validate *validator.Validate
	}

	clientQuery struct {
		ClientID string `query:"client_id" validate:"required,notblank"`
	}

	historyQuery struct {
		ClientID string `query:"client_id" validate:"required,notblank"`
		Kind     string `query:"kind" validate:"omitempty,kind"`
		Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	}

	latestQuery struct {
		ClientID string `query:"client_id" validate:"required,notblank"`
		Kind     string `query:"kind" validate:"required,kind"`
	}

	latestResponse struct {
		Upload attendance.Upload `json:"upload"`
		Batch  attendance.Batch  `json:"batch"`
	}
)

func registerAttendanceAPI(g *echo.Group, svc *attendance.Service, validate *validator.Validate) {
	api := attendanceApi{svc: svc, validate: validate}

	ag := g.Group("/attendance")
	ag.POST("", api.submit)
	ag.POST("/upload", api.upload(attendance.KindAttendance))
	ag.GET("/status", api.status)
	ag.POST("/project", api.project)

	g.POST("/timetable/upload", api.upload(attendance.KindTimetable))

	ug := g.Group("/uploads")
	ug.GET("", api.history)
	ug.GET("/latest", api.latest)
}

// Handlers

func (api *attendanceApi) upload(kind attendance.Kind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data attendance.UploadImage
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to UploadImage")
		}
		data.Kind = kind
		if err := data.Validate(api.validate); err != nil {
			return err
		}
		setClientID(ctx, data.ClientID)

		res, err := api.svc.Ingest(ctx.Request().Context(), data)
		if err != nil {
			return errors.Wrap(err, "ingesting "+string(kind))
		}
		code := http.StatusCreated
		if res.Degraded {
			code = http.StatusOK
		}
		return ctx.JSON(code, res)
	}
}

func (api *attendanceApi) submit(ctx echo.Context) error {
	var data attendance.SubmitRecords
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRecords")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	setClientID(ctx, data.ClientID)

	res, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting records")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *attendanceApi) status(ctx echo.Context) error {
	var q clientQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to clientQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}

	st, err := api.svc.Status(ctx.Request().Context(), q.ClientID)
	if err != nil {
		return errors.Wrap(err, "getting status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *attendanceApi) project(ctx echo.Context) error {
	var data attendance.ProjectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProjectRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.svc.Preview(data.Records, data.MinRequiredPercent))
}

func (api *attendanceApi) history(ctx echo.Context) error {
	var q historyQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to historyQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	upls, err := api.svc.History(
		ctx.Request().Context(),
		attendance.UploadFilter{ClientID: q.ClientID, Kind: attendance.Kind(q.Kind), Limit: q.Limit},
		ord.Orderings...,
	)
	if err != nil {
		return errors.Wrap(err, "querying uploads")
	}
	return ctx.JSON(http.StatusOK, upls)
}

func (api *attendanceApi) latest(ctx echo.Context) error {
	var q latestQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to latestQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}

	upl, batch, err := api.svc.Latest(ctx.Request().Context(), q.ClientID, attendance.Kind(q.Kind))
	if err != nil {
		return errors.Wrap(err, "getting latest upload")
	}
	return ctx.JSON(http.StatusOK, latestResponse{Upload: upl, Batch: batch})
}
