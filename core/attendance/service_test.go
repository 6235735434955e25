package attendance_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/core/extraction"
	cachesvc "github.com/trezcool/attendr/services/cache"
	genaisvc "github.com/trezcool/attendr/services/genai"
	logsvc "github.com/trezcool/attendr/services/logger"
	dummydb "github.com/trezcool/attendr/storage/database/dummy"
	testutil "github.com/trezcool/attendr/tests"
)

const (
	clientID = "student-1"
	image    = "aGVsbG8=" // "hello"
)

type env struct {
	svc    *attendance.Service
	repo   attendance.Repository
	cache  *cachesvc.MemoryCache
	models *genaisvc.ConsoleService
}

func setup(t *testing.T) env {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	e := env{
		repo:   dummydb.NewUploadRepository(db),
		cache:  cachesvc.NewMemoryCache(time.Hour),
		models: genaisvc.NewConsoleService(),
	}
	e.svc = attendance.NewService(e.repo, e.cache, e.models, logsvc.NewNopLogger(), attendance.DefaultPolicy())
	return e
}

func TestNewService(t *testing.T) {
	assert.Panics(t, func() {
		attendance.NewService(nil, cachesvc.NewMemoryCache(0), genaisvc.NewConsoleService(), logsvc.NewNopLogger(), attendance.DefaultPolicy())
	})
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("attendance stored", func(t *testing.T) {
		e := setup(t)
		got, err := e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: attendance.KindAttendance, ImageBase64: image})
		require.NoError(t, err)

		assert.False(t, got.Degraded)
		require.NotNil(t, got.Upload)
		assert.Equal(t, clientID, got.Upload.ClientID)
		assert.Len(t, got.Batch.Records, 2)
		assert.Equal(t, "Console model: canned attendance table.", got.Explanation)
		require.NotNil(t, got.Status)
		assert.Equal(t, got.Upload.ID, got.Status.UploadID)
		assert.Equal(t, 1, got.Status.EligibleCount) // CS101 32/40
		assert.Equal(t, 1, got.Status.AtRiskCount)   // MA102 24/36
		assert.Equal(t, extraction.AttendancePrompt, e.models.LastPrompt())
		assert.Equal(t, 1, e.cache.Len())

		latest, err := e.repo.LatestUpload(ctx, clientID, attendance.KindAttendance)
		require.NoError(t, err)
		assert.Equal(t, got.Upload.ID, latest.ID)
		assert.JSONEq(t, string(got.Batch.Canonical()), string(latest.Payload))
	})

	t.Run("timetable keeps notes", func(t *testing.T) {
		e := setup(t)
		got, err := e.svc.Ingest(ctx, attendance.UploadImage{
			ClientID:      clientID,
			Kind:          attendance.KindTimetable,
			ImageBase64:   image,
			ExamStartDate: "2026-12-01",
		})
		require.NoError(t, err)

		require.NotNil(t, got.Upload)
		assert.Nil(t, got.Status)
		assert.Len(t, got.Batch.Entries, 2)
		assert.Equal(t, "Console model: canned timetable.", got.Upload.AnalyzedText)
		require.NotNil(t, got.Upload.ExamStartDate)
		assert.Equal(t, "2026-12-01", got.Upload.ExamStartDate.Format("2006-01-02"))
		assert.Equal(t, extraction.TimetablePrompt, e.models.LastPrompt())
	})

	t.Run("timetable explanation only", func(t *testing.T) {
		e := setup(t)
		e.models.ExtractReply = "###JSON###\n[]\n###EXPLANATION###\nNo classes this week."
		got, err := e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: attendance.KindTimetable, ImageBase64: image})
		require.NoError(t, err)
		assert.False(t, got.Degraded)
		require.NotNil(t, got.Upload)
		assert.Equal(t, "No classes this week.", got.Upload.AnalyzedText)
	})

	tests := []struct {
		name    string
		reply   string
		callErr error
		kind    attendance.Kind
	}{
		{name: "prose reply", reply: "Sorry, I cannot read this image.", kind: attendance.KindAttendance},
		{name: "empty reply", reply: " ", kind: attendance.KindAttendance},
		{name: "empty attendance section", reply: "###JSON###[]###EXPLANATION###nothing", kind: attendance.KindAttendance},
		{name: "model down", callErr: errors.New("connection refused"), kind: attendance.KindAttendance},
		{name: "timetable model down", callErr: errors.New("connection refused"), kind: attendance.KindTimetable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			e.models.ExtractReply = tt.reply
			e.models.Err = tt.callErr

			got, err := e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: tt.kind, ImageBase64: image})
			if err != nil {
				t.Errorf("Ingest() error = %v, wantErr %v", err, false)
				return
			}
			assert.True(t, got.Degraded)
			assert.Nil(t, got.Upload)
			assert.NotEmpty(t, got.Explanation)
			assert.NotNil(t, got.Extraction)

			_, err = e.repo.LatestUpload(ctx, clientID, tt.kind)
			assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
		})
	}

	t.Run("degraded never supersedes", func(t *testing.T) {
		e := setup(t)
		first, err := e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: attendance.KindAttendance, ImageBase64: image})
		require.NoError(t, err)

		e.models.Err = errors.New("timeout")
		_, err = e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: attendance.KindAttendance, ImageBase64: image})
		require.NoError(t, err)

		upl, batch, err := e.svc.Latest(ctx, clientID, attendance.KindAttendance)
		require.NoError(t, err)
		assert.Equal(t, first.Upload.ID, upl.ID)
		assert.Len(t, batch.Records, 2)
	})

	t.Run("invalid image", func(t *testing.T) {
		e := setup(t)
		_, err := e.svc.Ingest(ctx, attendance.UploadImage{ClientID: clientID, Kind: attendance.KindAttendance, ImageBase64: "%%%"})
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "Ingest() error = %v, want *core.ValidationError", err)
		assert.Empty(t, e.models.Prompts)
	})
}

func TestService_Latest(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, batch, err := e.svc.Latest(ctx, clientID, attendance.KindAttendance)
	assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
	assert.Equal(t, attendance.KindAttendance, batch.Kind)

	older := testutil.CreateUpload(t, e.repo, clientID, attendance.KindAttendance,
		`[{"code":"OLD","total":4,"attended":4}]`, time.Now().Add(-time.Hour))
	newer := testutil.CreateUpload(t, e.repo, clientID, attendance.KindAttendance,
		`"[{\"Subject\":\"ECE111\",\"Total\":34,\"Present\":30,\"Percentage %\":\"88.24\"}]"`)
	assert.NotEqual(t, attendance.CacheKey(older), attendance.CacheKey(newer))

	upl, batch, err := e.svc.Latest(ctx, clientID, attendance.KindAttendance)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, upl.ID)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "ECE111", batch.Records[0].CourseCode)
	assert.Equal(t, 1, e.cache.Len())

	// a cached normalization is served as is
	cached := attendance.Batch{Kind: attendance.KindAttendance, Records: []attendance.Record{{CourseCode: "CACHED"}}}
	require.NoError(t, e.cache.SetBatch(ctx, attendance.CacheKey(newer), cached))
	_, batch, err = e.svc.Latest(ctx, clientID, attendance.KindAttendance)
	require.NoError(t, err)
	assert.Equal(t, cached, batch)

	// other clients and kinds are independent
	_, _, err = e.svc.Latest(ctx, "student-2", attendance.KindAttendance)
	assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
	_, _, err = e.svc.Latest(ctx, clientID, attendance.KindTimetable)
	assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	st, err := e.svc.Status(ctx, clientID)
	require.NoError(t, err)
	assert.Empty(t, st.UploadID)
	assert.Empty(t, st.Projections)
	assert.Nil(t, st.Summary.MinSubject)

	upl := testutil.CreateUpload(t, e.repo, clientID, attendance.KindAttendance,
		`[{"code":"A","total":40,"attended":28},{"code":"B","total":4,"attended":3}]`)
	st, err = e.svc.Status(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, upl.ID, st.UploadID)
	require.NotNil(t, st.UploadedAt)
	require.Len(t, st.Projections, 2)
	assert.Equal(t, 8, st.Projections[0].NeedToAttend)
	assert.True(t, st.Projections[1].IsEligible)
	assert.Equal(t, "A", st.Summary.MinSubject.Name)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		req     attendance.SubmitRecords
		wantLen int
		wantErr bool
	}{
		{
			name:    "records",
			req:     attendance.SubmitRecords{ClientID: clientID, Kind: attendance.KindAttendance, Records: json.RawMessage(`[{"code":"A","total":4,"attended":3}]`)},
			wantLen: 1,
		},
		{
			name:    "timetable",
			req:     attendance.SubmitRecords{ClientID: clientID, Kind: attendance.KindTimetable, Records: json.RawMessage(`[{"subject":"A","day":"Mon"}]`)},
			wantLen: 1,
		},
		{
			name:    "nothing usable",
			req:     attendance.SubmitRecords{ClientID: clientID, Kind: attendance.KindAttendance, Records: json.RawMessage(`[{"total":4}]`)},
			wantErr: true,
		},
		{
			name:    "malformed",
			req:     attendance.SubmitRecords{ClientID: clientID, Kind: attendance.KindAttendance, Records: json.RawMessage(`"not a table"`)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			got, err := e.svc.Submit(ctx, tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Submit() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok)
				return
			}
			require.NotNil(t, got.Upload)
			assert.Equal(t, tt.wantLen, got.Batch.Len())
			assert.Equal(t, tt.req.Kind == attendance.KindAttendance, got.Status != nil)
			assert.Empty(t, e.models.Prompts)
		})
	}
}

func TestService_Preview(t *testing.T) {
	e := setup(t)
	raw := json.RawMessage(`[{"code":"CS101","total":34,"attended":30}]`)

	st := e.svc.Preview(raw, nil)
	require.Len(t, st.Projections, 1)
	assert.Equal(t, 75.0, st.Projections[0].MinRequiredPercent)
	assert.Equal(t, 6, st.Projections[0].Bunkable)

	m := 85.0
	st = e.svc.Preview(raw, &m)
	require.Len(t, st.Projections, 1)
	assert.Equal(t, 1, st.Projections[0].Bunkable)
	assert.Equal(t, 88.24, st.Projections[0].Percent)

	_, err := e.repo.LatestUpload(context.Background(), clientID, attendance.KindAttendance)
	assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
}

func TestService_History(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		testutil.CreateUpload(t, e.repo, clientID, attendance.KindAttendance, `[]`, base.Add(time.Duration(i)*time.Minute))
	}
	testutil.CreateUpload(t, e.repo, clientID, attendance.KindTimetable, `[]`, base)

	upls, err := e.svc.History(ctx, attendance.UploadFilter{ClientID: clientID})
	require.NoError(t, err)
	assert.Len(t, upls, 4)

	upls, err = e.svc.History(ctx, attendance.UploadFilter{ClientID: clientID, Kind: attendance.KindAttendance, Limit: 2})
	require.NoError(t, err)
	require.Len(t, upls, 2)
	assert.True(t, upls[0].CreatedAt.After(upls[1].CreatedAt))
}

func TestService_Status_coldCache(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		records string
	}{
		{"skipped and duplicate", `[{"code":"A","total":10,"attended":8}, 5, {"code":"A"}]`},
		{"string encoded", `"[{\"Subject\":\"ECE111\",\"Total\":34,\"Present\":30}]"`},
		{"out of range count", `[{"code":"A","total":1e12,"attended":3},{"code":"B","total":4,"attended":3}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			_, err := e.svc.Submit(ctx, attendance.SubmitRecords{
				ClientID: clientID,
				Kind:     attendance.KindAttendance,
				Records:  json.RawMessage(tt.records),
			})
			require.NoError(t, err)

			warm, err := e.svc.Status(ctx, clientID)
			require.NoError(t, err)

			cold := attendance.NewService(e.repo, cachesvc.NewMemoryCache(time.Hour), e.models, logsvc.NewNopLogger(), attendance.DefaultPolicy())
			got, err := cold.Status(ctx, clientID)
			require.NoError(t, err)
			assert.Equal(t, warm, got)
		})
	}
}

func TestService_Submit_reportsInputDiagnostics(t *testing.T) {
	e := setup(t)
	got, err := e.svc.Submit(context.Background(), attendance.SubmitRecords{
		ClientID: clientID,
		Kind:     attendance.KindAttendance,
		Records:  json.RawMessage(`[{"code":"A","total":10,"attended":8}, 5, {"code":"A"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Batch.Diagnostics.Skipped)
	assert.Equal(t, 1, got.Batch.Diagnostics.Duplicates)

	// the stored upload is canonical
	st, err := e.svc.Status(context.Background(), clientID)
	require.NoError(t, err)
	assert.Zero(t, st.Diagnostics.Skipped)
	assert.Zero(t, st.Diagnostics.Duplicates)
	assert.False(t, st.Degraded)
}
