package tests

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/advisory"
)

func Test_chatApi_chat(t *testing.T) {
	e := setup(t)

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"client_id": "this field is required", "message": "this field is required"}`),
		},
		{
			name:     "blank message",
			body:     []byte(`{"client_id": "c1", "message": "  "}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"message": "this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(e.app, http.MethodPost, "/v1/chat", tt.body))
		})
	}

	t.Run("no data yet", func(t *testing.T) {
		e.models.AdviseReply = "Upload your attendance first."
		defer func() { e.models.AdviseReply = "" }()

		rec := do(e.app, http.MethodPost, "/v1/chat", []byte(`{"client_id": "c1", "message": "Can I skip tomorrow?"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var reply advisory.Reply
		decode(t, rec, &reply)
		assert.Equal(t, advisory.Reply{Reply: "Upload your attendance first."}, reply)

		prompt := e.models.LastPrompt()
		assert.Contains(t, prompt, "Attendance:\n"+advisory.NoData)
		assert.Contains(t, prompt, "Timetable:\n"+advisory.NoData)
		assert.Contains(t, prompt, "User message: Can I skip tomorrow?")
	})

	t.Run("answers from stored data", func(t *testing.T) {
		rec := do(e.app, http.MethodPost, "/v1/attendance", []byte(`{"client_id": "c1", "records": [{"code": "MA102", "total": 40, "attended": 28}]}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = do(e.app, http.MethodPost, "/v1/chat", []byte(`{"client_id": "c1", "message": "How many classes do I need?"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var reply advisory.Reply
		decode(t, rec, &reply)
		assert.True(t, reply.HasAttendance)
		assert.False(t, reply.HasTimetable)

		prompt := e.models.LastPrompt()
		assert.Contains(t, prompt, "MA102: 28/40 (70.00%)")
		assert.Contains(t, prompt, "need_to_attend 8")
	})

	t.Run("model unavailable", func(t *testing.T) {
		e.models.Err = errors.New("connection refused")
		defer func() { e.models.Err = nil }()

		rec := do(e.app, http.MethodPost, "/v1/chat", []byte(`{"client_id": "c1", "message": "hi"}`))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assertJSONField(t, rec, "error", core.ErrUpstreamUnavailable.Error())
	})
}
