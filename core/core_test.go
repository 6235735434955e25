package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("TEST_GENAI_PROVIDER=rest\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TEST_GENAI_PROVIDER") })

	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("TEST_POLICY_DEFAULTMINPERCENT", "80")
	t.Setenv("TEST_GENAI_APIKEY", "secret-key")

	conf := NewConfig()
	assert.Equal(t, "TEST", conf.Env)
	assert.True(t, conf.TestMode)
	assert.Equal(t, "Attendr", conf.AppName)
	assert.Equal(t, 80.0, conf.Policy.DefaultMinPercent)
	assert.False(t, conf.Policy.ZeroClassesEligible)
	assert.Equal(t, 4000, conf.Policy.MaxAttendanceChars)
	assert.Equal(t, "rest", conf.GenAI.Provider)
	assert.Equal(t, 60*time.Second, conf.GenAI.Timeout)
	assert.Equal(t, 24*time.Hour, conf.Redis.TTL)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
	assert.NotContains(t, conf.String(), "secret-key")
}

func TestCleanString(t *testing.T) {
	tests := []struct {
		in    string
		lower bool
		want  string
	}{
		{"  CS101 \n", false, "CS101"},
		{"  CS101 \n", true, "cs101"},
		{"\t", true, ""},
	}
	for _, tt := range tests {
		if got := CleanString(tt.in, tt.lower); got != tt.want {
			t.Errorf("CleanString(%q, %v) = %q, want %q", tt.in, tt.lower, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 0, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"}, // é is two bytes
		{"héllo", 3, "hé"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestOrderingClause(t *testing.T) {
	allowed := map[string]string{"created_at": "created_at", "kind": "kind"}
	def := []DBOrdering{{Field: "created_at"}, {Field: "id"}}
	tests := []struct {
		name      string
		orderings []DBOrdering
		want      string
	}{
		{"default", nil, "created_at DESC, id DESC"},
		{"ascending", []DBOrdering{{Field: "created_at", Ascending: true}}, "created_at ASC"},
		{"unknown field dropped", []DBOrdering{{Field: "payload; DROP TABLE uploads"}, {Field: "kind", Ascending: true}}, "kind ASC"},
		{"only unknown fields", []DBOrdering{{Field: "nope"}}, "created_at DESC, id DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderingClause(tt.orderings, allowed, def...); got != tt.want {
				t.Errorf("OrderingClause() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	assert.True(t, IsUpstreamUnavailable(errors.Wrap(ErrUpstreamUnavailable, "status 503")))
	assert.False(t, IsUpstreamUnavailable(errors.New("other")))

	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("db gone"), "serving")))
	assert.False(t, IsShutdown(ErrUpstreamUnavailable))

	err := NewValidationError(nil, FieldError{Field: "records", Error: "no usable records found"})
	assert.Equal(t, "records: no usable records found", err.Error())
	err = NewValidationError(errors.New("bad input"))
	assert.Equal(t, "bad input", err.Error())
}

func TestInitValidators(t *testing.T) {
	translator, _ := ut.New(en.New()).GetTranslator("en")
	validate := validator.New()
	InitValidators(validate, translator)

	type request struct {
		ClientID string `json:"client_id" validate:"required,notblank"`
		Image    string `json:"image_base64" validate:"omitempty,base64"`
		Kind     string `query:"kind" validate:"required"`
	}
	tests := []struct {
		name string
		req  request
		want map[string]string
	}{
		{
			name: "valid",
			req:  request{ClientID: "c1", Image: "aGVsbG8=", Kind: "attendance"},
		},
		{
			name: "blank",
			req:  request{ClientID: "   ", Image: "%%", Kind: "attendance"},
			want: map[string]string{"client_id": notBlankText, "image_base64": base64Text},
		},
		{
			name: "missing",
			want: map[string]string{"client_id": requiredText, "kind": requiredText},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			if (err != nil) != (tt.want != nil) {
				t.Errorf("Struct() error = %v, wantErr %v", err, tt.want != nil)
				return
			}
			if err == nil {
				return
			}
			got := make(map[string]string)
			for _, fe := range err.(validator.ValidationErrors) {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
