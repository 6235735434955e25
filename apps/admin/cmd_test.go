package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/core/extraction"
	logsvc "github.com/trezcool/attendr/services/logger"
	dummydb "github.com/trezcool/attendr/storage/database/dummy"
	"github.com/trezcool/attendr/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	out := new(bytes.Buffer)
	return &commandLine{
		conf:   &core.Config{AppName: "Attendr", Policy: core.PolicyConfig{DefaultMinPercent: 75}},
		logger: logsvc.NewNopLogger(),
		out:    out,
		db:     &sqlx.DB{},
		repo:   dummydb.NewUploadRepository(db),
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErrStr string
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writeFile() failed: %v", err)
	}
	return path
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(_ context.Context, command string, _ *sql.DB, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, strings.TrimSpace(command+" "+strings.Join(args, " ")))
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErrStr == "" {
				if err != nil {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErrStr {
				t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
			}
		})
	}
	assert.Equal(t, []string{"up", "up-to 1", "down", "status"}, ran)
}

func Test_commandLine_project(t *testing.T) {
	payload := writeFile(t, `"[{\"Subject\":\"ECE111\",\"Total\":34,\"Present\":30,\"Percentage %\":\"88.24\"}]"`)

	tests := []struct {
		name       string
		args       []string
		wantErrStr string
		check      func(t *testing.T, st attendance.Status)
	}{
		{
			name: "configured default",
			args: []string{"project", "-f", payload},
			check: func(t *testing.T, st attendance.Status) {
				require.Len(t, st.Projections, 1)
				assert.Equal(t, "ECE111", st.Projections[0].CourseCode)
				assert.Equal(t, 75.0, st.Projections[0].MinRequiredPercent)
				assert.Equal(t, 6, st.Projections[0].Bunkable)
			},
		},
		{
			name: "min override",
			args: []string{"project", "-f", payload, "--min", "85"},
			check: func(t *testing.T, st attendance.Status) {
				require.Len(t, st.Projections, 1)
				assert.Equal(t, 1, st.Projections[0].Bunkable)
			},
		},
		{name: "min out of range", args: []string{"project", "-f", payload, "--min", "0"}, wantErrStr: "minRequiredPercent: must be greater than 0 and at most 100"},
		{name: "missing file", args: []string{"project", "-f", "/nonexistent/payload.json"}, wantErrStr: "reading \"/nonexistent/payload.json\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
				return
			}
			require.NoError(t, err)
			var st attendance.Status
			require.NoError(t, json.Unmarshal(out.Bytes(), &st))
			tt.check(t, st)
		})
	}
}

func Test_commandLine_parse(t *testing.T) {
	cli, out := setup(t)
	reply := writeFile(t, `{"content":[{"parts":[{"text":"###JSON###\n[{\"code\":\"A\"}]\n###EXPLANATION###\nfine"}]}]}`)

	require.NoError(t, cli.run([]string{"admin", "parse", "--file", reply}))
	var res extraction.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.Failed)
	assert.Equal(t, "fine", res.Explanation)
	assert.Equal(t, extraction.PathNested, res.Diagnostics.Path)
	assert.JSONEq(t, `[{"code":"A"}]`, string(res.Structured))
}

func Test_commandLine_context(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateUpload(t, cli.repo, "c1", attendance.KindAttendance, `[{"courseCode":"MA102","totalClasses":40,"attendedClasses":28}]`)

	err := cli.run([]string{"admin", "context"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client")

	require.NoError(t, cli.run([]string{"admin", "context", "--client", "c1", "-q", "can I skip?"}))
	text := out.String()
	assert.Contains(t, text, "MA102: 28/40 (70.00%)")
	assert.Contains(t, text, "Timetable:\n(no data)")
	assert.Contains(t, text, "User message: can I skip?")
}
