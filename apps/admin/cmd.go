package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/storage/database"
	sqlxrepos "github.com/trezcool/attendr/storage/database/sqlx"
)

var (
	openDBFunc   = database.Open // mockable
	readFileFunc = os.ReadFile   // mockable
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer

	db   *sqlx.DB
	repo attendance.Repository
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // drop program name
	}
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	return root.Execute()
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.projectCmd(),
		cli.parseCmd(),
		cli.contextCmd(),
	)
	return root
}

// database opens the DB on first use; project and parse never need it.
func (cli *commandLine) database() (*sqlx.DB, error) {
	if cli.db == nil {
		db, err := openDBFunc(cli.conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		cli.db = db
	}
	return cli.db, nil
}

func (cli *commandLine) repository() (attendance.Repository, error) {
	if cli.repo == nil {
		db, err := cli.database()
		if err != nil {
			return nil, err
		}
		cli.repo = sqlxrepos.NewUploadRepository(db)
	}
	return cli.repo, nil
}

// readPayload reads a file, or stdin for "-".
func readPayload(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := readFileFunc(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading "+strconv.Quote(path))
	}
	return data, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
