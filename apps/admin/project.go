package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/core/extraction"
)

func (cli *commandLine) projectCmd() *cobra.Command {
	var (
		file   string
		minPct float64
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Normalize an attendance payload in any supported shape and print its projections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			policy := attendance.PolicyFromConfig(cli.conf.Policy)
			if cmd.Flags().Changed("min") {
				policy.DefaultMinPercent = minPct
				if err = attendance.Validate(attendance.Record{MinRequiredPercent: minPct}); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), attendance.Evaluate(attendance.NormalizeAttendance(data, policy), policy))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "payload file, - for stdin")
	cmd.Flags().Float64Var(&minPct, "min", 0, "minimum required percent (overrides the configured default)")
	return cmd
}

func (cli *commandLine) parseCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Run the extraction parser on a saved model reply and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readPayload(cmd, file)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), extraction.Parse(string(data)))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "reply file, - for stdin")
	return cmd
}
