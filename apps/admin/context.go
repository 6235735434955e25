package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/attendr/core/advisory"
	"github.com/trezcool/attendr/core/attendance"
	cachesvc "github.com/trezcool/attendr/services/cache"
	genaisvc "github.com/trezcool/attendr/services/genai"
)

func (cli *commandLine) contextCmd() *cobra.Command {
	var (
		clientID string
		query    string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print the advisory context the chat model would receive for a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := cli.repository()
			if err != nil {
				return err
			}

			policy := attendance.PolicyFromConfig(cli.conf.Policy)
			// the console model is never called here; Context only reads stored uploads
			models := genaisvc.NewConsoleService()
			attSvc := attendance.NewService(repo, cachesvc.NewMemoryCache(0), models, cli.logger, policy)
			advSvc := advisory.NewService(attSvc, models, cli.logger, advisory.NewBuilder(policy, advisory.LimitsFromConfig(cli.conf.Policy)))

			c, err := advSvc.Context(cmd.Context(), clientID, query)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), c)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), c.Render())
			return err
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVarP(&query, "query", "q", "", "user message to embed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the context sections as JSON")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}
