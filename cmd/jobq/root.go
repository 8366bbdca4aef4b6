package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobq/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var yamlOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:           "jobq",
		Short:         "jobq is a session-scoped job queue with exactly-once handoff",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := setupLogging(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return selectOutputFormat(jsonOutput, yamlOutput)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	structured := func() bool { return jsonOutput || yamlOutput }

	cmd.AddCommand(
		newSrvCmd(cfg),
		newSubmitCmd(cfg, structured),
		newPendingCmd(cfg, structured),
		newLeaseCmd(cfg, structured),
		newRenewCmd(cfg, structured),
		newCompleteCmd(cfg, structured),
		newResultsCmd(cfg, structured),
		newTranscriptCmd(cfg),
		newJobsCmd(cfg, structured),
		newStatusCmd(cfg, structured),
		newWatchCmd(cfg, structured),
		newReapCmd(cfg, structured),
		newInfoCmd(cfg, structured),
		newMigrateCmd(cfg, structured),
		newConfigCmd(cfg, structured),
	)

	return cmd
}
