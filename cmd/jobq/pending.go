package main

import (
	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

func newPendingCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "pending <session>",
		Short: "List unprocessed blobs of a session",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListPending(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writeBlobList(resp.Blobs)
			})
		},
	}
}

func newJobsCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List claimable blobs across all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				for _, session := range resp.Sessions {
					if err := writePlain("%s (%d)\n", session.SessionID, len(session.Blobs)); err != nil {
						return err
					}
					for _, blob := range session.Blobs {
						if err := writePlain("  %s\n", formatBlobLine(blob)); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of blobs (0 = no limit)")
	return cmd
}
