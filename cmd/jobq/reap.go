package main

import (
	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

func newReapCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reap <session>",
		Short: "Delete a session with all of its blobs and results",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Reap(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writePlain("reaped %s: %d blobs, %d results, %d expired leases\n",
					resp.SessionID, resp.Blobs, resp.Results, resp.ExpiredLeases)
			})
		},
	}
}
