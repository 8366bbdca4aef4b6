package main

import (
	"sort"

	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

func newInfoCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and queue info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if structured() {
					return writeStructured(resp)
				}

				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
				_ = writePlain("lease_ttl: %s\n", resp.LeaseTTL)
				_ = writePlain("live_sessions: %d\n", resp.LiveSessions)
				_ = writePlain("reaped_sessions: %d\n", resp.ReapedSessions)
				_ = writePlain("results: %d\n", resp.Results)
				_ = writePlain("total_blobs: %d\n", resp.TotalBlobs)

				states := make([]string, 0, len(resp.BlobCounts))
				for state := range resp.BlobCounts {
					states = append(states, state)
				}
				sort.Strings(states)
				for _, state := range states {
					_ = writePlain("  %s: %d\n", state, resp.BlobCounts[state])
				}
				return nil
			})
		},
	}
	return cmd
}
