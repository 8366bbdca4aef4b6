package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

func newResultsCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	var download bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "results <session>",
		Short: "List processed results of a session",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if download {
					return downloadResults(cmd, client, args[0], outPath)
				}
				resp, err := client.ListResults(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writeResultList(resp.Results)
			})
		},
	}

	cmd.Flags().BoolVar(&download, "download", false, "write results as a Markdown document")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "file to write the download to (default stdout)")
	return cmd
}

func downloadResults(cmd *cobra.Command, client *api.Client, sessionID, outPath string) error {
	if outPath == "" {
		return client.DownloadResults(cmd.Context(), sessionID, cmd.OutOrStdout())
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := client.DownloadResults(cmd.Context(), sessionID, f); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return err
	}
	return f.Close()
}

func newTranscriptCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <session>",
		Short: "Print every blob of a session as author: message lines",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return client.Transcript(cmd.Context(), args[0], cmd.OutOrStdout())
			})
		},
	}
}
