package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
	"jobq/internal/models"
)

func newStatusCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session>",
		Short: "Show whether a session is live and what it holds",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writePlain("%s created %s: %d pending, %d leased, %d processed, %d watching\n",
					resp.Session.ID, formatTime(resp.Session.CreatedAt),
					resp.Pending, resp.Leased, resp.Processed, resp.Watchers)
			})
		},
	}
}

func newWatchCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session>",
		Short: "Stream session events until the session is reaped",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				return client.Watch(cmd.Context(), args[0], func(ev models.SessionEvent) error {
					if structured() {
						return writeStructured(ev)
					}
					return writePlain("%s\n", formatEventLine(ev))
				})
			})
		},
	}
}

func formatEventLine(ev models.SessionEvent) string {
	line := fmt.Sprintf("%s %s", formatTime(ev.At), ev.Kind)
	if ev.SequenceTime != 0 {
		line += fmt.Sprintf(" %d", ev.SequenceTime)
	}
	if ev.Author != "" {
		line += " " + ev.Author + ":"
	}
	if ev.Message != "" {
		line += " " + oneLine(ev.Message)
	}
	return line
}
