package main

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

var errNoPendingBlobs = errors.New("no pending blobs")

func newLeaseCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "lease <session>",
		Short: "Lease the oldest pending blob of a session",
		Args:  requireSessionID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				lease, err := client.Lease(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if lease == nil {
					if structured() {
						return writeStructured(map[string]any{"session_id": args[0], "lease": nil})
					}
					return errNoPendingBlobs
				}
				if structured() {
					return writeStructured(lease)
				}
				return writeLease(*lease)
			})
		},
	}
}

func newRenewCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "renew <lease-token>",
		Short: "Extend an active lease",
		Args:  requireExactlyArgs(1, "lease token is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Renew(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				if !resp.Renewed || resp.ExpiresAt == nil {
					return errors.New("lease expired")
				}
				return writePlain("renewed until %s\n", formatTime(*resp.ExpiresAt))
			})
		},
	}
}

func newCompleteCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <lease-token> [result]",
		Short: "Post the result for a leased blob; reads stdin when no result is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := completeResult(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Complete(cmd.Context(), api.CompleteRequest{Token: args[0], Result: result})
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writePlain("completed %s %d\n", resp.Result.SessionID, resp.Result.SequenceTime)
			})
		},
	}
}

func completeResult(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
