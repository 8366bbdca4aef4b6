package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jobq/internal/api"
	"jobq/internal/config"
)

func newSubmitCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	var sessionID string
	var author string

	cmd := &cobra.Command{
		Use:   "submit [message]",
		Short: "Submit a blob; reads stdin when no message is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := submitMessage(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					SessionID: sessionID,
					Message:   message,
					Author:    author,
				})
				if err != nil {
					return err
				}
				if structured() {
					return writeStructured(resp)
				}
				return writePlain("%s %d\n", resp.SessionID, resp.SequenceTime)
			})
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "existing session id (omit to open a new session)")
	cmd.Flags().StringVarP(&author, "author", "a", "", "speaker name shown in the transcript")
	return cmd
}

func submitMessage(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("message is required (pass it as an argument or pipe it on stdin)")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	message := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}
	return message, nil
}
