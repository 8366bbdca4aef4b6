package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"jobq/internal/api"
	"jobq/internal/format"
	"jobq/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func selectOutputFormat(jsonOutput, yamlOutput bool) error {
	name := "json"
	if yamlOutput {
		name = "yaml"
	}
	formatter, err := format.ByName(name)
	if err != nil {
		return err
	}
	outputFormatter = formatter
	return nil
}

func writeStructured(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeBlobList(blobs []models.Blob) error {
	for _, blob := range blobs {
		if err := writePlain("%s\n", formatBlobLine(blob)); err != nil {
			return err
		}
	}
	return nil
}

func writeLease(lease api.LeaseResponse) error {
	lines := []string{
		fmt.Sprintf("session_id: %s", lease.Blob.SessionID),
		fmt.Sprintf("sequence_time: %d", lease.Blob.SequenceTime),
		fmt.Sprintf("attempts: %d", lease.Blob.Attempts),
		fmt.Sprintf("lease_token: %s", lease.Token),
		fmt.Sprintf("expires_at: %s", formatTime(lease.ExpiresAt)),
	}
	if lease.Blob.Author != "" {
		lines = append(lines, fmt.Sprintf("author: %s", lease.Blob.Author))
	}
	lines = append(lines, fmt.Sprintf("message: %s", lease.Blob.Message))
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeResultList(results []models.ProcessedResult) error {
	for _, result := range results {
		if err := writePlain("%d [%s] %s\n", result.SequenceTime, formatTime(result.CompletedAt), oneLine(result.Message)); err != nil {
			return err
		}
	}
	return nil
}

func formatBlobLine(blob models.Blob) string {
	line := fmt.Sprintf("%d [%s]", blob.SequenceTime, blob.State)
	if blob.Author != "" {
		line += " " + blob.Author + ":"
	}
	return line + " " + oneLine(blob.Message)
}

func oneLine(message string) string {
	return strings.ReplaceAll(strings.TrimSpace(message), "\n", " / ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
