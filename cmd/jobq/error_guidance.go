package main

import (
	"context"
	"errors"
	"net"

	"jobq/internal/api"
)

// formatCLIError renders err followed by hints for the queue errors a user
// can act on.
func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{err.Error()}

	var apiErr *api.APIError
	isAPIErr := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, errNoPendingBlobs):
		return lines
	case api.IsRateLimited(err):
		lines = append(lines, "hint: submit rate limit reached; retry shortly or raise limits.submit_rate.")
	case api.IsLeaseExpired(err):
		lines = append(lines, "hint: the lease expired or was already completed; lease the blob again.")
	case api.IsSessionBusy(err):
		lines = append(lines, "hint: the session still has active leases; complete them, wait, or enable reaper.force_expire.")
	case api.IsNotFound(err):
		lines = append(lines, "hint: the session does not exist or was reaped; submit without --session to open a new one.")
	case isAPIErr && apiErr.Code == "":
		lines = append(lines, "hint: verify JOBQ_API_URL points to a jobq server.")
	case errors.Is(err, context.DeadlineExceeded):
		lines = append(lines, "hint: request timed out; check server health or increase JOBQ_HTTP_TIMEOUT.")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			lines = append(lines,
				"hint: ensure a jobq server is running at JOBQ_API_URL.",
				"hint: start local server manually with: jobq srv",
			)
		}
	}

	if api.IsRetryable(err) {
		lines = append(lines, "hint: the request is safe to retry unchanged.")
	}
	if isAPIErr && apiErr.Status >= 500 && !apiErr.Retryable() && apiErr.Status != 501 {
		lines = append(lines, "hint: server returned an internal error; check server logs for details.")
	}
	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
