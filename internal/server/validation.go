package server

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"jobq/internal/store"
)

const maxAuthorLength = 200

func requirePathSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", badRequestCode(fmt.Errorf("session id is required"), ErrCodeMissingRequired)
	}
	if !store.ValidSessionID(id) {
		return "", badRequestCode(fmt.Errorf("invalid session id"), ErrCodeInvalidSessionID)
	}
	return id, nil
}

// validateSubmit checks a submission before it reaches the queue. An empty
// session id is allowed and opens a new session.
func validateSubmit(sessionID, message, author string, maxMessageBytes int64) error {
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" && !store.ValidSessionID(sessionID) {
		return badRequestCode(fmt.Errorf("invalid session id"), ErrCodeInvalidSessionID)
	}
	if strings.TrimSpace(message) == "" {
		return badRequestCode(fmt.Errorf("message is required"), ErrCodeMissingRequired)
	}
	if int64(len(message)) > maxMessageBytes {
		return badRequestCode(fmt.Errorf("message exceeds %d bytes", maxMessageBytes), ErrCodeMessageTooLarge)
	}
	if !utf8.ValidString(message) {
		return badRequestCode(fmt.Errorf("message must be valid UTF-8"), ErrCodeInvalidArgument)
	}
	if utf8.RuneCountInString(author) > maxAuthorLength {
		return badRequestCode(fmt.Errorf("author exceeds %d characters", maxAuthorLength), ErrCodeInvalidArgument)
	}
	if strings.ContainsAny(author, "\r\n") {
		return badRequestCode(fmt.Errorf("author must be a single line"), ErrCodeInvalidArgument)
	}
	return nil
}

func requireLeaseToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return badRequestCode(fmt.Errorf("lease_token is required"), ErrCodeMissingRequired)
	}
	return nil
}
