package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// jsonBodyOverhead is the room left for JSON framing around a message of
// maxMessageBytes.
const jsonBodyOverhead = 64 << 10

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

// readJSON decodes a size-bounded request body into dst, rejecting unknown
// fields. It answers the request itself on failure.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxMessageBytes+jsonBodyOverhead)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.fail(w, r, decodeError(err))
		return false
	}
	return true
}

func (s *Server) pathSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := requirePathSessionID(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return "", false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be a non-negative integer", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}
