package models

import (
	"fmt"
	"strings"
)

// BlobState defines the processing lifecycle of a blob.
type BlobState string

const (
	StatePending   BlobState = "pending"
	StateLeased    BlobState = "leased"
	StateProcessed BlobState = "processed"
)

var validBlobStates = map[BlobState]struct{}{
	StatePending:   {},
	StateLeased:    {},
	StateProcessed: {},
}

// blobTransitions lists the allowed state changes. Reaping deletes rows and
// is not modelled as a transition.
var blobTransitions = map[BlobState][]BlobState{
	StatePending:   {StateLeased, StateProcessed},
	StateLeased:    {StateProcessed, StatePending},
	StateProcessed: {},
}

func IsValidBlobState(state BlobState) bool {
	_, ok := validBlobStates[state]
	return ok
}

func ParseBlobState(raw string) (BlobState, error) {
	value := BlobState(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("state is required")
	}
	if !IsValidBlobState(value) {
		return "", fmt.Errorf("invalid state: %s", value)
	}
	return value, nil
}

// IsValidTransition reports whether a blob may move from one state to another.
func IsValidTransition(from, to BlobState) bool {
	for _, next := range blobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func BlobStateStrings() []string {
	return []string{string(StatePending), string(StateLeased), string(StateProcessed)}
}
