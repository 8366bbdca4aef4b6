package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidQuery     = 1003
	ErrCodeInvalidSessionID = 1004
	ErrCodeMessageTooLarge  = 1005
	ErrCodeMissingRequired  = 1009

	// Domain state (2xxx)
	ErrCodeSessionNotFound = 2001
	ErrCodeBlobNotFound    = 2002
	ErrCodeLeaseExpired    = 2003
	ErrCodeSessionBusy     = 2101

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeCollision      = 4003
	ErrCodeNotImplemented = 4005
)
