package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidTickSpec      ErrorCode = 102
	ErrCodeInvalidCandle        ErrorCode = 103
	ErrCodeInvalidInstrument    ErrorCode = 104

	// Data/Resource errors (200-299)
	ErrCodeRecordNotFound ErrorCode = 200
	ErrCodeQueryFailed    ErrorCode = 201
	ErrCodeStoreFailed    ErrorCode = 202

	// Trading errors (300-399)
	ErrCodePendingOrderTimeout ErrorCode = 300
	ErrCodeOrderFailed         ErrorCode = 301
	ErrCodePositionExists      ErrorCode = 302

	// Venue transport errors (400-499)
	ErrCodeVenueRequestFailed ErrorCode = 400
	ErrCodeVenueDecodeFailed  ErrorCode = 401
	ErrCodeMarketNotFound     ErrorCode = 402

	// Evaluation errors (500-599)
	ErrCodeEvaluationFailed ErrorCode = 500

	// Lock errors (600-699)
	ErrCodeLeaseHeld ErrorCode = 600
)
