package chessdto

const (
	CodeMissingPayload   = "missing_payload"
	CodeMalformedPayload = "malformed_payload"
	CodeInvalidSelection = "invalid_selection"
	CodeUnknownOpponent  = "unknown_opponent"
	CodeUnknownEvent     = "unknown_event"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "session protocol error"
}
