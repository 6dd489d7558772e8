package rpc

import "fmt"

// Protocol error codes, per the JSON-RPC 2.0 reservation scheme.
const (
	CodeParse          = -32700 // invalid JSON received
	CodeInvalidRequest = -32600 // not a valid request object
	CodeMethodNotFound = -32601 // method does not exist
	CodeInvalidParams  = -32602 // invalid method parameters
	CodeInternal       = -32603 // internal protocol error

	// -32000..-32099 is reserved for implementation-defined server
	// errors. CodeServerError is the catch-all for failures that carry
	// no more specific code.
	CodeServerError = -32099
)

// Domain failure codes. Each auction failure gets its own stable code
// inside the reserved server-error range so clients can branch on the
// failure kind instead of parsing message text.
const (
	CodeUserAlreadyExists     = -32001
	CodeUserNotFound          = -32002
	CodeItemAlreadyExists     = -32003
	CodeItemNotFound          = -32004
	CodeItemExpired           = -32005
	CodeSelfBid               = -32006
	CodeBidTooLow             = -32007
	CodeCommitFailed          = -32008 // retryable: resend the whole call
	CodeDiscoveryUnavailable  = -32009
)

// Error is a protocol or domain failure that travels as an ErrorResponse.
// Data optionally records diagnostics (the declaring method and the
// serialized arguments); Message is never invented by intermediaries.
type Error struct {
	Code    int
	Message string
	Data    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
