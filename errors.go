package x402

import (
	"fmt"
	"strings"
)

// ErrorCode classifies a PaymentError
type ErrorCode string

const (
	// CodeTransport means the request never produced an HTTP response
	CodeTransport ErrorCode = "transport_error"

	// CodeProtocol means the server answered with something the exchange
	// does not allow at that step
	CodeProtocol ErrorCode = "protocol_error"

	// CodeSigning means no payload could be produced for the requirements
	CodeSigning ErrorCode = "signing_error"

	// CodeSafetyUnavailable means the safety scanner could not be used.
	// It never leaves the safety package.
	CodeSafetyUnavailable ErrorCode = "safety_unavailable"
)

// MaxSnippetLength bounds the response body excerpt kept on errors
const MaxSnippetLength = 200

// Sentinels for errors.Is; any PaymentError with the same code matches.
var (
	ErrTransport         = &PaymentError{Code: CodeTransport}
	ErrProtocol          = &PaymentError{Code: CodeProtocol}
	ErrSigning           = &PaymentError{Code: CodeSigning}
	ErrSafetyUnavailable = &PaymentError{Code: CodeSafetyUnavailable}
)

// PaymentError is returned by every failing step of a negotiation
type PaymentError struct {
	Code    ErrorCode
	Message string
	Status  int
	Snippet string
	Err     error
}

func (e *PaymentError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that errors.Is(err, ErrProtocol) holds for every
// protocol failure.
func (e *PaymentError) Is(target error) bool {
	t, ok := target.(*PaymentError)
	return ok && t.Code == e.Code
}

// NewTransportError wraps a transport failure
func NewTransportError(message string, err error) *PaymentError {
	return &PaymentError{Code: CodeTransport, Message: message, Err: err}
}

// NewProtocolError records an unexpected response with a body snippet
func NewProtocolError(message string, status int, body []byte) *PaymentError {
	return &PaymentError{Code: CodeProtocol, Message: message, Status: status, Snippet: Snippet(body)}
}

// NewSigningError wraps a payload creation failure
func NewSigningError(message string, err error) *PaymentError {
	return &PaymentError{Code: CodeSigning, Message: message, Err: err}
}

// NewSafetyUnavailableError wraps a scanner failure
func NewSafetyUnavailableError(message string, err error) *PaymentError {
	return &PaymentError{Code: CodeSafetyUnavailable, Message: message, Err: err}
}

// Snippet truncates body to MaxSnippetLength bytes without splitting a
// UTF-8 sequence.
func Snippet(body []byte) string {
	if len(body) <= MaxSnippetLength {
		return strings.ToValidUTF8(string(body), "")
	}
	return strings.ToValidUTF8(string(body[:MaxSnippetLength]), "")
}
