package smtpclient

import "fmt"

// FailureType discriminates the kinds of failure this library can report.
// The values are stable and suitable for metrics labels and log filtering.
type FailureType string

const (
	ConnectionFailedInvalidGreetingCode FailureType = "CONNECTION_FAILED_INVALID_GREETING_CODE"
	ConnectionFailedException           FailureType = "CONNECTION_FAILED_EXCEPTION"
	ConnectionFailedExceedIdleMax       FailureType = "CONNECTION_FAILED_EXCEED_IDLE_MAX"
	ConnectionInactive                  FailureType = "CONNECTION_INACTIVE"
	OperationProhibitedOnClosedChannel  FailureType = "OPERATION_PROHIBITED_ON_CLOSED_CHANNEL"
	CommandNotAllowed                   FailureType = "COMMAND_NOT_ALLOWED"
	WriteToServerFailed                 FailureType = "WRITE_TO_SERVER_FAILED"
	ClosingConnectionFailed             FailureType = "CLOSING_CONNECTION_FAILED"
	ChannelException                    FailureType = "CHANNEL_EXCEPTION"
	ChannelDisconnected                 FailureType = "CHANNEL_DISCONNECTED"
	ChannelTimeout                      FailureType = "CHANNEL_TIMEOUT"
	ChannelInactive                     FailureType = "CHANNEL_INACTIVE"
	OperationNotSupportedForCommand     FailureType = "OPERATION_NOT_SUPPORTED_FOR_COMMAND"
	InvalidInput                        FailureType = "INVALID_INPUT"
	InvalidServerResponse               FailureType = "INVALID_SERVER_RESPONSE"
	MoreInputThanExpected               FailureType = "MORE_INPUT_THAN_EXPECTED"
	NotSSLRecord                        FailureType = "NOT_SSL_RECORD"
	StartTLSFailed                      FailureType = "STARTTLS_FAILED"
	BadEHLOResponse                     FailureType = "BAD_EHLO_RESPONSE"
	NoStartTLSCapability                FailureType = "NO_STARTTLS_CAPABILITY"
	BadStartTLSResponse                 FailureType = "BAD_STARTTLS_RESPONSE"
	SSLContextException                 FailureType = "SSL_CONTEXT_EXCEPTION"
	IllegalState                        FailureType = "ILLEGAL_STATE"
)

// Error is the error type returned through every future and synchronous
// call this library makes. It carries a stable FailureType discriminator
// plus optional context, following the teacher's "typed error with
// contextual fields" convention (lalog.Logger.Format tags messages with
// component/actor identifiers; this is the same idea applied to errors
// instead of log lines).
type Error struct {
	Type      FailureType
	Cause     error
	SessionID uint64
	UserCtx   string
	Detail    string
}

// NewError builds an Error with no session/user context attached yet.
// Session-bound code should prefer (*Session).newErr so every error it
// raises is automatically tagged with the session's identity.
func NewError(t FailureType, cause error, detail string) *Error {
	return &Error{Type: t, Cause: cause, Detail: detail}
}

// Error implements the error interface. Format follows §7's user-visible
// formatting rule exactly: failureType=<name>[,sId=<id>][,uId=<ctx>][,message=<detail>]
func (e *Error) Error() string {
	msg := fmt.Sprintf("failureType=%s", e.Type)
	if e.SessionID != 0 {
		msg += fmt.Sprintf(",sId=%d", e.SessionID)
	}
	if e.UserCtx != "" {
		msg += fmt.Sprintf(",uId=%s", e.UserCtx)
	}
	detail := e.Detail
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if detail != "" {
		msg += fmt.Sprintf(",message=%s", detail)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSession returns a copy of the error tagged with a session's identity.
func (e *Error) WithSession(sessionID uint64, userCtx string) *Error {
	cp := *e
	cp.SessionID = sessionID
	cp.UserCtx = userCtx
	return &cp
}
