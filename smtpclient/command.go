package smtpclient

import "io"

// CommandType tags a command variant for logging and metrics (§4.B).
type CommandType string

const (
	CommandEHLO        CommandType = "EHLO"
	CommandHELO        CommandType = "HELO"
	CommandMailFrom    CommandType = "MAIL_FROM"
	CommandRcptTo      CommandType = "RCPT_TO"
	CommandData        CommandType = "DATA"
	CommandDataStream  CommandType = "DATA_STREAM"
	CommandRset        CommandType = "RSET"
	CommandVrfy        CommandType = "VRFY"
	CommandExpn        CommandType = "EXPN"
	CommandHelp        CommandType = "HELP"
	CommandNoop        CommandType = "NOOP"
	CommandQuit        CommandType = "QUIT"
	CommandStartTLS    CommandType = "STARTTLS"
	CommandAuthPlain   CommandType = "AUTH_PLAIN"
	CommandAuthLogin   CommandType = "AUTH_LOGIN"
	CommandAuthXOAuth2 CommandType = "AUTH_XOAUTH2"
)

// Command is the capability set every SMTP command variant implements
// (§3's Command data model, §4.B). Variants are plain structs rather than
// a class hierarchy — §9's design note prefers tagged variants sharing a
// small embedded helper over deep inheritance, the same flat-struct style
// the teacher uses for its command objects (inet.MailClient is a struct
// with behaviour methods, not a type hierarchy).
type Command interface {
	// CommandLineBytes returns the bytes to send now; always ends in CRLF.
	CommandLineBytes() []byte
	// CommandType returns the tag used for logging and metrics.
	CommandType() CommandType
	// IsSensitive reports whether the wire bytes must not be logged verbatim.
	IsSensitive() bool
	// DebugData returns a redacted, loggable rendering of the command.
	DebugData() string
	// NextCommandLineAfterContinuation computes the bytes to send after a
	// terminal 3xx reply. Commands that never expect a continuation return
	// OperationNotSupportedForCommand. A nil result with a nil error is
	// also treated as an irrecoverable failure to produce a payload.
	NextCommandLineAfterContinuation(reply ReplyLine) ([]byte, error)
	// Cleanup zeroes secret material and releases resources. Called
	// exactly once when the session settles the command, just before its
	// future resolves.
	Cleanup()
}

// streamingCommand is the optional variant of the continuation hook for
// commands (buffered DATA's sibling) that write their payload directly to
// the channel instead of returning a single byte slice — used for bodies
// supplied as a stream rather than materialised in memory.
type streamingCommand interface {
	// EncodeCommandAfterContinuation writes the command's payload (and any
	// terminator) directly to w and returns once queued.
	EncodeCommandAfterContinuation(w io.Writer, reply ReplyLine) error
}

// noContinuation is embedded by commands that never expect a server
// continuation (EHLO, HELO, RSET, NOOP, QUIT, STARTTLS, VRFY, EXPN, HELP,
// MAIL FROM, RCPT TO). It supplies the uniform
// OperationNotSupportedForCommand behaviour §4.B requires of them.
type noContinuation struct{}

func (noContinuation) NextCommandLineAfterContinuation(ReplyLine) ([]byte, error) {
	return nil, NewError(OperationNotSupportedForCommand, nil, "command does not expect a continuation reply")
}

// noCleanup is embedded by commands that carry no secret or streamed
// material and therefore have nothing to zero on Cleanup.
type noCleanup struct{}

func (noCleanup) Cleanup() {}

// notSensitive is embedded by commands whose wire bytes are safe to log
// verbatim.
type notSensitive struct{}

func (notSensitive) IsSensitive() bool { return false }
