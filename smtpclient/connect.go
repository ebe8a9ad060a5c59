package smtpclient

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/hzguo/asmtp/internal/lalog"
)

// errIdleRead is the sentinel readFramedLines returns when a read
// deadline elapses with no inbound bytes, distinguishing an idle
// watchdog trip from every other channel error (§4.D, §4.E, §4.F all
// treat idle timeouts differently from "channel inactive").
var errIdleRead = errors.New("smtpclient: idle read timeout")

// readFramedLines blocks until framer has at least one complete line to
// return, the idle deadline elapses (errIdleRead), or the read fails for
// any other reason. It is the bootstrap phases' reader: unlike Session,
// which owns a dedicated goroutine because application code can submit
// work concurrently, connect and STARTTLS are strictly request/response,
// so a single blocking read loop in the caller's own goroutine is
// sufficient and avoids a handoff race over who reads conn next.
func readFramedLines(conn net.Conn, idleTimeout time.Duration, framer *lineFramer) ([][]byte, error) {
	buf := make([]byte, 4096)
	for {
		if idleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
				return nil, err
			}
		}
		n, err := conn.Read(buf)
		if n > 0 {
			lines, ferr := framer.Feed(buf[:n])
			if ferr != nil {
				return nil, ferr
			}
			if len(lines) > 0 {
				return lines, nil
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, errIdleRead
			}
			return nil, err
		}
	}
}

// readAggregatedReply reads lines via readFramedLines until a terminal
// line arrives, returning every line collected (§3's aggregated reply,
// reused here for the greeting and the EHLO/STARTTLS responses the
// bootstrap phases wait on).
func readAggregatedReply(conn net.Conn, idleTimeout time.Duration, framer *lineFramer) (Reply, error) {
	var lines []ReplyLine
	for {
		raw, err := readFramedLines(conn, idleTimeout, framer)
		if err != nil {
			return Reply{}, err
		}
		for _, r := range raw {
			line, perr := ParseReplyLine(r)
			if perr != nil {
				return Reply{}, perr
			}
			lines = append(lines, line)
			if line.IsLast {
				return Reply{Lines: lines}, nil
			}
		}
	}
}

// classifyBootstrapReadError maps a readFramedLines/readAggregatedReply
// error to the FailureType the caller's phase assigns to it: idleType for
// the idle watchdog, eofType for the peer closing the connection, and
// exceptionType for anything else.
func classifyBootstrapReadError(err error, idleType, eofType, exceptionType FailureType) *Error {
	if errors.Is(err, errIdleRead) {
		return NewError(idleType, nil, "idle timeout waiting for server")
	}
	if errors.Is(err, io.EOF) {
		return NewError(eofType, err, "channel became inactive")
	}
	return NewError(exceptionType, err, "channel error")
}

// SessionCreated is published on the creation future once a session is
// ready for use (§4.E, §4.F step 4).
type SessionCreated struct {
	Session  *Session
	Greeting Reply
}

// connectPlain runs the single-shot connect handler (§4.E) on a
// connection that is not upgrading to TLS via STARTTLS (it may already be
// a TLS connection, if the caller requested upfront TLS). It reads the
// server's greeting and, on a 220, hands the connection off to a new
// Session; on any other outcome it fails and closes the channel.
func connectPlain(conn net.Conn, userContext string, readTimeout time.Duration, maxLine int, logger *lalog.Logger, metrics sessionMetricsHook) (*SessionCreated, *Error) {
	if logger == nil {
		logger = lalog.DefaultLogger
	}
	framer := newLineFramer(maxLine)
	greeting, err := readAggregatedReply(conn, readTimeout, framer)
	if err != nil {
		_ = conn.Close()
		cerr := classifyBootstrapReadError(err, ConnectionFailedExceedIdleMax, ConnectionInactive, ConnectionFailedException)
		logger.Warning(userContext, cerr, "connect: failed waiting for server greeting")
		return nil, cerr
	}
	if greeting.Code() != CodeGreetingOrStartTLSReady {
		_ = conn.Close()
		logger.Warning(userContext, nil, "connect: server greeting carried code %d, not 220", greeting.Code())
		return nil, NewError(ConnectionFailedInvalidGreetingCode, nil, "server greeting was not code 220")
	}
	sess := newSession(conn, userContext, readTimeout, framer, logger, metrics)
	logger.Info(userContext, nil, "connect: session %d created after greeting %q", sess.ID(), greeting.Message())
	return &SessionCreated{Session: sess, Greeting: greeting}, nil
}
