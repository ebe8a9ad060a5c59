package smtpclient

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hzguo/asmtp/internal/lalog"
)

// primedConn is a net.Conn that replays leftover bytes a plaintext
// lineFramer had already pulled off the socket before anything else is
// read from the underlying connection. It exists solely to splice a TLS
// handshake onto a connection whose last plaintext read may have
// over-read into the start of the TLS handshake (§4.F step 3, §9
// "handler chain mutation").
type primedConn struct {
	net.Conn
	leftover []byte
}

func (c *primedConn) Read(p []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	return c.Conn.Read(p)
}

// starttlsUpgrade runs the four-step STARTTLS state machine (§4.F) on a
// freshly dialled plaintext connection: greeting, EHLO capability check,
// STARTTLS, TLS handshake, then hands off to a new Session. It returns
// the same SessionCreated shape connectPlain does, carrying the prior 220
// STARTTLS reply rather than the initial greeting (per §4.F step 4).
func starttlsUpgrade(ctx context.Context, conn net.Conn, host string, port int, sniNames []string, clientName, userContext string, readTimeout time.Duration, maxLine int, sslFactory SSLContextFactory, logger *lalog.Logger, metrics sessionMetricsHook) (*SessionCreated, *Error) {
	if logger == nil {
		logger = lalog.DefaultLogger
	}
	framer := newLineFramer(maxLine)

	// Step 1: GET_SERVER_GREETING
	greeting, err := readAggregatedReply(conn, readTimeout, framer)
	if err != nil {
		_ = conn.Close()
		cerr := classifyBootstrapReadError(err, ChannelTimeout, ChannelInactive, ChannelException)
		logger.Warning(userContext, cerr, "starttls: failed waiting for server greeting")
		return nil, cerr
	}
	if greeting.Code() != CodeGreetingOrStartTLSReady {
		_ = conn.Close()
		logger.Warning(userContext, nil, "starttls: server greeting carried code %d, not 220", greeting.Code())
		return nil, NewError(ConnectionFailedInvalidGreetingCode, nil, "server greeting was not code 220")
	}

	// Step 2: GET_EHLO_RESP
	ehlo := NewEHLO(clientName)
	if _, werr := conn.Write(ehlo.CommandLineBytes()); werr != nil {
		_ = conn.Close()
		return nil, NewError(ChannelException, werr, "failed to write EHLO")
	}
	ehloReply, err := readAggregatedReply(conn, readTimeout, framer)
	if err != nil {
		_ = conn.Close()
		return nil, classifyBootstrapReadError(err, ChannelTimeout, ChannelInactive, ChannelException)
	}
	if ehloReply.Class() != PositiveCompletion {
		_ = conn.Close()
		return nil, NewError(BadEHLOResponse, nil, "EHLO did not receive a positive completion reply")
	}
	sawSTARTTLS := false
	for _, line := range ehloReply.Lines {
		if strings.EqualFold(strings.TrimSpace(line.Message), "STARTTLS") {
			sawSTARTTLS = true
			break
		}
	}
	if !sawSTARTTLS {
		_ = conn.Close()
		logger.Warning(userContext, nil, "starttls: server EHLO response did not advertise STARTTLS")
		return nil, NewError(NoStartTLSCapability, nil, "server EHLO response did not advertise STARTTLS")
	}

	// Step 3: GET_STARTTLS_RESP
	starttls := NewSTARTTLS()
	if _, werr := conn.Write(starttls.CommandLineBytes()); werr != nil {
		_ = conn.Close()
		return nil, NewError(ChannelException, werr, "failed to write STARTTLS")
	}
	starttlsReply, err := readAggregatedReply(conn, readTimeout, framer)
	if err != nil {
		_ = conn.Close()
		return nil, classifyBootstrapReadError(err, ChannelTimeout, ChannelInactive, ChannelException)
	}
	if starttlsReply.Code() != CodeGreetingOrStartTLSReady {
		_ = conn.Close()
		return nil, NewError(BadStartTLSResponse, nil, "STARTTLS was not accepted with code 220")
	}

	primed := &primedConn{Conn: conn, leftover: append([]byte(nil), framer.Remaining()...)}
	handshaker, err := sslFactory.NewHandshaker(primed, host, port, sniNames)
	if err != nil {
		_ = conn.Close()
		return nil, NewError(SSLContextException, err, "failed to construct TLS handshaker")
	}

	// Step 4: handshake, then hand off to a Session.
	if err := handshaker.Handshake(ctx); err != nil {
		_ = conn.Close()
		logger.Warning(userContext, err, "starttls: TLS handshake failed")
		return nil, NewError(ConnectionFailedException, err, "TLS handshake failed")
	}
	sess := newSession(handshaker, userContext, readTimeout, newLineFramer(maxLine), logger, metrics)
	logger.Info(userContext, nil, "starttls: session %d created after upgrading to TLS", sess.ID())
	return &SessionCreated{Session: sess, Greeting: starttlsReply}, nil
}
