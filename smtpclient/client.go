package smtpclient

import (
	"context"
	"time"

	"github.com/hzguo/asmtp/internal/lalog"
	"github.com/hzguo/asmtp/internal/smtpmetrics"
)

// SessionData names the remote MTA and the session options the caller
// wants (§6's library surface). DNS/MX resolution is the caller's
// concern (§1 Non-goals); Host is dialled as given.
type SessionData struct {
	Host           string
	Port           int
	SNINames       []string
	SessionContext string
	// UseTLS wraps the connection in TLS immediately after dialling,
	// before any SMTP traffic is exchanged.
	UseTLS bool
	// UseStartTLS runs the plaintext greeting/EHLO/STARTTLS state machine
	// (§4.F) and upgrades to TLS mid-conversation. Mutually exclusive
	// with UseTLS; UseStartTLS takes priority if both are set.
	UseStartTLS bool
	ReadTimeout time.Duration
	MaxLine     int
}

// Config carries per-call tuning that isn't about which server to reach.
type Config struct {
	// ClientName identifies this client in EHLO/HELO command lines.
	ClientName string
}

// Client is the facade applications use to open sessions (§4.G). A
// single Client is typically shared across many concurrent
// CreateSession calls; Transport and SSLContextFactory must be safe for
// concurrent use (§5's "shared resources").
type Client struct {
	transport  Transport
	sslFactory SSLContextFactory
	logger     *lalog.Logger
	metrics    *smtpmetrics.Metrics
}

// NewClient builds a Client. metrics may be nil to disable instrumentation.
// logger may be nil, in which case lalog.DefaultLogger is used, matching
// the teacher's RateLimit nil-logger default.
func NewClient(transport Transport, sslFactory SSLContextFactory, logger *lalog.Logger, metrics *smtpmetrics.Metrics) *Client {
	if logger == nil {
		logger = lalog.DefaultLogger
	}
	return &Client{transport: transport, sslFactory: sslFactory, logger: logger, metrics: metrics}
}

// CreateSession dials data.Host:data.Port, runs whichever connection
// setup data requests (plaintext greeting, upfront TLS, or STARTTLS), and
// returns a future for the resulting session (§4.G, §6). The future is
// always completed by a later goroutine; CreateSession itself never
// blocks the caller.
func (c *Client) CreateSession(ctx context.Context, data SessionData, cfg Config) *Future[SessionCreated] {
	future := NewFuture[SessionCreated]()
	go func() {
		created, err := c.createSession(ctx, data, cfg)
		if err != nil {
			if c.metrics != nil {
				c.metrics.SessionFailed(string(err.Type))
			}
			future.Done(SessionCreated{}, err)
			return
		}
		if c.metrics != nil {
			c.metrics.SessionCreated()
		}
		future.Done(*created, nil)
	}()
	return future
}

func (c *Client) createSession(ctx context.Context, data SessionData, cfg Config) (*SessionCreated, *Error) {
	conn, err := c.transport.Dial(ctx, data.Host, data.Port)
	if err != nil {
		return nil, NewError(ConnectionFailedException, err, "failed to dial transport")
	}

	maxLine := data.MaxLine
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}

	if data.UseStartTLS {
		if c.metrics != nil {
			c.metrics.StartTLSAttempted()
		}
		created, serr := starttlsUpgrade(ctx, conn, data.Host, data.Port, data.SNINames, cfg.ClientName, data.SessionContext, data.ReadTimeout, maxLine, c.sslFactory, c.logger, c.metrics)
		if serr != nil {
			return nil, serr
		}
		if c.metrics != nil {
			c.metrics.StartTLSSucceeded()
		}
		return created, nil
	}

	if data.UseTLS {
		handshaker, herr := c.sslFactory.NewHandshaker(conn, data.Host, data.Port, data.SNINames)
		if herr != nil {
			_ = conn.Close()
			return nil, NewError(SSLContextException, herr, "failed to construct TLS handshaker")
		}
		if herr := handshaker.Handshake(ctx); herr != nil {
			_ = conn.Close()
			return nil, NewError(ConnectionFailedException, herr, "TLS handshake failed")
		}
		return connectPlain(handshaker, data.SessionContext, data.ReadTimeout, maxLine, c.logger, c.metrics)
	}

	return connectPlain(conn, data.SessionContext, data.ReadTimeout, maxLine, c.logger, c.metrics)
}
