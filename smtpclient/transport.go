package smtpclient

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"
)

// Transport opens a TCP connection to the remote MTA. It is the external
// collaborator named in §6; DNS/MX resolution and connection pooling are
// explicitly out of scope (§1 Non-goals) and left to the caller's
// implementation of this interface.
type Transport interface {
	// Dial opens a duplex byte stream to host:port.
	Dial(ctx context.Context, host string, port int) (net.Conn, error)
}

// netTransport is the default Transport, a thin wrapper over net.Dialer —
// the same dependency-free dialing style the teacher uses in
// inet.dialMTA (net.DialTimeout over "tcp").
type netTransport struct {
	dialer net.Dialer
}

// NewNetTransport returns a Transport that dials plain TCP with the
// given connect timeout.
func NewNetTransport(connectTimeout time.Duration) Transport {
	return &netTransport{dialer: net.Dialer{Timeout: connectTimeout}}
}

func (t *netTransport) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	return t.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// SSLContextFactory builds a TLS handshaker for a given host/port/SNI
// names (§6). A configured *tls.Config satisfies nearly every use case;
// this is kept as an interface so callers can supply a custom handshaker
// (e.g. one that pins certificates) without this library depending on
// their certificate store.
type SSLContextFactory interface {
	// NewHandshaker returns a client-side TLS connection wrapping conn,
	// configured for the given host/port/SNI names. The returned
	// connection has not yet handshaked.
	NewHandshaker(conn net.Conn, host string, port int, sniNames []string) (SSLHandler, error)
}

// SSLHandler performs (and reports the outcome of) a TLS handshake over
// an established plaintext connection, then behaves as the ongoing duplex
// stream (§6, §4.F step 3: "splices a TLS handler into the byte stream").
type SSLHandler interface {
	net.Conn
	// Handshake runs (or waits for) the TLS handshake and reports its
	// outcome. It is called once, from the goroutine setting up the
	// connection, before any Session is created on it.
	Handshake(ctx context.Context) error
}

// defaultSSLContextFactory adapts crypto/tls into an SSLContextFactory,
// mirroring inet.dialMTA's use of tls.Client/tls.Config{ServerName: ...}.
type defaultSSLContextFactory struct {
	config *tls.Config
}

// NewDefaultSSLContextFactory returns an SSLContextFactory backed by
// crypto/tls. A nil config uses sensible library defaults; SNI names
// passed to NewHandshaker take priority over config.ServerName.
func NewDefaultSSLContextFactory(config *tls.Config) SSLContextFactory {
	return &defaultSSLContextFactory{config: config}
}

func (f *defaultSSLContextFactory) NewHandshaker(conn net.Conn, host string, port int, sniNames []string) (SSLHandler, error) {
	cfg := &tls.Config{}
	if f.config != nil {
		cfg = f.config.Clone()
	}
	if len(sniNames) > 0 {
		cfg.ServerName = sniNames[0]
	} else if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return &tlsHandshaker{Conn: tls.Client(conn, cfg)}, nil
}

type tlsHandshaker struct {
	*tls.Conn
}

func (h *tlsHandshaker) Handshake(ctx context.Context) error {
	return h.Conn.HandshakeContext(ctx)
}
