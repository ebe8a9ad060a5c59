package smtpclient

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/hzguo/asmtp/internal/lalog"
)

// sessionIDCounter hands out unique session identifiers, mirroring the
// teacher's habit of tagging long running connections with a small,
// monotonically increasing identifier for log correlation
// (tcpoverdns.TransmissionControl.ID).
var sessionIDCounter atomic.Uint64

// nextSessionID returns a fresh, unique session identifier.
func nextSessionID() uint64 {
	return sessionIDCounter.Add(1)
}

type inFlightPhase int

const (
	phaseNotSent inFlightPhase = iota
	phaseRequestSent
)

// inFlight tracks the single in-progress command a session may have, per
// §3's InFlight data model.
type inFlight struct {
	cmd        Command
	phase      inFlightPhase
	partial    []ReplyLine
	future     *Future[Reply]
	dispatched time.Time
}

// execRequest asks the session's event loop to admit and dispatch cmd.
type execRequest struct {
	cmd      Command
	admitted chan error
	future   *Future[Reply]
}

// closeRequest asks the session's event loop to close the channel.
type closeRequest struct {
	future *Future[bool]
}

type writeKind int

const (
	writeInitialDispatch writeKind = iota
	writeContinuationLine
	writeStreamedEncode
)

// writeResult reports the outcome of a write issued by the event loop's
// write goroutine.
type writeResult struct {
	kind writeKind
	err  error
}

// readerEvent is what the reader goroutine reports to the event loop: a
// batch of framed (not yet parsed) lines, an idle-timeout notification, or a fatal error
// that ended the reader loop.
type readerEvent struct {
	lines [][]byte
	idle  bool
	err   error
}

// Session drives one SMTP conversation over a single duplex byte stream
// (§3, §4.D). All of its mutable bookkeeping (inFlight, closed) is owned
// exclusively by one goroutine — the session's event loop — matching §5's
// affinity discipline: rather than a callback registered on a handler
// chain and invoked by a shared reactor thread pool, the Go rendering is
// one long-lived goroutine per channel, the same "one goroutine owns the
// socket" shape the teacher uses for every accepted connection
// (daemon/smtpd's per-connection handler, tcpoverdns.ProxyConnection.Start).
type Session struct {
	id          uint64
	userContext string
	conn        net.Conn
	logger      *lalog.Logger
	debugMode   atomic.Bool
	idleTimeout time.Duration

	wireLog *lalog.ByteLogWriter

	execCh   chan *execRequest
	closeCh  chan *closeRequest
	events   chan readerEvent
	writesCh chan writeResult
	loopDone chan struct{}
	closed   atomic.Bool

	metrics sessionMetricsHook
}

// sessionMetricsHook lets the client facade wire in optional metrics
// without the Session depending on a concrete metrics package.
type sessionMetricsHook interface {
	CommandExecuted(commandType string, d time.Duration, ok bool)
}

// newSession constructs and starts a Session bound to conn. It is called
// only by the connect handler and the STARTTLS handler once a session is
// ready to be created (§4.E step "construct a Session", §4.F step 4).
// On the connect path framer is the lineFramer instance the greeting was
// fed through, so a partial line already buffered after the greeting
// carries over; complete lines read in the same batch as the greeting's
// final line are not carried over. The STARTTLS path passes a fresh framer.
// The session logs through a copy of logger whose ComponentID additionally
// carries the session id (sId) and user context (uId).
func newSession(conn net.Conn, userContext string, idleTimeout time.Duration, framer *lineFramer, logger *lalog.Logger, metrics sessionMetricsHook) *Session {
	id := nextSessionID()
	sessLogger := &lalog.Logger{
		ComponentName: logger.ComponentName,
		ComponentID: append(append([]lalog.LoggerIDField(nil), logger.ComponentID...),
			lalog.LoggerIDField{Key: "sId", Value: id}, lalog.LoggerIDField{Key: "uId", Value: userContext}),
	}
	s := &Session{
		id:          id,
		userContext: userContext,
		conn:        conn,
		logger:      sessLogger,
		idleTimeout: idleTimeout,
		wireLog:     lalog.NewByteLogWriter(conn, 4096),
		execCh:      make(chan *execRequest),
		closeCh:     make(chan *closeRequest),
		events:      make(chan readerEvent, 8),
		writesCh:    make(chan writeResult, 8),
		loopDone:    make(chan struct{}),
		metrics:     metrics,
	}
	go s.readLoop(framer)
	go s.runEventLoop()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() uint64 { return s.id }

// SetDebugMode toggles verbose wire-level logging for this session.
func (s *Session) SetDebugMode(on bool) { s.debugMode.Store(on) }

// RecentWireBytes returns a copy of the most recent bytes written to the
// wire, for inspection when debugging a stuck conversation. It reuses the
// teacher's ByteLogWriter (lalog/byte_log_writer.go) rather than a
// bespoke ring buffer.
func (s *Session) RecentWireBytes() []byte {
	return s.wireLog.Retrieve(true)
}

func (s *Session) newErr(t FailureType, cause error, detail string) *Error {
	return (&Error{Type: t, Cause: cause, Detail: detail}).WithSession(s.id, s.userContext)
}

// Execute submits cmd for execution and returns a Future for its
// aggregated reply (§4.D's "Execute contract"). It fails synchronously,
// without touching the channel, if the channel is already closed or a
// command is already in flight.
func (s *Session) Execute(cmd Command) (*Future[Reply], error) {
	if s.closed.Load() {
		return nil, s.newErr(OperationProhibitedOnClosedChannel, nil, "session is closed")
	}
	future := NewFuture[Reply]()
	req := &execRequest{cmd: cmd, admitted: make(chan error, 1), future: future}
	select {
	case s.execCh <- req:
	case <-s.loopDone:
		return nil, s.newErr(OperationProhibitedOnClosedChannel, nil, "session is closed")
	}
	select {
	case err := <-req.admitted:
		if err != nil {
			return nil, err
		}
		return future, nil
	case <-s.loopDone:
		return nil, s.newErr(OperationProhibitedOnClosedChannel, nil, "session is closed")
	}
}

// Close closes the underlying channel and returns a future that resolves
// once the close completes. Closing an already-closed session is
// idempotent and resolves true immediately (§4.D).
func (s *Session) Close() *Future[bool] {
	future := NewFuture[bool]()
	if s.closed.Load() {
		future.Done(true, nil)
		return future
	}
	req := &closeRequest{future: future}
	select {
	case s.closeCh <- req:
	case <-s.loopDone:
		future.Done(true, nil)
	}
	return future
}

// readLoop is the sole reader of the connection. It never touches session
// state directly; it only frames inbound bytes and forwards events to the
// event loop, keeping the affinity invariant intact with two goroutines
// instead of one without requiring any lock on session bookkeeping. The
// reading itself is done by runLineReader.
func (s *Session) readLoop(framer *lineFramer) {
	runLineReader(s.conn, s.idleTimeout, framer, s.events, s.loopDone)
}

func (s *Session) sendEvent(ev readerEvent) {
	select {
	case s.events <- ev:
	case <-s.loopDone:
	}
}

// runLineReader blocks reading conn, framing inbound bytes into lines and
// forwarding readerEvents to out. Only an established Session runs it; the
// pre-session bootstrap phases (connect.go, starttls.go) read with
// readFramedLines in their own goroutine, and the reader loop starts only
// after the handover, so the connection has one reader at a time.
func runLineReader(conn net.Conn, idleTimeout time.Duration, framer *lineFramer, out chan<- readerEvent, done <-chan struct{}) {
	buf := make([]byte, 4096)
	send := func(ev readerEvent) {
		select {
		case out <- ev:
		case <-done:
		}
	}
	for {
		if idleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			lines, ferr := framer.Feed(buf[:n])
			if ferr != nil {
				send(readerEvent{err: ferr})
				return
			}
			if len(lines) > 0 {
				send(readerEvent{lines: lines})
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				send(readerEvent{idle: true})
				continue
			}
			send(readerEvent{err: err})
			return
		}
	}
}

func (s *Session) issueWrite(data []byte, kind writeKind) {
	go func() {
		_, err := s.wireLog.Write(data)
		select {
		case s.writesCh <- writeResult{kind: kind, err: err}:
		case <-s.loopDone:
		}
	}()
}

// runEventLoop is the session's single mutator goroutine.
func (s *Session) runEventLoop() {
	var cur *inFlight
	for {
		select {
		case req := <-s.execCh:
			if s.closed.Load() {
				req.admitted <- s.newErr(OperationProhibitedOnClosedChannel, nil, "session is closed")
				continue
			}
			if cur != nil {
				req.admitted <- s.newErr(CommandNotAllowed, nil, "a command is already in flight")
				continue
			}
			cur = &inFlight{cmd: req.cmd, phase: phaseNotSent, future: req.future, dispatched: time.Now()}
			req.admitted <- nil
			s.logSend(req.cmd)
			s.issueWrite(req.cmd.CommandLineBytes(), writeInitialDispatch)

		case req := <-s.closeCh:
			if cur != nil {
				s.abortInFlight(cur, ChannelDisconnected, nil, "session is closing")
				cur = nil
			}
			err := s.conn.Close()
			s.closed.Store(true)
			close(s.loopDone)
			if err != nil {
				req.future.Done(false, s.newErr(ClosingConnectionFailed, err, "failed to close underlying channel"))
			} else {
				req.future.Done(true, nil)
			}
			return

		case res := <-s.writesCh:
			if cur == nil {
				continue
			}
			if res.err != nil {
				failType := ChannelException
				if kind := res.kind; kind == writeStreamedEncode {
					if serr, ok := res.err.(*Error); ok {
						failType = serr.Type
					} else {
						failType = WriteToServerFailed
					}
				}
				s.abortInFlight(cur, failType, res.err, "write to server failed")
				cur = nil
				s.fatalClose()
				return
			}
			if res.kind == writeInitialDispatch {
				cur.phase = phaseRequestSent
			}

		case ev := <-s.events:
			if ev.err != nil {
				if cur != nil {
					s.abortInFlight(cur, ChannelDisconnected, ev.err, "channel became inactive")
					cur = nil
				}
				s.fatalClose()
				return
			}
			if ev.idle {
				if cur != nil && cur.phase == phaseRequestSent {
					s.abortInFlight(cur, ChannelTimeout, nil, "idle read timeout while awaiting reply")
					cur = nil
					s.fatalClose()
					return
				}
				continue
			}
			for _, raw := range ev.lines {
				line, perr := ParseReplyLine(raw)
				if perr != nil {
					if cur != nil {
						s.abortInFlight(cur, InvalidServerResponse, perr, "malformed reply line")
						cur = nil
					}
					s.fatalClose()
					return
				}
				s.logRecv(line)
				if cur == nil {
					continue // spurious line after close / with no in-flight command
				}
				cur.partial = append(cur.partial, line)
				if line.IsContinuation() {
					if sc, ok := cur.cmd.(streamingCommand); ok {
						w := s.wireLog
						go func(c streamingCommand, l ReplyLine) {
							err := c.EncodeCommandAfterContinuation(w, l)
							select {
							case s.writesCh <- writeResult{kind: writeStreamedEncode, err: err}:
							case <-s.loopDone:
							}
						}(sc, line)
						continue
					}
					next, err := cur.cmd.NextCommandLineAfterContinuation(line)
					if err != nil {
						failType := WriteToServerFailed
						if serr, ok := err.(*Error); ok {
							failType = serr.Type
						}
						s.abortInFlight(cur, failType, err, "failed to produce continuation payload")
						cur = nil
						s.fatalClose()
						return
					}
					if next == nil {
						s.abortInFlight(cur, WriteToServerFailed, nil, "command produced no continuation payload")
						cur = nil
						s.fatalClose()
						return
					}
					s.issueWrite(next, writeContinuationLine)
					continue
				}
				if line.IsLast {
					reply := Reply{Lines: cur.partial}
					s.complete(cur, reply)
					cur = nil
				}
			}
		}
	}
}

func (s *Session) fatalClose() {
	if s.closed.Load() {
		return
	}
	s.closed.Store(true)
	_ = s.conn.Close()
	close(s.loopDone)
}

// abortInFlight fails the in-flight command's future, invoking its
// cleanup exactly once (§8's cleanup invariant).
func (s *Session) abortInFlight(cur *inFlight, t FailureType, cause error, detail string) {
	cur.cmd.Cleanup()
	cur.future.Done(Reply{}, s.newErr(t, cause, detail))
	s.reportMetric(cur, false)
}

// complete resolves the in-flight command's future with a successful
// aggregated reply, invoking cleanup exactly once.
func (s *Session) complete(cur *inFlight, reply Reply) {
	cur.cmd.Cleanup()
	cur.future.Done(reply, nil)
	s.reportMetric(cur, true)
}

func (s *Session) reportMetric(cur *inFlight, ok bool) {
	if s.metrics == nil {
		return
	}
	var d time.Duration
	if !cur.dispatched.IsZero() {
		d = time.Since(cur.dispatched)
	}
	s.metrics.CommandExecuted(string(cur.cmd.CommandType()), d, ok)
}

func (s *Session) logSend(cmd Command) {
	if !s.debugMode.Load() {
		return
	}
	data := string(cmd.CommandLineBytes())
	if cmd.IsSensitive() {
		data = cmd.DebugData()
	}
	s.logger.Info(s.actorTag(), nil, "send: %s", trimCRLF(data))
}

func (s *Session) logRecv(line ReplyLine) {
	if !s.debugMode.Load() {
		return
	}
	s.logger.Info(s.actorTag(), nil, "recv: %s", trimCRLF(string(line.Bytes())))
}

func (s *Session) actorTag() string {
	return s.userContext
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
