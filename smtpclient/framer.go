package smtpclient

import "bytes"

// DefaultMaxLineLength bounds a single inbound reply line, guarding against
// a misbehaving or malicious peer that never sends CRLF.
const DefaultMaxLineLength = 8192

// lineFramer is a delimiter-based decoder: it accumulates inbound bytes and
// emits frames split on CRLF with the delimiter stripped, exactly the
// "line framer" of §4.C. It is deliberately a plain buffer-and-scan type
// rather than a handler registered on a chain (see SPEC_FULL.md §5's
// implementation note) — the session event loop owns one per connection
// and calls Feed from its single reader goroutine.
type lineFramer struct {
	maxLineLength int
	buf           []byte
}

func newLineFramer(maxLineLength int) *lineFramer {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &lineFramer{maxLineLength: maxLineLength}
}

// Feed appends newly read bytes and returns every complete line (CRLF
// stripped) now available. It returns an error the moment buffered,
// undelimited data would exceed maxLineLength.
func (f *lineFramer) Feed(data []byte) ([][]byte, error) {
	f.buf = append(f.buf, data...)
	var lines [][]byte
	for {
		idx := bytes.Index(f.buf, []byte("\r\n"))
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, f.buf[:idx])
		lines = append(lines, line)
		f.buf = f.buf[idx+2:]
	}
	if len(f.buf) > f.maxLineLength {
		return lines, NewError(InvalidServerResponse, nil, "inbound line exceeded maximum line length")
	}
	return lines, nil
}

// Remaining returns the bytes buffered but not yet part of a complete
// line. Used only when splicing a TLS handler into the byte stream
// mid-conversation (§4.F step 3): any bytes the plaintext framer already
// consumed from the socket but hasn't handed out as a line must be
// replayed to the TLS handshake, not lost.
func (f *lineFramer) Remaining() []byte {
	return f.buf
}
