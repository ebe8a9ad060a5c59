package smtpclient

import (
	"bufio"
	"io"
)

// dataTerminator ends the DATA body per RFC 5321 §4.1.1.4. Dot-stuffing of
// lines beginning with "." is the message producer's responsibility, not
// this library's (§6).
const dataTerminator = "\r\n.\r\n"

// BufferedDataCommand sends "DATA\r\n" and, once the server signals a 354
// continuation, the entire message body materialised in memory followed
// by the dot terminator.
type BufferedDataCommand struct {
	notSensitive
	body []byte
}

// NewBufferedData builds a DATA command carrying the full RFC 5322 message
// body supplied up front.
func NewBufferedData(body []byte) *BufferedDataCommand {
	return &BufferedDataCommand{body: body}
}

func (c *BufferedDataCommand) CommandLineBytes() []byte { return []byte("DATA\r\n") }
func (c *BufferedDataCommand) CommandType() CommandType { return CommandData }
func (c *BufferedDataCommand) DebugData() string { return "DATA\r\n" }

// NextCommandLineAfterContinuation returns the body plus terminator once
// the server's 354 continuation arrives (§4.B's DATA wire form).
func (c *BufferedDataCommand) NextCommandLineAfterContinuation(reply ReplyLine) ([]byte, error) {
	if reply.Code != CodeStartMailInput {
		return nil, NewError(InvalidServerResponse, nil, "expected a 354 continuation before sending the DATA body")
	}
	out := make([]byte, 0, len(c.body)+len(dataTerminator))
	out = append(out, c.body...)
	out = append(out, dataTerminator...)
	return out, nil
}

// Cleanup zeroes the buffered message body.
func (c *BufferedDataCommand) Cleanup() {
	for i := range c.body {
		c.body[i] = 0
	}
	c.body = nil
}

// StreamedDataCommand sends "DATA\r\n" and, once the server signals
// continuation, writes the message body straight from a supplied stream
// to the channel in chunks instead of materialising it, followed by the
// dot terminator. It is sensitive: its debug label never reveals body
// content.
type StreamedDataCommand struct {
	body      io.Reader
	chunkSize int
}

// NewStreamedData builds a streaming DATA command that copies body to the
// channel as it is read, rather than buffering it whole. chunkSize of 0
// selects a sensible default (bufio's default buffer size).
func NewStreamedData(body io.Reader, chunkSize int) *StreamedDataCommand {
	return &StreamedDataCommand{body: body, chunkSize: chunkSize}
}

func (c *StreamedDataCommand) CommandLineBytes() []byte { return []byte("DATA\r\n") }
func (c *StreamedDataCommand) CommandType() CommandType { return CommandDataStream }
func (c *StreamedDataCommand) IsSensitive() bool { return true }
func (c *StreamedDataCommand) DebugData() string { return "DATA stream" }

// NextCommandLineAfterContinuation is never called in practice: the
// session prefers EncodeCommandAfterContinuation for any command
// implementing the streaming variant. It is supplied only to satisfy the
// Command interface and fails defensively if ever invoked directly.
func (c *StreamedDataCommand) NextCommandLineAfterContinuation(ReplyLine) ([]byte, error) {
	return nil, NewError(OperationNotSupportedForCommand, nil, "streamed DATA expects EncodeCommandAfterContinuation")
}

// EncodeCommandAfterContinuation streams the message body to w in chunks
// and writes the final dot terminator once the stream is exhausted.
func (c *StreamedDataCommand) EncodeCommandAfterContinuation(w io.Writer, reply ReplyLine) error {
	if reply.Code != CodeStartMailInput {
		return NewError(InvalidServerResponse, nil, "expected a 354 continuation before streaming the DATA body")
	}
	bufSize := c.chunkSize
	if bufSize <= 0 {
		bufSize = 4096
	}
	buf := make([]byte, bufSize)
	reader := bufio.NewReaderSize(c.body, bufSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return NewError(WriteToServerFailed, werr, "failed to write DATA stream chunk")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return NewError(WriteToServerFailed, err, "failed to read from DATA message stream")
		}
	}
	if _, err := w.Write([]byte(dataTerminator)); err != nil {
		return NewError(WriteToServerFailed, err, "failed to write DATA terminator")
	}
	return nil
}

// Cleanup releases the stream handle.
func (c *StreamedDataCommand) Cleanup() {
	c.body = nil
}
