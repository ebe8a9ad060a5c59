package smtpclient

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedDataCommandWaitsForContinuation(t *testing.T) {
	cmd := NewBufferedData([]byte("Subject: hi\r\n\r\nbody"))
	assert.Equal(t, "DATA\r\n", string(cmd.CommandLineBytes()))

	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: 250, IsLast: true})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, InvalidServerResponse, serr.Type)

	out, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeStartMailInput, IsLast: true})
	require.NoError(t, err)
	assert.Equal(t, "Subject: hi\r\n\r\nbody\r\n.\r\n", string(out))
}

func TestBufferedDataCommandCleanupZeroesBody(t *testing.T) {
	body := []byte("secret contents")
	cmd := NewBufferedData(body)
	cmd.Cleanup()
	for _, b := range body {
		assert.Zero(t, b)
	}
	assert.Nil(t, cmd.body)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk failure") }

func TestStreamedDataCommandEncodesChunksAndTerminator(t *testing.T) {
	cmd := NewStreamedData(bytes.NewReader([]byte("hello world")), 4)
	var buf bytes.Buffer
	err := cmd.EncodeCommandAfterContinuation(&buf, ReplyLine{Code: CodeStartMailInput, IsLast: true})
	require.NoError(t, err)
	assert.Equal(t, "hello world\r\n.\r\n", buf.String())
}

func TestStreamedDataCommandRejectsNonContinuation(t *testing.T) {
	cmd := NewStreamedData(bytes.NewReader(nil), 0)
	err := cmd.EncodeCommandAfterContinuation(io.Discard, ReplyLine{Code: 250, IsLast: true})
	require.Error(t, err)
}

func TestStreamedDataCommandPropagatesReadError(t *testing.T) {
	cmd := NewStreamedData(errReader{}, 0)
	var buf bytes.Buffer
	err := cmd.EncodeCommandAfterContinuation(&buf, ReplyLine{Code: CodeStartMailInput, IsLast: true})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, WriteToServerFailed, serr.Type)
}

func TestStreamedDataCommandIsSensitive(t *testing.T) {
	cmd := NewStreamedData(bytes.NewReader(nil), 0)
	assert.True(t, cmd.IsSensitive())
	assert.Equal(t, "DATA stream", cmd.DebugData())
}
