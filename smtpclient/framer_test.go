package smtpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFramerFeedSingleLine(t *testing.T) {
	f := newLineFramer(0)
	lines, err := f.Feed([]byte("220 ok\r\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "220 ok", string(lines[0]))
}

func TestLineFramerFeedAcrossCalls(t *testing.T) {
	f := newLineFramer(0)
	lines, err := f.Feed([]byte("250-hos"))
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = f.Feed([]byte("t\r\n250 ok\r\n"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "250-host", string(lines[0]))
	assert.Equal(t, "250 ok", string(lines[1]))
}

func TestLineFramerMaxLineLength(t *testing.T) {
	f := newLineFramer(8)
	_, err := f.Feed([]byte("123456789"))
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, InvalidServerResponse, serr.Type)
}

func TestLineFramerRemaining(t *testing.T) {
	f := newLineFramer(0)
	_, err := f.Feed([]byte("220 ok\r\nGARBA"))
	require.NoError(t, err)
	assert.Equal(t, "GARBA", string(f.Remaining()))
}
