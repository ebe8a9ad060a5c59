package smtpclient

import (
	"net"
	"testing"
	"time"

	"github.com/hzguo/asmtp/internal/lalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPlainSucceedsOnGreeting(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte("220 mx.example.com ready\r\n"))
	}()

	created, err := connectPlain(client, "batch-1", time.Second, 0, &lalog.Logger{}, nil)
	require.Nil(t, err)
	require.NotNil(t, created.Session)
	assert.Equal(t, 220, created.Greeting.Code())
	assert.Equal(t, "mx.example.com ready", created.Greeting.Message())

	created.Session.Close()
}

func TestConnectPlainFailsOnBadGreetingCode(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte("421 service not available\r\n"))
	}()

	_, err := connectPlain(client, "batch-1", time.Second, 0, &lalog.Logger{}, nil)
	require.NotNil(t, err)
	assert.Equal(t, ConnectionFailedInvalidGreetingCode, err.Type)
}

func TestConnectPlainFailsOnIdleTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	_, err := connectPlain(client, "batch-1", 20*time.Millisecond, 0, &lalog.Logger{}, nil)
	require.NotNil(t, err)
	assert.Equal(t, ConnectionFailedExceedIdleMax, err.Type)
}

func TestConnectPlainFailsWhenChannelGoesInactive(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		_ = server.Close()
	}()

	_, err := connectPlain(client, "batch-1", time.Second, 0, &lalog.Logger{}, nil)
	require.NotNil(t, err)
	assert.Equal(t, ConnectionInactive, err.Type)
}
