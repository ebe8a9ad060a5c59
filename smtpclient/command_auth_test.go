package smtpclient

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthPlainRawMatchesComputedPayload(t *testing.T) {
	computed := NewAuthPlain("", "user", "pass")

	raw := base64.StdEncoding.EncodeToString([]byte("\x00user\x00pass"))
	fromRaw := NewAuthPlainRaw(raw)

	assert.Equal(t, string(fromRaw.CommandLineBytes()), string(computed.CommandLineBytes()))
	assert.True(t, computed.IsSensitive())
	assert.Equal(t, "AUTH PLAIN <redacted>\r\n", computed.DebugData())
}

func TestAuthPlainRejectsContinuation(t *testing.T) {
	cmd := NewAuthPlain("", "user", "pass")
	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, IsLast: true})
	require.Error(t, err)
}

func TestAuthPlainCleanupZeroesLine(t *testing.T) {
	cmd := NewAuthPlain("", "user", "pass")
	cmd.Cleanup()
	assert.Nil(t, cmd.line)
}

func TestAuthLoginTwoContinuationExchange(t *testing.T) {
	cmd := NewAuthLogin("user", "pass")
	assert.Equal(t, "AUTH LOGIN\r\n", string(cmd.CommandLineBytes()))

	usernameChallenge := base64.StdEncoding.EncodeToString([]byte("Username:"))
	resp1, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, Message: usernameChallenge, IsLast: true})
	require.NoError(t, err)
	decoded1, err := base64.StdEncoding.DecodeString(string(resp1[:len(resp1)-2]))
	require.NoError(t, err)
	assert.Equal(t, "user", string(decoded1))

	passwordChallenge := base64.StdEncoding.EncodeToString([]byte("Password:"))
	resp2, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, Message: passwordChallenge, IsLast: true})
	require.NoError(t, err)
	decoded2, err := base64.StdEncoding.DecodeString(string(resp2[:len(resp2)-2]))
	require.NoError(t, err)
	assert.Equal(t, "pass", string(decoded2))
}

func TestAuthLoginRejectsNonContinuationReply(t *testing.T) {
	cmd := NewAuthLogin("user", "pass")
	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: 250, IsLast: true})
	require.Error(t, err)
}

func TestAuthLoginRejectsInvalidBase64Challenge(t *testing.T) {
	cmd := NewAuthLogin("user", "pass")
	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, Message: "not base64!!", IsLast: true})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, InvalidServerResponse, serr.Type)
}

func TestAuthLoginCleanupDropsClient(t *testing.T) {
	cmd := NewAuthLogin("user", "pass")
	cmd.Cleanup()
	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, Message: "", IsLast: true})
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, IllegalState, serr.Type)
}

func TestAuthXOAuth2PayloadConstruction(t *testing.T) {
	cmd := NewAuthXOAuth2("user@example.com", "token123")
	line := string(cmd.CommandLineBytes())
	assert.Contains(t, line, "AUTH XOAUTH2 ")
	assert.True(t, cmd.IsSensitive())

	prefix := "AUTH XOAUTH2 "
	b64 := line[len(prefix) : len(line)-2]
	decoded, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	assert.Equal(t, "user=user@example.com\x01auth=Bearer token123\x01\x01", string(decoded))
}

func TestAuthXOAuth2AbortsWithBareCRLFOnErrorChallenge(t *testing.T) {
	cmd := NewAuthXOAuth2("user@example.com", "token123")
	out, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: CodeContinuation, Message: "eyJzdGF0dXMiOiI0MDEifQ==", IsLast: true})
	require.NoError(t, err)
	assert.Equal(t, "\r\n", string(out))
}

func TestAuthXOAuth2RejectsNonContinuation(t *testing.T) {
	cmd := NewAuthXOAuth2("user@example.com", "token123")
	_, err := cmd.NextCommandLineAfterContinuation(ReplyLine{Code: 535, IsLast: true})
	require.Error(t, err)
}

func TestAuthXOAuth2CleanupZeroesLine(t *testing.T) {
	cmd := NewAuthXOAuth2("user@example.com", "token123")
	cmd.Cleanup()
	assert.Nil(t, cmd.line)
}
