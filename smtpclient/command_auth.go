package smtpclient

import (
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
)

// AuthPlainCommand sends "AUTH PLAIN <b64>\r\n" where the base64 payload
// is either user-supplied directly, or computed from credentials as
// base64(NUL || user || NUL || pass) (§4.B). The exchange never expects a
// continuation reply; a 3xx reply at this point is a protocol error.
type AuthPlainCommand struct {
	line []byte
}

// NewAuthPlain builds an AUTH PLAIN command, computing the initial
// response via the PLAIN SASL mechanism (github.com/emersion/go-sasl),
// the same library the retrieval pack already reaches for to name and
// frame SASL mechanisms (infodancer-pop3d/internal/pop3/sasl.go).
func NewAuthPlain(identity, user, pass string) *AuthPlainCommand {
	client := sasl.NewPlainClient(identity, user, pass)
	_, ir, _ := client.Start()
	return NewAuthPlainRaw(base64.StdEncoding.EncodeToString(ir))
}

// NewAuthPlainRaw builds an AUTH PLAIN command from an already base64
// encoded initial response, for callers that computed it themselves.
func NewAuthPlainRaw(b64 string) *AuthPlainCommand {
	return &AuthPlainCommand{line: []byte(fmt.Sprintf("AUTH PLAIN %s\r\n", b64))}
}

func (c *AuthPlainCommand) CommandLineBytes() []byte { return c.line }
func (c *AuthPlainCommand) CommandType() CommandType { return CommandAuthPlain }
func (c *AuthPlainCommand) IsSensitive() bool { return true }
func (c *AuthPlainCommand) DebugData() string { return "AUTH PLAIN <redacted>\r\n" }

func (c *AuthPlainCommand) NextCommandLineAfterContinuation(ReplyLine) ([]byte, error) {
	return nil, NewError(InvalidServerResponse, nil, "AUTH PLAIN does not expect a continuation reply")
}

// Cleanup zeroes the command line, which carries the base64 credentials.
func (c *AuthPlainCommand) Cleanup() {
	for i := range c.line {
		c.line[i] = 0
	}
	c.line = nil
}

// AuthLoginCommand sends "AUTH LOGIN\r\n", then responds to the server's
// two 334 continuations with base64(username) and base64(password) in
// turn (§4.B, §8 scenario 3).
type AuthLoginCommand struct {
	client       sasl.Client
	sentUsername bool
}

// NewAuthLogin builds an AUTH LOGIN command for the given credentials,
// using the LOGIN SASL mechanism from github.com/emersion/go-sasl.
func NewAuthLogin(user, pass string) *AuthLoginCommand {
	return &AuthLoginCommand{client: sasl.NewLoginClient(user, pass)}
}

func (c *AuthLoginCommand) CommandLineBytes() []byte { return []byte("AUTH LOGIN\r\n") }
func (c *AuthLoginCommand) CommandType() CommandType { return CommandAuthLogin }
func (c *AuthLoginCommand) IsSensitive() bool { return true }
func (c *AuthLoginCommand) DebugData() string { return "AUTH LOGIN\r\n" }

func (c *AuthLoginCommand) NextCommandLineAfterContinuation(reply ReplyLine) ([]byte, error) {
	if reply.Code != CodeContinuation {
		return nil, NewError(InvalidServerResponse, nil, "AUTH LOGIN expects a 334 continuation")
	}
	if c.client == nil {
		return nil, NewError(IllegalState, nil, "AUTH LOGIN command already completed")
	}
	challenge, err := base64.StdEncoding.DecodeString(reply.Message)
	if err != nil {
		return nil, NewError(InvalidServerResponse, err, "AUTH LOGIN challenge was not valid base64")
	}
	var response []byte
	if !c.sentUsername {
		// The LOGIN client yields the username as its initial response;
		// Next only answers the password prompt.
		_, response, err = c.client.Start()
		c.sentUsername = true
	} else {
		response, err = c.client.Next(challenge)
	}
	if err != nil {
		return nil, NewError(InvalidServerResponse, err, "AUTH LOGIN mechanism rejected the server challenge")
	}
	return []byte(base64.StdEncoding.EncodeToString(response) + "\r\n"), nil
}

// Cleanup drops the SASL client holding the credentials.
func (c *AuthLoginCommand) Cleanup() {
	c.client = nil
}

// AuthXOAuth2Command sends "AUTH XOAUTH2 <b64>\r\n" where the base64
// payload is "user=" || user || 0x01 || "auth=Bearer " || token || 0x01 0x01
// (§4.B). go-sasl's OAuthBearer mechanism produces RFC 7628's generic
// OAUTHBEARER payload, not this Google-specific XOAUTH2 layout byte for
// byte, so the payload is built directly (see DESIGN.md).
type AuthXOAuth2Command struct {
	line []byte
}

// NewAuthXOAuth2 builds an AUTH XOAUTH2 command for the given user and
// bearer token.
func NewAuthXOAuth2(user, token string) *AuthXOAuth2Command {
	raw := fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", user, token)
	b64 := base64.StdEncoding.EncodeToString([]byte(raw))
	return &AuthXOAuth2Command{line: []byte(fmt.Sprintf("AUTH XOAUTH2 %s\r\n", b64))}
}

func (c *AuthXOAuth2Command) CommandLineBytes() []byte { return c.line }
func (c *AuthXOAuth2Command) CommandType() CommandType { return CommandAuthXOAuth2 }
func (c *AuthXOAuth2Command) IsSensitive() bool { return true }
func (c *AuthXOAuth2Command) DebugData() string { return "AUTH XOAUTH2 <redacted>\r\n" }

// NextCommandLineAfterContinuation responds to a 334 error challenge (the
// server rejecting the token) with a bare CRLF to abort the exchange
// cleanly, preserving the wire behaviour the upstream SASL mechanism
// relies on in the wild (§9 Open Questions).
func (c *AuthXOAuth2Command) NextCommandLineAfterContinuation(reply ReplyLine) ([]byte, error) {
	if reply.Code != CodeContinuation {
		return nil, NewError(InvalidServerResponse, nil, "AUTH XOAUTH2 expects a 334 continuation")
	}
	return []byte("\r\n"), nil
}

// Cleanup zeroes the command line, which carries the bearer token.
func (c *AuthXOAuth2Command) Cleanup() {
	for i := range c.line {
		c.line[i] = 0
	}
	c.line = nil
}
