package smtpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyLine(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    ReplyLine
		wantErr bool
	}{
		{name: "terminal with message", in: "250 ok", want: ReplyLine{Code: 250, IsLast: true, Message: "ok"}},
		{name: "non-terminal with message", in: "250-host", want: ReplyLine{Code: 250, IsLast: false, Message: "host"}},
		{name: "code only", in: "220", want: ReplyLine{Code: 220, IsLast: true}},
		{name: "too short", in: "25", wantErr: true},
		{name: "non digit prefix", in: "25a ok", wantErr: true},
		{name: "bad separator", in: "250xok", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseReplyLine([]byte(c.in))
			if c.wantErr {
				require.Error(t, err)
				var serr *Error
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, InvalidServerResponse, serr.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestReplyLineClassAndContinuation(t *testing.T) {
	l := ReplyLine{Code: 334, IsLast: true, Message: "VXNlcm5hbWU6"}
	assert.Equal(t, PositiveIntermediate, l.Class())
	assert.True(t, l.IsContinuation())

	nonTerminal := ReplyLine{Code: 334, IsLast: false}
	assert.False(t, nonTerminal.IsContinuation())
}

func TestReplyLineRoundTrip(t *testing.T) {
	cases := []string{"250 ok", "250-host", "220", "550 no such user"}
	for _, in := range cases {
		line, err := ParseReplyLine([]byte(in))
		require.NoError(t, err)
		assert.Equal(t, in, string(line.Bytes()))
	}
}

func TestAggregatedReply(t *testing.T) {
	r := Reply{Lines: []ReplyLine{
		{Code: 250, IsLast: false, Message: "host"},
		{Code: 250, IsLast: false, Message: "SIZE 10240"},
		{Code: 250, IsLast: true, Message: "HELP"},
	}}
	assert.Equal(t, 250, r.Code())
	assert.Equal(t, PositiveCompletion, r.Class())
	assert.Equal(t, "HELP", r.Message())
}
