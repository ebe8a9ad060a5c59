package smtpclient

import "strings"

// Param is an ESMTP extension parameter attached to MAIL FROM or RCPT TO,
// e.g. {Name: "SIZE", Value: "10240"}. A parameter with an empty Value is
// rendered without the "=value" suffix (e.g. "BODY" alone).
type Param struct {
	Name  string
	Value string
}

func renderParams(params []Param) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteByte(' ')
		b.WriteString(p.Name)
		if p.Value != "" {
			b.WriteByte('=')
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

// MailFromCommand sends "MAIL FROM:<addr>[ param]*\r\n". An empty sender
// defaults to the null reverse-path "<>" per §4.B.
type MailFromCommand struct {
	*simpleCommand
}

// NewMailFrom builds a MAIL FROM command. sender may be empty, which
// renders as "<>" (the null reverse path used for bounce notifications).
func NewMailFrom(sender string, params ...Param) *MailFromCommand {
	addr := sender
	if addr == "" {
		addr = "<>"
	} else if !strings.HasPrefix(addr, "<") {
		addr = "<" + addr + ">"
	}
	verb := "MAIL FROM:" + addr + renderParams(params)
	return &MailFromCommand{newSimpleCommand(CommandMailFrom, verb)}
}

// RcptToCommand sends "RCPT TO:<addr>[ param]*\r\n". RFC 5321 §3.3 permits
// the same ESMTP parameter syntax on RCPT as on MAIL; SPEC_FULL.md extends
// the parameter list to this command for that reason.
type RcptToCommand struct {
	*simpleCommand
}

// NewRcptTo builds a RCPT TO command for the given recipient address.
func NewRcptTo(recipient string, params ...Param) *RcptToCommand {
	addr := recipient
	if !strings.HasPrefix(addr, "<") {
		addr = "<" + addr + ">"
	}
	verb := "RCPT TO:" + addr + renderParams(params)
	return &RcptToCommand{newSimpleCommand(CommandRcptTo, verb)}
}
