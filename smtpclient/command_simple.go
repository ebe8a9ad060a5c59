package smtpclient

import "fmt"

// simpleCommand is the shared struct fixed-verb commands embed (§9 design
// note: "share helpers like a simple command with fixed verb via a small
// struct the variants embed").
type simpleCommand struct {
	noContinuation
	noCleanup
	notSensitive
	line []byte
	typ  CommandType
}

func (c *simpleCommand) CommandLineBytes() []byte { return c.line }
func (c *simpleCommand) CommandType() CommandType { return c.typ }
func (c *simpleCommand) DebugData() string { return string(c.line) }

func newSimpleCommand(typ CommandType, verb string) *simpleCommand {
	return &simpleCommand{line: []byte(verb + "\r\n"), typ: typ}
}

// EHLOCommand sends "EHLO <name>\r\n".
type EHLOCommand struct{ *simpleCommand }

// NewEHLO builds an EHLO command identifying the client as name.
func NewEHLO(name string) *EHLOCommand {
	return &EHLOCommand{newSimpleCommand(CommandEHLO, fmt.Sprintf("EHLO %s", name))}
}

// HELOCommand sends "HELO <name>\r\n".
type HELOCommand struct{ *simpleCommand }

// NewHELO builds a HELO command identifying the client as name.
func NewHELO(name string) *HELOCommand {
	return &HELOCommand{newSimpleCommand(CommandHELO, fmt.Sprintf("HELO %s", name))}
}

// RSETCommand sends "RSET\r\n".
type RSETCommand struct{ *simpleCommand }

// NewRSET builds a RSET command.
func NewRSET() *RSETCommand { return &RSETCommand{newSimpleCommand(CommandRset, "RSET")} }

// NOOPCommand sends "NOOP\r\n".
type NOOPCommand struct{ *simpleCommand }

// NewNOOP builds a NOOP command.
func NewNOOP() *NOOPCommand { return &NOOPCommand{newSimpleCommand(CommandNoop, "NOOP")} }

// QUITCommand sends "QUIT\r\n".
type QUITCommand struct{ *simpleCommand }

// NewQUIT builds a QUIT command.
func NewQUIT() *QUITCommand { return &QUITCommand{newSimpleCommand(CommandQuit, "QUIT")} }

// STARTTLSCommand sends "STARTTLS\r\n". It is only used by the STARTTLS
// handler itself (§4.F); applications never execute it directly through
// Session.Execute because the handler issues it during connection setup.
type STARTTLSCommand struct{ *simpleCommand }

// NewSTARTTLS builds a STARTTLS command.
func NewSTARTTLS() *STARTTLSCommand {
	return &STARTTLSCommand{newSimpleCommand(CommandStartTLS, "STARTTLS")}
}

// VRFYCommand sends "VRFY <arg>\r\n".
type VRFYCommand struct{ *simpleCommand }

// NewVRFY builds a VRFY command for the given mailbox argument.
func NewVRFY(arg string) *VRFYCommand {
	return &VRFYCommand{newSimpleCommand(CommandVrfy, fmt.Sprintf("VRFY %s", arg))}
}

// EXPNCommand sends "EXPN <arg>\r\n".
type EXPNCommand struct{ *simpleCommand }

// NewEXPN builds an EXPN command for the given mailing list argument.
func NewEXPN(arg string) *EXPNCommand {
	return &EXPNCommand{newSimpleCommand(CommandExpn, fmt.Sprintf("EXPN %s", arg))}
}

// HELPCommand sends "HELP\r\n" or "HELP <arg>\r\n".
type HELPCommand struct{ *simpleCommand }

// NewHELP builds a HELP command. An empty arg omits the optional argument.
func NewHELP(arg string) *HELPCommand {
	verb := "HELP"
	if arg != "" {
		verb = fmt.Sprintf("HELP %s", arg)
	}
	return &HELPCommand{newSimpleCommand(CommandHelp, verb)}
}
