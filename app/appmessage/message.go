// Package appmessage defines the wire messages exchanged between brokers
// (spec.md §6): a small, transport-agnostic set of Go structs implementing
// a common Message interface, encoded with util/binaryserializer's
// fixed-width primitives. Grounded on the teacher's own app/appmessage
// package shape (message.go's Message interface plus one file per message),
// trimmed to this protocol's needs: no RPC layer is specified, so the
// teacher's MessageNumber/ReceivedAt request-response bookkeeping is
// dropped and Message exposes only Command().
package appmessage

// MessageCommand identifies the concrete type of a Message on the wire.
type MessageCommand uint8

const (
	CmdHello MessageCommand = iota
	CmdHelloAck
	CmdPing
	CmdPong
	CmdGetBlocks
	CmdSendBlocks
	CmdGetHeaders
	CmdSendHeaders
)

var commandToString = map[MessageCommand]string{
	CmdHello:       "Hello",
	CmdHelloAck:    "HelloAck",
	CmdPing:        "Ping",
	CmdPong:        "Pong",
	CmdGetBlocks:   "GetBlocks",
	CmdSendBlocks:  "SendBlocks",
	CmdGetHeaders:  "GetHeaders",
	CmdSendHeaders: "SendHeaders",
}

// String returns the command's human-readable name, for logging.
func (cmd MessageCommand) String() string {
	if s, ok := commandToString[cmd]; ok {
		return s
	}
	return "Unknown"
}

// Message is implemented by every wire message this protocol exchanges.
type Message interface {
	Command() MessageCommand
}
