package appmessage

import (
	"io"

	"github.com/shardflow/flowdag/util/binaryserializer"
)

// HelloMessage is the first message a broker sends after a connection is
// established, announcing its node identity (spec.md §6). Grounded on the
// teacher's msgversion.go handshake shape, trimmed to the three fields this
// protocol's handshake needs: node id, shard count and network id.
type HelloMessage struct {
	NodeId  string
	Groups  uint32
	Network uint32
}

// NewHelloMessage builds a HelloMessage announcing nodeId's identity and the
// local flow's shard count and network id, so the remote broker can reject
// a handshake against an incompatible flow before exchanging any data.
func NewHelloMessage(nodeId string, groups int, networkId uint32) *HelloMessage {
	return &HelloMessage{NodeId: nodeId, Groups: uint32(groups), Network: networkId}
}

// Command implements Message.
func (msg *HelloMessage) Command() MessageCommand { return CmdHello }

// Encode writes msg to w.
func (msg *HelloMessage) Encode(w io.Writer) error {
	if err := writeBytes(w, []byte(msg.NodeId)); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, msg.Groups); err != nil {
		return err
	}
	return binaryserializer.PutUint32(w, msg.Network)
}

// DecodeHelloMessage reads a HelloMessage from r.
func DecodeHelloMessage(r io.Reader) (*HelloMessage, error) {
	nodeId, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	groups, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	network, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	return &HelloMessage{NodeId: string(nodeId), Groups: groups, Network: network}, nil
}

// HelloAckMessage is the reply to a HelloMessage, echoing back the
// responder's own identity so both sides learn each other's NodeId.
type HelloAckMessage struct {
	NodeId  string
	Groups  uint32
	Network uint32
}

// NewHelloAckMessage builds a HelloAckMessage for nodeId.
func NewHelloAckMessage(nodeId string, groups int, networkId uint32) *HelloAckMessage {
	return &HelloAckMessage{NodeId: nodeId, Groups: uint32(groups), Network: networkId}
}

// Command implements Message.
func (msg *HelloAckMessage) Command() MessageCommand { return CmdHelloAck }

// Encode writes msg to w.
func (msg *HelloAckMessage) Encode(w io.Writer) error {
	if err := writeBytes(w, []byte(msg.NodeId)); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, msg.Groups); err != nil {
		return err
	}
	return binaryserializer.PutUint32(w, msg.Network)
}

// DecodeHelloAckMessage reads a HelloAckMessage from r.
func DecodeHelloAckMessage(r io.Reader) (*HelloAckMessage, error) {
	nodeId, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	groups, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	network, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	return &HelloAckMessage{NodeId: string(nodeId), Groups: groups, Network: network}, nil
}
