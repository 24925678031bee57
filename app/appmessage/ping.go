package appmessage

import (
	"io"

	"github.com/pkg/errors"

	"github.com/shardflow/flowdag/util/binaryserializer"
)

// PingMessage is a liveness probe a broker sends to a peer; the nonce is
// echoed back unchanged in the matching PongMessage so the sender can
// correlate the reply even with several pings in flight. Grounded on the
// teacher's msgping.go/msgpong.go pair.
type PingMessage struct {
	Nonce       uint64
	TimestampMs int64
}

// NewPingMessage builds a PingMessage carrying nonce, stamped at timestampMs.
func NewPingMessage(nonce uint64, timestampMs int64) *PingMessage {
	return &PingMessage{Nonce: nonce, TimestampMs: timestampMs}
}

// Command implements Message.
func (msg *PingMessage) Command() MessageCommand { return CmdPing }

// Encode writes msg to w.
func (msg *PingMessage) Encode(w io.Writer) error {
	if err := binaryserializer.PutUint64(w, msg.Nonce); err != nil {
		return err
	}
	buf := make([]byte, 8)
	putInt64(buf, msg.TimestampMs)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// DecodePingMessage reads a PingMessage from r.
func DecodePingMessage(r io.Reader) (*PingMessage, error) {
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return &PingMessage{Nonce: nonce, TimestampMs: getInt64(buf)}, nil
}

// PongMessage is the reply to a PingMessage, echoing its nonce.
type PongMessage struct {
	Nonce uint64
}

// NewPongMessage builds a PongMessage echoing nonce.
func NewPongMessage(nonce uint64) *PongMessage {
	return &PongMessage{Nonce: nonce}
}

// Command implements Message.
func (msg *PongMessage) Command() MessageCommand { return CmdPong }

// Encode writes msg to w.
func (msg *PongMessage) Encode(w io.Writer) error {
	return binaryserializer.PutUint64(w, msg.Nonce)
}

// DecodePongMessage reads a PongMessage from r.
func DecodePongMessage(r io.Reader) (*PongMessage, error) {
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	return &PongMessage{Nonce: nonce}, nil
}
