package appmessage

import (
	"io"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/util/binaryserializer"
)

// GetHeadersMessage requests every header above the sender's locators,
// mirroring GetBlocksMessage but for headers-only sync (spec.md §4.5
// GetHeaders).
type GetHeadersMessage struct {
	Locators []*externalapi.Hash
}

// NewGetHeadersMessage builds a GetHeadersMessage carrying locators.
func NewGetHeadersMessage(locators []*externalapi.Hash) *GetHeadersMessage {
	return &GetHeadersMessage{Locators: locators}
}

// Command implements Message.
func (msg *GetHeadersMessage) Command() MessageCommand { return CmdGetHeaders }

// Encode writes msg to w.
func (msg *GetHeadersMessage) Encode(w io.Writer) error {
	return writeHashes(w, msg.Locators)
}

// DecodeGetHeadersMessage reads a GetHeadersMessage from r.
func DecodeGetHeadersMessage(r io.Reader) (*GetHeadersMessage, error) {
	locators, err := readHashes(r)
	if err != nil {
		return nil, err
	}
	return &GetHeadersMessage{Locators: locators}, nil
}

// SendHeadersMessage carries the headers a GetHeadersMessage revealed the
// requester is missing.
type SendHeadersMessage struct {
	Headers []*externalapi.BlockHeader
}

// NewSendHeadersMessage builds a SendHeadersMessage carrying headers.
func NewSendHeadersMessage(headers []*externalapi.BlockHeader) *SendHeadersMessage {
	return &SendHeadersMessage{Headers: headers}
}

// Command implements Message.
func (msg *SendHeadersMessage) Command() MessageCommand { return CmdSendHeaders }

// Encode writes msg to w.
func (msg *SendHeadersMessage) Encode(w io.Writer) error {
	if err := binaryserializer.PutUint32(w, uint32(len(msg.Headers))); err != nil {
		return err
	}
	for _, header := range msg.Headers {
		if err := writeHeader(w, header); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSendHeadersMessage reads a SendHeadersMessage from r.
func DecodeSendHeadersMessage(r io.Reader) (*SendHeadersMessage, error) {
	count, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	headers := make([]*externalapi.BlockHeader, count)
	for i := range headers {
		headers[i], err = readHeader(r)
		if err != nil {
			return nil, err
		}
	}
	return &SendHeadersMessage{Headers: headers}, nil
}
