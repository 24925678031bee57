package appmessage

import (
	"io"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/util/binaryserializer"
)

// GetBlocksMessage requests every block above the sender's locators: the
// best-known hash on each chain the sender is aware of, so the responder
// can compute what the sender is missing (spec.md §4.5 GetBlocks).
// Grounded on the teacher's p2p_requestibd*.go locator-based sync requests.
type GetBlocksMessage struct {
	Locators []*externalapi.Hash
}

// NewGetBlocksMessage builds a GetBlocksMessage carrying locators.
func NewGetBlocksMessage(locators []*externalapi.Hash) *GetBlocksMessage {
	return &GetBlocksMessage{Locators: locators}
}

// Command implements Message.
func (msg *GetBlocksMessage) Command() MessageCommand { return CmdGetBlocks }

// Encode writes msg to w.
func (msg *GetBlocksMessage) Encode(w io.Writer) error {
	return writeHashes(w, msg.Locators)
}

// DecodeGetBlocksMessage reads a GetBlocksMessage from r.
func DecodeGetBlocksMessage(r io.Reader) (*GetBlocksMessage, error) {
	locators, err := readHashes(r)
	if err != nil {
		return nil, err
	}
	return &GetBlocksMessage{Locators: locators}, nil
}

// SendBlocksMessage carries the full bodies a GetBlocksMessage revealed the
// requester is missing.
type SendBlocksMessage struct {
	Blocks []*externalapi.Block
}

// NewSendBlocksMessage builds a SendBlocksMessage carrying blocks.
func NewSendBlocksMessage(blocks []*externalapi.Block) *SendBlocksMessage {
	return &SendBlocksMessage{Blocks: blocks}
}

// Command implements Message.
func (msg *SendBlocksMessage) Command() MessageCommand { return CmdSendBlocks }

// Encode writes msg to w.
func (msg *SendBlocksMessage) Encode(w io.Writer) error {
	if err := binaryserializer.PutUint32(w, uint32(len(msg.Blocks))); err != nil {
		return err
	}
	for _, block := range msg.Blocks {
		if err := writeBlock(w, block); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSendBlocksMessage reads a SendBlocksMessage from r.
func DecodeSendBlocksMessage(r io.Reader) (*SendBlocksMessage, error) {
	count, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	blocks := make([]*externalapi.Block, count)
	for i := range blocks {
		blocks[i], err = readBlock(r)
		if err != nil {
			return nil, err
		}
	}
	return &SendBlocksMessage{Blocks: blocks}, nil
}

func writeHashes(w io.Writer, hashes []*externalapi.Hash) error {
	if err := binaryserializer.PutUint32(w, uint32(len(hashes))); err != nil {
		return err
	}
	for _, h := range hashes {
		if err := writeHash(w, h); err != nil {
			return err
		}
	}
	return nil
}

func readHashes(r io.Reader) ([]*externalapi.Hash, error) {
	count, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	hashes := make([]*externalapi.Hash, count)
	for i := range hashes {
		hashes[i], err = readHash(r)
		if err != nil {
			return nil, err
		}
	}
	return hashes, nil
}
