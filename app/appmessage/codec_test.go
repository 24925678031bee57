package appmessage

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

func sampleTransaction() *externalapi.Transaction {
	key, err := externalapi.NewHashFromString(
		"000000000000000000000000000000000000000000000000000000000000000a")
	if err != nil {
		panic(err)
	}
	return &externalapi.Transaction{
		Unsigned: &externalapi.UnsignedTransaction{
			NetworkId: 1,
			GasAmount: 14060,
			GasPrice:  uint256.NewInt(1),
			Inputs: []*externalapi.TxInput{
				{
					OutputRef: &externalapi.AssetOutputRef{
						OutputRef: externalapi.OutputRef{Hint: 0, Key: *key},
					},
					UnlockScript: []byte{0x01},
				},
			},
			FixedOutputs: []*externalapi.AssetOutput{
				{
					Amount:       uint256.NewInt(100),
					LockupScript: externalapi.P2PKHLockup(externalapi.Hash{}),
					Tokens: []externalapi.TokenAmount{
						{TokenId: externalapi.TokenId(*key), Amount: uint256.NewInt(7)},
					},
				},
			},
		},
		InputSignatures: [][]byte{{0x02, 0x03}},
	}
}

func sampleBlock() *externalapi.Block {
	tx := sampleTransaction()
	return &externalapi.Block{
		Header: &externalapi.BlockHeader{
			ParentHash:  externalapi.NewHashFromByteArray(&[externalapi.HashSize]byte{1}),
			BlockDeps:   []*externalapi.Hash{externalapi.NewHashFromByteArray(&[externalapi.HashSize]byte{2})},
			TxsHash:     externalapi.Hash{},
			TimestampMs: -1234567890123,
			Target:      new(uint256.Int).Not(new(uint256.Int)),
			Nonce:       42,
		},
		Transactions: []*externalapi.Transaction{tx},
	}
}

func TestTransactionCodecRoundTrip(t *testing.T) {
	tx := sampleTransaction()

	var buf bytes.Buffer
	if err := writeTransaction(&buf, tx); err != nil {
		t.Fatalf("writeTransaction: %v", err)
	}

	got, err := readTransaction(&buf)
	if err != nil {
		t.Fatalf("readTransaction: %v", err)
	}
	if !got.Equal(tx) {
		t.Fatalf("round-tripped transaction does not equal the original")
	}
}

func TestBlockCodecRoundTrip(t *testing.T) {
	block := sampleBlock()

	var buf bytes.Buffer
	if err := writeBlock(&buf, block); err != nil {
		t.Fatalf("writeBlock: %v", err)
	}

	got, err := readBlock(&buf)
	if err != nil {
		t.Fatalf("readBlock: %v", err)
	}
	if !got.Equal(block) {
		t.Fatalf("round-tripped block does not equal the original")
	}
}

func TestHeaderCodecRoundTrip_NilParentAndNegativeTimestamp(t *testing.T) {
	header := &externalapi.BlockHeader{
		TxsHash:     externalapi.Hash{},
		TimestampMs: -1,
		Target:      uint256.NewInt(1),
	}

	var buf bytes.Buffer
	if err := writeHeader(&buf, header); err != nil {
		t.Fatalf("writeHeader: %v", err)
	}

	got, err := readHeader(&buf)
	if err != nil {
		t.Fatalf("readHeader: %v", err)
	}
	if !got.Equal(header) {
		t.Fatalf("round-tripped header does not equal the original")
	}
}

func TestHelloMessageCodecRoundTrip(t *testing.T) {
	msg := NewHelloMessage("node-1", 4, 7)

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeHelloMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeHelloMessage: %v", err)
	}
	if *got != *msg {
		t.Fatalf("expected %+v, got %+v", msg, got)
	}
	if got.Command() != CmdHello {
		t.Fatalf("expected CmdHello, got %s", got.Command())
	}
}

func TestPingPongCodecRoundTrip(t *testing.T) {
	ping := NewPingMessage(99, -42)

	var buf bytes.Buffer
	if err := ping.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gotPing, err := DecodePingMessage(&buf)
	if err != nil {
		t.Fatalf("DecodePingMessage: %v", err)
	}
	if *gotPing != *ping {
		t.Fatalf("expected %+v, got %+v", ping, gotPing)
	}

	pong := NewPongMessage(ping.Nonce)
	buf.Reset()
	if err := pong.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gotPong, err := DecodePongMessage(&buf)
	if err != nil {
		t.Fatalf("DecodePongMessage: %v", err)
	}
	if gotPong.Nonce != ping.Nonce {
		t.Fatalf("expected pong nonce %d, got %d", ping.Nonce, gotPong.Nonce)
	}
}

func TestGetBlocksMessageCodecRoundTrip(t *testing.T) {
	locators := []*externalapi.Hash{
		externalapi.NewHashFromByteArray(&[externalapi.HashSize]byte{1}),
		externalapi.NewHashFromByteArray(&[externalapi.HashSize]byte{2}),
	}
	msg := NewGetBlocksMessage(locators)

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeGetBlocksMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeGetBlocksMessage: %v", err)
	}
	if len(got.Locators) != len(locators) {
		t.Fatalf("expected %d locators, got %d", len(locators), len(got.Locators))
	}
	for i, h := range locators {
		if !got.Locators[i].Equal(h) {
			t.Fatalf("locator %d: expected %s, got %s", i, h, got.Locators[i])
		}
	}
}

func TestSendHeadersMessageCodecRoundTrip(t *testing.T) {
	header := sampleBlock().Header
	msg := NewSendHeadersMessage([]*externalapi.BlockHeader{header})

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeSendHeadersMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeSendHeadersMessage: %v", err)
	}
	if len(got.Headers) != 1 || !got.Headers[0].Equal(header) {
		t.Fatalf("round-tripped headers do not equal the original")
	}
}

func TestSendBlocksMessageCodecRoundTrip(t *testing.T) {
	block := sampleBlock()
	msg := NewSendBlocksMessage([]*externalapi.Block{block})

	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeSendBlocksMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeSendBlocksMessage: %v", err)
	}
	if len(got.Blocks) != 1 || !got.Blocks[0].Equal(block) {
		t.Fatalf("round-tripped blocks do not equal the original")
	}
}
