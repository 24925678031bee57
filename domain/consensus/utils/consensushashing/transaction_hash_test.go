package consensushashing

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

func sampleUnsignedTx() *externalapi.UnsignedTransaction {
	key, err := externalapi.NewHashFromString(
		"000000000000000000000000000000000000000000000000000000000000000a")
	if err != nil {
		panic(err)
	}
	return &externalapi.UnsignedTransaction{
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
			},
		},
	}
}

func TestUnsignedTransactionHashDeterministic(t *testing.T) {
	unsigned := sampleUnsignedTx()
	h1 := UnsignedTransactionHash(unsigned)
	h2 := UnsignedTransactionHash(unsigned.Clone())
	if !h1.Equal(h2) {
		t.Fatalf("expected equal hashes for identical unsigned transactions, got %s != %s", h1, h2)
	}
}

func TestUnsignedTransactionHashSensitiveToGasAmount(t *testing.T) {
	unsigned := sampleUnsignedTx()
	h1 := UnsignedTransactionHash(unsigned)
	unsigned.GasAmount++
	h2 := UnsignedTransactionHash(unsigned)
	if h1.Equal(h2) {
		t.Fatalf("expected hash to change when gasAmount changes")
	}
}

func TestTransactionsHashOrderSensitive(t *testing.T) {
	unsigned := sampleUnsignedTx()
	tx1 := &externalapi.Transaction{Unsigned: unsigned, InputSignatures: [][]byte{{0x02}}}
	unsigned2 := sampleUnsignedTx()
	unsigned2.GasAmount = 99999
	tx2 := &externalapi.Transaction{Unsigned: unsigned2, InputSignatures: [][]byte{{0x03}}}

	forward := TransactionsHash([]*externalapi.Transaction{tx1, tx2})
	backward := TransactionsHash([]*externalapi.Transaction{tx2, tx1})
	if forward.Equal(&backward) {
		t.Fatalf("expected TransactionsHash to be sensitive to transaction order")
	}
}
