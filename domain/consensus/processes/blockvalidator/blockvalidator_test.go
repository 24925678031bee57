package blockvalidator

import (
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/ed25519"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/processes/difficultymanager"
	"github.com/shardflow/flowdag/domain/consensus/processes/transactionvalidator"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
	"github.com/shardflow/flowdag/domain/consensus/utils/transactionhelper"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
	"github.com/shardflow/flowdag/domain/worldstate"
)

// fakeChain is a minimal linear chain test double, mirroring
// difficultymanager's own fakeChain but built incrementally via add so
// individual tests can shape exactly the history they need.
type fakeChain struct {
	hashes     []*externalapi.Hash
	timestamps map[externalapi.Hash]int64
	targets    map[externalapi.Hash]*uint256.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		timestamps: make(map[externalapi.Hash]int64),
		targets:    make(map[externalapi.Hash]*uint256.Int),
	}
}

func (c *fakeChain) add(hash *externalapi.Hash, timestampMs int64, target *uint256.Int) {
	c.hashes = append(c.hashes, hash)
	c.timestamps[*hash] = timestampMs
	c.targets[*hash] = target
}

func (c *fakeChain) Contains(hash *externalapi.Hash) bool {
	_, ok := c.timestamps[*hash]
	return ok
}

func (c *fakeChain) Parent(hash *externalapi.Hash) (*externalapi.Hash, bool) {
	for i, h := range c.hashes {
		if h.Equal(hash) {
			if i == 0 {
				return nil, false
			}
			return c.hashes[i-1], true
		}
	}
	return nil, false
}

func (c *fakeChain) Height(hash *externalapi.Hash) (uint64, bool) {
	for i, h := range c.hashes {
		if h.Equal(hash) {
			return uint64(i), true
		}
	}
	return 0, false
}

func (c *fakeChain) TimestampMs(hash *externalapi.Hash) (int64, bool) {
	ts, ok := c.timestamps[*hash]
	return ts, ok
}

func (c *fakeChain) GetHashTarget(hash *externalapi.Hash) (*uint256.Int, bool) {
	t, ok := c.targets[*hash]
	return t, ok
}

func (c *fakeChain) MaxHeight() uint64 {
	return uint64(len(c.hashes) - 1)
}

type fakeFlow map[externalapi.Hash]bool

func (f fakeFlow) Contains(hash *externalapi.Hash) bool {
	return f[*hash]
}

func rawHash(b byte) *externalapi.Hash {
	var raw [32]byte
	raw[31] = b
	return externalapi.NewHashFromByteArray(&raw)
}

func maxTarget() *uint256.Int {
	return new(uint256.Int).Not(new(uint256.Int))
}

func assertCode(t *testing.T, err error, code ruleerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if !ruleerrors.HasCode(err, code) {
		t.Fatalf("expected error code %s, got %v", code, err)
	}
}

func newTestValidator(serviced map[externalapi.ChainIndex]bool) *Validator {
	txv := transactionvalidator.New(transactionvalidator.DefaultParams(1, 1))
	diff := difficultymanager.New(nil)
	return New(Params{ServicedChainIndices: serviced}, diff, txv)
}

func coinbaseTx(networkId uint32) *externalapi.Transaction {
	lockup := externalapi.P2PKHLockup(externalapi.Hash{})
	return transactionhelper.NewCoinbaseTransaction(networkId, uint256.NewInt(1_000_000), lockup)
}

func TestValidateHeader_TimestampTooFarFuture(t *testing.T) {
	v := newTestValidator(nil)
	header := &externalapi.BlockHeader{TimestampMs: 1_000_000_000 + constants.TimestampFutureToleranceMs + 1000}
	err := v.ValidateHeader(header, newFakeChain(), fakeFlow{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidTimeStamp)
}

func TestValidateHeader_TimestampTooFarPast(t *testing.T) {
	v := newTestValidator(nil)
	header := &externalapi.BlockHeader{TimestampMs: 1_000_000_000 - constants.TimestampPastToleranceMs - 1000}
	err := v.ValidateHeader(header, newFakeChain(), fakeFlow{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidTimeStamp)
}

func TestValidateHeader_TimestampPastAllowedWhenSyncing(t *testing.T) {
	v := newTestValidator(nil)
	header := &externalapi.BlockHeader{
		TimestampMs: 1_000_000_000 - constants.TimestampPastToleranceMs - 1000,
		Target:      maxTarget(),
	}
	err := v.ValidateHeader(header, newFakeChain(), fakeFlow{}, 1_000_000_000, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateHeader_WorkAmountExceedsTarget(t *testing.T) {
	v := newTestValidator(nil)
	header := &externalapi.BlockHeader{
		TimestampMs: 1_000_000_000,
		Target:      uint256.NewInt(1),
	}
	err := v.ValidateHeader(header, newFakeChain(), fakeFlow{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidWorkAmount)
}

func TestValidateHeader_WorkTargetMismatch(t *testing.T) {
	v := newTestValidator(nil)
	chain := newFakeChain()
	parentHash := rawHash(1)
	chain.add(parentHash, 1_000_000_000, uint256.NewInt(12345))

	header := &externalapi.BlockHeader{
		ParentHash:  parentHash,
		TimestampMs: 1_000_000_500,
		Target:      maxTarget(),
	}
	err := v.ValidateHeader(header, chain, fakeFlow{}, 1_000_000_500, false)
	assertCode(t, err, ruleerrors.ErrInvalidWorkTarget)
}

func TestValidateHeader_MissingParent(t *testing.T) {
	v := newTestValidator(nil)
	chain := newFakeChain()
	header := &externalapi.BlockHeader{
		ParentHash:  rawHash(9),
		TimestampMs: 1_000_000_000,
		Target:      maxTarget(),
	}
	err := v.ValidateHeader(header, chain, fakeFlow{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrMissingParent)
}

func TestValidateHeader_MissingDeps(t *testing.T) {
	v := newTestValidator(nil)
	chain := newFakeChain()
	parentHash := rawHash(1)
	chain.add(parentHash, 1_000_000_000, maxTarget())

	header := &externalapi.BlockHeader{
		ParentHash:  parentHash,
		BlockDeps:   []*externalapi.Hash{rawHash(2)},
		TimestampMs: 1_000_000_500,
		Target:      maxTarget(),
	}
	err := v.ValidateHeader(header, chain, fakeFlow{}, 1_000_000_500, false)
	assertCode(t, err, ruleerrors.ErrMissingDeps)
}

func TestValidateBlock_RejectsUnservicedGroup(t *testing.T) {
	v := newTestValidator(map[externalapi.ChainIndex]bool{externalapi.NewChainIndex(0, 0): true})

	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(1)},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(1, 1), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidGroup)
}

func TestValidateBlock_RejectsEmptyTransactionList(t *testing.T) {
	v := newTestValidator(nil)
	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: nil,
	}
	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrEmptyTransactionList)
}

func TestValidateBlock_RejectsMissingCoinbase(t *testing.T) {
	v := newTestValidator(nil)
	notCoinbase := &externalapi.Transaction{
		Unsigned: &externalapi.UnsignedTransaction{
			NetworkId: 1,
			GasAmount: constants.MinimalGas,
			GasPrice:  uint256.NewInt(1),
			Inputs:    []*externalapi.TxInput{{OutputRef: &externalapi.AssetOutputRef{}}},
			FixedOutputs: []*externalapi.AssetOutput{
				{Amount: uint256.NewInt(1), LockupScript: externalapi.P2PKHLockup(externalapi.Hash{})},
			},
		},
	}
	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{notCoinbase},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidCoinbase)
}

func TestValidateBlock_RejectsExtraCoinbase(t *testing.T) {
	v := newTestValidator(nil)
	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(1), coinbaseTx(1)},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidCoinbase)
}

func TestValidateBlock_RejectsMerkleRootMismatch(t *testing.T) {
	v := newTestValidator(nil)
	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(1)},
	}
	// Header.TxsHash is left at its zero value, which does not match
	// consensushashing.TransactionsHash(block.Transactions).

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidMerkleRoot)
}

func TestValidateBlock_RejectsDoubleSpendWithinBlock(t *testing.T) {
	v := newTestValidator(nil)
	ref := &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{Key: *rawHash(5)}}
	spendRef := func() *externalapi.Transaction {
		return &externalapi.Transaction{Unsigned: &externalapi.UnsignedTransaction{
			Inputs: []*externalapi.TxInput{{OutputRef: ref}},
			FixedOutputs: []*externalapi.AssetOutput{
				{Amount: uint256.NewInt(1), LockupScript: externalapi.P2PKHLockup(externalapi.Hash{})},
			},
		}}
	}

	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(1), spendRef(), spendRef()},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrDoubleSpent)
}

func TestValidateBlock_RejectsMissingPreOutput(t *testing.T) {
	v := newTestValidator(nil)
	ref := &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{Key: *rawHash(7)}}
	tx := &externalapi.Transaction{Unsigned: &externalapi.UnsignedTransaction{
		Inputs: []*externalapi.TxInput{{OutputRef: ref}},
		FixedOutputs: []*externalapi.AssetOutput{
			{Amount: uint256.NewInt(1), LockupScript: externalapi.P2PKHLockup(externalapi.Hash{})},
		},
	}}

	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(1), tx},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	view := worldstate.New().Cached()
	_, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{}, 1_000_000_000, false)
	assertCode(t, err, ruleerrors.ErrInvalidCoins)
}

// TestValidateBlock_HappyPathComputesGasUsed spends a single P2PKH-locked
// UTXO into two outputs, and checks that the reported gas usage matches the
// canonical 1-input/2-output transfer's fixed cost exactly: txBaseGas +
// txInputBaseGas + 2*txOutputBaseGas + p2pkUnlockGas == 14060.
func TestValidateBlock_HappyPathComputesGasUsed(t *testing.T) {
	const networkId = uint32(1)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pubHash, err := externalapi.NewHashFromByteSlice(pub)
	if err != nil {
		t.Fatalf("NewHashFromByteSlice: %v", err)
	}
	lockup := externalapi.P2PKHLockup(consensushashing.HashPubKey(*pubHash))

	preOutput := &externalapi.AssetOutput{Amount: uint256.NewInt(1_000_000), LockupScript: lockup}
	ref := &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{
		Key:  *rawHash(42),
		Hint: consensushashing.ScriptHint(lockup),
	}}

	seed := worldstate.New().Cached()
	seed.AddAsset(ref, preOutput)
	ws, _, err := seed.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	view := ws.Cached()

	unsigned := &externalapi.UnsignedTransaction{
		NetworkId: networkId,
		GasAmount: constants.MinimalGas,
		GasPrice:  uint256.NewInt(1),
		Inputs: []*externalapi.TxInput{
			{OutputRef: ref, UnlockScript: transactionvalidator.EncodeUnlockP2PKH(*pubHash)},
		},
		FixedOutputs: []*externalapi.AssetOutput{
			{Amount: uint256.NewInt(500_000), LockupScript: lockup},
			{Amount: uint256.NewInt(485_940), LockupScript: lockup},
		},
	}
	txHash := consensushashing.UnsignedTransactionHash(unsigned)
	sig := vm.Sign(priv, txHash.ByteSlice())
	tx := &externalapi.Transaction{Unsigned: unsigned, InputSignatures: [][]byte{sig}}

	block := &externalapi.Block{
		Header:       &externalapi.BlockHeader{TimestampMs: 1_000_000_000, Target: maxTarget()},
		Transactions: []*externalapi.Transaction{coinbaseTx(networkId), tx},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)

	v := newTestValidator(nil)
	report, err := v.ValidateBlock(block, externalapi.NewChainIndex(0, 0), newFakeChain(), fakeFlow{}, view,
		transactionvalidator.BlockEnv{HeaderTimestampMs: 1_000_000_000}, 1_000_000_000, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.GasUsed != 14060 {
		t.Fatalf("expected GasUsed 14060, got %d", report.GasUsed)
	}
}
