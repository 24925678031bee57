package flowhandler

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/blockflow"
	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/processes/blockvalidator"
	"github.com/shardflow/flowdag/domain/consensus/processes/difficultymanager"
	"github.com/shardflow/flowdag/domain/consensus/processes/transactionvalidator"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/transactionhelper"
	"github.com/shardflow/flowdag/domain/mempool"
	"github.com/shardflow/flowdag/domain/mining"
	"github.com/shardflow/flowdag/infrastructure/eventbus"
)

const testNowMs = int64(2_000_000_000_000)

func maxTarget() *uint256.Int {
	return new(uint256.Int).Not(new(uint256.Int))
}

func rawHash(b byte) *externalapi.Hash {
	var raw [32]byte
	raw[31] = b
	return externalapi.NewHashFromByteArray(&raw)
}

// newTestHandler builds a single-group (G=1) FlowHandler, so every header
// and block lands on the one chain (0, 0) and CanonicalDepOrder never
// requires a blockDeps entry.
func newTestHandler(t *testing.T, statusSizeLimit int) (*FlowHandler, externalapi.ChainIndex, *externalapi.Hash) {
	t.Helper()
	const groups = 1
	const networkId = uint32(1)

	flow := blockflow.New(groups, maxTarget(), testNowMs)
	chainIndex := externalapi.NewChainIndex(0, 0)
	genesisHash := flow.GetHeaderChain(chainIndex).Genesis()

	diff := difficultymanager.New(nil)
	txv := transactionvalidator.New(transactionvalidator.DefaultParams(networkId, groups))
	validator := blockvalidator.New(blockvalidator.Params{}, diff, txv)

	h := New(flow, validator, diff, mempool.New(), eventbus.New(),
		func() int64 { return testNowMs }, statusSizeLimit, networkId)
	t.Cleanup(h.Close)

	return h, chainIndex, genesisHash
}

func childHeader(parent *externalapi.Hash) *externalapi.BlockHeader {
	return &externalapi.BlockHeader{
		ParentHash:  parent,
		TimestampMs: testNowMs,
		Target:      maxTarget(),
	}
}

func TestAddHeader_AcceptsChildOfGenesis(t *testing.T) {
	h, chainIndex, genesisHash := newTestHandler(t, 16)
	header := childHeader(genesisHash)

	result := h.AddHeader(header, LocalBroker, OriginLocal)
	if result != ResultAccepted {
		t.Fatalf("expected ResultAccepted, got %s", result)
	}

	hash := consensushashing.HeaderHash(header)
	if !h.flow.GetHeaderChain(chainIndex).Contains(hash) {
		t.Fatalf("header was not inserted into its chain")
	}
}

func TestAddHeader_ReAddIsIgnored(t *testing.T) {
	h, _, genesisHash := newTestHandler(t, 16)
	header := childHeader(genesisHash)

	if result := h.AddHeader(header, LocalBroker, OriginLocal); result != ResultAccepted {
		t.Fatalf("first add: expected ResultAccepted, got %s", result)
	}
	if result := h.AddHeader(header, LocalBroker, OriginLocal); result != ResultIgnored {
		t.Fatalf("re-add: expected ResultIgnored, got %s", result)
	}
}

// TestAddHeader_PendingPromotion covers spec.md §8 scenario 6: a header
// whose parent is not yet known parks pending; once the parent arrives the
// pending buffer promotes the child back through validation without the
// caller resubmitting it, and the buffer's size returns to zero.
func TestAddHeader_PendingPromotion(t *testing.T) {
	h, chainIndex, genesisHash := newTestHandler(t, 16)

	parent := childHeader(genesisHash)
	parentHash := consensushashing.HeaderHash(parent)
	child := childHeader(parentHash)

	result := h.AddHeader(child, LocalBroker, OriginPeer)
	if result != ResultPending {
		t.Fatalf("expected ResultPending for child of an unknown parent, got %s", result)
	}
	if size := h.PendingSize(chainIndex); size != 1 {
		t.Fatalf("expected pending size 1, got %d", size)
	}

	result = h.AddHeader(parent, LocalBroker, OriginPeer)
	if result != ResultAccepted {
		t.Fatalf("expected parent ResultAccepted, got %s", result)
	}

	childHash := consensushashing.HeaderHash(child)
	if !h.flow.GetHeaderChain(chainIndex).Contains(childHash) {
		t.Fatalf("child was not promoted into its chain after its parent arrived")
	}
	if size := h.PendingSize(chainIndex); size != 0 {
		t.Fatalf("expected pending size 0 after promotion, got %d", size)
	}
}

// TestPendingBuffer_Overflow covers spec.md §8 scenario 7: a bounded
// pending buffer evicts its oldest entry rather than growing past
// statusSizeLimit.
func TestPendingBuffer_Overflow(t *testing.T) {
	h, chainIndex, _ := newTestHandler(t, 2)

	for i := byte(1); i <= 3; i++ {
		header := childHeader(rawHash(i)) // parent never arrives
		if result := h.AddHeader(header, LocalBroker, OriginPeer); result != ResultPending {
			t.Fatalf("header %d: expected ResultPending, got %s", i, result)
		}
	}

	if size := h.PendingSize(chainIndex); size != 2 {
		t.Fatalf("expected pending size capped at 2, got %d", size)
	}
}

func TestAddHeader_RejectsBadWorkTarget(t *testing.T) {
	h, _, genesisHash := newTestHandler(t, 16)
	header := childHeader(genesisHash)
	header.Target = uint256.NewInt(1) // does not match the retarget algorithm's expected value

	if result := h.AddHeader(header, LocalBroker, OriginPeer); result != ResultRejected {
		t.Fatalf("expected ResultRejected, got %s", result)
	}
}

func coinbaseBlock(networkId uint32, parent *externalapi.Hash) *externalapi.Block {
	lockup := externalapi.P2PKHLockup(externalapi.Hash{})
	coinbase := transactionhelper.NewCoinbaseTransaction(networkId, uint256.NewInt(1_000_000), lockup)
	block := &externalapi.Block{
		Header: &externalapi.BlockHeader{
			ParentHash:  parent,
			TimestampMs: testNowMs,
			Target:      maxTarget(),
		},
		Transactions: []*externalapi.Transaction{coinbase},
	}
	block.Header.TxsHash = consensushashing.TransactionsHash(block.Transactions)
	return block
}

type fakeMiner struct {
	minedBlockAdded int
	updateTemplate  int
}

func (m *fakeMiner) UpdateTemplate(externalapi.ChainIndex)  { m.updateTemplate++ }
func (m *fakeMiner) MinedBlockAdded(externalapi.ChainIndex) { m.minedBlockAdded++ }

var _ mining.Miner = (*fakeMiner)(nil)

func TestAddBlock_AcceptsAndNotifiesLocalMiner(t *testing.T) {
	h, chainIndex, genesisHash := newTestHandler(t, 16)

	miner := &fakeMiner{}
	h.Register(miner)

	block := coinbaseBlock(1, genesisHash)
	result := h.AddBlock(block, LocalBroker, OriginLocal)
	if result != ResultAccepted {
		t.Fatalf("expected ResultAccepted, got %s", result)
	}

	hash := consensushashing.HeaderHash(block.Header)
	if !h.flow.GetBlockChain(chainIndex).HasBlock(hash) {
		t.Fatalf("block body was not committed")
	}
	if miner.minedBlockAdded != 1 {
		t.Fatalf("expected MinedBlockAdded to fire once for a local origin block, got %d", miner.minedBlockAdded)
	}
	if miner.updateTemplate != 0 {
		t.Fatalf("expected UpdateTemplate not to fire for a local origin block, got %d", miner.updateTemplate)
	}
}

func TestAddBlock_PeerOriginNotifiesUpdateTemplate(t *testing.T) {
	h, _, genesisHash := newTestHandler(t, 16)

	miner := &fakeMiner{}
	id := h.Register(miner)
	defer h.UnRegister(id)

	block := coinbaseBlock(1, genesisHash)
	if result := h.AddBlock(block, Broker("peer-1"), OriginPeer); result != ResultAccepted {
		t.Fatalf("expected ResultAccepted, got %s", result)
	}
	if miner.updateTemplate != 1 {
		t.Fatalf("expected UpdateTemplate to fire once for a peer origin block, got %d", miner.updateTemplate)
	}
	if miner.minedBlockAdded != 0 {
		t.Fatalf("expected MinedBlockAdded not to fire for a peer origin block, got %d", miner.minedBlockAdded)
	}
}

func TestGetSyncInfo_ReportsBestTip(t *testing.T) {
	h, chainIndex, genesisHash := newTestHandler(t, 16)

	header := childHeader(genesisHash)
	if result := h.AddHeader(header, LocalBroker, OriginLocal); result != ResultAccepted {
		t.Fatalf("expected ResultAccepted, got %s", result)
	}

	info := h.GetSyncInfo("peer-1", false)
	tip, ok := info.Tips[chainIndex]
	if !ok {
		t.Fatalf("expected a tip reported for chain %s", chainIndex)
	}
	expected := consensushashing.HeaderHash(header)
	if !tip.Equal(expected) {
		t.Fatalf("expected tip %s, got %s", expected, tip)
	}
}

func TestGetHeaders_ReturnsHashesAboveLocator(t *testing.T) {
	h, _, genesisHash := newTestHandler(t, 16)

	header := childHeader(genesisHash)
	if result := h.AddHeader(header, LocalBroker, OriginLocal); result != ResultAccepted {
		t.Fatalf("expected ResultAccepted, got %s", result)
	}

	headers := h.GetHeaders([]*externalapi.Hash{genesisHash})
	if len(headers) != 1 {
		t.Fatalf("expected exactly one header above genesis, got %d", len(headers))
	}
	got := consensushashing.HeaderHash(headers[0])
	want := consensushashing.HeaderHash(header)
	if !got.Equal(want) {
		t.Fatalf("expected header %s, got %s", want, got)
	}
}
