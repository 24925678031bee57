package flowhandler

import "github.com/shardflow/flowdag/domain/consensus/model/externalapi"

// Origin distinguishes a header/block mined by this node from one that
// arrived over the wire, so the Flow Handler knows whether to notify the
// registered miner with MinedBlockAdded (spec.md §4.5: "the latter when
// origin = Local").
type Origin int

const (
	// OriginLocal marks a header/block produced by this node's own miner.
	OriginLocal Origin = iota
	// OriginPeer marks a header/block received from a remote peer.
	OriginPeer
)

func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "peer"
}

// Broker identifies the peer connection (or "local", for the node's own
// miner) a header/block arrived from. The concrete peer-connection
// lifecycle is an external collaborator (spec.md §1's networking
// transport non-goal); the Flow Handler only needs a stable identifier
// for logging and for addressing sync responses back to the right peer.
type Broker string

// LocalBroker is the Broker value used for headers/blocks originated by
// this node's own miner.
const LocalBroker Broker = "local"

// AddResult reports what happened to a header/block passed to AddHeader
// or AddBlock.
type AddResult int

const (
	// ResultIgnored means the hash was already known; a no-op (spec.md
	// §4.5 step 1, §8's re-adding idempotence property).
	ResultIgnored AddResult = iota
	// ResultPending means one or more deps were missing; the item was
	// parked in the pending buffer.
	ResultPending
	// ResultAccepted means every check passed and the item was inserted.
	ResultAccepted
	// ResultRejected means a consensus rule was violated; the item was
	// dropped and will never be reconsidered unless resent.
	ResultRejected
)

func (r AddResult) String() string {
	switch r {
	case ResultIgnored:
		return "ignored"
	case ResultPending:
		return "pending"
	case ResultAccepted:
		return "accepted"
	case ResultRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// SyncInfo is GetSyncInfo's response: this node's best tip per chain, for
// the caller to diff against remote's announced tips and decide what to
// request next.
type SyncInfo struct {
	Tips map[externalapi.ChainIndex]externalapi.Hash
}

// SyncData is GetSyncData's response: the blocks and headers the caller's
// locators revealed they are missing.
type SyncData struct {
	Blocks  []*externalapi.Block
	Headers []*externalapi.BlockHeader
}
