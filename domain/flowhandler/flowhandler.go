// Package flowhandler implements spec.md §4.5: the single-writer agent
// that owns the BlockFlow, serializes every AddHeader/AddBlock against
// it, buffers items whose deps are not yet locally present, and notifies
// peers and the registered miner of progress. Adapted from the teacher's
// pending/orphan idiom (blockdag/orphans.go's bounded, index-by-missing-
// parent pool, generalized here to deps instead of parents) and the
// teacher's domain/consensus/processes/blockprocessor.ValidateAndInsertBlock
// dispatch shape (validate, then insert, then walk whatever the insertion
// unblocked).
//
// The single-writer, message-serialized property of spec.md §5 is
// realized the way the teacher's app/protocol flows serialize access to
// FlowContext: every public method submits a closure to a command channel
// consumed by exactly one goroutine (run), and blocks on a private result
// channel for that closure's outcome. Chain-level handlers underneath
// (blockflow.Chain) remain independently lockable per spec.md §5's
// "Chain-level sub-handlers may run in parallel for independent chain
// indices," since FlowHandler only serializes the BlockFlow-wide
// dependency bookkeeping, not per-chain storage.
package flowhandler

import (
	"time"

	"github.com/google/uuid"

	"github.com/shardflow/flowdag/domain/blockflow"
	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/processes/blockvalidator"
	"github.com/shardflow/flowdag/domain/consensus/processes/difficultymanager"
	"github.com/shardflow/flowdag/domain/consensus/processes/transactionvalidator"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/mempool"
	"github.com/shardflow/flowdag/domain/mining"
	"github.com/shardflow/flowdag/infrastructure/eventbus"
	"github.com/shardflow/flowdag/infrastructure/logger"
)

var log = logger.RegisterSubsystem("FLOW")

// Clock abstracts "now" so tests can drive validateTimeStamp
// deterministically, matching the teacher's own explicit-timestamp
// validator signatures (blockvalidator.ValidateHeader takes nowMs
// explicitly for the same reason).
type Clock func() int64

// RealClock returns the wall-clock time in milliseconds since epoch.
func RealClock() int64 {
	return time.Now().UnixMilli()
}

// FlowHandler is spec.md §4.5's single-writer agent. It owns the
// BlockFlow and is the only component that ever mutates it.
type FlowHandler struct {
	flow      *blockflow.BlockFlow
	validator *blockvalidator.Validator
	diff      *difficultymanager.Manager
	mempool   *mempool.Pool
	events    *eventbus.Bus
	clock     Clock
	syncing   bool
	env       transactionvalidator.BlockEnv

	pending map[externalapi.ChainIndex]*pendingBuffer
	limit   int

	miners map[mining.RegistrationId]mining.Miner

	commands chan func()
	done     chan struct{}
}

// New builds a FlowHandler and starts its single command-processing
// goroutine. statusSizeLimit bounds every per-chain pending buffer
// (spec.md §6's statusSizeLimit configuration option).
func New(flow *blockflow.BlockFlow, validator *blockvalidator.Validator, diff *difficultymanager.Manager,
	pool *mempool.Pool, events *eventbus.Bus, clock Clock, statusSizeLimit int,
	networkId uint32) *FlowHandler {

	h := &FlowHandler{
		flow:      flow,
		validator: validator,
		diff:      diff,
		mempool:   pool,
		events:    events,
		clock:     clock,
		env:       transactionvalidator.BlockEnv{NetworkId: networkId},
		pending:   make(map[externalapi.ChainIndex]*pendingBuffer),
		limit:     statusSizeLimit,
		miners:    make(map[mining.RegistrationId]mining.Miner),
		commands:  make(chan func()),
		done:      make(chan struct{}),
	}
	for _, index := range flow.ChainIndices() {
		h.pending[index] = newPendingBuffer(statusSizeLimit)
	}
	go h.run()
	return h
}

// SetSyncing toggles whether validateTimeStamp's past-skew tolerance is
// enforced (spec.md §4.4: "unless syncing, headerTs >= now - 1h").
func (h *FlowHandler) SetSyncing(syncing bool) {
	h.submit(func() { h.syncing = syncing })
}

// Close stops the command-processing goroutine. Pending commands already
// submitted are drained before it returns.
func (h *FlowHandler) Close() {
	close(h.commands)
	<-h.done
}

// run is the single goroutine that ever touches FlowHandler's mutable
// state or the BlockFlow it owns, realizing spec.md §5's single-writer
// guarantee without a mutex.
func (h *FlowHandler) run() {
	defer close(h.done)
	for cmd := range h.commands {
		cmd()
	}
}

// submit runs fn on the writer goroutine and blocks until it completes.
// Every call is tagged with a correlation id purely for log correlation
// across the async hop onto the writer goroutine, the way the teacher
// tags its own app/protocol flow messages for tracing.
func (h *FlowHandler) submit(fn func()) {
	correlationId := uuid.New()
	result := make(chan struct{})
	log.Tracef("submitting command %s", correlationId)
	h.commands <- func() {
		fn()
		close(result)
	}
	<-result
	log.Tracef("command %s completed", correlationId)
}

// AddHeader implements spec.md §4.5's AddHeader(header, broker, origin)
// command: park header if its deps are incomplete, else validate and
// insert it, then promote whatever that insertion unblocked.
func (h *FlowHandler) AddHeader(header *externalapi.BlockHeader, broker Broker, origin Origin) AddResult {
	var result AddResult
	h.submit(func() {
		result = h.addHeader(header, broker, origin)
	})
	return result
}

// AddBlock implements spec.md §4.5's AddBlock(block, broker, origin)
// command.
func (h *FlowHandler) AddBlock(block *externalapi.Block, broker Broker, origin Origin) AddResult {
	var result AddResult
	h.submit(func() {
		result = h.addBlock(block, broker, origin)
	})
	return result
}

func (h *FlowHandler) addHeader(header *externalapi.BlockHeader, broker Broker, origin Origin) AddResult {
	hash := consensushashing.HeaderHash(header)
	chainIndex := externalapi.ChainIndexFromHash(hash, h.flow.Groups())
	chain := h.flow.GetHeaderChain(chainIndex)

	if chain.Contains(hash) || h.pendingFor(chainIndex).Contains(*hash) {
		return ResultIgnored
	}

	missing := h.missingDeps(header)
	if len(missing) > 0 {
		h.park(chainIndex, &pendingEntry{
			hash:        *hash,
			chainIndex:  chainIndex,
			header:      header,
			broker:      broker,
			origin:      origin,
			missingDeps: missing,
		})
		return ResultPending
	}

	return h.insertHeader(chainIndex, hash, header, broker, origin)
}

func (h *FlowHandler) addBlock(block *externalapi.Block, broker Broker, origin Origin) AddResult {
	hash := consensushashing.HeaderHash(block.Header)
	chainIndex := externalapi.ChainIndexFromHash(hash, h.flow.Groups())
	chain := h.flow.GetBlockChain(chainIndex)

	if chain.HasBlock(hash) || h.pendingFor(chainIndex).Contains(*hash) {
		return ResultIgnored
	}

	missing := h.missingDeps(block.Header)
	if len(missing) > 0 {
		h.park(chainIndex, &pendingEntry{
			hash:        *hash,
			chainIndex:  chainIndex,
			header:      block.Header,
			block:       block,
			broker:      broker,
			origin:      origin,
			missingDeps: missing,
		})
		return ResultPending
	}

	return h.insertBlock(chainIndex, hash, block, broker, origin)
}

// missingDeps returns the subset of header's parent+blockDeps not yet
// accepted anywhere in the flow (spec.md §4.5 step 2).
func (h *FlowHandler) missingDeps(header *externalapi.BlockHeader) map[externalapi.Hash]bool {
	missing := make(map[externalapi.Hash]bool)
	for _, dep := range header.Deps() {
		if !h.flow.Contains(dep) {
			missing[*dep] = true
		}
	}
	return missing
}

func (h *FlowHandler) pendingFor(index externalapi.ChainIndex) *pendingBuffer {
	buf, ok := h.pending[index]
	if !ok {
		buf = newPendingBuffer(h.limit)
		h.pending[index] = buf
	}
	return buf
}

// park adds entry to its chain's pending buffer, logging an eviction if
// the buffer was at capacity (spec.md §5's bounded-memory backpressure).
func (h *FlowHandler) park(index externalapi.ChainIndex, entry *pendingEntry) {
	buf := h.pendingFor(index)
	if evicted := buf.Add(entry); evicted != nil {
		log.Debugf("pending buffer for chain %s full: evicted counter %d (hash %s)",
			index, evicted.counter, evicted.hash)
	}
	log.Debugf("parked %s %s on chain %s awaiting %d dep(s)", kindOf(entry), entry.hash, index, len(entry.missingDeps))
}

func kindOf(entry *pendingEntry) string {
	if entry.block != nil {
		return "block"
	}
	return "header"
}

// insertHeader runs the header validation pipeline and, on success,
// inserts hash into chain, publishes HeaderAdded, and promotes whatever
// that insertion unblocked. A RuleError is a final rejection (logged, not
// propagated, per spec.md §7); an IOError is logged and surfaced as a
// rejection too since the Flow Handler has nowhere else to retry to.
func (h *FlowHandler) insertHeader(chainIndex externalapi.ChainIndex, hash *externalapi.Hash,
	header *externalapi.BlockHeader, broker Broker, origin Origin) AddResult {

	chain := h.flow.GetHeaderChain(chainIndex)
	err := h.validator.ValidateHeader(header, chain, h.flow, h.clock(), h.syncing)
	if err != nil {
		log.Warnf("rejected header %s from %s (%s): %s", hash, broker, origin, err)
		return ResultRejected
	}

	if !chain.AddHeader(hash, header) {
		return ResultIgnored
	}

	height, _ := chain.Height(hash)
	h.events.Publish(eventbus.EventHeaderAdded, eventbus.HeaderAddedEvent{ChainIndex: chainIndex, Hash: hash, Header: header})
	h.events.Publish(eventbus.EventBlockNotify, eventbus.BlockNotifyEvent{Header: header, Height: height})
	log.Debugf("accepted header %s on chain %s at height %d", hash, chainIndex, height)

	h.promote(*hash)
	return ResultAccepted
}

// insertBlock runs the full block validation pipeline (header + body) and,
// on success, commits the block into BlockFlow, removes its transactions
// from the mempool, publishes BlockAdded/BlockNotify, notifies the
// registered miners, and promotes whatever this insertion unblocked.
func (h *FlowHandler) insertBlock(chainIndex externalapi.ChainIndex, hash *externalapi.Hash,
	block *externalapi.Block, broker Broker, origin Origin) AddResult {

	chain := h.flow.GetBlockChain(chainIndex)

	view, err := h.flow.GetTrie(block.Header.Deps())
	if err != nil {
		log.Errorf("failed to build world state view for block %s: %s", hash, err)
		return ResultRejected
	}

	env := h.env
	env.HeaderTimestampMs = block.Header.TimestampMs
	env.Target = block.Header.Target

	_, err = h.validator.ValidateBlock(block, chainIndex, chain, h.flow, view, env, h.clock(), h.syncing)
	if err != nil {
		if isIOError(err) {
			log.Errorf("IO error validating block %s: %s", hash, err)
		} else {
			log.Warnf("rejected block %s from %s (%s): %s", hash, broker, origin, err)
		}
		return ResultRejected
	}

	if !chain.Contains(hash) {
		if !chain.AddHeader(hash, block.Header) {
			return ResultIgnored
		}
	}
	if err := h.flow.CommitBlock(chainIndex, hash, block); err != nil {
		log.Errorf("failed to commit block %s: %s", hash, err)
		return ResultRejected
	}

	for _, tx := range block.Transactions[1:] {
		h.mempool.Remove(chainIndex, tx)
	}

	height, _ := chain.Height(hash)
	h.events.Publish(eventbus.EventBlockAdded, eventbus.BlockAddedEvent{ChainIndex: chainIndex, Hash: hash, Block: block})
	h.events.Publish(eventbus.EventBlockNotify, eventbus.BlockNotifyEvent{Header: block.Header, Height: height})
	log.Debugf("accepted block %s on chain %s at height %d", hash, chainIndex, height)

	h.notifyMiners(chainIndex, origin)
	h.promote(*hash)
	return ResultAccepted
}

// promote walks every chain's pending buffer for entries that were
// waiting on hash, and feeds each one that is now fully unblocked back
// through insertHeader/insertBlock (spec.md §4.5 step 4).
func (h *FlowHandler) promote(hash externalapi.Hash) {
	for index, buf := range h.pending {
		for _, entry := range buf.Promote(hash) {
			if entry.block != nil {
				h.insertBlock(index, &entry.hash, entry.block, entry.broker, entry.origin)
			} else {
				h.insertHeader(index, &entry.hash, entry.header, entry.broker, entry.origin)
			}
		}
	}
}

func (h *FlowHandler) notifyMiners(chainIndex externalapi.ChainIndex, origin Origin) {
	for _, miner := range h.miners {
		if origin == OriginLocal {
			miner.MinedBlockAdded(chainIndex)
		} else {
			miner.UpdateTemplate(chainIndex)
		}
	}
}

// PrepareBlockFlow implements spec.md §4.5's PrepareBlockFlow(chainIndex)
// command: delegates to BlockFlow, serialized through the writer
// goroutine so it never races an in-flight AddBlock's chain mutation.
func (h *FlowHandler) PrepareBlockFlow(chainIndex externalapi.ChainIndex) (*blockflow.MiningTemplate, error) {
	var template *blockflow.MiningTemplate
	var err error
	h.submit(func() {
		template, err = h.flow.PrepareBlockFlow(chainIndex, h.diff, h.mempool)
	})
	return template, err
}

// Register implements spec.md §4.5's Register(miner) command, returning a
// handle usable with UnRegister.
func (h *FlowHandler) Register(miner mining.Miner) mining.RegistrationId {
	id := mining.NewRegistrationId()
	h.submit(func() {
		h.miners[id] = miner
	})
	return id
}

// UnRegister implements spec.md §4.5's UnRegister command.
func (h *FlowHandler) UnRegister(id mining.RegistrationId) {
	h.submit(func() {
		delete(h.miners, id)
	})
}

// GetBlocks implements spec.md §4.5's GetBlocks(locators) command: every
// block the caller's locators reveal they are missing.
func (h *FlowHandler) GetBlocks(locators []*externalapi.Hash) []*externalapi.Block {
	var blocks []*externalapi.Block
	h.submit(func() {
		for _, index := range h.candidateChains(locators) {
			chain := h.flow.GetBlockChain(index)
			for _, hash := range h.hashesAbove(index, locators) {
				hashCopy := hash
				if block, ok := chain.Block(&hashCopy); ok {
					blocks = append(blocks, block)
				}
			}
		}
	})
	return blocks
}

// GetHeaders implements spec.md §4.5's GetHeaders(locators) command.
func (h *FlowHandler) GetHeaders(locators []*externalapi.Hash) []*externalapi.BlockHeader {
	var headers []*externalapi.BlockHeader
	h.submit(func() {
		for _, index := range h.candidateChains(locators) {
			chain := h.flow.GetHeaderChain(index)
			for _, hash := range h.hashesAbove(index, locators) {
				hashCopy := hash
				if header, ok := chain.Header(&hashCopy); ok {
					headers = append(headers, header)
				}
			}
		}
	})
	return headers
}

// candidateChains resolves every chain that any of locators names a known
// hash on.
func (h *FlowHandler) candidateChains(locators []*externalapi.Hash) []externalapi.ChainIndex {
	seen := make(map[externalapi.ChainIndex]bool)
	var indices []externalapi.ChainIndex
	for _, hash := range locators {
		index, ok := h.flow.ChainIndexOf(hash)
		if !ok || seen[index] {
			continue
		}
		seen[index] = true
		indices = append(indices, index)
	}
	return indices
}

// hashesAbove returns every hash index knows of above the highest locator
// hash present on that chain.
func (h *FlowHandler) hashesAbove(index externalapi.ChainIndex, locators []*externalapi.Hash) []externalapi.Hash {
	chain := h.flow.GetHeaderChain(index)
	var bestHeight uint64
	found := false
	for _, hash := range locators {
		if height, ok := chain.Height(hash); ok {
			if !found || height > bestHeight {
				bestHeight = height
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return chain.HashesAboveHeight(bestHeight)
}

// GetSyncInfo implements spec.md §4.5's GetSyncInfo(remote, sameClique)
// command: this node's best tip per chain, for the caller to diff against
// remote's announced tips. sameClique is accepted for interface symmetry
// with the wire protocol (a future cross-clique sync policy would filter
// by it) but this broker-agnostic core treats every peer identically.
func (h *FlowHandler) GetSyncInfo(remote Broker, sameClique bool) SyncInfo {
	info := SyncInfo{Tips: make(map[externalapi.ChainIndex]externalapi.Hash)}
	h.submit(func() {
		for _, index := range h.flow.ChainIndices() {
			if tip, ok := h.flow.GetHeaderChain(index).BestTip(); ok {
				info.Tips[index] = tip
			}
		}
	})
	_ = remote
	return info
}

// GetSyncData implements spec.md §4.5's
// GetSyncData(blockLocators, headerLocators) command, bundling GetBlocks
// and GetHeaders's results for a combined sync response.
func (h *FlowHandler) GetSyncData(blockLocators, headerLocators []*externalapi.Hash) *SyncData {
	return &SyncData{
		Blocks:  h.GetBlocks(blockLocators),
		Headers: h.GetHeaders(headerLocators),
	}
}

// PendingSize returns the current pending-buffer size for chainIndex, for
// tests exercising spec.md §8's "pending buffer size never exceeds
// statusSizeLimit" property.
func (h *FlowHandler) PendingSize(chainIndex externalapi.ChainIndex) int {
	var size int
	h.submit(func() {
		size = h.pendingFor(chainIndex).Size()
	})
	return size
}

func isIOError(err error) bool {
	_, ok := err.(*ruleerrors.IOError)
	return ok
}
