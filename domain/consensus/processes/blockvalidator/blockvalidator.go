// Package blockvalidator implements spec.md §4.4's header and block
// validation pipelines. Adapted from the teacher's blockvalidator package
// shape (a validator struct exposing one checkXxx method per rule, called
// in a fixed order), generalized from kaspad's GHOSTDAG/pruning-point
// model to this protocol's per-chain parent+blockDeps model.
package blockvalidator

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/processes/difficultymanager"
	"github.com/shardflow/flowdag/domain/consensus/processes/transactionvalidator"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
	"github.com/shardflow/flowdag/domain/worldstate"
	"github.com/shardflow/flowdag/infrastructure/logger"
)

var log = logger.RegisterSubsystem("BLVL")

// ChainReader is the per-chain capability set spec.md §9's design notes
// describe: {contains, parent, height, getHashTarget, maxHeight}, plus
// the per-block timestamp the retarget algorithm needs. Satisfied by both
// a headers-only chain and a headers+bodies chain (spec.md §9's two
// concrete variants).
type ChainReader = difficultymanager.ChainReader

// FlowReader resolves hash presence across the whole flow (every chain),
// used by validateDeps: blockDeps may point into any of the G*G chains,
// not just this header's own.
type FlowReader interface {
	Contains(hash *externalapi.Hash) bool
}

// Params holds the subset of node configuration blockvalidator needs
// beyond what Validator.tx already carries: the broker's serviced chain
// indices (spec.md §4.4's validateGroup). The now/syncing clock inputs are
// not held here; ValidateHeader and ValidateBlock take them as arguments.
type Params struct {
	ServicedChainIndices map[externalapi.ChainIndex]bool
}

// Validator runs spec.md §4.4's header and block validation pipelines.
type Validator struct {
	params Params
	diff   *difficultymanager.Manager
	tx     *transactionvalidator.Validator
}

// New builds a Validator.
func New(params Params, diff *difficultymanager.Manager, tx *transactionvalidator.Validator) *Validator {
	return &Validator{params: params, diff: diff, tx: tx}
}

// nowMs/syncing are threaded as explicit parameters rather than read off a
// package-level clock, so header validation stays a pure function of its
// inputs (testable without faking time.Now, matching the teacher's own
// explicit-timestamp validator signatures).

// ValidateHeader runs the five header-level checks of spec.md §4.4 in
// order: validateTimeStamp, validateWorkAmount, validateWorkTarget,
// validateParent, validateDeps.
func (v *Validator) ValidateHeader(header *externalapi.BlockHeader, chain ChainReader, flow FlowReader,
	nowMs int64, syncing bool) error {

	if err := v.checkTimeStamp(header, nowMs, syncing); err != nil {
		return err
	}
	if err := v.checkWorkAmount(header); err != nil {
		return err
	}
	if err := v.checkWorkTarget(header, chain); err != nil {
		return err
	}
	if err := v.checkParent(header, chain); err != nil {
		return err
	}
	if err := v.checkDeps(header, flow); err != nil {
		return err
	}
	return nil
}

func (v *Validator) checkTimeStamp(header *externalapi.BlockHeader, nowMs int64, syncing bool) error {
	if header.TimestampMs > nowMs+constants.TimestampFutureToleranceMs {
		return ruleerrors.New(ruleerrors.ErrInvalidTimeStamp, "header timestamp too far in the future")
	}
	if !syncing && header.TimestampMs < nowMs-constants.TimestampPastToleranceMs {
		return ruleerrors.New(ruleerrors.ErrInvalidTimeStamp, "header timestamp too far in the past")
	}
	return nil
}

func (v *Validator) checkWorkAmount(header *externalapi.BlockHeader) error {
	hash := consensushashing.HeaderHash(header)
	work := new(uint256.Int).SetBytes(hash.ByteSlice())
	if header.Target == nil || work.Cmp(header.Target) > 0 {
		return ruleerrors.New(ruleerrors.ErrInvalidWorkAmount, "header hash exceeds its target")
	}
	return nil
}

func (v *Validator) checkWorkTarget(header *externalapi.BlockHeader, chain ChainReader) error {
	if header.ParentHash == nil {
		return nil
	}
	expected, err := v.diff.RequiredDifficulty(chain, header.ParentHash)
	if err != nil {
		return ruleerrors.New(ruleerrors.ErrMissingParent, "cannot compute required target: parent not found")
	}
	if header.Target == nil || header.Target.Cmp(expected) != 0 {
		return ruleerrors.New(ruleerrors.ErrInvalidWorkTarget, "header target does not match the retarget algorithm's expected value")
	}
	return nil
}

func (v *Validator) checkParent(header *externalapi.BlockHeader, chain ChainReader) error {
	if header.ParentHash == nil {
		return nil
	}
	if !chain.Contains(header.ParentHash) {
		return ruleerrors.New(ruleerrors.ErrMissingParent, "parent hash not present in its chain")
	}
	return nil
}

func (v *Validator) checkDeps(header *externalapi.BlockHeader, flow FlowReader) error {
	for _, dep := range header.BlockDeps {
		if !flow.Contains(dep) {
			return ruleerrors.New(ruleerrors.ErrMissingDeps, "a blockDeps entry is not present in the flow")
		}
	}
	return nil
}

// BlockReport carries the outcome of ValidateBlock: the total gas used
// across every non-coinbase transaction, for callers that fold it into
// the coinbase reward or mining statistics.
type BlockReport struct {
	GasUsed uint64
}

// ValidateBlock runs ValidateHeader, then the block-only checks of
// spec.md §4.4: validateGroup, validateNonEmptyTransactions,
// validateCoinbase, validateMerkleRoot, validateTransactions.
func (v *Validator) ValidateBlock(block *externalapi.Block, chainIndex externalapi.ChainIndex,
	chain ChainReader, flow FlowReader, view *worldstate.View, env transactionvalidator.BlockEnv,
	nowMs int64, syncing bool) (BlockReport, error) {

	if err := v.ValidateHeader(block.Header, chain, flow, nowMs, syncing); err != nil {
		return BlockReport{}, err
	}
	if err := v.checkGroup(chainIndex); err != nil {
		return BlockReport{}, err
	}
	if err := v.checkNonEmptyTransactions(block); err != nil {
		return BlockReport{}, err
	}
	if err := v.checkCoinbase(block); err != nil {
		return BlockReport{}, err
	}
	if err := v.checkMerkleRoot(block); err != nil {
		return BlockReport{}, err
	}
	return v.checkTransactions(block, chainIndex, view, env)
}

func (v *Validator) checkGroup(chainIndex externalapi.ChainIndex) error {
	if v.params.ServicedChainIndices == nil {
		return nil
	}
	if !v.params.ServicedChainIndices[chainIndex] {
		return ruleerrors.New(ruleerrors.ErrInvalidGroup, "block's chainIndex is not serviced by this broker")
	}
	return nil
}

func (v *Validator) checkNonEmptyTransactions(block *externalapi.Block) error {
	if len(block.Transactions) == 0 {
		return ruleerrors.New(ruleerrors.ErrEmptyTransactionList, "block has no transactions")
	}
	return nil
}

func (v *Validator) checkCoinbase(block *externalapi.Block) error {
	coinbase := block.Transactions[0]
	if !coinbase.IsCoinbase() {
		return ruleerrors.New(ruleerrors.ErrInvalidCoinbase, "block's first transaction is not a valid coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return ruleerrors.New(ruleerrors.ErrInvalidCoinbase, "block has more than one coinbase transaction")
		}
	}
	return nil
}

func (v *Validator) checkMerkleRoot(block *externalapi.Block) error {
	expected := consensushashing.TransactionsHash(block.Transactions)
	if !block.Header.TxsHash.Equal(&expected) {
		return ruleerrors.New(ruleerrors.ErrInvalidMerkleRoot, "header.txsHash does not match Hash(transactions)")
	}
	return nil
}

// checkTransactions runs the full validation pipeline for every
// non-coinbase transaction against view, additionally enforcing
// block-wide input uniqueness (DoubleSpent) and pre-output existence
// (InvalidCoins).
func (v *Validator) checkTransactions(block *externalapi.Block, chainIndex externalapi.ChainIndex,
	view *worldstate.View, env transactionvalidator.BlockEnv) (BlockReport, error) {

	seen := make(map[externalapi.OutputRef]bool)
	var totalGas uint64

	for _, tx := range block.Transactions[1:] {
		for _, in := range tx.Unsigned.Inputs {
			ref := in.OutputRef.OutputRef
			if seen[ref] {
				log.Tracef("double-spent outputRef, rejecting tx: %s", spew.Sdump(tx))
				return BlockReport{}, ruleerrors.New(ruleerrors.ErrDoubleSpent, "two transactions in this block reference the same outputRef")
			}
			seen[ref] = true
		}
	}

	addOutputs(view, block.Transactions[0])

	for _, tx := range block.Transactions[1:] {
		preOutputs, err := view.GetPreOutputs(tx)
		if err != nil {
			if isKeyNotFound(err) {
				log.Tracef("missing pre-output, rejecting tx: %s", spew.Sdump(tx))
				return BlockReport{}, ruleerrors.New(ruleerrors.ErrInvalidCoins, "a referenced output does not exist")
			}
			// Any other IOError (Serde, Other) is a transient/systemic
			// storage failure, not a consensus violation; bubble it
			// unchanged (spec.md §7's propagation policy).
			return BlockReport{}, err
		}

		if err := v.tx.ValidateStateless(tx, chainIndex); err != nil {
			return BlockReport{}, err
		}
		report, err := v.tx.ValidateStateful(tx, chainIndex, preOutputs, env, view)
		if err != nil {
			return BlockReport{}, err
		}
		totalGas += report.GasUsed

		for _, in := range tx.Unsigned.Inputs {
			view.RemoveAsset(in.OutputRef)
		}
		addOutputs(view, tx)
	}

	return BlockReport{GasUsed: totalGas}, nil
}

// addOutputs folds tx's fixed outputs into view, keyed by
// (tx hash, output index), so later transactions in the same block can
// spend them before the block is committed.
func addOutputs(view *worldstate.View, tx *externalapi.Transaction) {
	txHash := consensushashing.TransactionHash(tx)
	for i, out := range tx.Unsigned.FixedOutputs {
		ref := &externalapi.AssetOutputRef{OutputRef: externalapi.OutputRef{
			Key:  consensushashing.OutputKey(txHash, uint32(i)),
			Hint: consensushashing.ScriptHint(out.LockupScript),
		}}
		view.AddAsset(ref, out)
	}
}

// isKeyNotFound reports whether err is the "missing key" flavor of
// ruleerrors.IOError, as opposed to a genuine transient storage fault
// (Serde, Other). A missing pre-output is a consensus violation
// (InvalidCoins); any other IOError kind is not this validator's call to
// make and must bubble to the caller unchanged.
func isKeyNotFound(err error) bool {
	ioErr, ok := err.(*ruleerrors.IOError)
	return ok && ioErr.Kind == ruleerrors.IOErrKeyNotFound
}
