package worldstate

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
)

// View is a copy-on-write scratch view of a WorldState: reads fall through
// to the parent when not shadowed by a local add/remove/write, and no
// mutation is visible to any other View or to the parent until Commit.
// It implements vm.World so the stateful VM can read/write contract state
// and issue tokens through exactly the same scratch mechanism tx
// validation uses for assets.
type View struct {
	parent *WorldState

	addedAssets   map[externalapi.AssetOutputRef]*externalapi.AssetOutput
	removedAssets map[externalapi.AssetOutputRef]bool

	addedContractOutputs   map[externalapi.ContractOutputRef]*externalapi.ContractOutput
	removedContractOutputs map[externalapi.ContractOutputRef]bool

	contractStateWrites map[externalapi.ContractId]map[string][]byte
	issuedTokens         map[externalapi.TokenId]*uint256.Int

	generatedOutputs []*externalapi.TxOutput
}

// GetAsset resolves ref through the scratch delta first, then the parent.
func (v *View) GetAsset(ref *externalapi.AssetOutputRef) (*externalapi.AssetOutput, error) {
	if v.removedAssets[*ref] {
		return nil, ruleerrors.ErrKeyNotFound
	}
	if out, ok := v.addedAssets[*ref]; ok {
		return out, nil
	}
	return v.parent.GetAsset(ref)
}

// AddAsset records ref as newly created in this scratch view.
func (v *View) AddAsset(ref *externalapi.AssetOutputRef, out *externalapi.AssetOutput) {
	delete(v.removedAssets, *ref)
	v.addedAssets[*ref] = out
}

// RemoveAsset records ref as spent in this scratch view.
func (v *View) RemoveAsset(ref *externalapi.AssetOutputRef) {
	delete(v.addedAssets, *ref)
	v.removedAssets[*ref] = true
}

// GetContractOutput resolves ref through the scratch delta first, then
// the parent.
func (v *View) GetContractOutput(ref *externalapi.ContractOutputRef) (*externalapi.ContractOutput, error) {
	if v.removedContractOutputs[*ref] {
		return nil, ruleerrors.ErrKeyNotFound
	}
	if out, ok := v.addedContractOutputs[*ref]; ok {
		return out, nil
	}
	return v.parent.GetContractOutput(ref)
}

// AddContractOutput records ref as newly created in this scratch view.
func (v *View) AddContractOutput(ref *externalapi.ContractOutputRef, out *externalapi.ContractOutput) {
	delete(v.removedContractOutputs, *ref)
	v.addedContractOutputs[*ref] = out
}

// RemoveContractOutput records ref as spent in this scratch view.
func (v *View) RemoveContractOutput(ref *externalapi.ContractOutputRef) {
	delete(v.addedContractOutputs, *ref)
	v.removedContractOutputs[*ref] = true
}

// GetPreOutputs resolves tx's asset inputs, in order, the way spec.md
// §4.1 requires: "in the exact order of tx.inputs ++ tx.contractInputs".
// Contract inputs are validated for existence but are not themselves
// AssetOutputs, so only the asset-input prefix is returned; callers that
// need contract preconditions use GetContractOutput directly.
func (v *View) GetPreOutputs(tx *externalapi.Transaction) ([]*externalapi.AssetOutput, error) {
	preOutputs := make([]*externalapi.AssetOutput, len(tx.Unsigned.Inputs))
	for i, in := range tx.Unsigned.Inputs {
		out, err := v.GetAsset(in.OutputRef)
		if err != nil {
			return nil, err
		}
		preOutputs[i] = out
	}
	for _, ref := range tx.ContractInputs {
		contractRef := &externalapi.ContractOutputRef{OutputRef: *ref}
		if _, err := v.GetContractOutput(contractRef); err != nil {
			return nil, err
		}
	}
	return preOutputs, nil
}

// GetContractState implements vm.World.
func (v *View) GetContractState(contractId externalapi.ContractId, key []byte) ([]byte, bool, error) {
	if writes, ok := v.contractStateWrites[contractId]; ok {
		if val, ok := writes[string(key)]; ok {
			return val, val != nil, nil
		}
	}
	base, ok := v.parent.contractState[contractId]
	if !ok {
		return nil, false, nil
	}
	val, ok := base[string(key)]
	return val, ok, nil
}

// SetContractState implements vm.World. A nil value records a tombstone
// (delete) that Commit applies the same way a non-nil value applies a
// write.
func (v *View) SetContractState(contractId externalapi.ContractId, key []byte, value []byte) error {
	writes, ok := v.contractStateWrites[contractId]
	if !ok {
		writes = make(map[string][]byte)
		v.contractStateWrites[contractId] = writes
	}
	writes[string(key)] = value
	return nil
}

// IssueToken implements vm.World: it records newly-minted token supply so
// checkTokenBalance can recognize this transaction as the issuer (spec.md
// §4.3 checkTokenBalance: "unless the token is newly issued by a tx
// script").
func (v *View) IssueToken(tokenId externalapi.TokenId, amount *uint256.Int) error {
	existing, ok := v.issuedTokens[tokenId]
	if !ok {
		existing = new(uint256.Int)
	}
	sum := new(uint256.Int)
	if _, overflow := sum.AddOverflow(existing, amount); overflow {
		return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "token issuance overflow")
	}
	v.issuedTokens[tokenId] = sum
	return nil
}

// IssuedAmount returns how much of tokenId this view recorded as issued
// via IssueToken, used by checkTokenBalance to exempt issued tokens from
// the conservation check.
func (v *View) IssuedAmount(tokenId externalapi.TokenId) *uint256.Int {
	if amount, ok := v.issuedTokens[tokenId]; ok {
		return amount
	}
	return new(uint256.Int)
}

// ContractScript implements vm.World.
func (v *View) ContractScript(contractId externalapi.ContractId) (*vm.Script, bool, error) {
	script, ok := v.parent.contractScripts[contractId]
	return script, ok, nil
}

// Commit atomically folds this view's scratch mutations into a brand new
// WorldState and returns it together with its freshly-computed state
// root. The parent WorldState is left untouched: either all of this
// view's mutations become visible under the new root, or (on error) none
// do, since Commit never mutates ws in place.
func (v *View) Commit() (*WorldState, externalapi.Hash, error) {
	next := &WorldState{
		assets:          cloneAssets(v.parent.assets),
		contractOutputs: cloneContractOutputs(v.parent.contractOutputs),
		contractState:   cloneContractState(v.parent.contractState),
		contractScripts: v.parent.contractScripts,
		tokenSupply:     cloneTokenSupply(v.parent.tokenSupply),
	}

	for ref := range v.removedAssets {
		delete(next.assets, ref)
	}
	for ref, out := range v.addedAssets {
		next.assets[ref] = out
	}
	for ref := range v.removedContractOutputs {
		delete(next.contractOutputs, ref)
	}
	for ref, out := range v.addedContractOutputs {
		next.contractOutputs[ref] = out
	}
	for contractId, writes := range v.contractStateWrites {
		state, ok := next.contractState[contractId]
		if !ok {
			state = make(map[string][]byte)
			next.contractState[contractId] = state
		}
		for key, value := range writes {
			if value == nil {
				delete(state, key)
				continue
			}
			state[key] = value
		}
	}
	for tokenId, amount := range v.issuedTokens {
		existing, ok := next.tokenSupply[tokenId]
		if !ok {
			existing = new(uint256.Int)
		}
		next.tokenSupply[tokenId] = new(uint256.Int).Add(existing, amount)
	}

	next.stateRoot = computeStateRoot(next)
	return next, next.stateRoot, nil
}

func cloneAssets(m map[externalapi.AssetOutputRef]*externalapi.AssetOutput) map[externalapi.AssetOutputRef]*externalapi.AssetOutput {
	clone := make(map[externalapi.AssetOutputRef]*externalapi.AssetOutput, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func cloneContractOutputs(m map[externalapi.ContractOutputRef]*externalapi.ContractOutput) map[externalapi.ContractOutputRef]*externalapi.ContractOutput {
	clone := make(map[externalapi.ContractOutputRef]*externalapi.ContractOutput, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

func cloneContractState(m map[externalapi.ContractId]map[string][]byte) map[externalapi.ContractId]map[string][]byte {
	clone := make(map[externalapi.ContractId]map[string][]byte, len(m))
	for contractId, state := range m {
		inner := make(map[string][]byte, len(state))
		for k, v := range state {
			inner[k] = v
		}
		clone[contractId] = inner
	}
	return clone
}

func cloneTokenSupply(m map[externalapi.TokenId]*uint256.Int) map[externalapi.TokenId]*uint256.Int {
	clone := make(map[externalapi.TokenId]*uint256.Int, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
