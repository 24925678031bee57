// Package worldstate implements spec.md §4.1's World State: the committed
// map of live asset outputs, contract outputs and contract state, plus the
// copy-on-write scratch view (View) that transaction and block validation
// mutate without touching the durable root until an explicit Commit.
// Grounded on the teacher's externalapi.UTXOEntry / model.UTXODiff
// copy-on-write idiom (a base set plus an add/remove diff), generalized
// from a single UTXO collection to the three maps spec.md §3 names.
package worldstate

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
)

// WorldState is the durable, committed state: everything a new View reads
// through to before any scratch mutation is applied.
type WorldState struct {
	assets          map[externalapi.AssetOutputRef]*externalapi.AssetOutput
	contractOutputs map[externalapi.ContractOutputRef]*externalapi.ContractOutput
	contractState   map[externalapi.ContractId]map[string][]byte
	contractScripts map[externalapi.ContractId]*vm.Script
	tokenSupply     map[externalapi.TokenId]*uint256.Int
	stateRoot       externalapi.Hash
}

// New returns an empty, freshly-committed WorldState (the state before any
// block has been accepted).
func New() *WorldState {
	ws := &WorldState{
		assets:          make(map[externalapi.AssetOutputRef]*externalapi.AssetOutput),
		contractOutputs: make(map[externalapi.ContractOutputRef]*externalapi.ContractOutput),
		contractState:   make(map[externalapi.ContractId]map[string][]byte),
		contractScripts: make(map[externalapi.ContractId]*vm.Script),
		tokenSupply:     make(map[externalapi.TokenId]*uint256.Int),
	}
	ws.stateRoot = computeStateRoot(ws)
	return ws
}

// StateRoot returns the committed state root.
func (ws *WorldState) StateRoot() externalapi.Hash {
	return ws.stateRoot
}

// GetAsset returns the live AssetOutput at ref, or ruleerrors.ErrKeyNotFound.
func (ws *WorldState) GetAsset(ref *externalapi.AssetOutputRef) (*externalapi.AssetOutput, error) {
	out, ok := ws.assets[*ref]
	if !ok {
		return nil, ruleerrors.ErrKeyNotFound
	}
	return out, nil
}

// GetContractOutput returns the live ContractOutput at ref, or
// ruleerrors.ErrKeyNotFound.
func (ws *WorldState) GetContractOutput(ref *externalapi.ContractOutputRef) (*externalapi.ContractOutput, error) {
	out, ok := ws.contractOutputs[*ref]
	if !ok {
		return nil, ruleerrors.ErrKeyNotFound
	}
	return out, nil
}

// RegisterContractScript installs the Script executed when OpCall targets
// contractId. This is a deployment-time operation (external to spec.md's
// validation pipeline proper) kept here because it's the natural home for
// the contractScripts map the VM's World interface reads from.
func (ws *WorldState) RegisterContractScript(contractId externalapi.ContractId, script *vm.Script) {
	ws.contractScripts[contractId] = script
}

// Cached returns a scratch, copy-on-write View of ws, per spec.md §4.1:
// validation mutates the View; only an explicit Commit alters ws.
func (ws *WorldState) Cached() *View {
	return &View{
		parent:               ws,
		addedAssets:          make(map[externalapi.AssetOutputRef]*externalapi.AssetOutput),
		removedAssets:        make(map[externalapi.AssetOutputRef]bool),
		addedContractOutputs: make(map[externalapi.ContractOutputRef]*externalapi.ContractOutput),
		removedContractOutputs: make(map[externalapi.ContractOutputRef]bool),
		contractStateWrites:  make(map[externalapi.ContractId]map[string][]byte),
		issuedTokens:         make(map[externalapi.TokenId]*uint256.Int),
	}
}
