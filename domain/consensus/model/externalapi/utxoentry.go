package externalapi

import "github.com/holiman/uint256"

// AssetOutputPair is an AssetOutputRef paired with the AssetOutput it
// resolves to, as returned by world state iteration and by getPreOutputs.
type AssetOutputPair struct {
	Ref    *AssetOutputRef
	Output *AssetOutput
}

// ContractId identifies a deployed contract's persistent state.
type ContractId Hash

// ContractOutputRef identifies a contract output the same way AssetOutputRef
// identifies an asset output: a hint encoding the owning group, plus a key.
type ContractOutputRef struct {
	OutputRef
}

// ContractOutput is the funds and code-hash record attached to a deployed
// contract. Contract state proper (the contract's mutable storage) is
// tracked separately, keyed by ContractId.
type ContractOutput struct {
	Amount     *uint256.Int
	ContractId ContractId
	CodeHash   Hash
}

// Clone returns a deep clone of ContractOutput.
func (out *ContractOutput) Clone() *ContractOutput {
	if out == nil {
		return nil
	}
	var amountClone *uint256.Int
	if out.Amount != nil {
		amountClone = new(uint256.Int).Set(out.Amount)
	}
	return &ContractOutput{Amount: amountClone, ContractId: out.ContractId, CodeHash: out.CodeHash}
}

// Equal returns whether out equals other.
func (out *ContractOutput) Equal(other *ContractOutput) bool {
	if out == nil || other == nil {
		return out == other
	}
	if (out.Amount == nil) != (other.Amount == nil) {
		return false
	}
	if out.Amount != nil && out.Amount.Cmp(other.Amount) != 0 {
		return false
	}
	return out.ContractId == other.ContractId && out.CodeHash.Equal(&other.CodeHash)
}
