// Package transactionvalidator implements spec.md §4.3's stateless and
// stateful transaction validation pipelines. Adapted from the teacher's
// transactionvalidator package shape (a validator struct holding
// configuration, exposing one checkXxx method per rule, called in a fixed
// order by ValidateStateless and ValidateStateful), generalized from
// kaspad's UTXO/mass model
// to this protocol's ALF/token/gas model.
package transactionvalidator

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
)

// Params holds the subset of node configuration (spec.md §6) the
// transaction validator needs. NetworkId and Groups vary per
// deployment; the gas schedule and caps are consensus-critical constants
// but are still threaded through Params rather than read as package
// globals, mirroring the teacher's own dagParams-on-the-struct idiom.
type Params struct {
	NetworkId       uint32
	Groups          int
	MinimalGas      uint64
	MaxGasPerTx     uint64
	MaxALFValue     *uint256.Int
	MaxTxInputNum   int
	MaxTxOutputNum  int
	MaxTokenPerUtxo int
	MaxOutputDataSize int
}

// DefaultParams returns Params populated from the consensus-critical
// constants, parameterized only by the two deployment-specific fields.
func DefaultParams(networkId uint32, groups int) Params {
	return Params{
		NetworkId:         networkId,
		Groups:            groups,
		MinimalGas:        constants.MinimalGas,
		MaxGasPerTx:        constants.MaxGasPerTx,
		MaxALFValue:        new(uint256.Int).Not(new(uint256.Int)),
		MaxTxInputNum:      constants.MaxTxInputNum,
		MaxTxOutputNum:     constants.MaxTxOutputNum,
		MaxTokenPerUtxo:    constants.MaxTokenPerUtxo,
		MaxOutputDataSize:  constants.MaxOutputDataSize,
	}
}

// Validator runs the transaction validation pipelines of spec.md §4.3.
type Validator struct {
	params Params
}

// New builds a Validator.
func New(params Params) *Validator {
	return &Validator{params: params}
}
