// Package transactionhelper builds the one transaction shape the core
// constructs rather than merely validates: the coinbase. Adapted from the
// teacher's own transactionhelper.NewSubnetworkTransaction-style
// constructor helpers.
package transactionhelper

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

// NewCoinbaseTransaction builds the coinbase satisfying spec.md §3's shape
// invariant: zero inputs, exactly one fixed output, zero signatures.
func NewCoinbaseTransaction(networkId uint32, reward *uint256.Int, lockup *externalapi.LockupScript) *externalapi.Transaction {
	return &externalapi.Transaction{
		Unsigned: &externalapi.UnsignedTransaction{
			NetworkId: networkId,
			GasAmount: 0,
			GasPrice:  uint256.NewInt(0),
			Inputs:    nil,
			FixedOutputs: []*externalapi.AssetOutput{
				{
					Amount:       reward,
					LockupScript: lockup,
				},
			},
		},
		InputSignatures: nil,
	}
}
