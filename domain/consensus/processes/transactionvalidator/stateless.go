package transactionvalidator

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
)

// ValidateStateless runs the seven stateless checks of spec.md §4.3 in
// order, short-circuiting on the first failure.
func (v *Validator) ValidateStateless(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex) error {
	if err := v.checkNetworkId(tx); err != nil {
		return err
	}
	if err := v.checkInputNum(tx, chainIndex); err != nil {
		return err
	}
	if err := v.checkOutputNum(tx, chainIndex); err != nil {
		return err
	}
	if err := v.checkGasBound(tx); err != nil {
		return err
	}
	if err := v.checkOutputStats(tx); err != nil {
		return err
	}
	if err := v.getChainIndex(tx, chainIndex); err != nil {
		return err
	}
	if err := v.checkUniqueInputs(tx, chainIndex); err != nil {
		return err
	}
	return nil
}

func (v *Validator) checkNetworkId(tx *externalapi.Transaction) error {
	if tx.Unsigned.NetworkId != v.params.NetworkId {
		return ruleerrors.New(ruleerrors.ErrInvalidNetworkId,
			"transaction networkId does not match this node's network")
	}
	return nil
}

func (v *Validator) checkInputNum(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex) error {
	total := len(tx.Unsigned.Inputs) + len(tx.ContractInputs)
	if len(tx.Unsigned.Inputs) < 1 {
		return ruleerrors.New(ruleerrors.ErrTooManyInputs, "transaction has no inputs")
	}
	if total > v.params.MaxTxInputNum {
		return ruleerrors.New(ruleerrors.ErrTooManyInputs, "transaction exceeds MaxTxInputNum")
	}
	if len(tx.ContractInputs) > 0 && !chainIndex.IsIntraGroup() {
		return ruleerrors.New(ruleerrors.ErrContractInputForInterGroupTx,
			"contract inputs are only allowed on intra-group transactions")
	}
	return nil
}

func (v *Validator) checkOutputNum(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex) error {
	total := len(tx.Unsigned.FixedOutputs) + len(tx.GeneratedOutputs)
	if len(tx.Unsigned.FixedOutputs) < 1 {
		return ruleerrors.New(ruleerrors.ErrNoOutputs, "transaction has no outputs")
	}
	if total > v.params.MaxTxOutputNum {
		return ruleerrors.New(ruleerrors.ErrTooManyOutputs, "transaction exceeds MaxTxOutputNum")
	}
	if len(tx.GeneratedOutputs) > 0 && !chainIndex.IsIntraGroup() {
		return ruleerrors.New(ruleerrors.ErrGeneratedOutputForInterGroupTx,
			"generated outputs are only allowed on intra-group transactions")
	}
	return nil
}

func (v *Validator) checkGasBound(tx *externalapi.Transaction) error {
	gasAmount := tx.Unsigned.GasAmount
	if gasAmount < v.params.MinimalGas || gasAmount > v.params.MaxGasPerTx {
		return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "gasAmount outside [minimalGas, maxGasPerTx]")
	}
	gasPrice := tx.Unsigned.GasPrice
	if gasPrice == nil || gasPrice.IsZero() || gasPrice.Cmp(v.params.MaxALFValue) >= 0 {
		return ruleerrors.New(ruleerrors.ErrInvalidGasPrice, "gasPrice outside (0, MaxALFValue)")
	}
	return nil
}

func (v *Validator) checkOutputStats(tx *externalapi.Transaction) error {
	if _, overflow := sumAssetOutputsALF(tx.Unsigned.FixedOutputs); overflow {
		return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "sum of output ALF amounts overflows")
	}

	for _, out := range tx.Unsigned.FixedOutputs {
		if out.Amount == nil || out.Amount.IsZero() {
			return ruleerrors.New(ruleerrors.ErrInvalidOutputStats, "output amount must be > 0")
		}
		if len(out.Tokens) > v.params.MaxTokenPerUtxo {
			return ruleerrors.New(ruleerrors.ErrInvalidOutputStats, "output exceeds maxTokenPerUtxo")
		}
		for _, t := range out.Tokens {
			if t.Amount == nil || t.Amount.IsZero() {
				return ruleerrors.New(ruleerrors.ErrInvalidOutputStats, "token amount must be > 0")
			}
		}
		if len(out.AdditionalData) > v.params.MaxOutputDataSize {
			return ruleerrors.New(ruleerrors.ErrOutputDataSizeExceeded, "additionalData exceeds MaxOutputDataSize")
		}
	}
	return nil
}

// getChainIndex checks that every input's hint resolves to chainIndex.From
// and that every fixed output's lockup resolves to chainIndex.From or
// chainIndex.To, with at least one output bound for chainIndex.To on
// inter-group transactions (spec.md §4.3's "output group rule").
func (v *Validator) getChainIndex(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex) error {
	groups := v.params.Groups
	for _, in := range tx.Unsigned.Inputs {
		if in.OutputRef.GroupIndex(groups) != chainIndex.From {
			return ruleerrors.New(ruleerrors.ErrInvalidInputGroupIndex,
				"input hint does not resolve to chainIndex.From")
		}
	}

	if chainIndex.IsIntraGroup() {
		for _, out := range tx.Unsigned.FixedOutputs {
			if lockupGroup(out.LockupScript, groups) != chainIndex.From {
				return ruleerrors.New(ruleerrors.ErrInvalidOutputGroupIndex,
					"intra-group transaction has an output outside its group")
			}
		}
		return nil
	}

	hasToOutput := false
	for _, out := range tx.Unsigned.FixedOutputs {
		g := lockupGroup(out.LockupScript, groups)
		if g != chainIndex.From && g != chainIndex.To {
			return ruleerrors.New(ruleerrors.ErrInvalidOutputGroupIndex,
				"output does not belong to chainIndex.From or chainIndex.To")
		}
		if g == chainIndex.To {
			hasToOutput = true
		}
	}
	if !hasToOutput {
		return ruleerrors.New(ruleerrors.ErrInvalidOutputGroupIndex,
			"inter-group transaction has no output bound for chainIndex.To")
	}
	return nil
}

// lockupGroup resolves the group a lockup script belongs to via the same
// script-hint byte an AssetOutputRef built from this lockup would carry
// (consensushashing.ScriptHint), so a freshly-created output's ref and the
// lockup that produced it always agree on group membership.
func lockupGroup(lockup *externalapi.LockupScript, groups int) externalapi.GroupIndex {
	return externalapi.GroupIndexFromScriptHint(consensushashing.ScriptHint(lockup), groups)
}

func (v *Validator) checkUniqueInputs(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex) error {
	seen := make(map[externalapi.OutputRef]bool, len(tx.Unsigned.Inputs)+len(tx.ContractInputs))
	for _, in := range tx.Unsigned.Inputs {
		ref := in.OutputRef.OutputRef
		if seen[ref] {
			return ruleerrors.New(ruleerrors.ErrTxDoubleSpending, "duplicate outputRef within transaction")
		}
		seen[ref] = true
	}
	if chainIndex.IsIntraGroup() {
		for _, ref := range tx.ContractInputs {
			if seen[*ref] {
				return ruleerrors.New(ruleerrors.ErrTxDoubleSpending, "duplicate outputRef within transaction")
			}
			seen[*ref] = true
		}
	}
	return nil
}

// sumAssetOutputsALF sums the ALF amount across outputs, reporting
// overflow rather than silently wrapping.
func sumAssetOutputsALF(outputs []*externalapi.AssetOutput) (sum *uint256.Int, overflow bool) {
	total := new(uint256.Int)
	for _, out := range outputs {
		if out.Amount == nil {
			continue
		}
		if _, overflow := total.AddOverflow(total, out.Amount); overflow {
			return total, true
		}
	}
	return total, false
}
