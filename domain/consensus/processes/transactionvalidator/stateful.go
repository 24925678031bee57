package transactionvalidator

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
	"github.com/shardflow/flowdag/domain/worldstate"
	"github.com/shardflow/flowdag/infrastructure/logger"
)

var log = logger.RegisterSubsystem("TXVL")

// BlockEnv is the block environment a stateful check needs: the
// network id (already checked statelessly, carried here for the VM
// context) and the hosting header's timestamp and target (spec.md
// §4.3's "block environment").
type BlockEnv struct {
	NetworkId      uint32
	HeaderTimestampMs int64
	Target         *uint256.Int
}

// GasReport carries the outcome of checkGasAndWitnesses/checkTxScript:
// how much gas the transaction actually used, for callers that need it
// (mining fee accounting, the 14060 test vector of spec.md §4.3).
type GasReport struct {
	GasUsed uint64
}

// ValidateStateful runs spec.md §4.3's stateful pipeline: lock time, tx
// script execution, gas-and-witnesses (signature/unlock verification),
// then ALF balance and token balance. preOutputs must be in
// tx.Unsigned.Inputs order, as returned by worldstate.View.GetPreOutputs.
func (v *Validator) ValidateStateful(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex,
	preOutputs []*externalapi.AssetOutput, env BlockEnv, view *worldstate.View) (GasReport, error) {

	if err := v.checkLockTime(preOutputs, env.HeaderTimestampMs); err != nil {
		return GasReport{}, err
	}

	gasBox := vm.NewGasBox(tx.Unsigned.GasAmount)

	if err := v.checkTxScript(tx, chainIndex, env, view, gasBox); err != nil {
		return GasReport{}, err
	}

	if err := v.checkGasAndWitnesses(tx, preOutputs, gasBox); err != nil {
		return GasReport{}, err
	}

	if err := v.checkAlfBalance(tx, preOutputs, tx.Unsigned.GasAmount); err != nil {
		return GasReport{}, err
	}
	if err := v.checkTokenBalance(tx, preOutputs, view); err != nil {
		return GasReport{}, err
	}

	return GasReport{GasUsed: gasBox.GasUsed(tx.Unsigned.GasAmount)}, nil
}

func (v *Validator) checkLockTime(preOutputs []*externalapi.AssetOutput, headerTimestampMs int64) error {
	for _, out := range preOutputs {
		if out.LockTimeMs > 0 && headerTimestampMs < out.LockTimeMs {
			return ruleerrors.New(ruleerrors.ErrTimeLockedTx, "preOutput is still time-locked")
		}
	}
	return nil
}

func (v *Validator) checkAlfBalance(tx *externalapi.Transaction, preOutputs []*externalapi.AssetOutput, gasAmount uint64) error {
	in := new(uint256.Int)
	for _, out := range preOutputs {
		if out.Amount == nil {
			continue
		}
		if _, overflow := in.AddOverflow(in, out.Amount); overflow {
			return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "sum of input ALF amounts overflows")
		}
	}

	out := new(uint256.Int)
	for _, o := range tx.Unsigned.FixedOutputs {
		if o.Amount == nil {
			continue
		}
		if _, overflow := out.AddOverflow(out, o.Amount); overflow {
			return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "sum of output ALF amounts overflows")
		}
	}
	for _, o := range tx.GeneratedOutputs {
		if o.Amount == nil {
			continue
		}
		if _, overflow := out.AddOverflow(out, o.Amount); overflow {
			return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "sum of output ALF amounts overflows")
		}
	}

	fee := new(uint256.Int).Mul(new(uint256.Int).SetUint64(gasAmount), tx.Unsigned.GasPrice)
	if _, overflow := out.AddOverflow(out, fee); overflow {
		return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "output sum plus gas fee overflows")
	}

	if in.Cmp(out) != 0 {
		log.Tracef("ALF balance mismatch, rejecting tx: %s", spew.Sdump(tx))
		return ruleerrors.New(ruleerrors.ErrInvalidAlfBalance,
			"sum(inputs) != sum(outputs) + gasAmount*gasPrice")
	}
	return nil
}

func (v *Validator) checkTokenBalance(tx *externalapi.Transaction, preOutputs []*externalapi.AssetOutput, view *worldstate.View) error {
	in := make(map[externalapi.TokenId]*uint256.Int)
	for _, out := range preOutputs {
		for _, t := range out.Tokens {
			if err := addToken(in, t.TokenId, t.Amount); err != nil {
				return err
			}
		}
	}
	out := make(map[externalapi.TokenId]*uint256.Int)
	for _, o := range tx.Unsigned.FixedOutputs {
		for _, t := range o.Tokens {
			if err := addToken(out, t.TokenId, t.Amount); err != nil {
				return err
			}
		}
	}
	for _, o := range tx.GeneratedOutputs {
		for _, t := range o.Tokens {
			if err := addToken(out, t.TokenId, t.Amount); err != nil {
				return err
			}
		}
	}

	seen := make(map[externalapi.TokenId]bool)
	for id := range in {
		seen[id] = true
	}
	for id := range out {
		seen[id] = true
	}
	for id := range seen {
		inAmount := zeroIfNil(in[id])
		outAmount := zeroIfNil(out[id])
		if inAmount.Cmp(outAmount) == 0 {
			continue
		}
		issued := view.IssuedAmount(id)
		expected := new(uint256.Int).Add(inAmount, issued)
		if expected.Cmp(outAmount) != 0 {
			log.Tracef("token balance mismatch for token %s, rejecting tx: %s", externalapi.Hash(id), spew.Sdump(tx))
			return ruleerrors.New(ruleerrors.ErrInvalidTokenBalance,
				"token balance not conserved and not accounted for by issuance")
		}
	}
	return nil
}

func addToken(m map[externalapi.TokenId]*uint256.Int, id externalapi.TokenId, amount *uint256.Int) error {
	if amount == nil {
		return nil
	}
	existing, ok := m[id]
	if !ok {
		existing = new(uint256.Int)
	}
	sum := new(uint256.Int)
	if _, overflow := sum.AddOverflow(existing, amount); overflow {
		return ruleerrors.New(ruleerrors.ErrBalanceOverFlow, "token amount sum overflows")
	}
	m[id] = sum
	return nil
}

func zeroIfNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func (v *Validator) checkTxScript(tx *externalapi.Transaction, chainIndex externalapi.ChainIndex,
	env BlockEnv, view *worldstate.View, gasBox *vm.GasBox) error {

	if !tx.Unsigned.HasScript() {
		return nil
	}
	if !chainIndex.IsIntraGroup() {
		return ruleerrors.New(ruleerrors.ErrGeneratedOutputForInterGroupTx,
			"tx scripts may only run on intra-group transactions")
	}

	script, err := decodeScript(tx.Unsigned.ScriptOpt)
	if err != nil {
		return ruleerrors.NewWithVmError(ruleerrors.ErrTxScriptExeFailed, "tx script decode failed", err)
	}

	ctx := &vm.StatefulContext{
		StatelessContext: vm.StatelessContext{UnsignedTxHash: consensushashing.UnsignedTransactionHash(tx.Unsigned)},
		World:            view,
	}
	runtime := vm.NewRuntime(ctx, gasBox)
	if _, err := runtime.Call(script, nil, nil); err != nil {
		return ruleerrors.NewWithVmError(ruleerrors.ErrTxScriptExeFailed, "tx script execution failed", err)
	}
	return nil
}
