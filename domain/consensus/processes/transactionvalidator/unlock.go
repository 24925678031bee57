package transactionvalidator

import (
	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
	"github.com/shardflow/flowdag/domain/consensus/utils/consensushashing"
	"github.com/shardflow/flowdag/domain/consensus/utils/constants"
	"github.com/shardflow/flowdag/domain/consensus/utils/vm"
)

// unlockKey identifies one distinct spending condition within a
// transaction: a (lockup, unlockScript) pair. Two inputs sharing the same
// lockup and unlock script bytes are the same condition, and per spec.md
// §4.3 rule 5's signature-compression rule, share a single slot in
// Transaction.InputSignatures rather than each demanding their own.
type unlockKey struct {
	lockupHash externalapi.Hash
	unlock     string
}

// checkGasAndWitnesses implements spec.md §4.3 rule 5: it verifies every
// input's unlock script against its preOutput's lockup script, enforces
// the signature-compression rule on Transaction.InputSignatures, and
// charges the gas schedule (txBaseGas, txInputBaseGas per input,
// txOutputBaseGas per output, plus the per-kind unlock cost).
//
// P2PKH and P2MPKH unlocks each consume one or M slots of
// tx.InputSignatures respectively, assigned to distinct (lockup, unlock)
// conditions in first-appearance order; identical conditions across
// inputs share a slot. P2SH unlocks execute the stateless VM against the
// unlock script's own embedded args and consume no InputSignatures slot,
// since the script's own execution is its witness.
func (v *Validator) checkGasAndWitnesses(tx *externalapi.Transaction, preOutputs []*externalapi.AssetOutput,
	gasBox *vm.GasBox) error {

	if len(preOutputs) != len(tx.Unsigned.Inputs) {
		return ruleerrors.New(ruleerrors.ErrNonExistInput, "preOutputs does not match inputs")
	}

	if err := gasBox.Use(constants.TxBaseGas); err != nil {
		return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging txBaseGas")
	}
	for range tx.Unsigned.Inputs {
		if err := gasBox.Use(constants.TxInputBaseGas); err != nil {
			return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging txInputBaseGas")
		}
	}
	outputCount := len(tx.Unsigned.FixedOutputs) + len(tx.GeneratedOutputs)
	for i := 0; i < outputCount; i++ {
		if err := gasBox.Use(constants.TxOutputBaseGas); err != nil {
			return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging txOutputBaseGas")
		}
	}

	order := make([]unlockKey, 0, len(tx.Unsigned.Inputs))
	widths := make(map[unlockKey]int)
	firstSeen := make(map[unlockKey]bool)
	keys := make([]unlockKey, len(tx.Unsigned.Inputs))

	for i, in := range tx.Unsigned.Inputs {
		lockup := preOutputs[i].LockupScript
		key := unlockKey{lockupHash: lockupDigest(lockup), unlock: string(in.UnlockScript)}
		keys[i] = key
		if !firstSeen[key] {
			firstSeen[key] = true
			order = append(order, key)
			width, err := unlockWidth(lockup, in.UnlockScript)
			if err != nil {
				return err
			}
			widths[key] = width
		}
	}

	offsets := make(map[unlockKey]int, len(order))
	total := 0
	for _, key := range order {
		offsets[key] = total
		total += widths[key]
	}
	if len(tx.InputSignatures) < total {
		return ruleerrors.New(ruleerrors.ErrNotEnoughSignature, "fewer inputSignatures than distinct unlock conditions require")
	}
	if len(tx.InputSignatures) > total {
		return ruleerrors.New(ruleerrors.ErrTooManySignatures, "more inputSignatures than distinct unlock conditions require")
	}

	txHash := consensushashing.UnsignedTransactionHash(tx.Unsigned)

	for i, in := range tx.Unsigned.Inputs {
		lockup := preOutputs[i].LockupScript
		offset := offsets[keys[i]]
		if err := v.verifyUnlock(lockup, in.UnlockScript, tx.InputSignatures, offset, txHash, gasBox); err != nil {
			return err
		}
	}

	return nil
}

// unlockWidth reports how many InputSignatures slots a distinct unlock
// condition consumes: one for P2PKH, M for P2MPKH, zero for P2SH (whose
// own script execution is its witness).
func unlockWidth(lockup *externalapi.LockupScript, raw []byte) (int, error) {
	switch lockup.Kind {
	case externalapi.LockupP2PKH:
		return 1, nil
	case externalapi.LockupP2MPKH:
		entries, err := decodeUnlockP2MPKH(raw)
		if err != nil {
			return 0, err
		}
		return len(entries.Entries), nil
	case externalapi.LockupP2SH:
		return 0, nil
	default:
		return 0, ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "unknown lockup kind")
	}
}

func (v *Validator) verifyUnlock(lockup *externalapi.LockupScript, raw []byte, sigs [][]byte, offset int,
	txHash *externalapi.Hash, gasBox *vm.GasBox) error {

	switch lockup.Kind {
	case externalapi.LockupP2PKH:
		return v.verifyP2PKH(lockup, raw, sigs, offset, txHash, gasBox)
	case externalapi.LockupP2MPKH:
		return v.verifyP2MPKH(lockup, raw, sigs, offset, txHash, gasBox)
	case externalapi.LockupP2SH:
		return v.verifyP2SH(lockup, raw, txHash, gasBox)
	default:
		return ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "unknown lockup kind")
	}
}

func (v *Validator) verifyP2PKH(lockup *externalapi.LockupScript, raw []byte, sigs [][]byte, offset int,
	txHash *externalapi.Hash, gasBox *vm.GasBox) error {

	unlock, err := decodeUnlockP2PKH(raw)
	if err != nil {
		return err
	}
	if consensushashing.HashPubKey(unlock.PubKey) != lockup.PubKeyHash {
		return ruleerrors.New(ruleerrors.ErrInvalidPublicKeyHash, "P2PKH unlock pubkey does not hash to lockup's pubKeyHash")
	}
	if offset >= len(sigs) {
		return ruleerrors.New(ruleerrors.ErrNotEnoughSignature, "no signature at P2PKH unlock's offset")
	}
	if err := gasBox.Use(constants.P2pkUnlockGas); err != nil {
		return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging p2pkUnlockGas")
	}
	if !vm.VerifySignature(unlock.PubKey.ByteSlice(), txHash.ByteSlice(), sigs[offset]) {
		return ruleerrors.New(ruleerrors.ErrInvalidSignature, "P2PKH signature verification failed")
	}
	return nil
}

func (v *Validator) verifyP2MPKH(lockup *externalapi.LockupScript, raw []byte, sigs [][]byte, offset int,
	txHash *externalapi.Hash, gasBox *vm.GasBox) error {

	unlock, err := decodeUnlockP2MPKH(raw)
	if err != nil {
		return err
	}
	if len(unlock.Entries) != lockup.M {
		return ruleerrors.New(ruleerrors.ErrInvalidNumberOfPublicKey, "P2MPKH unlock does not supply exactly M entries")
	}

	lastIndex := -1
	for j, entry := range unlock.Entries {
		if entry.Index <= lastIndex {
			return ruleerrors.New(ruleerrors.ErrInvalidP2mpkhUnlockScript, "P2MPKH unlock indices must be strictly increasing")
		}
		lastIndex = entry.Index
		if entry.Index < 0 || entry.Index >= len(lockup.PubKeys) {
			return ruleerrors.New(ruleerrors.ErrInvalidP2mpkhUnlockScript, "P2MPKH unlock index out of range")
		}
		if !entry.PubKey.Equal(&lockup.PubKeys[entry.Index]) {
			return ruleerrors.New(ruleerrors.ErrInvalidPublicKeyHash, "P2MPKH unlock pubkey does not match lockup's pubkey at index")
		}

		sigIndex := offset + j
		if sigIndex >= len(sigs) {
			return ruleerrors.New(ruleerrors.ErrNotEnoughSignature, "no signature at P2MPKH unlock's offset")
		}
		if err := gasBox.Use(constants.P2mpkhUnlockGasPerSignature); err != nil {
			return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging p2mpkhUnlockGasPerSignature")
		}
		if !vm.VerifySignature(entry.PubKey.ByteSlice(), txHash.ByteSlice(), sigs[sigIndex]) {
			return ruleerrors.New(ruleerrors.ErrInvalidSignature, "P2MPKH signature verification failed")
		}
	}
	return nil
}

func (v *Validator) verifyP2SH(lockup *externalapi.LockupScript, raw []byte, txHash *externalapi.Hash, gasBox *vm.GasBox) error {
	unlock, err := decodeUnlockP2SH(raw)
	if err != nil {
		return err
	}

	scriptBytesCost := uint64(len(unlock.Script)) * constants.GasSchedulePerByte
	hashCost := uint64(len(unlock.Script)) * constants.GasSchedulePerByteHash
	if err := gasBox.Use(constants.P2shCallGas + scriptBytesCost + hashCost); err != nil {
		return ruleerrors.New(ruleerrors.ErrInvalidStartGas, "out of gas charging P2SH script cost")
	}

	if consensushashing.Sum256(unlock.Script) != lockup.ScriptHash {
		return ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "P2SH unlock script does not hash to lockup's scriptHash")
	}

	script, err := decodeScript(unlock.Script)
	if err != nil {
		return ruleerrors.NewWithVmError(ruleerrors.ErrUnlockScriptExeFailed, "P2SH unlock script decode failed", err)
	}

	ctx := &vm.StatelessContext{UnsignedTxHash: txHash}
	runtime := vm.NewRuntime(ctx, gasBox)
	if _, err := runtime.Call(script, nil, splitArgs(unlock.Args)); err != nil {
		return ruleerrors.NewWithVmError(ruleerrors.ErrUnlockScriptExeFailed, "P2SH unlock script execution failed", err)
	}
	return nil
}

// splitArgs treats a P2SH unlock's flat Args blob as a single VM argument;
// the script receives the whole blob as one stack value, and the VM has no
// opcode that splits it further. Kept as a free function so the wire format can
// change without touching verifyP2SH's call site.
func splitArgs(args []byte) [][]byte {
	if len(args) == 0 {
		return nil
	}
	return [][]byte{args}
}

func lockupDigest(lockup *externalapi.LockupScript) externalapi.Hash {
	switch lockup.Kind {
	case externalapi.LockupP2PKH:
		return lockup.PubKeyHash
	case externalapi.LockupP2MPKH:
		return consensushashing.HashLockupP2MPKH(lockup.PubKeys, lockup.M)
	case externalapi.LockupP2SH:
		return lockup.ScriptHash
	default:
		return externalapi.Hash{}
	}
}
