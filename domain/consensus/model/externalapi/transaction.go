package externalapi

import "github.com/holiman/uint256"

// TokenId identifies a sub-token tracked alongside the base ALF balance of
// an AssetOutput.
type TokenId Hash

// Transaction is a fully-formed transaction: its unsigned body plus the
// witness data (signatures, contract-call inputs) and the outputs the VM
// produced while executing its tx script, if any.
type Transaction struct {
	Unsigned         *UnsignedTransaction
	InputSignatures  [][]byte
	ContractInputs   []*OutputRef
	GeneratedOutputs []*TxOutput
}

// Clone returns a deep clone of Transaction.
func (tx *Transaction) Clone() *Transaction {
	sigClone := make([][]byte, len(tx.InputSignatures))
	for i, sig := range tx.InputSignatures {
		sigClone[i] = cloneBytes(sig)
	}

	contractInputsClone := make([]*OutputRef, len(tx.ContractInputs))
	for i, ref := range tx.ContractInputs {
		refClone := ref.Clone()
		contractInputsClone[i] = refClone
	}

	generatedOutputsClone := make([]*TxOutput, len(tx.GeneratedOutputs))
	for i, out := range tx.GeneratedOutputs {
		generatedOutputsClone[i] = out.Clone()
	}

	return &Transaction{
		Unsigned:         tx.Unsigned.Clone(),
		InputSignatures:  sigClone,
		ContractInputs:   contractInputsClone,
		GeneratedOutputs: generatedOutputsClone,
	}
}

// Equal returns whether tx equals other.
func (tx *Transaction) Equal(other *Transaction) bool {
	if tx == nil || other == nil {
		return tx == other
	}

	if !tx.Unsigned.Equal(other.Unsigned) {
		return false
	}
	if len(tx.InputSignatures) != len(other.InputSignatures) {
		return false
	}
	for i, sig := range tx.InputSignatures {
		if string(sig) != string(other.InputSignatures[i]) {
			return false
		}
	}
	if len(tx.ContractInputs) != len(other.ContractInputs) {
		return false
	}
	for i, ref := range tx.ContractInputs {
		if !ref.Equal(other.ContractInputs[i]) {
			return false
		}
	}
	if len(tx.GeneratedOutputs) != len(other.GeneratedOutputs) {
		return false
	}
	for i, out := range tx.GeneratedOutputs {
		if !out.Equal(other.GeneratedOutputs[i]) {
			return false
		}
	}
	return true
}

// IsCoinbase reports whether tx matches the coinbase shape: zero inputs,
// exactly one fixed output, and no signatures.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Unsigned.Inputs) == 0 &&
		len(tx.Unsigned.FixedOutputs) == 1 &&
		len(tx.InputSignatures) == 0
}

// UnsignedTransaction is the part of a Transaction that gets hashed and
// signed.
type UnsignedTransaction struct {
	NetworkId    uint32
	ScriptOpt    []byte
	GasAmount    uint64
	GasPrice     *uint256.Int
	Inputs       []*TxInput
	FixedOutputs []*AssetOutput
}

// Clone returns a deep clone of UnsignedTransaction.
func (unsigned *UnsignedTransaction) Clone() *UnsignedTransaction {
	inputsClone := make([]*TxInput, len(unsigned.Inputs))
	for i, in := range unsigned.Inputs {
		inputsClone[i] = in.Clone()
	}

	outputsClone := make([]*AssetOutput, len(unsigned.FixedOutputs))
	for i, out := range unsigned.FixedOutputs {
		outputsClone[i] = out.Clone()
	}

	var gasPriceClone *uint256.Int
	if unsigned.GasPrice != nil {
		gasPriceClone = new(uint256.Int).Set(unsigned.GasPrice)
	}

	return &UnsignedTransaction{
		NetworkId:    unsigned.NetworkId,
		ScriptOpt:    cloneBytes(unsigned.ScriptOpt),
		GasAmount:    unsigned.GasAmount,
		GasPrice:     gasPriceClone,
		Inputs:       inputsClone,
		FixedOutputs: outputsClone,
	}
}

// Equal returns whether unsigned equals other.
func (unsigned *UnsignedTransaction) Equal(other *UnsignedTransaction) bool {
	if unsigned == nil || other == nil {
		return unsigned == other
	}

	if unsigned.NetworkId != other.NetworkId {
		return false
	}
	if string(unsigned.ScriptOpt) != string(other.ScriptOpt) {
		return false
	}
	if unsigned.GasAmount != other.GasAmount {
		return false
	}
	if (unsigned.GasPrice == nil) != (other.GasPrice == nil) {
		return false
	}
	if unsigned.GasPrice != nil && unsigned.GasPrice.Cmp(other.GasPrice) != 0 {
		return false
	}
	if len(unsigned.Inputs) != len(other.Inputs) {
		return false
	}
	for i, in := range unsigned.Inputs {
		if !in.Equal(other.Inputs[i]) {
			return false
		}
	}
	if len(unsigned.FixedOutputs) != len(other.FixedOutputs) {
		return false
	}
	for i, out := range unsigned.FixedOutputs {
		if !out.Equal(other.FixedOutputs[i]) {
			return false
		}
	}
	return true
}

// HasScript reports whether the transaction carries a tx script to execute.
func (unsigned *UnsignedTransaction) HasScript() bool {
	return len(unsigned.ScriptOpt) > 0
}

// TxInput spends one unspent AssetOutput, authorized by unlockScript.
type TxInput struct {
	OutputRef    *AssetOutputRef
	UnlockScript []byte
}

// Clone returns a deep clone of TxInput.
func (in *TxInput) Clone() *TxInput {
	return &TxInput{
		OutputRef:    in.OutputRef.Clone(),
		UnlockScript: cloneBytes(in.UnlockScript),
	}
}

// Equal returns whether in equals other.
func (in *TxInput) Equal(other *TxInput) bool {
	if in == nil || other == nil {
		return in == other
	}
	return in.OutputRef.Equal(other.OutputRef) && string(in.UnlockScript) == string(other.UnlockScript)
}

// OutputRef identifies either an AssetOutput or a contract output: hint
// carries the destination group so group-membership checks never require
// dereferencing the referenced output, key is the output's UTXO identifier.
type OutputRef struct {
	Hint uint32
	Key  Hash
}

// Clone returns a clone of OutputRef.
func (ref *OutputRef) Clone() *OutputRef {
	if ref == nil {
		return nil
	}
	return &OutputRef{Hint: ref.Hint, Key: ref.Key}
}

// Equal returns whether ref equals other.
func (ref *OutputRef) Equal(other *OutputRef) bool {
	if ref == nil || other == nil {
		return ref == other
	}
	return ref.Hint == other.Hint && ref.Key.Equal(&other.Key)
}

// GroupIndex returns the destination group encoded in the ref's hint.
func (ref *OutputRef) GroupIndex(groups int) GroupIndex {
	return GroupIndexFromScriptHint(ref.Hint, groups)
}

// AssetOutputRef is an OutputRef known to identify an AssetOutput.
type AssetOutputRef struct {
	OutputRef
}

// Clone returns a clone of AssetOutputRef.
func (ref *AssetOutputRef) Clone() *AssetOutputRef {
	if ref == nil {
		return nil
	}
	return &AssetOutputRef{OutputRef: *ref.OutputRef.Clone()}
}

// Equal returns whether ref equals other.
func (ref *AssetOutputRef) Equal(other *AssetOutputRef) bool {
	if ref == nil || other == nil {
		return ref == other
	}
	return ref.OutputRef.Equal(&other.OutputRef)
}

// AssetOutput is a UTXO-model output: an ALF amount plus optional token
// sub-balances, guarded by a lockup script and an optional time lock.
type AssetOutput struct {
	Amount         *uint256.Int
	LockupScript   *LockupScript
	LockTimeMs     int64
	Tokens         []TokenAmount
	AdditionalData []byte
}

// TokenAmount is one (TokenId, amount) pair carried by an AssetOutput.
type TokenAmount struct {
	TokenId TokenId
	Amount  *uint256.Int
}

// Clone returns a deep clone of AssetOutput.
func (out *AssetOutput) Clone() *AssetOutput {
	if out == nil {
		return nil
	}

	tokensClone := make([]TokenAmount, len(out.Tokens))
	for i, t := range out.Tokens {
		amountClone := new(uint256.Int)
		if t.Amount != nil {
			amountClone.Set(t.Amount)
		}
		tokensClone[i] = TokenAmount{TokenId: t.TokenId, Amount: amountClone}
	}

	var amountClone *uint256.Int
	if out.Amount != nil {
		amountClone = new(uint256.Int).Set(out.Amount)
	}

	return &AssetOutput{
		Amount:         amountClone,
		LockupScript:   out.LockupScript.Clone(),
		LockTimeMs:     out.LockTimeMs,
		Tokens:         tokensClone,
		AdditionalData: cloneBytes(out.AdditionalData),
	}
}

// Equal returns whether out equals other.
func (out *AssetOutput) Equal(other *AssetOutput) bool {
	if out == nil || other == nil {
		return out == other
	}
	if (out.Amount == nil) != (other.Amount == nil) {
		return false
	}
	if out.Amount != nil && out.Amount.Cmp(other.Amount) != 0 {
		return false
	}
	if !out.LockupScript.Equal(other.LockupScript) {
		return false
	}
	if out.LockTimeMs != other.LockTimeMs {
		return false
	}
	if len(out.Tokens) != len(other.Tokens) {
		return false
	}
	for i, t := range out.Tokens {
		o := other.Tokens[i]
		if t.TokenId != o.TokenId {
			return false
		}
		if (t.Amount == nil) != (o.Amount == nil) {
			return false
		}
		if t.Amount != nil && t.Amount.Cmp(o.Amount) != 0 {
			return false
		}
	}
	return string(out.AdditionalData) == string(other.AdditionalData)
}

// IsTimeLocked reports whether out is still locked at nowMs.
func (out *AssetOutput) IsTimeLocked(nowMs int64) bool {
	return out.LockTimeMs > nowMs
}

// TxOutput is a VM-generated output: like an AssetOutput but without a
// lock time, produced by contract call execution rather than fixed at
// construction time.
type TxOutput struct {
	Amount       *uint256.Int
	LockupScript *LockupScript
	Tokens       []TokenAmount
}

// Clone returns a deep clone of TxOutput.
func (out *TxOutput) Clone() *TxOutput {
	if out == nil {
		return nil
	}
	tokensClone := make([]TokenAmount, len(out.Tokens))
	for i, t := range out.Tokens {
		amountClone := new(uint256.Int)
		if t.Amount != nil {
			amountClone.Set(t.Amount)
		}
		tokensClone[i] = TokenAmount{TokenId: t.TokenId, Amount: amountClone}
	}
	var amountClone *uint256.Int
	if out.Amount != nil {
		amountClone = new(uint256.Int).Set(out.Amount)
	}
	return &TxOutput{
		Amount:       amountClone,
		LockupScript: out.LockupScript.Clone(),
		Tokens:       tokensClone,
	}
}

// Equal returns whether out equals other.
func (out *TxOutput) Equal(other *TxOutput) bool {
	if out == nil || other == nil {
		return out == other
	}
	if (out.Amount == nil) != (other.Amount == nil) {
		return false
	}
	if out.Amount != nil && out.Amount.Cmp(other.Amount) != 0 {
		return false
	}
	if !out.LockupScript.Equal(other.LockupScript) {
		return false
	}
	if len(out.Tokens) != len(other.Tokens) {
		return false
	}
	for i, t := range out.Tokens {
		o := other.Tokens[i]
		if t.TokenId != o.TokenId {
			return false
		}
		if (t.Amount == nil) != (o.Amount == nil) {
			return false
		}
		if t.Amount != nil && t.Amount.Cmp(o.Amount) != 0 {
			return false
		}
	}
	return true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}
