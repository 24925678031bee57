// Package consensushashing implements the deterministic serialization and
// hashing of transactions, headers and blocks that spec.md §3/§9 requires:
// Hash(serialize(tx)) must be stable and equal across nodes, and
// header.txsHash must equal Hash(transactions). Adapted from the teacher's
// own consensushashing package (block.go/calc_signature_hash.go), which
// streams fields into a domain-tagged hash writer rather than building an
// intermediate wire buffer.
package consensushashing

import (
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
)

const (
	unsignedTxDomain = "flowdag-unsigned-tx"
	txDomain         = "flowdag-tx"
	headerDomain     = "flowdag-header"
	txsDomain        = "flowdag-txs"
)

// UnsignedTransactionHash returns the hash that inputSignatures sign: the
// commitment to everything in the transaction except the witness data.
// This is `Hash(unsigned)` as referenced by spec.md §4.3's
// checkGasAndWitnesses rule.
func UnsignedTransactionHash(unsigned *externalapi.UnsignedTransaction) *externalapi.Hash {
	w := hashes.NewHashWriter(unsignedTxDomain)
	writeUnsignedTransaction(w, unsigned)
	return w.Finalize()
}

// TransactionHash returns the full transaction's hash, including witness
// data and VM-generated outputs. This is the hash used to key a
// transaction's position for e.g. mempool lookups; it is not the hash
// inputSignatures sign (see UnsignedTransactionHash for that).
func TransactionHash(tx *externalapi.Transaction) *externalapi.Hash {
	w := hashes.NewHashWriter(txDomain)
	writeUnsignedTransaction(w, tx.Unsigned)
	w.WriteUint32(uint32(len(tx.InputSignatures)))
	for _, sig := range tx.InputSignatures {
		w.WriteBytes(sig)
	}
	w.WriteUint32(uint32(len(tx.ContractInputs)))
	for _, ref := range tx.ContractInputs {
		writeOutputRef(w, ref)
	}
	w.WriteUint32(uint32(len(tx.GeneratedOutputs)))
	for _, out := range tx.GeneratedOutputs {
		writeTxOutput(w, out)
	}
	return w.Finalize()
}

// TransactionsHash returns header.txsHash's expected value: the commitment
// over the full ordered transaction list of a block (spec.md §3 invariant
// 3, §4.4 validateMerkleRoot). Despite the historical name this is a flat
// domain-separated hash of the ordered tx hash list, not a Merkle tree;
// spec.md §9 leaves the exact scheme as an external byte-for-byte contract,
// so any deterministic, order-sensitive commitment satisfies the core's
// invariants.
func TransactionsHash(txs []*externalapi.Transaction) externalapi.Hash {
	w := hashes.NewHashWriter(txsDomain)
	w.WriteUint32(uint32(len(txs)))
	for _, tx := range txs {
		w.WriteHash(TransactionHash(tx))
	}
	return *w.Finalize()
}

func writeUnsignedTransaction(w *hashes.HashWriter, unsigned *externalapi.UnsignedTransaction) {
	w.WriteUint32(unsigned.NetworkId)
	w.WriteBytes(unsigned.ScriptOpt)
	w.WriteUint64(unsigned.GasAmount)
	writeU256(w, unsigned.GasPrice)
	w.WriteUint32(uint32(len(unsigned.Inputs)))
	for _, in := range unsigned.Inputs {
		writeOutputRef(w, &in.OutputRef.OutputRef)
		w.WriteBytes(in.UnlockScript)
	}
	w.WriteUint32(uint32(len(unsigned.FixedOutputs)))
	for _, out := range unsigned.FixedOutputs {
		writeAssetOutput(w, out)
	}
}

func writeOutputRef(w *hashes.HashWriter, ref *externalapi.OutputRef) {
	w.WriteUint32(ref.Hint)
	w.WriteHash(&ref.Key)
}

func writeAssetOutput(w *hashes.HashWriter, out *externalapi.AssetOutput) {
	writeU256(w, out.Amount)
	writeLockupScript(w, out.LockupScript)
	w.WriteInt64(out.LockTimeMs)
	w.WriteUint32(uint32(len(out.Tokens)))
	for _, t := range out.Tokens {
		tokenHash := externalapi.Hash(t.TokenId)
		w.WriteHash(&tokenHash)
		writeU256(w, t.Amount)
	}
	w.WriteBytes(out.AdditionalData)
}

func writeTxOutput(w *hashes.HashWriter, out *externalapi.TxOutput) {
	writeU256(w, out.Amount)
	writeLockupScript(w, out.LockupScript)
	w.WriteUint32(uint32(len(out.Tokens)))
	for _, t := range out.Tokens {
		tokenHash := externalapi.Hash(t.TokenId)
		w.WriteHash(&tokenHash)
		writeU256(w, t.Amount)
	}
}

func writeLockupScript(w *hashes.HashWriter, l *externalapi.LockupScript) {
	w.WriteByte(byte(l.Kind))
	switch l.Kind {
	case externalapi.LockupP2PKH:
		w.WriteHash(&l.PubKeyHash)
	case externalapi.LockupP2MPKH:
		w.WriteUint32(uint32(l.M))
		w.WriteUint32(uint32(len(l.PubKeys)))
		for i := range l.PubKeys {
			w.WriteHash(&l.PubKeys[i])
		}
	case externalapi.LockupP2SH:
		w.WriteHash(&l.ScriptHash)
	}
}

func writeU256(w *hashes.HashWriter, v *uint256.Int) {
	if v == nil {
		w.WriteBytes(nil)
		return
	}
	b := v.Bytes32()
	w.WriteBytes(b[:])
}
