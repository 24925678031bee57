package appmessage

import (
	"io"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/util/binaryserializer"
)

// The field order below mirrors consensushashing's
// writeUnsignedTransaction/writeOutputRef/writeAssetOutput/writeTxOutput/
// writeLockupScript/writeU256: those functions already define this
// protocol's canonical field order for transaction-shaped data, this file
// just makes the encoding symmetric (read and write) instead of one-way
// into a hash state. The byte encoding differs: integers here are
// little-endian and a 256-bit value is 32 raw bytes, while the hashing
// writers use big-endian integers and a length-prefixed 32-byte value.

func writeBytes(w io.Writer, b []byte) error {
	if err := binaryserializer.PutUint32(w, uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return errors.WithStack(err)
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

func writeHash(w io.Writer, h *externalapi.Hash) error {
	var raw [externalapi.HashSize]byte
	if h != nil {
		raw = *h.ByteArray()
	}
	_, err := w.Write(raw[:])
	return errors.WithStack(err)
}

// readHash reads a fixed 32-byte field. An all-zero field decodes to nil,
// matching the "no parent"/"no dep" convention writeHash encodes.
func readHash(r io.Reader) (*externalapi.Hash, error) {
	var raw [externalapi.HashSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, errors.WithStack(err)
	}
	if raw == [externalapi.HashSize]byte{} {
		return nil, nil
	}
	return externalapi.NewHashFromByteArray(&raw), nil
}

func writeHashValue(w io.Writer, h externalapi.Hash) error {
	return writeHash(w, &h)
}

func readHashValue(r io.Reader) (externalapi.Hash, error) {
	h, err := readHash(r)
	if err != nil {
		return externalapi.Hash{}, err
	}
	if h == nil {
		return externalapi.Hash{}, nil
	}
	return *h, nil
}

func writeU256(w io.Writer, v *uint256.Int) error {
	var raw [32]byte
	if v != nil {
		raw = v.Bytes32()
	}
	_, err := w.Write(raw[:])
	return errors.WithStack(err)
}

func readU256(r io.Reader) (*uint256.Int, error) {
	var raw [32]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, errors.WithStack(err)
	}
	return new(uint256.Int).SetBytes32(raw[:]), nil
}

func writeOutputRef(w io.Writer, ref *externalapi.OutputRef) error {
	if err := binaryserializer.PutUint32(w, ref.Hint); err != nil {
		return err
	}
	return writeHashValue(w, ref.Key)
}

func readOutputRef(r io.Reader) (*externalapi.OutputRef, error) {
	hint, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	key, err := readHashValue(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.OutputRef{Hint: hint, Key: key}, nil
}

func writeAssetOutputRef(w io.Writer, ref *externalapi.AssetOutputRef) error {
	return writeOutputRef(w, &ref.OutputRef)
}

func readAssetOutputRef(r io.Reader) (*externalapi.AssetOutputRef, error) {
	ref, err := readOutputRef(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.AssetOutputRef{OutputRef: *ref}, nil
}

func writeLockupScript(w io.Writer, l *externalapi.LockupScript) error {
	if err := binaryserializer.PutUint8(w, uint8(l.Kind)); err != nil {
		return err
	}
	switch l.Kind {
	case externalapi.LockupP2PKH:
		return writeHashValue(w, l.PubKeyHash)
	case externalapi.LockupP2MPKH:
		if err := binaryserializer.PutUint32(w, uint32(l.M)); err != nil {
			return err
		}
		if err := binaryserializer.PutUint32(w, uint32(len(l.PubKeys))); err != nil {
			return err
		}
		for _, pk := range l.PubKeys {
			if err := writeHashValue(w, pk); err != nil {
				return err
			}
		}
		return nil
	case externalapi.LockupP2SH:
		return writeHashValue(w, l.ScriptHash)
	default:
		return errors.Errorf("unknown lockup script kind %d", l.Kind)
	}
}

func readLockupScript(r io.Reader) (*externalapi.LockupScript, error) {
	kindByte, err := binaryserializer.Uint8(r)
	if err != nil {
		return nil, err
	}
	kind := externalapi.LockupScriptKind(kindByte)
	l := &externalapi.LockupScript{Kind: kind}
	switch kind {
	case externalapi.LockupP2PKH:
		l.PubKeyHash, err = readHashValue(r)
		return l, err
	case externalapi.LockupP2MPKH:
		m, err := binaryserializer.Uint32(r)
		if err != nil {
			return nil, err
		}
		l.M = int(m)
		n, err := binaryserializer.Uint32(r)
		if err != nil {
			return nil, err
		}
		l.PubKeys = make([]externalapi.Hash, n)
		for i := range l.PubKeys {
			l.PubKeys[i], err = readHashValue(r)
			if err != nil {
				return nil, err
			}
		}
		return l, nil
	case externalapi.LockupP2SH:
		l.ScriptHash, err = readHashValue(r)
		return l, err
	default:
		return nil, errors.Errorf("unknown lockup script kind %d", kind)
	}
}

func writeTokenAmounts(w io.Writer, tokens []externalapi.TokenAmount) error {
	if err := binaryserializer.PutUint32(w, uint32(len(tokens))); err != nil {
		return err
	}
	for _, t := range tokens {
		if err := writeHashValue(w, externalapi.Hash(t.TokenId)); err != nil {
			return err
		}
		if err := writeU256(w, t.Amount); err != nil {
			return err
		}
	}
	return nil
}

func readTokenAmounts(r io.Reader) ([]externalapi.TokenAmount, error) {
	n, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	tokens := make([]externalapi.TokenAmount, n)
	for i := range tokens {
		id, err := readHashValue(r)
		if err != nil {
			return nil, err
		}
		amount, err := readU256(r)
		if err != nil {
			return nil, err
		}
		tokens[i] = externalapi.TokenAmount{TokenId: externalapi.TokenId(id), Amount: amount}
	}
	return tokens, nil
}

func writeAssetOutput(w io.Writer, out *externalapi.AssetOutput) error {
	if err := writeU256(w, out.Amount); err != nil {
		return err
	}
	if err := writeLockupScript(w, out.LockupScript); err != nil {
		return err
	}
	buf := make([]byte, 8)
	putInt64(buf, out.LockTimeMs)
	if _, err := w.Write(buf); err != nil {
		return errors.WithStack(err)
	}
	if err := writeTokenAmounts(w, out.Tokens); err != nil {
		return err
	}
	return writeBytes(w, out.AdditionalData)
}

func readAssetOutput(r io.Reader) (*externalapi.AssetOutput, error) {
	amount, err := readU256(r)
	if err != nil {
		return nil, err
	}
	lockup, err := readLockupScript(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	lockTimeMs := getInt64(buf)
	tokens, err := readTokenAmounts(r)
	if err != nil {
		return nil, err
	}
	additionalData, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.AssetOutput{
		Amount:         amount,
		LockupScript:   lockup,
		LockTimeMs:     lockTimeMs,
		Tokens:         tokens,
		AdditionalData: additionalData,
	}, nil
}

func writeTxOutput(w io.Writer, out *externalapi.TxOutput) error {
	if err := writeU256(w, out.Amount); err != nil {
		return err
	}
	if err := writeLockupScript(w, out.LockupScript); err != nil {
		return err
	}
	return writeTokenAmounts(w, out.Tokens)
}

func readTxOutput(r io.Reader) (*externalapi.TxOutput, error) {
	amount, err := readU256(r)
	if err != nil {
		return nil, err
	}
	lockup, err := readLockupScript(r)
	if err != nil {
		return nil, err
	}
	tokens, err := readTokenAmounts(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.TxOutput{Amount: amount, LockupScript: lockup, Tokens: tokens}, nil
}

func writeTxInput(w io.Writer, in *externalapi.TxInput) error {
	if err := writeOutputRef(w, &in.OutputRef.OutputRef); err != nil {
		return err
	}
	return writeBytes(w, in.UnlockScript)
}

func readTxInput(r io.Reader) (*externalapi.TxInput, error) {
	ref, err := readOutputRef(r)
	if err != nil {
		return nil, err
	}
	unlockScript, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.TxInput{
		OutputRef:    &externalapi.AssetOutputRef{OutputRef: *ref},
		UnlockScript: unlockScript,
	}, nil
}

func writeUnsignedTransaction(w io.Writer, unsigned *externalapi.UnsignedTransaction) error {
	if err := binaryserializer.PutUint32(w, unsigned.NetworkId); err != nil {
		return err
	}
	if err := writeBytes(w, unsigned.ScriptOpt); err != nil {
		return err
	}
	if err := binaryserializer.PutUint64(w, unsigned.GasAmount); err != nil {
		return err
	}
	if err := writeU256(w, unsigned.GasPrice); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, uint32(len(unsigned.Inputs))); err != nil {
		return err
	}
	for _, in := range unsigned.Inputs {
		if err := writeTxInput(w, in); err != nil {
			return err
		}
	}
	if err := binaryserializer.PutUint32(w, uint32(len(unsigned.FixedOutputs))); err != nil {
		return err
	}
	for _, out := range unsigned.FixedOutputs {
		if err := writeAssetOutput(w, out); err != nil {
			return err
		}
	}
	return nil
}

func readUnsignedTransaction(r io.Reader) (*externalapi.UnsignedTransaction, error) {
	networkId, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	scriptOpt, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	gasAmount, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	gasPrice, err := readU256(r)
	if err != nil {
		return nil, err
	}
	inputCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	inputs := make([]*externalapi.TxInput, inputCount)
	for i := range inputs {
		inputs[i], err = readTxInput(r)
		if err != nil {
			return nil, err
		}
	}
	outputCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	outputs := make([]*externalapi.AssetOutput, outputCount)
	for i := range outputs {
		outputs[i], err = readAssetOutput(r)
		if err != nil {
			return nil, err
		}
	}
	return &externalapi.UnsignedTransaction{
		NetworkId:    networkId,
		ScriptOpt:    scriptOpt,
		GasAmount:    gasAmount,
		GasPrice:     gasPrice,
		Inputs:       inputs,
		FixedOutputs: outputs,
	}, nil
}

func writeTransaction(w io.Writer, tx *externalapi.Transaction) error {
	if err := writeUnsignedTransaction(w, tx.Unsigned); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, uint32(len(tx.InputSignatures))); err != nil {
		return err
	}
	for _, sig := range tx.InputSignatures {
		if err := writeBytes(w, sig); err != nil {
			return err
		}
	}
	if err := binaryserializer.PutUint32(w, uint32(len(tx.ContractInputs))); err != nil {
		return err
	}
	for _, ref := range tx.ContractInputs {
		if err := writeOutputRef(w, ref); err != nil {
			return err
		}
	}
	if err := binaryserializer.PutUint32(w, uint32(len(tx.GeneratedOutputs))); err != nil {
		return err
	}
	for _, out := range tx.GeneratedOutputs {
		if err := writeTxOutput(w, out); err != nil {
			return err
		}
	}
	return nil
}

func readTransaction(r io.Reader) (*externalapi.Transaction, error) {
	unsigned, err := readUnsignedTransaction(r)
	if err != nil {
		return nil, err
	}
	sigCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	sigs := make([][]byte, sigCount)
	for i := range sigs {
		sigs[i], err = readBytes(r)
		if err != nil {
			return nil, err
		}
	}
	contractInputCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	contractInputs := make([]*externalapi.OutputRef, contractInputCount)
	for i := range contractInputs {
		contractInputs[i], err = readOutputRef(r)
		if err != nil {
			return nil, err
		}
	}
	generatedCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	generatedOutputs := make([]*externalapi.TxOutput, generatedCount)
	for i := range generatedOutputs {
		generatedOutputs[i], err = readTxOutput(r)
		if err != nil {
			return nil, err
		}
	}
	return &externalapi.Transaction{
		Unsigned:         unsigned,
		InputSignatures:  sigs,
		ContractInputs:   contractInputs,
		GeneratedOutputs: generatedOutputs,
	}, nil
}

func writeHeader(w io.Writer, header *externalapi.BlockHeader) error {
	if err := writeHash(w, header.ParentHash); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, uint32(len(header.BlockDeps))); err != nil {
		return err
	}
	for _, dep := range header.BlockDeps {
		if err := writeHash(w, dep); err != nil {
			return err
		}
	}
	if err := writeHashValue(w, header.TxsHash); err != nil {
		return err
	}
	buf := make([]byte, 8)
	putInt64(buf, header.TimestampMs)
	if _, err := w.Write(buf); err != nil {
		return errors.WithStack(err)
	}
	if err := writeU256(w, header.Target); err != nil {
		return err
	}
	return binaryserializer.PutUint64(w, header.Nonce)
}

func readHeader(r io.Reader) (*externalapi.BlockHeader, error) {
	parentHash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	depCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	deps := make([]*externalapi.Hash, depCount)
	for i := range deps {
		deps[i], err = readHash(r)
		if err != nil {
			return nil, err
		}
	}
	txsHash, err := readHashValue(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	timestampMs := getInt64(buf)
	target, err := readU256(r)
	if err != nil {
		return nil, err
	}
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.BlockHeader{
		ParentHash:  parentHash,
		BlockDeps:   deps,
		TxsHash:     txsHash,
		TimestampMs: timestampMs,
		Target:      target,
		Nonce:       nonce,
	}, nil
}

func writeBlock(w io.Writer, block *externalapi.Block) error {
	if err := writeHeader(w, block.Header); err != nil {
		return err
	}
	if err := binaryserializer.PutUint32(w, uint32(len(block.Transactions))); err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		if err := writeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

func readBlock(r io.Reader) (*externalapi.Block, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	txCount, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	txs := make([]*externalapi.Transaction, txCount)
	for i := range txs {
		txs[i], err = readTransaction(r)
		if err != nil {
			return nil, err
		}
	}
	return &externalapi.Block{Header: header, Transactions: txs}, nil
}

// putInt64/getInt64 round-trip a signed timestamp through the same
// little-endian convention binaryserializer's unsigned helpers use; there
// is no binaryserializer.PutInt64/Int64 pair so TimestampMs is reinterpreted
// as its bit pattern directly.
func putInt64(buf []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
}

func getInt64(buf []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(buf[i]) << (8 * i)
	}
	return int64(u)
}
