package transactionvalidator

import (
	"encoding/binary"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/ruleerrors"
)

// Wire encodings of the three UnlockScript variants. Like the tx-script
// bytecode in script_codec.go, spec.md doesn't pin an exact byte layout
// for unlock scripts (that's left to the network's own wire contract,
// spec.md §9); this is the core's internal, deterministic choice.

func decodeUnlockP2PKH(raw []byte) (*externalapi.UnlockScriptP2PKH, error) {
	if len(raw) != externalapi.HashSize {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidPublicKeyHash, "malformed P2PKH unlock script")
	}
	h, err := externalapi.NewHashFromByteSlice(raw)
	if err != nil {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidPublicKeyHash, "malformed P2PKH unlock script")
	}
	return &externalapi.UnlockScriptP2PKH{PubKey: *h}, nil
}

func decodeUnlockP2MPKH(raw []byte) (*externalapi.UnlockScriptP2MPKH, error) {
	if len(raw) < 4 {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidP2mpkhUnlockScript, "malformed P2MPKH unlock script")
	}
	count := int(binary.BigEndian.Uint32(raw[:4]))
	raw = raw[4:]
	entries := make([]externalapi.P2MPKHEntry, count)
	for i := 0; i < count; i++ {
		if len(raw) < externalapi.HashSize+4 {
			return nil, ruleerrors.New(ruleerrors.ErrInvalidP2mpkhUnlockScript, "malformed P2MPKH unlock script")
		}
		h, err := externalapi.NewHashFromByteSlice(raw[:externalapi.HashSize])
		if err != nil {
			return nil, ruleerrors.New(ruleerrors.ErrInvalidP2mpkhUnlockScript, "malformed P2MPKH unlock script")
		}
		idx := int(binary.BigEndian.Uint32(raw[externalapi.HashSize : externalapi.HashSize+4]))
		entries[i] = externalapi.P2MPKHEntry{PubKey: *h, Index: idx}
		raw = raw[externalapi.HashSize+4:]
	}
	return &externalapi.UnlockScriptP2MPKH{Entries: entries}, nil
}

func decodeUnlockP2SH(raw []byte) (*externalapi.UnlockScriptP2SH, error) {
	if len(raw) < 4 {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "malformed P2SH unlock script")
	}
	scriptLen := int(binary.BigEndian.Uint32(raw[:4]))
	raw = raw[4:]
	if len(raw) < scriptLen+4 {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "malformed P2SH unlock script")
	}
	script := raw[:scriptLen]
	raw = raw[scriptLen:]
	argsLen := int(binary.BigEndian.Uint32(raw[:4]))
	raw = raw[4:]
	if len(raw) < argsLen {
		return nil, ruleerrors.New(ruleerrors.ErrInvalidScriptHash, "malformed P2SH unlock script")
	}
	args := raw[:argsLen]
	return &externalapi.UnlockScriptP2SH{Script: script, Args: args}, nil
}

// EncodeUnlockP2PKH is decodeUnlockP2PKH's inverse, used by tests and
// wallet tooling to build TxInput.UnlockScript bytes.
func EncodeUnlockP2PKH(pubKey externalapi.Hash) []byte {
	return pubKey.ByteSlice()
}

// EncodeUnlockP2MPKH is decodeUnlockP2MPKH's inverse.
func EncodeUnlockP2MPKH(entries []externalapi.P2MPKHEntry) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = append(buf, e.PubKey.ByteSlice()...)
		var idxBuf [4]byte
		binary.BigEndian.PutUint32(idxBuf[:], uint32(e.Index))
		buf = append(buf, idxBuf[:]...)
	}
	return buf
}

// EncodeUnlockP2SH is decodeUnlockP2SH's inverse.
func EncodeUnlockP2SH(script, args []byte) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(script)))
	buf = append(buf, script...)
	argsLenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(argsLenBuf, uint32(len(args)))
	buf = append(buf, argsLenBuf...)
	buf = append(buf, args...)
	return buf
}
