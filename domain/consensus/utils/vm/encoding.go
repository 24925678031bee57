package vm

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
)

func decodeU256(b []byte) (*uint256.Int, bool) {
	if len(b) > 32 {
		return nil, false
	}
	return new(uint256.Int).SetBytes(b), true
}

func decodeU32(b []byte) uint32 {
	var buf [4]byte
	copy(buf[4-len(b):], b)
	return binary.BigEndian.Uint32(buf[:])
}

func decodeContractId(b []byte) (externalapi.ContractId, bool) {
	if len(b) != externalapi.HashSize {
		return externalapi.ContractId{}, false
	}
	h, err := externalapi.NewHashFromByteSlice(b)
	if err != nil {
		return externalapi.ContractId{}, false
	}
	return externalapi.ContractId(*h), true
}

func decodeTokenId(b []byte) (externalapi.TokenId, bool) {
	if len(b) != externalapi.HashSize {
		return externalapi.TokenId{}, false
	}
	h, err := externalapi.NewHashFromByteSlice(b)
	if err != nil {
		return externalapi.TokenId{}, false
	}
	return externalapi.TokenId(*h), true
}
