package externalapi

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the size in bytes of a Hash.
const HashSize = 32

// Hash is a 256-bit opaque byte string. It defines ordering (as an unsigned
// big-endian integer) and equality, and is used throughout the flow as the
// identifier of blocks, headers and transactions.
type Hash struct {
	hashArray [HashSize]byte
}

// NewHashFromByteArray builds a Hash from a fixed-size byte array.
func NewHashFromByteArray(hashBytes *[HashSize]byte) *Hash {
	return &Hash{hashArray: *hashBytes}
}

// NewHashFromByteSlice builds a Hash from a byte slice of exactly HashSize bytes.
func NewHashFromByteSlice(hashBytes []byte) (*Hash, error) {
	if len(hashBytes) != HashSize {
		return nil, errors.Errorf("invalid hash size. Want: %d, got: %d",
			HashSize, len(hashBytes))
	}
	hash := Hash{}
	copy(hash.hashArray[:], hashBytes)
	return &hash, nil
}

// NewHashFromString parses a hex-encoded hash.
func NewHashFromString(hashString string) (*Hash, error) {
	expectedLength := HashSize * 2
	if len(hashString) != expectedLength {
		return nil, errors.Errorf("hash string length is %d, while it should be %d",
			len(hashString), expectedLength)
	}

	hashBytes, err := hex.DecodeString(hashString)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return NewHashFromByteSlice(hashBytes)
}

// String returns the Hash as the hexadecimal string of the hash.
func (hash Hash) String() string {
	return hex.EncodeToString(hash.hashArray[:])
}

// ByteArray returns the bytes in this hash represented as a bytes array.
// The hash bytes are cloned, therefore it is safe to modify the resulting array.
func (hash *Hash) ByteArray() *[HashSize]byte {
	arrayClone := hash.hashArray
	return &arrayClone
}

// ByteSlice returns the bytes in this hash represented as a bytes slice.
// The hash bytes are cloned, therefore it is safe to modify the resulting slice.
func (hash *Hash) ByteSlice() []byte {
	return hash.ByteArray()[:]
}

// Equal returns whether hash equals to other.
func (hash *Hash) Equal(other *Hash) bool {
	if hash == nil || other == nil {
		return hash == other
	}

	return hash.hashArray == other.hashArray
}

// Less returns true if hash, interpreted as an unsigned big-endian integer,
// is strictly less than other. Used to break best-tip ties between equal
// heights and to sort keys when computing the state root.
func (hash *Hash) Less(other *Hash) bool {
	for i := 0; i < HashSize; i++ {
		if hash.hashArray[i] != other.hashArray[i] {
			return hash.hashArray[i] < other.hashArray[i]
		}
	}
	return false
}

// CloneHashes returns a clone of the given hashes slice.
// Note: since Hash is a read-only type, the clone is shallow.
func CloneHashes(hashes []*Hash) []*Hash {
	clone := make([]*Hash, len(hashes))
	copy(clone, hashes)
	return clone
}

// HashesEqual returns whether the given hash slices are equal.
func HashesEqual(a, b []*Hash) bool {
	if len(a) != len(b) {
		return false
	}

	for i, hash := range a {
		if !hash.Equal(b[i]) {
			return false
		}
	}
	return true
}
