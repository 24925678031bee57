package consensushashing

import (
	"github.com/shardflow/flowdag/domain/consensus/model/externalapi"
	"github.com/shardflow/flowdag/domain/consensus/utils/hashes"
)

const (
	pubKeyHashDomain   = "flowdag-pubkeyhash"
	scriptHashDomain   = "flowdag-scripthash"
	p2mpkhLockupDomain = "flowdag-p2mpkh-lockup"
	outputKeyDomain    = "flowdag-output-key"
)

// HashPubKey returns the pubKeyHash a P2PKH lockup script commits to:
// the domain-tagged hash of the raw public key bytes (spec.md §4.3 rule
// 5's "hash of the unlock's public key must equal the lockup's
// pubKeyHash").
func HashPubKey(pubKey externalapi.Hash) externalapi.Hash {
	return *hashes.Sum256(pubKeyHashDomain, pubKey.ByteSlice())
}

// Sum256 is the domain-tagged hash a P2SH lockup script's scriptHash
// commits to: the hash of the unlock script's preimage bytes.
func Sum256(script []byte) externalapi.Hash {
	return *hashes.Sum256(scriptHashDomain, script)
}

// HashLockupP2MPKH returns a stable digest identifying a P2MPKH lockup
// script's (pubKeys, m) pair, used by transactionvalidator to key the
// signature-compression map without re-hashing the whole lockup script
// on every comparison.
func HashLockupP2MPKH(pubKeys []externalapi.Hash, m int) externalapi.Hash {
	w := hashes.NewHashWriter(p2mpkhLockupDomain)
	w.WriteUint32(uint32(m))
	w.WriteUint32(uint32(len(pubKeys)))
	for i := range pubKeys {
		w.WriteHash(&pubKeys[i])
	}
	return *w.Finalize()
}

// OutputKey returns the OutputRef.Key a freshly-created output is
// addressed by: a domain-tagged commitment to its producing transaction's
// hash and its index within that transaction's FixedOutputs, since
// OutputRef carries no separate index field of its own.
func OutputKey(txHash *externalapi.Hash, index uint32) externalapi.Hash {
	w := hashes.NewHashWriter(outputKeyDomain)
	w.WriteHash(txHash)
	w.WriteUint32(index)
	return *w.Finalize()
}

// ScriptHint returns the OutputRef.Hint a freshly-created output carries:
// the same low byte of its lockup script's group-determining hash that
// externalapi.GroupIndexFromHash reduces mod the group count, so that
// ref.GroupIndex(groups) (which reduces mod a raw uint32, not a hash)
// agrees with the group a lockup script resolves to directly.
func ScriptHint(lockup *externalapi.LockupScript) uint32 {
	var hash *externalapi.Hash
	switch lockup.Kind {
	case externalapi.LockupP2PKH:
		hash = &lockup.PubKeyHash
	case externalapi.LockupP2MPKH:
		if len(lockup.PubKeys) == 0 {
			return 0
		}
		hash = &lockup.PubKeys[0]
	case externalapi.LockupP2SH:
		hash = &lockup.ScriptHash
	default:
		return 0
	}
	b := hash.ByteSlice()
	return uint32(b[len(b)-1])
}
