package externalapi

// LockupScriptKind distinguishes the three unlock disciplines a lockup
// script can require.
type LockupScriptKind byte

const (
	// LockupP2PKH requires a single public key hashing to PubKeyHash and a
	// matching signature.
	LockupP2PKH LockupScriptKind = iota
	// LockupP2MPKH requires M signatures out of a fixed list of public keys.
	LockupP2MPKH
	// LockupP2SH requires the preimage of a script hash, executed with the
	// stateless VM.
	LockupP2SH
)

// LockupScript is the spending condition attached to an AssetOutput. Exactly
// one of the kind-specific fields is populated, selected by Kind.
type LockupScript struct {
	Kind LockupScriptKind

	// LockupP2PKH
	PubKeyHash Hash

	// LockupP2MPKH
	PubKeys []Hash // 32-byte public keys, stored raw (not hashed)
	M       int

	// LockupP2SH
	ScriptHash Hash
}

// P2PKHLockup builds a single-signature lockup script.
func P2PKHLockup(pubKeyHash Hash) *LockupScript {
	return &LockupScript{Kind: LockupP2PKH, PubKeyHash: pubKeyHash}
}

// P2MPKHLockup builds an m-of-n multisig lockup script.
func P2MPKHLockup(pubKeys []Hash, m int) *LockupScript {
	pubKeysClone := make([]Hash, len(pubKeys))
	copy(pubKeysClone, pubKeys)
	return &LockupScript{Kind: LockupP2MPKH, PubKeys: pubKeysClone, M: m}
}

// P2SHLockup builds a script-hash lockup script.
func P2SHLockup(scriptHash Hash) *LockupScript {
	return &LockupScript{Kind: LockupP2SH, ScriptHash: scriptHash}
}

// Clone returns a deep clone of the lockup script.
func (l *LockupScript) Clone() *LockupScript {
	if l == nil {
		return nil
	}
	pubKeysClone := make([]Hash, len(l.PubKeys))
	copy(pubKeysClone, l.PubKeys)
	return &LockupScript{
		Kind:       l.Kind,
		PubKeyHash: l.PubKeyHash,
		PubKeys:    pubKeysClone,
		M:          l.M,
		ScriptHash: l.ScriptHash,
	}
}

// Equal returns whether l equals other.
func (l *LockupScript) Equal(other *LockupScript) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.Kind != other.Kind {
		return false
	}
	switch l.Kind {
	case LockupP2PKH:
		return l.PubKeyHash.Equal(&other.PubKeyHash)
	case LockupP2MPKH:
		if l.M != other.M || len(l.PubKeys) != len(other.PubKeys) {
			return false
		}
		for i, pk := range l.PubKeys {
			if !pk.Equal(&other.PubKeys[i]) {
				return false
			}
		}
		return true
	case LockupP2SH:
		return l.ScriptHash.Equal(&other.ScriptHash)
	default:
		return false
	}
}

// UnlockScriptP2PKH is the decoded form of a P2PKH TxInput.UnlockScript:
// a single public key whose hash must match the lockup's PubKeyHash, and
// whose corresponding signature is carried out-of-band in
// Transaction.InputSignatures at the same input position.
type UnlockScriptP2PKH struct {
	PubKey Hash
}

// UnlockScriptP2MPKH is the decoded form of a P2MPKH TxInput.UnlockScript:
// exactly M (pubkey, index) pairs, indices strictly increasing, each
// matching the lockup's PubKeys at that index.
type UnlockScriptP2MPKH struct {
	Entries []P2MPKHEntry
}

// P2MPKHEntry is one (public key, lockup index) pair in a P2MPKH unlock
// script.
type P2MPKHEntry struct {
	PubKey Hash
	Index  int
}

// UnlockScriptP2SH is the decoded form of a P2SH TxInput.UnlockScript: the
// preimage script plus the stateless-VM call arguments.
type UnlockScriptP2SH struct {
	Script []byte
	Args   []byte
}
