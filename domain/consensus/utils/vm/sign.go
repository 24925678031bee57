package vm

import "golang.org/x/crypto/ed25519"

// VerifySignature checks sig against message under pubKey, using the
// Ed-style signature scheme spec.md §1 assumes as a primitive. Wired to
// golang.org/x/crypto/ed25519 (see DESIGN.md for why this stands in for
// the network's native Schnorr/Ed scheme).
func VerifySignature(pubKey, message, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), message, sig)
}

// Sign produces a signature over message with privKey. Exposed for tests
// and tooling (e.g. a wallet CLI external collaborator); the core never
// signs, it only verifies.
func Sign(privKey, message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(privKey), message)
}
