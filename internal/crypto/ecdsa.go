package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

//
// -----------------------------
// KEY GENERATION
// -----------------------------
//

// GenerateKeyPair creates a new ECDSA private/public key pair on the
// secp256k1 curve.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(secp256k1.S256(), rand.Reader)
}

//
// -----------------------------
// INTERNAL HASHING HELPER
// -----------------------------
//

// hashMessage hashes arbitrary bytes using SHA-256.
// ECDSA always signs hashes, never raw data.
func hashMessage(msg []byte) []byte {
	hash := sha256.Sum256(msg)
	return hash[:]
}

//
// -----------------------------
// SIGNING
// -----------------------------
//

// SignMessage signs canonical transaction bytes using a private key.
// Returns a hex-encoded signature (r || s).
func SignMessage(priv *ecdsa.PrivateKey, msg []byte) (string, error) {
	hashed := hashMessage(msg)

	r, s, err := ecdsa.Sign(rand.Reader, priv, hashed)
	if err != nil {
		return "", err
	}

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return hex.EncodeToString(signature), nil
}

//
// -----------------------------
// PUBLIC KEY ENCODING
// -----------------------------
//

// EncodePublicKey serializes an ECDSA public key into hex format.
func EncodePublicKey(pub *ecdsa.PublicKey) string {
	combined := make([]byte, 64)
	pub.X.FillBytes(combined[:32])
	pub.Y.FillBytes(combined[32:])
	return hex.EncodeToString(combined)
}

//
// DecodePublicKey deserializes a hex-encoded public key
// back into an ECDSA public key structure.
//
func DecodePublicKey(hexKey string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}

	if len(raw)%2 != 0 {
		return nil, errors.New("invalid public key length")
	}

	mid := len(raw) / 2

	x := new(big.Int).SetBytes(raw[:mid])
	y := new(big.Int).SetBytes(raw[mid:])

	return &ecdsa.PublicKey{
		Curve: secp256k1.S256(),
		X:     x,
		Y:     y,
	}, nil
}

// EncodePrivateKey serializes an ECDSA private key's scalar (D) to
// hex — used only by the optional persistence adapter, never by
// anything on the validation path.
func EncodePrivateKey(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(priv.D.Bytes())
}

// PubKeyHash returns the hex SHA-256 digest of a public key's raw
// X||Y bytes — the owner "public-key hash" referenced throughout the
// ledger.
func PubKeyHash(pub *ecdsa.PublicKey) string {
	raw := make([]byte, 64)
	pub.X.FillBytes(raw[:32])
	pub.Y.FillBytes(raw[32:])
	return SHA256(raw)
}

// PubKeyHashFromHex hashes a hex-encoded public key directly, without
// constructing an *ecdsa.PublicKey — used by input validation, which
// must hash exactly the bytes carried on the wire.
func PubKeyHashFromHex(pubKeyHex string) (string, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return "", err
	}
	return SHA256(raw), nil
}

//
// -----------------------------
// SIGNATURE VERIFICATION
// -----------------------------
//

// VerifySignature verifies that data was signed by the owner of the provided public key.
//
// Parameters:
// - data: The canonical bytes that were signed (must match exactly what was signed)
// - signature: Hex-encoded signature (r || s)
// - pubKeyHex: Hex-encoded public key
//
// Returns:
// - true if signature is valid
// - false if signature is invalid
//
// This function avoids importing the chain package, breaking the import cycle.
// The chain package computes canonical bytes and calls this function.
//
func VerifySignature(data []byte, signature, pubKeyHex string) (bool, error) {
	// Hash the data (ECDSA signs hashes, not raw data)
	hashed := hashMessage(data)

	// Decode signature
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false, err
	}

	if len(sigBytes)%2 != 0 {
		return false, errors.New("invalid signature length")
	}

	mid := len(sigBytes) / 2

	r := new(big.Int).SetBytes(sigBytes[:mid])
	s := new(big.Int).SetBytes(sigBytes[mid:])

	// Decode public key
	pub, err := DecodePublicKey(pubKeyHex)
	if err != nil {
		return false, err
	}

	// Verify signature
	return ecdsa.Verify(pub, hashed, r, s), nil
}
