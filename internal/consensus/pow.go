// Package consensus implements the fixed-target proof-of-work rule:
// a block header is acceptable once its hash, read as a 256-bit
// big-endian integer, falls strictly below a fixed target. There is
// no difficulty adjustment — the target never moves.
package consensus

import (
	"encoding/hex"
	"math/big"
)

// MaxTxPerBlock bounds how many mempool entries mine_block collects
// into a single block.
const MaxTxPerBlock = 8

// TargetHex is the fixed 256-bit proof-of-work target, big-endian hex.
const TargetHex = "00000fffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

// Target is TargetHex parsed once as a big.Int.
var Target = mustParseTarget()

func mustParseTarget() *big.Int {
	b, err := hex.DecodeString(TargetHex)
	if err != nil {
		panic("consensus: invalid target constant: " + err.Error())
	}
	return new(big.Int).SetBytes(b)
}

// MeetsTarget reports whether a hex-encoded header hash is strictly
// below the fixed target.
func MeetsTarget(hash string) bool {
	b, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	hashInt := new(big.Int).SetBytes(b)
	return hashInt.Cmp(Target) < 0
}

// Mine searches nonce = 0, 1, 2, … until computeHash(nonce) returns a
// header hash below the fixed target, calling setNonce before each
// attempt so the caller's header reflects the nonce being tried. It
// never gives up — the search runs to completion, matching the
// no-cancellation policy for mining.
//
// computeHash and setNonce take the caller's header through closures
// rather than this package depending on the chain package's types
// directly, avoiding an import cycle (chain's Ledger depends on
// consensus to mine; consensus must not depend back on chain).
func Mine(computeHash func(nonce *big.Int) string, setNonce func(nonce *big.Int)) (hash string, nonce *big.Int) {
	n := big.NewInt(0)
	for {
		setNonce(n)
		h := computeHash(n)
		if MeetsTarget(h) {
			return h, new(big.Int).Set(n)
		}
		n = new(big.Int).Add(n, big.NewInt(1))
	}
}
