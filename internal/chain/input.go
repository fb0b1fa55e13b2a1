package chain

/*
INPUT – SPENDS A PRIOR OUTPUT

Each input points to exactly one prior output (by outpoint) and carries
the claimant's full public key plus a signature proving ownership.

Invariant: SHA-256 of the raw public-key bytes equals the pubkey-hash
recorded on the referenced output.
*/

// Outpoint names a prior output: the transaction that created it and
// its index within that transaction's output list.
type Outpoint struct {
	TxID  string `json:"txid"`
	Index int    `json:"index"`
}

// Input spends the output named by Outpoint. PubKey and Signature are
// both hex-encoded. Signature is omitted from the transaction's
// signing form — it's the thing being produced, not something that
// can sign itself (see Transaction.SigningBytes).
type Input struct {
	Outpoint  Outpoint `json:"outpoint"`
	PubKey    string   `json:"pubkey"`
	Signature string   `json:"signature"`
}
