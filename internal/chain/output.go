package chain

/*
OUTPUT – A SHARE OF AN ASSET

Design choice:
- PubKeyHash = hash of the owning public key, not the key itself
- Smaller than storing the full public key
- Safer: you don't reveal the pubkey until spending

Later:
- When spending, the pubkey is revealed in the claiming input
- Hash(pubkey) must match the PubKeyHash on the output being spent
*/

// Output represents a share of an asset held by a key.
//
// Invariant: Portion is strictly positive; the sum of all unspent
// portions for any asset equals 100 at all times after genesis.
type Output struct {
	AssetID    string `json:"asset_id"`
	PubKeyHash string `json:"pubkey_hash"`
	Portion    int    `json:"portion"`
}
