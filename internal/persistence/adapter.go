// Package persistence defines the optional write-through persistence
// interface and a boltdb-backed reference implementation. Nothing in
// internal/chain calls this package — the ledger stays purely
// in-memory; a caller that wants durability wraps Ledger mutations
// with calls here.
package persistence

import "dachain/internal/chain"

// WalletRecord is the persisted form of a wallet: enough to
// reconstruct its signing identity and its public identity.
type WalletRecord struct {
	Name          string `json:"name"`
	PrivateKeyHex string `json:"private_key_hex"`
	PublicKeyHex  string `json:"public_key_hex"`
	PubKeyHash    string `json:"pubkey_hash"`
}

// UTXORecord is the persisted form of one unspent output, keyed by
// the outpoint that created it.
type UTXORecord struct {
	TxID   string       `json:"txid"`
	Index  int          `json:"index"`
	Output chain.Output `json:"output"`
}

// Adapter is a narrow write-through interface for blocks, UTXOs, and
// wallets, plus the secondary-index lookups §6's persistence layout
// names. Every record round-trips losslessly through
// internal/codec's canonical encoding.
type Adapter interface {
	SaveBlock(b *chain.Block) error
	SaveUTXO(key chain.UTXOKey, out chain.Output) error
	DeleteUTXO(key chain.UTXOKey) error
	SaveWallet(name string, w *WalletRecord) error

	BlocksByHeight(height int) ([]*chain.Block, error)
	BlocksByPrevHash(prevHash string) ([]*chain.Block, error)
	UTXOsByPubKeyHash(hash string) ([]UTXORecord, error)
	UTXOsByAssetID(assetID string) ([]UTXORecord, error)
	Wallet(name string) (*WalletRecord, error)

	Close() error
}
