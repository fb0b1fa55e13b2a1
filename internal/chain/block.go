package chain

import (
	"math/big"
	"strings"

	"dachain/internal/codec"
	"dachain/internal/crypto"
)

/*
BLOCK – CONSENSUS CONTAINER

A block header does NOT decide whether its transactions are valid
(that's Ledger.ValidateTransaction) or ownership (that's the UTXO set).
A header only commits to an ordered transaction list, links to the
previous block, and carries the nonce that proves the PoW search.
*/

// BlockHeader is the four-field object whose canonical bytes hash to
// the block's identity.
type BlockHeader struct {
	Height     int      `json:"height"`
	PrevHash   string   `json:"prev_hash"`
	MerkleRoot string   `json:"merkle_root"`
	Nonce      *big.Int `json:"nonce"`
}

// Block is a header plus its ordered transactions.
type Block struct {
	Header       BlockHeader   `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// ZeroHash is sixty-four zero hex digits: the previous-hash of genesis.
var ZeroHash = strings.Repeat("0", 64)

// NewBlock builds a block from an ordered transaction list, computing
// the merkle root but leaving the nonce at zero — callers that mine
// set the nonce and recompute Hash() per attempt.
func NewBlock(height int, prevHash string, txs []Transaction) *Block {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.TxID
	}

	return &Block{
		Header: BlockHeader{
			Height:     height,
			PrevHash:   prevHash,
			MerkleRoot: crypto.MerkleRoot(ids),
			Nonce:      big.NewInt(0),
		},
		Transactions: txs,
	}
}

// Hash computes the header's canonical-form SHA-256 hash — the
// block's identity and the value compared against the PoW target.
func (h BlockHeader) Hash() string {
	b, err := codec.Canonical(struct {
		Height     int    `json:"height"`
		PrevHash   string `json:"prev_hash"`
		MerkleRoot string `json:"merkle_root"`
		Nonce      string `json:"nonce"`
	}{h.Height, h.PrevHash, h.MerkleRoot, h.Nonce.String()})
	if err != nil {
		return ""
	}
	return crypto.SHA256(b)
}
