package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dachain/internal/consensus"
	"dachain/internal/crypto"
)

/*
LEDGER – AUTHORITATIVE CHAIN STATE

The ledger is the one place that knows both "what blocks exist" and
"what is currently unspent". Validation never mutates; applying a
transaction or a block is the only thing that does. A single
sync.RWMutex guards the block map, the tip pointer, and the UTXO set
together, since every read or write here touches more than one of the
three and nothing is gained by locking them independently.
*/

// Ledger is the per-deployment authoritative chain state: every known
// block indexed by its header hash, the hash of the current tip, and
// the UTXO set that is a pure projection of the applied chain.
type Ledger struct {
	mu     sync.RWMutex
	blocks map[string]*Block
	tip    string
	utxo   *UTXOSet
}

// NewLedger returns an empty ledger, ready to receive its genesis
// block via AddGenesisBlock.
func NewLedger() *Ledger {
	return &Ledger{
		blocks: make(map[string]*Block),
		utxo:   NewUTXOSet(),
	}
}

// Tip returns the hash of the current best block, or "" if the chain
// is empty.
func (l *Ledger) Tip() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tip
}

// TipBlock returns the current tip block, or nil if the chain is
// empty.
func (l *Ledger) TipBlock() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.tip == "" {
		return nil
	}
	return l.blocks[l.tip]
}

// Block looks up a block by its header hash.
func (l *Ledger) Block(hash string) (*Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.blocks[hash]
	return b, ok
}

// UTXOSnapshot returns a stable, independent snapshot of the unspent
// set.
func (l *Ledger) UTXOSnapshot() []UTXOEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxo.Snapshot()
}

// ValidateTransaction checks tx against the current UTXO set and
// signature requirements without mutating any state. The returned
// reason string names the first rule the transaction failed, or a
// success reason ("coinbase/genesis tx" or "valid").
func (l *Ledger) ValidateTransaction(tx *Transaction) (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validateTransactionLocked(tx)
}

func (l *Ledger) validateTransactionLocked(tx *Transaction) (bool, string) {
	if tx.IsCoinbase() {
		return true, "coinbase/genesis tx"
	}

	referenced := make([]Output, len(tx.Inputs))
	for i, in := range tx.Inputs {
		out, ok := l.utxo.Get(UTXOKey{TxID: in.Outpoint.TxID, Index: in.Outpoint.Index})
		if !ok {
			return false, "missing UTXO"
		}
		referenced[i] = out
	}

	assetID := referenced[0].AssetID
	for _, out := range referenced[1:] {
		if out.AssetID != assetID {
			return false, "multiple asset_ids in inputs"
		}
	}

	totalIn := 0
	for i, in := range tx.Inputs {
		hash, err := crypto.PubKeyHashFromHex(in.PubKey)
		if err != nil || hash != referenced[i].PubKeyHash {
			return false, "pubkey hash mismatch"
		}
		totalIn += referenced[i].Portion
	}

	totalOut := 0
	for _, out := range tx.Outputs {
		if out.AssetID != assetID {
			return false, "output asset_id mismatch"
		}
		totalOut += out.Portion
	}

	if totalIn != totalOut {
		return false, fmt.Sprintf("portion mismatch: in=%d, out=%d", totalIn, totalOut)
	}

	signingBytes, err := tx.SigningBytes()
	if err != nil {
		return false, "signature verification failed"
	}
	for _, in := range tx.Inputs {
		ok, err := crypto.VerifySignature(signingBytes, in.Signature, in.PubKey)
		if err != nil || !ok {
			return false, "signature verification failed"
		}
	}

	return true, "valid"
}

// ApplyTransaction applies tx's effect on the UTXO set. Caller must
// have already validated tx; ApplyTransaction does not re-check.
func (l *Ledger) ApplyTransaction(tx *Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.utxo.ApplyTransaction(tx)
}

// AddGenesisBlock installs block as the chain's first block: the
// chain must currently be empty. Every output of every transaction in
// the block is applied directly to the UTXO set without validation —
// coinbase semantics.
func (l *Ledger) AddGenesisBlock(block *Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.blocks) != 0 {
		return errors.New("chain: genesis block requires an empty chain")
	}

	hash := block.Header.Hash()
	l.blocks[hash] = block
	l.tip = hash
	for i := range block.Transactions {
		l.utxo.ApplyTransaction(&block.Transactions[i])
	}
	return nil
}

// MineBlock greedily scans pending in order, keeping each transaction
// that currently validates, until either pending is exhausted or
// consensus.MaxTxPerBlock transactions have been collected. It then
// runs the proof-of-work search, commits the resulting block, and
// applies its transactions. Returns an error ("no valid transactions
// to mine") without mutating anything if no candidate validates.
func (l *Ledger) MineBlock(pending []*Transaction) (*Block, error) {
	l.mu.RLock()
	height := 0
	prevHash := ZeroHash
	if l.tip != "" {
		tipBlock := l.blocks[l.tip]
		height = tipBlock.Header.Height + 1
		prevHash = l.tip
	}

	accepted := make([]Transaction, 0, consensus.MaxTxPerBlock)
	for _, tx := range pending {
		if len(accepted) >= consensus.MaxTxPerBlock {
			break
		}
		if ok, _ := l.validateTransactionLocked(tx); ok {
			accepted = append(accepted, *tx)
		}
	}
	l.mu.RUnlock()

	if len(accepted) == 0 {
		return nil, errors.New("no valid transactions to mine")
	}

	block := NewBlock(height, prevHash, accepted)

	_, nonce := consensus.Mine(
		func(nonce *big.Int) string {
			block.Header.Nonce = nonce
			return block.Header.Hash()
		},
		func(nonce *big.Int) {
			block.Header.Nonce = nonce
		},
	)
	block.Header.Nonce = nonce
	hash := block.Header.Hash()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tip != prevHash {
		return nil, errors.New("chain: tip advanced during mining, discarding attempt")
	}

	l.blocks[hash] = block
	l.tip = hash
	for i := range block.Transactions {
		l.utxo.ApplyTransaction(&block.Transactions[i])
	}

	return block, nil
}

// ReceiveBlock validates and applies a block built elsewhere (e.g. by
// a peer): the block must extend the current tip, its header hash
// must meet the proof-of-work target, and every contained transaction
// must validate against the current ledger state. On success the
// block is appended, the tip advances, and all its transactions are
// applied in order.
func (l *Ledger) ReceiveBlock(block *Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if block.Header.PrevHash != l.tip {
		return errors.New("chain: block does not extend current tip")
	}

	hash := block.Header.Hash()
	if !consensus.MeetsTarget(hash) {
		return errors.New("chain: block hash does not meet proof-of-work target")
	}

	for i := range block.Transactions {
		if ok, reason := l.validateTransactionLocked(&block.Transactions[i]); !ok {
			return fmt.Errorf("chain: block contains invalid transaction: %s", reason)
		}
	}

	l.blocks[hash] = block
	l.tip = hash
	for i := range block.Transactions {
		l.utxo.ApplyTransaction(&block.Transactions[i])
	}
	return nil
}

// AssetTraceEntry is one hit returned by TraceAsset.
type AssetTraceEntry struct {
	Height    int
	BlockHash string
	Tx        Transaction
}

// TraceAsset scans every known block for transactions with at least
// one output carrying assetID, returning one entry per matching
// transaction (never more, even if several of its outputs match) in
// height-descending order.
func (l *Ledger) TraceAsset(assetID string) []AssetTraceEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []AssetTraceEntry
	for hash, block := range l.blocks {
		for _, tx := range block.Transactions {
			for _, out := range tx.Outputs {
				if out.AssetID == assetID {
					entries = append(entries, AssetTraceEntry{
						Height:    block.Header.Height,
						BlockHash: hash,
						Tx:        tx,
					})
					break
				}
			}
		}
	}

	sortEntriesByHeightDescending(entries)
	return entries
}

func sortEntriesByHeightDescending(entries []AssetTraceEntry) {
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j-1].Height < entries[j].Height {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}

// FindOutputInChain looks up an output by its creating txid and index
// across every known block, irrespective of whether it has since been
// spent.
func (l *Ledger) FindOutputInChain(txid string, index int) (Output, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, block := range l.blocks {
		for _, tx := range block.Transactions {
			if tx.TxID == txid {
				if index < 0 || index >= len(tx.Outputs) {
					return Output{}, false
				}
				return tx.Outputs[index], true
			}
		}
	}
	return Output{}, false
}

// ChainEntry is one (hash, block) pair returned by BuildChainFromTip.
type ChainEntry struct {
	Hash  string
	Block *Block
}

// BuildChainFromTip walks prev-hash links from the tip back to
// genesis, returning tip-first order. It stops at genesis
// (prev-hash all zeros), on a missing block, or when it detects a
// cycle — an adversarial store must not cause infinite iteration.
func (l *Ledger) BuildChainFromTip() []ChainEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []ChainEntry
	seen := make(map[string]bool)
	hash := l.tip
	for hash != "" && hash != ZeroHash {
		if seen[hash] {
			break
		}
		block, ok := l.blocks[hash]
		if !ok {
			break
		}
		seen[hash] = true
		entries = append(entries, ChainEntry{Hash: hash, Block: block})
		hash = block.Header.PrevHash
	}
	return entries
}
