package chain

/*
UTXO SET – CORE LEDGER STATE

In a UTXO-based ledger there is no account table and no balance map.
The only economic state is: "which transaction outputs are still
unspent, and who holds them?" This file implements that state as a
plain map, a pure projection of the applied chain.
*/

// UTXOKey uniquely identifies a single transaction output: one
// transaction can create multiple outputs, and (txid, index) is
// globally unique.
type UTXOKey struct {
	TxID  string
	Index int
}

// UTXOEntry pairs a UTXOKey with its Output, for Snapshot.
type UTXOEntry struct {
	Key    UTXOKey
	Output Output
}

// UTXOSet maps (txid, index) -> Output for every unspent output.
type UTXOSet struct {
	store map[UTXOKey]Output
}

// NewUTXOSet creates an empty UTXO set.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{store: make(map[UTXOKey]Output)}
}

// Get retrieves an unspent output if present.
func (u *UTXOSet) Get(key UTXOKey) (Output, bool) {
	out, ok := u.store[key]
	return out, ok
}

// Add inserts a new unspent output, overwriting any existing entry at
// the same key (duplicates must not occur in valid operation).
func (u *UTXOSet) Add(txid string, index int, out Output) {
	u.store[UTXOKey{TxID: txid, Index: index}] = out
}

// Remove deletes the entry at key if present; a no-op otherwise.
func (u *UTXOSet) Remove(key UTXOKey) {
	delete(u.store, key)
}

// Snapshot returns a stable, independent view of every entry. Iteration
// order over the result is unspecified.
func (u *UTXOSet) Snapshot() []UTXOEntry {
	entries := make([]UTXOEntry, 0, len(u.store))
	for k, v := range u.store {
		entries = append(entries, UTXOEntry{Key: k, Output: v})
	}
	return entries
}

// ApplyTransaction removes each input's outpoint, then adds each
// output indexed by its position in tx. Caller must have already
// validated tx.
func (u *UTXOSet) ApplyTransaction(tx *Transaction) {
	for _, in := range tx.Inputs {
		u.Remove(UTXOKey{TxID: in.Outpoint.TxID, Index: in.Outpoint.Index})
	}
	for i, out := range tx.Outputs {
		u.Add(tx.TxID, i, out)
	}
}
