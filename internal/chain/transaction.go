package chain

import (
	"dachain/internal/codec"
	"dachain/internal/crypto"
)

/*
TRANSACTION – VALUE TRANSFER UNIT

A transaction is either coinbase/genesis (no inputs) or spending (one
or more inputs). Two canonical byte forms exist:

  - signing form: inputs without their Signature field — the message
    each input's claimant signs.
  - identity form: inputs with Signature — its SHA-256 is the txid.

Lifecycle: built by a wallet, signed, broadcast, validated by nodes,
admitted to a mempool, included in a mined block.
*/

// Transaction is an ordered sequence of inputs and outputs plus a
// derived TxID.
type Transaction struct {
	TxID    string   `json:"txid"`
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// signingInput is Input with Signature dropped, for the signing form.
type signingInput struct {
	Outpoint Outpoint `json:"outpoint"`
	PubKey   string   `json:"pubkey"`
}

// NewTransaction builds a transaction from inputs and outputs and sets
// its txid from the identity form. Callers that still need to sign
// inputs should do so before trusting TxID (signing mutates
// tx.Inputs[i].Signature, which changes the identity form) — see
// RecomputeTxID.
func NewTransaction(inputs []Input, outputs []Output) *Transaction {
	tx := &Transaction{Inputs: inputs, Outputs: outputs}
	tx.TxID = tx.ComputeTxID()
	return tx
}

// IsCoinbase reports whether the transaction has no inputs (genesis /
// coinbase semantics per spec).
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// SigningBytes returns the canonical signing-form bytes: inputs
// encoded without their signature field, outputs encoded in full.
func (tx *Transaction) SigningBytes() ([]byte, error) {
	ins := make([]signingInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ins[i] = signingInput{Outpoint: in.Outpoint, PubKey: in.PubKey}
	}
	return codec.Canonical(struct {
		Inputs  []signingInput `json:"inputs"`
		Outputs []Output       `json:"outputs"`
	}{ins, tx.Outputs})
}

// IdentityBytes returns the canonical identity-form bytes: inputs
// encoded with their signature field. SHA-256 of this is the txid.
func (tx *Transaction) IdentityBytes() ([]byte, error) {
	return codec.Canonical(struct {
		Inputs  []Input  `json:"inputs"`
		Outputs []Output `json:"outputs"`
	}{tx.Inputs, tx.Outputs})
}

// ComputeTxID derives the txid from the identity form. Returns "" if
// canonicalization fails (cannot happen for the closed set of types
// this package constructs).
func (tx *Transaction) ComputeTxID() string {
	b, err := tx.IdentityBytes()
	if err != nil {
		return ""
	}
	return crypto.SHA256(b)
}

// RecomputeTxID refreshes TxID from the current identity form. Call
// this after signing inputs, since signing mutates the identity form.
func (tx *Transaction) RecomputeTxID() {
	tx.TxID = tx.ComputeTxID()
}
