// Package wallet manages signing keys and the wallets that hold them.
// Each wallet holds its private key in the exported PrivateKey field;
// outside this package it is read by the traffic generator (to re-sign
// corrupted transactions) and by the supervisor (to persist wallets).
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"dachain/internal/chain"
	"dachain/internal/crypto"
)

// Wallet is a single identity: a secp256k1 key pair plus the stable
// name assigned to it by its WalletStore.
type Wallet struct {
	Name       string
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// PublicKeyHex returns the wallet's public key, hex-encoded raw X||Y
// bytes — the form carried on the wire in a transaction input.
func (w *Wallet) PublicKeyHex() string {
	return crypto.EncodePublicKey(w.PublicKey)
}

// PubKeyHash returns hex(SHA-256(raw pubkey bytes)) — the owner
// identity recorded on an output.
func (w *Wallet) PubKeyHash() string {
	return crypto.PubKeyHash(w.PublicKey)
}

// SignInput signs tx's signing-form hash with w's private key and
// installs the public key and signature on tx.Inputs[index]. Callers
// must recompute the txid afterward (see chain.Transaction.RecomputeTxID)
// since signing mutates the transaction's identity form.
func (w *Wallet) SignInput(tx *chain.Transaction, index int) error {
	if index < 0 || index >= len(tx.Inputs) {
		return fmt.Errorf("wallet: input index %d out of range", index)
	}

	tx.Inputs[index].PubKey = w.PublicKeyHex()
	signingBytes, err := tx.SigningBytes()
	if err != nil {
		return err
	}

	sig, err := crypto.SignMessage(w.PrivateKey, signingBytes)
	if err != nil {
		return err
	}
	tx.Inputs[index].Signature = sig
	return nil
}

// ErrWalletNotFound is returned by WalletStore lookups that miss.
var ErrWalletNotFound = errors.New("wallet: not found")

// WalletStore holds every wallet created in a run, naming them W0,
// W1, … in creation order.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
	order   []string
}

// NewWalletStore returns an empty store.
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]*Wallet)}
}

// Create generates a fresh secp256k1 key pair, names it W<n> (n = the
// number of wallets created so far), stores it, and returns it.
func (ws *WalletStore) Create() (*Wallet, error) {
	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	name := fmt.Sprintf("W%d", len(ws.order))
	w := &Wallet{Name: name, PrivateKey: priv, PublicKey: &priv.PublicKey}
	ws.wallets[name] = w
	ws.order = append(ws.order, name)
	return w, nil
}

// Get retrieves a wallet by name.
func (ws *WalletStore) Get(name string) (*Wallet, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	w, ok := ws.wallets[name]
	return w, ok
}

// All returns every wallet in creation order.
func (ws *WalletStore) All() []*Wallet {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]*Wallet, len(ws.order))
	for i, name := range ws.order {
		out[i] = ws.wallets[name]
	}
	return out
}

// FindByPubKeyHash returns the wallet whose public-key hash matches
// hash, if any — used by the traffic generator to locate the owner of
// a chosen outpoint.
func (ws *WalletStore) FindByPubKeyHash(hash string) (*Wallet, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, name := range ws.order {
		w := ws.wallets[name]
		if w.PubKeyHash() == hash {
			return w, true
		}
	}
	return nil, false
}

// Random returns the wallet at position idx modulo n in creation
// order, where n = len(All()), or false if the store is empty. The
// caller draws idx, so any randomness comes from the caller's own
// (seedable) source; idx must be non-negative.
func (ws *WalletStore) Random(idx int) (*Wallet, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if len(ws.order) == 0 {
		return nil, false
	}
	return ws.wallets[ws.order[idx%len(ws.order)]], true
}
