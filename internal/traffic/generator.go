// Package traffic implements the background user traffic generator: a
// long-lived cooperative task that keeps submitting transactions,
// valid and deliberately invalid, to a randomly chosen node.
package traffic

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"dachain/internal/chain"
	"dachain/internal/crypto"
	"dachain/internal/node"
	"dachain/internal/wallet"
)

// DefaultCadence is the default interval between submissions.
const DefaultCadence = 500 * time.Millisecond

// DefaultInvalidRatio is the default probability that a submission is
// deliberately corrupted.
const DefaultInvalidRatio = 0.2

// Generator drives traffic against a fixed set of nodes sharing one
// ledger and wallet store.
type Generator struct {
	Ledger       *chain.Ledger
	Wallets      *wallet.WalletStore
	Nodes        []*node.Node
	Cadence      time.Duration
	InvalidRatio float64
	Rand         *rand.Rand

	stopped int32
	wg      sync.WaitGroup
}

// New builds a generator with the spec's default cadence and invalid
// ratio. Rand starts as a source seeded with 0, so the generator's
// choices are reproducible; callers may replace Rand before calling
// Start.
func New(ledger *chain.Ledger, wallets *wallet.WalletStore, nodes []*node.Node) *Generator {
	return &Generator{
		Ledger:       ledger,
		Wallets:      wallets,
		Nodes:        nodes,
		Cadence:      DefaultCadence,
		InvalidRatio: DefaultInvalidRatio,
		Rand:         rand.New(rand.NewSource(0)),
	}
}

// Start launches the background goroutine. Stop must be called before
// the process exits — termination joins on the generator's goroutine.
func (g *Generator) Start() {
	atomic.StoreInt32(&g.stopped, 0)
	g.wg.Add(1)
	go g.run()
}

// Stop raises the cooperative stop flag and blocks until the
// background goroutine has observed it and returned.
func (g *Generator) Stop() {
	atomic.StoreInt32(&g.stopped, 1)
	g.wg.Wait()
}

func (g *Generator) run() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.Cadence)
	defer ticker.Stop()

	for range ticker.C {
		if atomic.LoadInt32(&g.stopped) == 1 {
			return
		}
		g.submitOne()
	}
}

func (g *Generator) submitOne() {
	if len(g.Nodes) == 0 {
		return
	}

	tx := g.buildTransaction()
	if tx == nil {
		return
	}

	if g.Rand.Float64() < g.InvalidRatio {
		tx = corrupt(tx, g.Wallets, g.Rand)
		if tx == nil {
			return
		}
	}

	target := g.Nodes[g.Rand.Intn(len(g.Nodes))]
	target.ReceiveTransaction(tx)
}

// buildTransaction implements the construction algorithm: pick a
// random outpoint, split its portion into k shares assigned to random
// wallets, locate the owning wallet, sign, and return the spending
// transaction. Returns nil if no owning wallet can be found.
func (g *Generator) buildTransaction() *chain.Transaction {
	entries := g.Ledger.UTXOSnapshot()
	if len(entries) == 0 {
		return nil
	}
	entry := entries[g.Rand.Intn(len(entries))]

	owner, ok := g.Wallets.FindByPubKeyHash(entry.Output.PubKeyHash)
	if !ok {
		return nil
	}

	k := 1 + g.Rand.Intn(3)
	shares := splitPortion(entry.Output.Portion, k, g.Rand)

	outputs := make([]chain.Output, 0, k)
	all := g.Wallets.All()
	if len(all) == 0 {
		return nil
	}
	for _, share := range shares {
		recipient := all[g.Rand.Intn(len(all))]
		outputs = append(outputs, chain.Output{
			AssetID:    entry.Output.AssetID,
			PubKeyHash: recipient.PubKeyHash(),
			Portion:    share,
		})
	}

	inputs := []chain.Input{{
		Outpoint: chain.Outpoint{TxID: entry.Key.TxID, Index: entry.Key.Index},
	}}

	tx := chain.NewTransaction(inputs, outputs)
	if err := owner.SignInput(tx, 0); err != nil {
		return nil
	}
	tx.RecomputeTxID()
	return tx
}

// splitPortion partitions total into k positive integers that sum to
// total: for i < k-1, each share is picked uniformly from
// [1, remaining-(k-i-1)]; the last share absorbs whatever remains.
func splitPortion(total, k int, r *rand.Rand) []int {
	shares := make([]int, 0, k)
	remaining := total
	for i := 0; i < k-1; i++ {
		max := remaining - (k - i - 1)
		share := 1 + r.Intn(max)
		shares = append(shares, share)
		remaining -= share
	}
	shares = append(shares, remaining)
	return shares
}

// corrupt deep-copies tx and applies exactly one of the four mutations
// the spec describes, picked uniformly at random, then recomputes the
// txid. Returns nil if the mutation it picked needs an unrelated
// wallet and none exists.
func corrupt(tx *chain.Transaction, wallets *wallet.WalletStore, r *rand.Rand) *chain.Transaction {
	cp := deepCopy(tx)

	switch r.Intn(4) {
	case 0: // (a) increment output[0].portion by 1 — breaks conservation
		cp.Outputs[0].Portion++

	case 1: // (b) overwrite output[0].asset_id with a sentinel string
		cp.Outputs[0].AssetID = "__corrupt_asset__"

	case 2: // (c) replace input[0].pubkey with an unrelated wallet's public key
		unrelated, ok := unrelatedWallet(wallets, cp.Inputs[0].PubKey, r)
		if !ok {
			return nil
		}
		cp.Inputs[0].PubKey = unrelated.PublicKeyHex()

	case 3: // (d) re-sign with an unrelated wallet, leaving pubkey as the owner's — breaks the signature, not the pubkey binding
		unrelated, ok := unrelatedWallet(wallets, cp.Inputs[0].PubKey, r)
		if !ok {
			return nil
		}
		signingBytes, err := cp.SigningBytes()
		if err != nil {
			return nil
		}
		sig, err := crypto.SignMessage(unrelated.PrivateKey, signingBytes)
		if err != nil {
			return nil
		}
		cp.Inputs[0].Signature = sig
	}

	cp.RecomputeTxID()
	return cp
}

func unrelatedWallet(wallets *wallet.WalletStore, currentPubKeyHex string, r *rand.Rand) (*wallet.Wallet, bool) {
	all := wallets.All()
	candidates := make([]*wallet.Wallet, 0, len(all))
	for _, w := range all {
		if w.PublicKeyHex() != currentPubKeyHex {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[r.Intn(len(candidates))], true
}

func deepCopy(tx *chain.Transaction) *chain.Transaction {
	inputs := make([]chain.Input, len(tx.Inputs))
	copy(inputs, tx.Inputs)
	outputs := make([]chain.Output, len(tx.Outputs))
	copy(outputs, tx.Outputs)
	return &chain.Transaction{
		TxID:    tx.TxID,
		Inputs:  inputs,
		Outputs: outputs,
	}
}
