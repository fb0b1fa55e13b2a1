package traffic

import (
	"math/rand"
	"testing"

	"dachain/internal/chain"
	"dachain/internal/crypto"
	"dachain/internal/node"
	"dachain/internal/wallet"
)

func TestSplitPortionSumsAndStaysPositive(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		k := 1 + r.Intn(3)
		total := 1 + r.Intn(100)
		if k > total {
			continue
		}
		shares := splitPortion(total, k, r)
		if len(shares) != k {
			t.Fatalf("expected %d shares, got %d", k, len(shares))
		}
		sum := 0
		for _, s := range shares {
			if s < 1 {
				t.Fatalf("expected every share to be >= 1, got %d in %v", s, shares)
			}
			sum += s
		}
		if sum != total {
			t.Fatalf("shares %v do not sum to total %d", shares, total)
		}
	}
}

func buildGenerator(t *testing.T) (*Generator, *wallet.Wallet, *chain.Transaction) {
	t.Helper()
	ws := wallet.NewWalletStore()
	owner, _ := ws.Create()
	ws.Create()
	ws.Create()

	genesisTx := chain.NewTransaction(nil, []chain.Output{{AssetID: "asset-0", PubKeyHash: owner.PubKeyHash(), Portion: 100}})
	block := chain.NewBlock(0, chain.ZeroHash, []chain.Transaction{*genesisTx})
	ledger := chain.NewLedger()
	if err := ledger.AddGenesisBlock(block); err != nil {
		t.Fatalf("AddGenesisBlock: %v", err)
	}

	n := node.New("A", ledger)
	g := New(ledger, ws, []*node.Node{n})
	g.Rand = rand.New(rand.NewSource(0))
	return g, owner, genesisTx
}

func TestBuildTransactionProducesValidSpend(t *testing.T) {
	g, _, _ := buildGenerator(t)

	tx := g.buildTransaction()
	if tx == nil {
		t.Fatal("expected a transaction to be built from the funded genesis output")
	}
	ok, reason := g.Ledger.ValidateTransaction(tx)
	if !ok {
		t.Fatalf("expected a validly signed spend, got reason %q", reason)
	}
}

func TestCorruptPortionBreaksConservation(t *testing.T) {
	g, _, _ := buildGenerator(t)
	tx := g.buildTransaction()
	if tx == nil {
		t.Fatal("expected base transaction")
	}

	cp := deepCopy(tx)
	cp.Outputs[0].Portion++
	cp.RecomputeTxID()

	ok, reason := g.Ledger.ValidateTransaction(cp)
	if ok {
		t.Fatal("expected portion-corrupted tx to fail validation")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestCorruptReSignByUnrelatedWalletBreaksSignature(t *testing.T) {
	g, _, _ := buildGenerator(t)
	tx := g.buildTransaction()
	if tx == nil {
		t.Fatal("expected base transaction")
	}

	unrelated, ok := unrelatedWallet(g.Wallets, tx.Inputs[0].PubKey, g.Rand)
	if !ok {
		t.Fatal("expected an unrelated wallet to exist")
	}

	cp := deepCopy(tx)
	signingBytes, err := cp.SigningBytes()
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	sig, err := crypto.SignMessage(unrelated.PrivateKey, signingBytes)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	cp.Inputs[0].Signature = sig
	cp.RecomputeTxID()

	ok, reason := g.Ledger.ValidateTransaction(cp)
	if ok {
		t.Fatal("expected re-signed-by-unrelated-wallet tx to fail validation")
	}
	if reason != "signature verification failed" {
		t.Fatalf("expected signature verification failed, got %q", reason)
	}
}

func TestDeepCopyDoesNotAliasSlices(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	hash := crypto.PubKeyHash(&priv.PublicKey)
	tx := chain.NewTransaction(
		[]chain.Input{{Outpoint: chain.Outpoint{TxID: "x", Index: 0}}},
		[]chain.Output{{AssetID: "asset-0", PubKeyHash: hash, Portion: 100}},
	)

	cp := deepCopy(tx)
	cp.Outputs[0].Portion = 1

	if tx.Outputs[0].Portion == 1 {
		t.Fatal("expected deepCopy to not alias the original's Outputs slice")
	}
}

func TestStartStopJoinsCleanly(t *testing.T) {
	g, _, _ := buildGenerator(t)
	g.Cadence = 1
	g.Start()
	g.Stop()
}
