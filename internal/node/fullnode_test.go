package node

import (
	"testing"

	"dachain/internal/chain"
	"dachain/internal/crypto"
)

func genesisLedger(t *testing.T, ownerHash string) (*chain.Ledger, *chain.Transaction) {
	t.Helper()
	tx := chain.NewTransaction(nil, []chain.Output{{AssetID: "asset-0", PubKeyHash: ownerHash, Portion: 100}})
	block := chain.NewBlock(0, chain.ZeroHash, []chain.Transaction{*tx})
	ledger := chain.NewLedger()
	if err := ledger.AddGenesisBlock(block); err != nil {
		t.Fatalf("AddGenesisBlock: %v", err)
	}
	return ledger, tx
}

func TestConnectPeerIsIdempotent(t *testing.T) {
	ledger := chain.NewLedger()
	a := New("A", ledger)
	b := New("B", ledger)

	a.ConnectPeer(b)
	a.ConnectPeer(b)

	if len(a.peerSnapshot()) != 1 {
		t.Fatalf("expected exactly 1 peer after duplicate ConnectPeer calls, got %d", len(a.peerSnapshot()))
	}
}

func TestReceiveTransactionDedupsAndForwards(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	ownerHash := crypto.PubKeyHash(&priv.PublicKey)
	ledger, genesisTx := genesisLedger(t, ownerHash)

	a := New("A", ledger)
	b := New("B", ledger)
	c := New("C", ledger)
	a.ConnectPeer(b)
	b.ConnectPeer(c)

	ownerPub := crypto.EncodePublicKey(&priv.PublicKey)
	tx := chain.NewTransaction(
		[]chain.Input{{Outpoint: chain.Outpoint{TxID: genesisTx.TxID, Index: 0}, PubKey: ownerPub}},
		[]chain.Output{{AssetID: "asset-0", PubKeyHash: ownerHash, Portion: 100}},
	)
	signingBytes, _ := tx.SigningBytes()
	sig, _ := crypto.SignMessage(priv, signingBytes)
	tx.Inputs[0].Signature = sig
	tx.RecomputeTxID()

	a.ReceiveTransaction(tx)

	if len(a.MempoolSnapshot()) != 1 {
		t.Fatalf("expected node A to admit the tx, got %d entries", len(a.MempoolSnapshot()))
	}
	if len(b.MempoolSnapshot()) != 1 {
		t.Fatalf("expected tx to propagate to B, got %d entries", len(b.MempoolSnapshot()))
	}
	if len(c.MempoolSnapshot()) != 1 {
		t.Fatalf("expected tx to propagate to C through B, got %d entries", len(c.MempoolSnapshot()))
	}

	// Re-delivering the same tx to A must not cause it to forward again
	// or duplicate mempool entries anywhere in the mesh.
	a.ReceiveTransaction(tx)
	if len(a.MempoolSnapshot()) != 1 || len(b.MempoolSnapshot()) != 1 || len(c.MempoolSnapshot()) != 1 {
		t.Fatal("expected redelivery to be a no-op across the mesh")
	}
}

func TestReceiveTransactionRejectsInvalid(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	ownerHash := crypto.PubKeyHash(&priv.PublicKey)
	ledger, genesisTx := genesisLedger(t, ownerHash)
	a := New("A", ledger)

	impostor, _ := crypto.GenerateKeyPair()
	impostorPub := crypto.EncodePublicKey(&impostor.PublicKey)
	tx := chain.NewTransaction(
		[]chain.Input{{Outpoint: chain.Outpoint{TxID: genesisTx.TxID, Index: 0}, PubKey: impostorPub}},
		[]chain.Output{{AssetID: "asset-0", PubKeyHash: ownerHash, Portion: 100}},
	)
	signingBytes, _ := tx.SigningBytes()
	sig, _ := crypto.SignMessage(impostor, signingBytes)
	tx.Inputs[0].Signature = sig
	tx.RecomputeTxID()

	a.ReceiveTransaction(tx)
	if len(a.MempoolSnapshot()) != 0 {
		t.Fatal("expected invalid tx to be dropped, not admitted")
	}
}

func TestMineDropsIncludedTxFromMempoolAndBroadcasts(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	ownerHash := crypto.PubKeyHash(&priv.PublicKey)
	ownerPub := crypto.EncodePublicKey(&priv.PublicKey)
	ledger, genesisTx := genesisLedger(t, ownerHash)

	a := New("A", ledger)
	b := New("B", chain.NewLedger())
	// B mirrors A's genesis independently so ReceiveBlock can extend its own tip.
	bGenesis := chain.NewBlock(0, chain.ZeroHash, []chain.Transaction{*genesisTx})
	if err := b.Ledger.AddGenesisBlock(bGenesis); err != nil {
		t.Fatalf("AddGenesisBlock on B: %v", err)
	}
	a.ConnectPeer(b)

	tx := chain.NewTransaction(
		[]chain.Input{{Outpoint: chain.Outpoint{TxID: genesisTx.TxID, Index: 0}, PubKey: ownerPub}},
		[]chain.Output{{AssetID: "asset-0", PubKeyHash: ownerHash, Portion: 100}},
	)
	signingBytes, _ := tx.SigningBytes()
	sig, _ := crypto.SignMessage(priv, signingBytes)
	tx.Inputs[0].Signature = sig
	tx.RecomputeTxID()

	a.ReceiveTransaction(tx)
	if len(a.MempoolSnapshot()) != 1 {
		t.Fatal("expected A to admit the tx before mining")
	}

	block, err := a.Mine()
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(a.MempoolSnapshot()) != 0 {
		t.Fatal("expected mined tx to be dropped from A's mempool")
	}
	if a.LastMined() != block {
		t.Fatal("expected LastMined to reflect the just-mined block")
	}

	if b.Ledger.Tip() != block.Header.Hash() {
		t.Fatal("expected B's independent ledger to have accepted the broadcast block")
	}
}

func TestMineClearsPeerMempoolUnderSharedLedger(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	ownerHash := crypto.PubKeyHash(&priv.PublicKey)
	ownerPub := crypto.EncodePublicKey(&priv.PublicKey)
	ledger, genesisTx := genesisLedger(t, ownerHash)

	// A and B share one ledger, as every full node does in this
	// deployment: A's Mine() commits straight to it before A ever
	// reaches B.ReceiveBlock, so B's ledger call sees a tip that
	// already is the broadcast block.
	a := New("A", ledger)
	b := New("B", ledger)
	a.ConnectPeer(b)

	tx := chain.NewTransaction(
		[]chain.Input{{Outpoint: chain.Outpoint{TxID: genesisTx.TxID, Index: 0}, PubKey: ownerPub}},
		[]chain.Output{{AssetID: "asset-0", PubKeyHash: ownerHash, Portion: 100}},
	)
	signingBytes, _ := tx.SigningBytes()
	sig, _ := crypto.SignMessage(priv, signingBytes)
	tx.Inputs[0].Signature = sig
	tx.RecomputeTxID()

	a.ReceiveTransaction(tx)
	if len(b.MempoolSnapshot()) != 1 {
		t.Fatal("expected B to have admitted the forwarded tx before mining")
	}

	if _, err := a.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	if len(b.MempoolSnapshot()) != 0 {
		t.Fatalf("expected B's mempool to drop the mined txid despite sharing A's already-advanced ledger, got %d entries", len(b.MempoolSnapshot()))
	}
}

func TestReceiveBlockRejectsNonExtendingBlock(t *testing.T) {
	priv, _ := crypto.GenerateKeyPair()
	ownerHash := crypto.PubKeyHash(&priv.PublicKey)
	ledger, genesisTx := genesisLedger(t, ownerHash)
	a := New("A", ledger)

	stale := chain.NewBlock(5, "not-the-real-tip", []chain.Transaction{*genesisTx})
	if err := a.ReceiveBlock(stale); err == nil {
		t.Fatal("expected ReceiveBlock to reject a block that does not extend the tip")
	}
}
