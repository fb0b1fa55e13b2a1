package chain

import "testing"

func TestUTXOSetAddGetRemove(t *testing.T) {
	set := NewUTXOSet()
	out := Output{AssetID: "asset-0", PubKeyHash: "h1", Portion: 100}
	set.Add("tx1", 0, out)

	got, ok := set.Get(UTXOKey{TxID: "tx1", Index: 0})
	if !ok || got != out {
		t.Fatalf("expected to get back the inserted output, got %+v ok=%v", got, ok)
	}

	set.Remove(UTXOKey{TxID: "tx1", Index: 0})
	if _, ok := set.Get(UTXOKey{TxID: "tx1", Index: 0}); ok {
		t.Fatal("expected output to be gone after Remove")
	}

	// Removing an absent key is a silent no-op.
	set.Remove(UTXOKey{TxID: "nope", Index: 9})
}

func TestUTXOSetApplyTransactionSplit(t *testing.T) {
	set := NewUTXOSet()
	set.Add("genesis-tx", 0, Output{AssetID: "asset-0", PubKeyHash: "owner", Portion: 100})

	tx := &Transaction{
		TxID: "split-tx",
		Inputs: []Input{{
			Outpoint: Outpoint{TxID: "genesis-tx", Index: 0},
		}},
		Outputs: []Output{
			{AssetID: "asset-0", PubKeyHash: "wa", Portion: 60},
			{AssetID: "asset-0", PubKeyHash: "wb", Portion: 40},
		},
	}
	set.ApplyTransaction(tx)

	if _, ok := set.Get(UTXOKey{TxID: "genesis-tx", Index: 0}); ok {
		t.Fatal("spent outpoint should be removed")
	}

	total := 0
	for _, e := range set.Snapshot() {
		if e.Output.AssetID == "asset-0" {
			total += e.Output.Portion
		}
	}
	if total != 100 {
		t.Fatalf("expected asset conservation (100), got %d", total)
	}
}
