package master

import (
	"strings"
	"testing"
)

func TestInitiateChainCreatesAssetsAndWallets(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(2); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}

	if len(s.Wallets.All()) != 4 {
		t.Fatalf("expected 2*nAssets = 4 wallets, got %d", len(s.Wallets.All()))
	}

	snapshot := s.Ledger.UTXOSnapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 genesis UTXOs, got %d", len(snapshot))
	}
}

func TestInitiateChainRejectsSecondCall(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if err := s.InitiateChain(1); err == nil {
		t.Fatal("expected second InitiateChain to fail")
	}
}

func TestInitiateFullNodesRequiresChainFirst(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateFullNodes(3); err == nil {
		t.Fatal("expected InitiateFullNodes to fail before InitiateChain")
	}
}

func TestInitiateFullNodesMeshesPeers(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if err := s.InitiateFullNodes(3); err != nil {
		t.Fatalf("InitiateFullNodes: %v", err)
	}

	ids := s.NodeIDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 node ids, got %v", ids)
	}
	for _, want := range []string{"F0", "F1", "F2"} {
		found := false
		for _, id := range ids {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected node id %s among %v", want, ids)
		}
	}

	if err := s.InitiateFullNodes(1); err == nil {
		t.Fatal("expected second InitiateFullNodes to fail")
	}
}

func TestVerifyTransactionNarratesWithDisplayBug(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if err := s.InitiateFullNodes(1); err != nil {
		t.Fatalf("InitiateFullNodes: %v", err)
	}

	steps, ok, err := s.VerifyTransaction("F0", false)
	if err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
	if !ok {
		t.Fatalf("expected genesis coinbase tx to verify, steps=%v", steps)
	}
	if len(steps) == 0 || !strings.Contains(steps[0], "FF0") {
		t.Fatalf("expected the first narration line to show the doubled F display bug, got %v", steps)
	}
}

func TestVerifyTransactionUnknownNode(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if _, _, err := s.VerifyTransaction("nope", false); err == nil {
		t.Fatal("expected error for unknown node id")
	}
}

func TestSnapshotChainAllVsSingleNode(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if err := s.InitiateFullNodes(2); err != nil {
		t.Fatalf("InitiateFullNodes: %v", err)
	}

	all, err := s.SnapshotChain("ALL")
	if err != nil {
		t.Fatalf("SnapshotChain(ALL): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries for ALL, got %d", len(all))
	}

	single, err := s.SnapshotChain("F0")
	if err != nil {
		t.Fatalf("SnapshotChain(F0): %v", err)
	}
	if len(single) != 1 {
		t.Fatalf("expected 1 entry for a single node, got %d", len(single))
	}

	if _, err := s.SnapshotChain("nope"); err == nil {
		t.Fatal("expected error for unknown node target")
	}
}

func TestTraceAssetRespectsLimit(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}

	all := s.TraceAsset("asset-0", 0)
	if len(all) != 1 {
		t.Fatalf("expected 1 trace entry from genesis, got %d", len(all))
	}

	limited := s.TraceAsset("asset-0", 10)
	if len(limited) != 1 {
		t.Fatalf("expected limit above count to be a no-op, got %d", len(limited))
	}
}

func TestRunAndStopUserProcess(t *testing.T) {
	s := NewSupervisor()
	if err := s.InitiateChain(1); err != nil {
		t.Fatalf("InitiateChain: %v", err)
	}
	if err := s.InitiateFullNodes(1); err != nil {
		t.Fatalf("InitiateFullNodes: %v", err)
	}

	if err := s.RunUserProcess(); err != nil {
		t.Fatalf("RunUserProcess: %v", err)
	}
	// Calling it again while already running must be a no-op, not an error.
	if err := s.RunUserProcess(); err != nil {
		t.Fatalf("RunUserProcess (second call): %v", err)
	}
	s.StopUserProcess()
	// Stopping twice must not block or panic.
	s.StopUserProcess()
}
