// Package master implements the supervisory controller: chain and
// node construction, mining observation, stepwise transaction
// verification narration, chain snapshots, and asset history traces.
// A Supervisor never mutates ledger state directly — every mutation
// happens inside the ledger or a node it drives.
package master

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dachain/internal/chain"
	"dachain/internal/crypto"
	"dachain/internal/node"
	"dachain/internal/persistence"
	"dachain/internal/traffic"
	"dachain/internal/wallet"

	"github.com/google/uuid"
)

// MiningEvent records one observed on_block_mined callback. ID is an
// opaque per-event identifier, useful for correlating a mining event
// with later narration output when several nodes mine concurrently.
type MiningEvent struct {
	ID     string
	NodeID string
	Block  *chain.Block
	At     time.Time
}

// Supervisor owns construction of the ledger, node set, and wallet
// store, and exposes the observational/narration operations of
// spec §4.6 over them.
type Supervisor struct {
	mu        sync.Mutex
	Ledger    *chain.Ledger
	Wallets   *wallet.WalletStore
	nodes     map[string]*node.Node
	nodeOrder []string
	generator *traffic.Generator

	// Adapter, if set, receives write-through persistence calls
	// alongside genesis construction and mining. The ledger itself
	// never calls it; the supervisor is the one caller that does.
	Adapter persistence.Adapter

	events []MiningEvent
}

// NewSupervisor returns an uninitialized supervisor; InitiateChain
// must be called before InitiateFullNodes or any other operation.
func NewSupervisor() *Supervisor {
	return &Supervisor{nodes: make(map[string]*node.Node)}
}

// persistBlock writes block and its transactions' UTXO effects
// through the attached adapter, if any. Errors are logged, not
// returned — persistence is optional and orthogonal to ledger
// correctness (§4.7).
func (s *Supervisor) persistBlock(block *chain.Block) {
	if s.Adapter == nil {
		return
	}
	if err := s.Adapter.SaveBlock(block); err != nil {
		log.Printf("master: persisting block: %v", err)
	}
	for _, tx := range block.Transactions {
		for _, in := range tx.Inputs {
			key := chain.UTXOKey{TxID: in.Outpoint.TxID, Index: in.Outpoint.Index}
			if err := s.Adapter.DeleteUTXO(key); err != nil {
				log.Printf("master: persisting utxo deletion: %v", err)
			}
		}
		for i, out := range tx.Outputs {
			key := chain.UTXOKey{TxID: tx.TxID, Index: i}
			if err := s.Adapter.SaveUTXO(key, out); err != nil {
				log.Printf("master: persisting utxo: %v", err)
			}
		}
	}
}

func (s *Supervisor) persistWallet(w *wallet.Wallet) {
	if s.Adapter == nil {
		return
	}
	record := &persistence.WalletRecord{
		Name:          w.Name,
		PrivateKeyHex: crypto.EncodePrivateKey(w.PrivateKey),
		PublicKeyHex:  w.PublicKeyHex(),
		PubKeyHash:    w.PubKeyHash(),
	}
	if err := s.Adapter.SaveWallet(w.Name, record); err != nil {
		log.Printf("master: persisting wallet: %v", err)
	}
}

// InitiateChain constructs the ledger with nAssets genesis assets and
// 2*nAssets wallets (the first nAssets as genesis owners), per §6's
// "initiate daChain N". Fails if a ledger already exists.
func (s *Supervisor) InitiateChain(nAssets int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Ledger != nil {
		return errors.New("master: chain already initiated")
	}

	wallets := wallet.NewWalletStore()
	owners := make([]*wallet.Wallet, nAssets)
	for i := 0; i < 2*nAssets; i++ {
		w, err := wallets.Create()
		if err != nil {
			return fmt.Errorf("master: generating wallet: %w", err)
		}
		if i < nAssets {
			owners[i] = w
		}
	}

	txs := make([]chain.Transaction, nAssets)
	for i := 0; i < nAssets; i++ {
		assetID := fmt.Sprintf("asset-%d", i)
		tx := chain.NewTransaction(nil, []chain.Output{{
			AssetID:    assetID,
			PubKeyHash: owners[i].PubKeyHash(),
			Portion:    100,
		}})
		txs[i] = *tx
	}

	genesis := chain.NewBlock(0, chain.ZeroHash, txs)
	ledger := chain.NewLedger()
	if err := ledger.AddGenesisBlock(genesis); err != nil {
		return err
	}

	s.Ledger = ledger
	s.Wallets = wallets

	for _, w := range wallets.All() {
		s.persistWallet(w)
	}
	s.persistBlock(genesis)

	return nil
}

// InitiateFullNodes constructs L nodes bound to the ledger, fully
// meshed peer-to-peer, per §6's "initiate fullNodes L".
func (s *Supervisor) InitiateFullNodes(l int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Ledger == nil {
		return errors.New("master: chain not initiated")
	}
	if len(s.nodes) != 0 {
		return errors.New("master: full nodes already initiated")
	}

	fresh := make([]*node.Node, l)
	for i := 0; i < l; i++ {
		id := fmt.Sprintf("F%d", i)
		n := node.New(id, s.Ledger)
		n.Observer = s
		s.nodes[id] = n
		s.nodeOrder = append(s.nodeOrder, id)
		fresh[i] = n
	}

	for _, a := range fresh {
		for _, b := range fresh {
			if a != b {
				a.ConnectPeer(b)
			}
		}
	}
	return nil
}

// Node looks up a node by id.
func (s *Supervisor) Node(id string) (*node.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// NodeIDs returns every node id in creation order.
func (s *Supervisor) NodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.nodeOrder))
	copy(out, s.nodeOrder)
	return out
}

// RunUserProcess starts the background traffic generator against the
// current node set. A no-op if already running.
func (s *Supervisor) RunUserProcess() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Ledger == nil || len(s.nodes) == 0 {
		return errors.New("master: chain and full nodes must be initiated first")
	}
	if s.generator != nil {
		return nil
	}

	nodes := make([]*node.Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		nodes = append(nodes, s.nodes[id])
	}

	gen := traffic.New(s.Ledger, s.Wallets, nodes)
	gen.Start()
	s.generator = gen
	return nil
}

// StopUserProcess stops the background traffic generator, joining on
// its goroutine before returning. A no-op if not running.
func (s *Supervisor) StopUserProcess() {
	s.mu.Lock()
	gen := s.generator
	s.generator = nil
	s.mu.Unlock()

	if gen != nil {
		gen.Stop()
	}
}

// OnBlockMined implements node.MiningObserver: it records the event
// with wall-clock time and runs stepwise verification of the block's
// leftmost transaction. It never mutates ledger state.
func (s *Supervisor) OnBlockMined(n *node.Node, block *chain.Block) {
	s.mu.Lock()
	s.events = append(s.events, MiningEvent{ID: uuid.NewString(), NodeID: n.ID, Block: block, At: time.Now()})
	s.mu.Unlock()

	s.persistBlock(block)

	if len(block.Transactions) == 0 {
		return
	}
	steps, ok := s.verifyTransaction(&block.Transactions[0])
	for _, line := range steps {
		log.Printf("master: %s", line)
	}
	if !ok {
		log.Printf("master: stepwise verification of mined block %s failed", block.Header.Hash())
	}
}

// VerifyTransaction selects the node's last-mined block (if
// fromLastBlock) or its current tip, and narrates stepwise
// verification of that block's first transaction, aborting narration
// at the first failed substep. The narration text prepends an extra
// "F" to node_id — node ids are already "F0", "F1", … — a known
// display defect that must not be corrected; the node lookup itself
// still uses the unmodified id.
func (s *Supervisor) VerifyTransaction(nodeID string, fromLastBlock bool) ([]string, bool, error) {
	n, ok := s.Node(nodeID)
	if !ok {
		return nil, false, fmt.Errorf("master: unknown node %s", nodeID)
	}

	narration := []string{fmt.Sprintf("verifying transaction at node F%s", nodeID)}

	var block *chain.Block
	if fromLastBlock {
		block = n.LastMined()
	} else {
		block = s.Ledger.TipBlock()
	}
	if block == nil {
		narration = append(narration, "no block available to verify")
		return narration, false, nil
	}
	if len(block.Transactions) == 0 {
		narration = append(narration, "block has no transactions")
		return narration, false, nil
	}

	steps, ok := s.verifyTransaction(&block.Transactions[0])
	narration = append(narration, steps...)
	return narration, ok, nil
}

// verifyTransaction narrates substeps matching §4.6: outpoint
// existence, asset-id consistency, pubkey-hash binding, signature,
// and portion conservation, aborting on the first failure.
func (s *Supervisor) verifyTransaction(tx *chain.Transaction) ([]string, bool) {
	var steps []string

	if tx.IsCoinbase() {
		steps = append(steps, fmt.Sprintf("tx %s is coinbase/genesis — accepted", tx.TxID))
		return steps, true
	}

	referenced := make([]chain.Output, len(tx.Inputs))
	for i, in := range tx.Inputs {
		out, ok := s.Ledger.FindOutputInChain(in.Outpoint.TxID, in.Outpoint.Index)
		if !ok {
			steps = append(steps, fmt.Sprintf("outpoint %s:%d does not exist", in.Outpoint.TxID, in.Outpoint.Index))
			return steps, false
		}
		referenced[i] = out
		steps = append(steps, fmt.Sprintf("outpoint %s:%d exists, asset=%s", in.Outpoint.TxID, in.Outpoint.Index, out.AssetID))
	}

	assetID := referenced[0].AssetID
	for _, out := range referenced {
		if out.AssetID != assetID {
			steps = append(steps, "asset_id mismatch across inputs")
			return steps, false
		}
	}
	steps = append(steps, fmt.Sprintf("asset_id consistent: %s", assetID))

	totalIn := 0
	for i, in := range tx.Inputs {
		hash, err := crypto.PubKeyHashFromHex(in.PubKey)
		if err != nil || hash != referenced[i].PubKeyHash {
			steps = append(steps, fmt.Sprintf("pubkey hash mismatch on input %d", i))
			return steps, false
		}
		totalIn += referenced[i].Portion
		steps = append(steps, fmt.Sprintf("input %d pubkey-hash binding ok", i))
	}

	signingBytes, err := tx.SigningBytes()
	if err != nil {
		steps = append(steps, "failed to compute signing form")
		return steps, false
	}
	for i, in := range tx.Inputs {
		ok, err := crypto.VerifySignature(signingBytes, in.Signature, in.PubKey)
		if err != nil || !ok {
			steps = append(steps, fmt.Sprintf("signature verification failed on input %d", i))
			return steps, false
		}
		steps = append(steps, fmt.Sprintf("input %d signature ok", i))
	}

	totalOut := 0
	for _, out := range tx.Outputs {
		if out.AssetID != assetID {
			steps = append(steps, "output asset_id mismatch")
			return steps, false
		}
		totalOut += out.Portion
	}
	if totalIn != totalOut {
		steps = append(steps, fmt.Sprintf("portion mismatch: in=%d, out=%d", totalIn, totalOut))
		return steps, false
	}
	steps = append(steps, fmt.Sprintf("portion conservation ok: in=%d, out=%d", totalIn, totalOut))

	return steps, true
}

// SnapshotEntry is one (height, short-hash) pair in a chain snapshot.
type SnapshotEntry struct {
	Height    int
	ShortHash string
}

// SnapshotChain emits the chain tip-to-genesis as an ordered sequence
// of (height, short-hash) pairs, per node. target "ALL" returns every
// node; a specific node id returns only that node's entry — since
// every node shares one ledger, the sequences are identical, but the
// per-node framing is preserved so the narration always names which
// node's view it is showing.
func (s *Supervisor) SnapshotChain(target string) (map[string][]SnapshotEntry, error) {
	chainEntries := s.Ledger.BuildChainFromTip()
	entries := make([]SnapshotEntry, len(chainEntries))
	for i, e := range chainEntries {
		entries[i] = SnapshotEntry{Height: e.Block.Header.Height, ShortHash: shortHash(e.Hash)}
	}

	if target == "ALL" {
		out := make(map[string][]SnapshotEntry)
		for _, id := range s.NodeIDs() {
			out[id] = entries
		}
		return out, nil
	}

	if _, ok := s.Node(target); !ok {
		return nil, fmt.Errorf("master: unknown node %s", target)
	}
	return map[string][]SnapshotEntry{target: entries}, nil
}

// TraceAsset obtains the ledger's asset history and, when limit > 0,
// truncates it to the first limit entries (newest-first, as the
// ledger already returns them).
func (s *Supervisor) TraceAsset(assetID string, limit int) []chain.AssetTraceEntry {
	entries := s.Ledger.TraceAsset(assetID)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func shortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
