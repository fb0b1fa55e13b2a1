package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"

	"dachain/internal/chain"
	"dachain/internal/codec"
)

var (
	bucketBlocks           = []byte("blocks")
	bucketUTXOs            = []byte("utxos")
	bucketWallets          = []byte("wallets")
	bucketBlocksByHeight   = []byte("blocks_by_height")
	bucketBlocksByPrevHash = []byte("blocks_by_prevhash")
	bucketUTXOsByPubKey    = []byte("utxos_by_pubkeyhash")
	bucketUTXOsByAssetID   = []byte("utxos_by_assetid")
)

// BoltAdapter is the reference Adapter implementation, backed by a
// single boltdb file with one top-level bucket per collection plus
// one per secondary index.
type BoltAdapter struct {
	db *bolt.DB
}

// OpenBoltAdapter opens (creating if absent) a bolt database at path
// and ensures every bucket this adapter needs exists.
func OpenBoltAdapter(path string) (*BoltAdapter, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening bolt db: %w", err)
	}

	buckets := [][]byte{
		bucketBlocks, bucketUTXOs, bucketWallets,
		bucketBlocksByHeight, bucketBlocksByPrevHash,
		bucketUTXOsByPubKey, bucketUTXOsByAssetID,
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: creating buckets: %w", err)
	}

	return &BoltAdapter{db: db}, nil
}

func utxoKeyString(key chain.UTXOKey) string {
	return fmt.Sprintf("%s:%d", key.TxID, key.Index)
}

func heightKeyString(height int) []byte {
	return []byte(fmt.Sprintf("%012d", height))
}

// appendIndexEntry adds member to the string-set index value stored
// at key in bucket b, de-duplicating.
func appendIndexEntry(b *bolt.Bucket, key []byte, member string) error {
	var members []string
	if raw := b.Get(key); raw != nil {
		if err := json.Unmarshal(raw, &members); err != nil {
			return err
		}
	}
	for _, m := range members {
		if m == member {
			return nil
		}
	}
	members = append(members, member)
	encoded, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return b.Put(key, encoded)
}

func readIndexEntries(b *bolt.Bucket, key []byte) ([]string, error) {
	raw := b.Get(key)
	if raw == nil {
		return nil, nil
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SaveBlock stores b under its header hash, with secondary index
// entries by height and by prev-hash.
func (a *BoltAdapter) SaveBlock(b *chain.Block) error {
	hash := b.Header.Hash()
	record, err := codec.Canonical(b)
	if err != nil {
		return fmt.Errorf("persistence: canonicalizing block: %w", err)
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBlocks).Put([]byte(hash), record); err != nil {
			return err
		}
		if err := appendIndexEntry(tx.Bucket(bucketBlocksByHeight), heightKeyString(b.Header.Height), hash); err != nil {
			return err
		}
		return appendIndexEntry(tx.Bucket(bucketBlocksByPrevHash), []byte(b.Header.PrevHash), hash)
	})
}

func (a *BoltAdapter) blockByHash(tx *bolt.Tx, hash string) (*chain.Block, error) {
	raw := tx.Bucket(bucketBlocks).Get([]byte(hash))
	if raw == nil {
		return nil, nil
	}
	var block chain.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// BlocksByHeight returns every stored block at height, in the order
// they were recorded.
func (a *BoltAdapter) BlocksByHeight(height int) ([]*chain.Block, error) {
	var out []*chain.Block
	err := a.db.View(func(tx *bolt.Tx) error {
		hashes, err := readIndexEntries(tx.Bucket(bucketBlocksByHeight), heightKeyString(height))
		if err != nil {
			return err
		}
		for _, hash := range hashes {
			block, err := a.blockByHash(tx, hash)
			if err != nil {
				return err
			}
			if block != nil {
				out = append(out, block)
			}
		}
		return nil
	})
	return out, err
}

// BlocksByPrevHash returns every stored block whose header names
// prevHash as its predecessor.
func (a *BoltAdapter) BlocksByPrevHash(prevHash string) ([]*chain.Block, error) {
	var out []*chain.Block
	err := a.db.View(func(tx *bolt.Tx) error {
		hashes, err := readIndexEntries(tx.Bucket(bucketBlocksByPrevHash), []byte(prevHash))
		if err != nil {
			return err
		}
		for _, hash := range hashes {
			block, err := a.blockByHash(tx, hash)
			if err != nil {
				return err
			}
			if block != nil {
				out = append(out, block)
			}
		}
		return nil
	})
	return out, err
}

// SaveUTXO stores out under key, with secondary index entries by
// pubkey-hash and asset-id.
func (a *BoltAdapter) SaveUTXO(key chain.UTXOKey, out chain.Output) error {
	record := UTXORecord{TxID: key.TxID, Index: key.Index, Output: out}
	encoded, err := codec.Canonical(record)
	if err != nil {
		return fmt.Errorf("persistence: canonicalizing utxo: %w", err)
	}

	primaryKey := utxoKeyString(key)
	return a.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketUTXOs).Put([]byte(primaryKey), encoded); err != nil {
			return err
		}
		if err := appendIndexEntry(tx.Bucket(bucketUTXOsByPubKey), []byte(out.PubKeyHash), primaryKey); err != nil {
			return err
		}
		return appendIndexEntry(tx.Bucket(bucketUTXOsByAssetID), []byte(out.AssetID), primaryKey)
	})
}

// DeleteUTXO removes the record at key. The secondary index entries
// are left in place (stale pointers resolve to a miss on lookup) —
// consistent with the UTXO set's own "remove silently no-ops
// otherwise" contract, since pruning an index is a pure optimization,
// not a correctness requirement.
func (a *BoltAdapter) DeleteUTXO(key chain.UTXOKey) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUTXOs).Delete([]byte(utxoKeyString(key)))
	})
}

func (a *BoltAdapter) utxoByPrimaryKey(tx *bolt.Tx, primaryKey string) (*UTXORecord, error) {
	raw := tx.Bucket(bucketUTXOs).Get([]byte(primaryKey))
	if raw == nil {
		return nil, nil
	}
	var record UTXORecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// UTXOsByPubKeyHash returns every currently-stored UTXO owned by hash.
func (a *BoltAdapter) UTXOsByPubKeyHash(hash string) ([]UTXORecord, error) {
	var out []UTXORecord
	err := a.db.View(func(tx *bolt.Tx) error {
		keys, err := readIndexEntries(tx.Bucket(bucketUTXOsByPubKey), []byte(hash))
		if err != nil {
			return err
		}
		for _, k := range keys {
			record, err := a.utxoByPrimaryKey(tx, k)
			if err != nil {
				return err
			}
			if record != nil {
				out = append(out, *record)
			}
		}
		return nil
	})
	return out, err
}

// UTXOsByAssetID returns every currently-stored UTXO of assetID.
func (a *BoltAdapter) UTXOsByAssetID(assetID string) ([]UTXORecord, error) {
	var out []UTXORecord
	err := a.db.View(func(tx *bolt.Tx) error {
		keys, err := readIndexEntries(tx.Bucket(bucketUTXOsByAssetID), []byte(assetID))
		if err != nil {
			return err
		}
		for _, k := range keys {
			record, err := a.utxoByPrimaryKey(tx, k)
			if err != nil {
				return err
			}
			if record != nil {
				out = append(out, *record)
			}
		}
		return nil
	})
	return out, err
}

// SaveWallet stores w under name.
func (a *BoltAdapter) SaveWallet(name string, w *WalletRecord) error {
	encoded, err := codec.Canonical(w)
	if err != nil {
		return fmt.Errorf("persistence: canonicalizing wallet: %w", err)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWallets).Put([]byte(name), encoded)
	})
}

// Wallet retrieves the wallet stored under name, or nil if absent.
func (a *BoltAdapter) Wallet(name string) (*WalletRecord, error) {
	var record *WalletRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketWallets).Get([]byte(name))
		if raw == nil {
			return nil
		}
		record = &WalletRecord{}
		return json.Unmarshal(raw, record)
	})
	return record, err
}

// Close releases the underlying bolt database file.
func (a *BoltAdapter) Close() error {
	return a.db.Close()
}
