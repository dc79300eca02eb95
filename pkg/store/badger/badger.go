package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/store"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	node/<id>/<name>          -> store.Node
//	nodeid/<id>               -> empty, existence index for edge endpoints
//	edge/<from>/<type>/<to>   -> store.Edge
const (
	nodePrefix   = "node/"
	nodeIDPrefix = "nodeid/"
	edgePrefix   = "edge/"
)

// GraphBadgerStorage keeps the graph in an embedded badger database.
type GraphBadgerStorage struct {
	db   *badger.DB
	mode store.WriteMode
}

// NewGraphBadgerStorageParams configures NewGraphBadgerStorage. An empty
// Path keeps the database in memory.
type NewGraphBadgerStorageParams struct {
	Path string
	Mode store.WriteMode
}

// NewGraphBadgerStorage opens (or creates) the database.
func NewGraphBadgerStorage(params NewGraphBadgerStorageParams) (*GraphBadgerStorage, error) {
	opts := badger.DefaultOptions(params.Path).WithLogger(nil)
	if params.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	mode := params.Mode
	if mode == "" {
		mode = store.WriteModeReplace
	}
	return &GraphBadgerStorage{db: db, mode: mode}, nil
}

func nodeKey(n store.Node) []byte {
	return []byte(nodePrefix + n.ID + "/" + n.Name)
}

func nodeIDKey(id string) []byte {
	return []byte(nodeIDPrefix + id)
}

func edgeKey(e store.Edge) []byte {
	return []byte(edgePrefix + e.FromID + "/" + e.Type + "/" + e.ToID)
}

// SaveGraph writes entities and relationships in one update transaction.
// Edges whose endpoints are not stored are skipped.
func (s *GraphBadgerStorage) SaveGraph(
	ctx context.Context,
	entities []common.MergedEntity,
	relations []common.Relationship,
) error {
	nodes, edges := store.PrepareGraph(entities, relations)

	skipped := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		if s.mode == store.WriteModeReplace {
			for _, prefix := range []string{edgePrefix, nodeIDPrefix, nodePrefix} {
				if err := deletePrefix(txn, []byte(prefix)); err != nil {
					return fmt.Errorf("failed to clear %s: %w", prefix, err)
				}
			}
		}

		for _, n := range nodes {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := txn.Set(nodeKey(n), data); err != nil {
				return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
			}
			if err := txn.Set(nodeIDKey(n.ID), []byte{}); err != nil {
				return err
			}
		}

		for _, e := range edges {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := hasNodes(txn, e.FromID, e.ToID)
			if err != nil {
				return err
			}
			if !ok {
				skipped++
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(edgeKey(e), data); err != nil {
				return fmt.Errorf("failed to upsert edge %s-%s->%s: %w", e.FromID, e.Type, e.ToID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("[Store] Saved graph to badger", "nodes", len(nodes), "edges", len(edges)-skipped, "skipped_edges", skipped, "mode", s.mode)
	return nil
}

func hasNodes(txn *badger.Txn, ids ...string) (bool, error) {
	for _, id := range ids {
		_, err := txn.Get(nodeIDKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	keys, err := collectKeys(txn, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// CountGraph returns the number of stored nodes and edges.
func (s *GraphBadgerStorage) CountGraph(ctx context.Context) (int, int, error) {
	var nodes, edges int
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := collectKeys(txn, []byte(nodePrefix))
		if err != nil {
			return err
		}
		e, err := collectKeys(txn, []byte(edgePrefix))
		if err != nil {
			return err
		}
		nodes, edges = len(n), len(e)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count graph: %w", err)
	}
	return nodes, edges, nil
}

// Edges returns all stored edges in key order.
func (s *GraphBadgerStorage) Edges(ctx context.Context) ([]store.Edge, error) {
	out := make([]store.Edge, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(edgePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e store.Edge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Close closes the database.
func (s *GraphBadgerStorage) Close(context.Context) error {
	return s.db.Close()
}

var _ store.GraphWriter = (*GraphBadgerStorage)(nil)
