package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphPgxStorage keeps the graph in two PostgreSQL tables, graph_nodes and
// graph_edges. The tables are created by Migrate.
type GraphPgxStorage struct {
	conn  pgxIConn
	mode  store.WriteMode
	close func()
}

// NewGraphPgxStorage opens a connection pool for databaseURL.
func NewGraphPgxStorage(ctx context.Context, databaseURL string, mode store.WriteMode) (*GraphPgxStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewGraphPgxStorageWithConnection(pool, mode)
	s.close = pool.Close
	return s, nil
}

// NewGraphPgxStorageWithConnection uses an existing connection or pool.
// The caller keeps ownership of conn.
func NewGraphPgxStorageWithConnection(conn pgxIConn, mode store.WriteMode) *GraphPgxStorage {
	if mode == "" {
		mode = store.WriteModeReplace
	}
	return &GraphPgxStorage{conn: conn, mode: mode}
}

const (
	wipeEdgesSQL = `DELETE FROM graph_edges`
	wipeNodesSQL = `DELETE FROM graph_nodes`

	upsertNodeSQL = `
INSERT INTO graph_nodes (id, name, label)
VALUES ($1, $2, $3)
ON CONFLICT (id, name) DO UPDATE
SET label = EXCLUDED.label;
`

	upsertEdgeSQL = `
INSERT INTO graph_edges (from_id, to_id, type, subject, object, confidence)
SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::double precision
WHERE EXISTS (SELECT 1 FROM graph_nodes WHERE id = $1::text)
  AND EXISTS (SELECT 1 FROM graph_nodes WHERE id = $2::text)
ON CONFLICT (from_id, type, to_id) DO UPDATE
SET subject    = EXCLUDED.subject,
    object     = EXCLUDED.object,
    confidence = EXCLUDED.confidence;
`

	countSQL = `SELECT (SELECT count(*) FROM graph_nodes), (SELECT count(*) FROM graph_edges)`
)

// SaveGraph writes entities and relationships in one transaction.
func (s *GraphPgxStorage) SaveGraph(
	ctx context.Context,
	entities []common.MergedEntity,
	relations []common.Relationship,
) error {
	nodes, edges := store.PrepareGraph(entities, relations)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.mode == store.WriteModeReplace {
		if _, err := tx.Exec(ctx, wipeEdgesSQL); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}
		if _, err := tx.Exec(ctx, wipeNodesSQL); err != nil {
			return fmt.Errorf("failed to clear nodes: %w", err)
		}
	}

	for _, n := range nodes {
		if _, err := tx.Exec(ctx, upsertNodeSQL, n.ID, n.Name, n.Label); err != nil {
			return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
		}
	}

	skipped := 0
	for _, e := range edges {
		tag, err := tx.Exec(ctx, upsertEdgeSQL, e.FromID, e.ToID, e.Type, e.Subject, e.Object, e.Confidence)
		if err != nil {
			return fmt.Errorf("failed to upsert edge %s-%s->%s: %w", e.FromID, e.Type, e.ToID, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	logger.Debug("[Store] Saved graph to postgres", "nodes", len(nodes), "edges", len(edges)-skipped, "skipped_edges", skipped, "mode", s.mode)
	return nil
}

// CountGraph returns the number of stored nodes and edges.
func (s *GraphPgxStorage) CountGraph(ctx context.Context) (int, int, error) {
	var nodes, edges int64
	if err := s.conn.QueryRow(ctx, countSQL).Scan(&nodes, &edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count graph: %w", err)
	}
	return int(nodes), int(edges), nil
}

// Close releases the pool if the storage created it.
func (s *GraphPgxStorage) Close(context.Context) error {
	if s.close != nil {
		s.close()
	}
	return nil
}

var _ store.GraphWriter = (*GraphPgxStorage)(nil)
